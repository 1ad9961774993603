package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/samsaffron/webchat/internal/llm"
	"gopkg.in/yaml.v3"
)

// Snapshot is the whole-store export file format. Model and system
// prompt travel with the sessions so a snapshot restores a working
// setup on another machine.
type Snapshot struct {
	Sessions     []*Session `json:"sessions"`
	Model        string     `json:"model"`
	SystemPrompt string     `json:"systemPrompt"`
}

// Export serializes every session plus the supplied chat parameters.
func (s *Store) Export(model, systemPrompt string) ([]byte, error) {
	snap := Snapshot{
		Sessions:     s.Sessions(),
		Model:        model,
		SystemPrompt: systemPrompt,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// Import replaces the session list from a snapshot. Each field is
// independently optional: a malformed or missing sessions array, model,
// or system prompt is ignored rather than failing the whole import.
// Only a document that is not a JSON object at all is rejected.
func (s *Store) Import(data []byte) (Snapshot, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("invalid snapshot: %w", err)
	}

	var snap Snapshot
	if field, ok := raw["sessions"]; ok {
		var sessions []*Session
		if err := json.Unmarshal(field, &sessions); err == nil {
			snap.Sessions = sanitizeSessions(sessions)
			s.mu.Lock()
			s.sessions = snap.Sessions
			if s.find(s.activeID) == nil {
				s.activeID = ""
			}
			s.persist()
			s.mu.Unlock()
		}
	}
	if field, ok := raw["model"]; ok {
		var model string
		if err := json.Unmarshal(field, &model); err == nil {
			snap.Model = model
		}
	}
	if field, ok := raw["systemPrompt"]; ok {
		var prompt string
		if err := json.Unmarshal(field, &prompt); err == nil {
			snap.SystemPrompt = prompt
		}
	}
	return snap, nil
}

// sanitizeSessions drops entries without an ID and duplicates, keeping
// first occurrence order. The store invariant requires unique IDs.
func sanitizeSessions(sessions []*Session) []*Session {
	seen := make(map[string]bool, len(sessions))
	kept := sessions[:0]
	for _, sess := range sessions {
		if sess == nil || sess.ID == "" || seen[sess.ID] {
			continue
		}
		seen[sess.ID] = true
		kept = append(kept, sess)
	}
	return kept
}

// ExportToMarkdown renders a single session as readable markdown.
func ExportToMarkdown(sess *Session) string {
	var b strings.Builder

	title := sess.Title
	if title == "" {
		title = sess.ID
	}
	b.WriteString(fmt.Sprintf("# %s\n\n", title))
	if sess.CreatedAt > 0 {
		created := time.UnixMilli(sess.CreatedAt).UTC()
		b.WriteString(fmt.Sprintf("> Created %s\n\n", created.Format("2006-01-02 15:04 UTC")))
	}
	b.WriteString("---\n\n")

	for _, msg := range sess.Messages {
		switch msg.Role {
		case llm.RoleSystem:
			b.WriteString("### System\n\n")
		case llm.RoleUser:
			b.WriteString("### User\n\n")
		default:
			b.WriteString("### Assistant\n\n")
		}
		b.WriteString(msg.Content)
		b.WriteString("\n\n---\n\n")
	}

	return b.String()
}

// ExportToYAML renders a single session as YAML.
func ExportToYAML(sess *Session) ([]byte, error) {
	data, err := yaml.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return data, nil
}
