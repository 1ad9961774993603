package session

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/samsaffron/webchat/internal/llm"
)

// Persisted keys. These match the browser client's localStorage layout
// so exports stay interchangeable.
const (
	keySessions = "sessions"
	keyActiveID = "active_session_id"
)

const (
	// DefaultTitle is the title of a freshly created session until the
	// first user message names it.
	DefaultTitle = "New Chat"
	titleMaxLen  = 60
)

// Message is one persisted conversation entry.
type Message struct {
	Role    llm.Role `json:"role"`
	Content string   `json:"content"`
}

// Session is a persisted, independently addressable conversation.
// CreatedAt is epoch milliseconds, matching the export file format.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt int64     `json:"createdAt"`
	Messages  []Message `json:"messages"`
}

// Store owns the session list and the active-session pointer, persisting
// through the KV port after every mutation. Persistence failures are
// swallowed: the in-memory state stays authoritative for the process
// lifetime.
//
// Invariant: whenever the list is non-empty, the active ID references a
// present session. Mutators either maintain it directly or leave the
// pointer unset for Active to repair on the next read.
//
// All methods are safe for concurrent use; a turn finishing on one
// goroutine may commit its reply while another mutates the list.
type Store struct {
	mu       sync.Mutex
	kv       KV
	sessions []*Session
	activeID string
}

// Open loads the store from kv. Corrupt persisted state falls back to an
// empty store rather than failing.
func Open(kv KV) *Store {
	s := &Store{kv: kv}
	if raw, ok := kv.Get(keySessions); ok {
		if err := json.Unmarshal([]byte(raw), &s.sessions); err != nil {
			fmt.Fprintf(os.Stderr, "warning: discarding corrupt session data: %v\n", err)
			s.sessions = nil
		}
	}
	if id, ok := kv.Get(keyActiveID); ok {
		s.activeID = id
	}
	return s
}

// Create adds a fresh session at the head of the list and makes it
// active.
func (s *Store) Create() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked()
}

func (s *Store) createLocked() *Session {
	sess := &Session{
		ID:        NewID(),
		Title:     DefaultTitle,
		CreatedAt: time.Now().UnixMilli(),
	}
	s.sessions = append([]*Session{sess}, s.sessions...)
	s.activeID = sess.ID
	s.persist()
	return sess
}

// Select makes the given session active. Unknown IDs are a no-op.
func (s *Store) Select(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.find(id) == nil {
		return
	}
	s.activeID = id
	s.persist()
}

// Delete removes a session. Deleting the active session leaves the
// pointer unset; Active repairs it on the next read, creating a fresh
// session when the list emptied.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.sessions[:0]
	for _, sess := range s.sessions {
		if sess.ID != id {
			kept = append(kept, sess)
		}
	}
	if len(kept) == len(s.sessions) {
		return
	}
	s.sessions = kept
	if s.activeID == id {
		s.activeID = ""
	}
	s.persist()
	if len(s.sessions) == 0 {
		s.createLocked()
	}
}

// Rename overwrites a session title. An empty trimmed title is a no-op.
func (s *Store) Rename(id, title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.find(id)
	if sess == nil {
		return
	}
	sess.Title = title
	s.persist()
}

// AppendMessage appends to a session's log. While the session still has
// its default title, the first user message names it.
func (s *Store) AppendMessage(id string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.find(id)
	if sess == nil {
		return fmt.Errorf("session not found: %s", id)
	}
	sess.Messages = append(sess.Messages, msg)

	if sess.Title == DefaultTitle || sess.Title == "" {
		for _, m := range sess.Messages {
			if m.Role != llm.RoleUser {
				continue
			}
			if title := deriveTitle(m.Content); title != "" {
				sess.Title = title
			}
			break
		}
	}

	s.persist()
	return nil
}

// EditMessage replaces the content of the message at index. Earlier
// replies generated from the pre-edit history are left untouched;
// editing does not replay the conversation.
func (s *Store) EditMessage(id string, index int, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.find(id)
	if sess == nil {
		return fmt.Errorf("session not found: %s", id)
	}
	if index < 0 || index >= len(sess.Messages) {
		return fmt.Errorf("message index out of range: %d", index)
	}
	sess.Messages[index].Content = content
	s.persist()
	return nil
}

// Active returns the active session, re-establishing the store invariant
// first: an empty store grows a fresh session, a dangling pointer snaps
// to the first available one.
func (s *Store) Active() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) == 0 {
		return s.createLocked()
	}
	if sess := s.find(s.activeID); sess != nil {
		return sess
	}
	s.activeID = s.sessions[0].ID
	s.persist()
	return s.sessions[0]
}

// ActiveID returns the current active pointer without repairing it.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Sessions returns the session list, newest first.
func (s *Store) Sessions() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Get returns the session with the given ID, or nil.
func (s *Store) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(id)
}

func (s *Store) find(id string) *Session {
	if id == "" {
		return nil
	}
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess
		}
	}
	return nil
}

func deriveTitle(content string) string {
	title := strings.TrimSpace(content)
	if runes := []rune(title); len(runes) > titleMaxLen {
		title = string(runes[:titleMaxLen])
	}
	return title
}

func (s *Store) persist() {
	raw, err := json.Marshal(s.sessions)
	if err == nil {
		err = s.kv.Set(keySessions, string(raw))
	}
	if err == nil && s.activeID != "" {
		err = s.kv.Set(keyActiveID, s.activeID)
	}
	if err != nil {
		// Quota-style storage failures are not surfaced to callers.
		fmt.Fprintf(os.Stderr, "warning: session persist failed: %v\n", err)
	}
}
