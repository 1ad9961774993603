package session

import (
	"strings"
	"testing"

	"github.com/samsaffron/webchat/internal/llm"
)

func TestExportImportRoundTrip(t *testing.T) {
	store := Open(NewMemoryKV())
	sess := store.Create()
	store.AppendMessage(sess.ID, Message{Role: llm.RoleUser, Content: "hello"})
	store.AppendMessage(sess.ID, Message{Role: llm.RoleAssistant, Content: "hi there"})

	data, err := store.Export("gpt-4o-mini", "You are helpful")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	other := Open(NewMemoryKV())
	snap, err := other.Import(data)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}

	if snap.Model != "gpt-4o-mini" || snap.SystemPrompt != "You are helpful" {
		t.Errorf("model/systemPrompt did not round-trip: %+v", snap)
	}
	sessions := other.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	got := sessions[0]
	if got.ID != sess.ID || got.Title != sess.Title || got.CreatedAt != sess.CreatedAt {
		t.Errorf("session metadata did not round-trip: %+v vs %+v", got, sess)
	}
	if len(got.Messages) != 2 || got.Messages[1].Content != "hi there" {
		t.Errorf("messages did not round-trip: %+v", got.Messages)
	}
}

func TestImportToleratesMissingAndMalformedFields(t *testing.T) {
	store := Open(NewMemoryKV())
	kept := store.Create()

	tests := []struct {
		name     string
		data     string
		sessions int // expected count after import
	}{
		{"empty object", `{}`, 1},
		{"sessions not an array", `{"sessions": "nope", "model": "m"}`, 1},
		{"model not a string", `{"sessions": [], "model": 42}`, 0},
		{"unknown fields ignored", `{"sessions": [], "bogus": {"deep": true}}`, 0},
		{"entries without ids dropped", `{"sessions": [{"title":"x"}, {"id":"s1","title":"ok"}, {"id":"s1"}]}`, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := Open(NewMemoryKV())
			store.sessions = []*Session{kept}
			store.activeID = kept.ID

			if _, err := store.Import([]byte(tc.data)); err != nil {
				t.Fatalf("import must tolerate this input: %v", err)
			}
			if got := len(store.sessions); got != tc.sessions {
				t.Errorf("expected %d sessions, got %d", tc.sessions, got)
			}
			// The invariant must still hold on the next read.
			active := store.Active()
			if store.Get(active.ID) == nil {
				t.Error("active session missing after import")
			}
		})
	}
}

func TestImportRejectsNonObject(t *testing.T) {
	store := Open(NewMemoryKV())
	if _, err := store.Import([]byte("not json at all")); err == nil {
		t.Fatal("expected error for unparsable document")
	}
}

func TestExportToMarkdown(t *testing.T) {
	sess := &Session{
		ID:        "abc",
		Title:     "Greetings",
		CreatedAt: 1700000000000,
		Messages: []Message{
			{Role: llm.RoleUser, Content: "hello"},
			{Role: llm.RoleAssistant, Content: "hi!"},
		},
	}

	md := ExportToMarkdown(sess)
	for _, want := range []string{"# Greetings", "### User", "hello", "### Assistant", "hi!"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestExportToYAML(t *testing.T) {
	sess := &Session{ID: "abc", Title: "T", Messages: []Message{{Role: llm.RoleUser, Content: "hi"}}}
	data, err := ExportToYAML(sess)
	if err != nil {
		t.Fatalf("yaml export failed: %v", err)
	}
	if !strings.Contains(string(data), "title: T") {
		t.Errorf("unexpected yaml output:\n%s", data)
	}
}
