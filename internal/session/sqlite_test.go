package session

import (
	"path/filepath"
	"testing"

	"github.com/samsaffron/webchat/internal/llm"
)

func TestSQLiteKVRoundTrip(t *testing.T) {
	kv, err := OpenSQLiteKV(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer kv.Close()

	if _, ok := kv.Get("missing"); ok {
		t.Error("expected missing key to report absent")
	}

	if err := kv.Set("k", "v1"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := kv.Set("k", "v2"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if v, ok := kv.Get("k"); !ok || v != "v2" {
		t.Errorf("expected v2, got %q (%v)", v, ok)
	}

	if err := kv.Delete("k"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok := kv.Get("k"); ok {
		t.Error("expected key gone after delete")
	}
}

func TestSQLiteKVPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "store.db")

	kv, err := OpenSQLiteKV(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	store := Open(kv)
	sess := store.Create()
	store.AppendMessage(sess.ID, Message{Role: llm.RoleUser, Content: "durable?"})
	kv.Close()

	kv2, err := OpenSQLiteKV(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer kv2.Close()

	reloaded := Open(kv2)
	active := reloaded.Active()
	if active.ID != sess.ID {
		t.Errorf("expected active %s after reopen, got %s", sess.ID, active.ID)
	}
	if len(active.Messages) != 1 || active.Messages[0].Content != "durable?" {
		t.Errorf("messages did not survive reopen: %+v", active.Messages)
	}
}

func TestSettingsRoundTripOnSQLite(t *testing.T) {
	kv, err := OpenSQLiteKV(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer kv.Close()

	in := Settings{
		Model:        "gpt-4o",
		SystemPrompt: "Be terse.",
		APIKey:       "sk-test",
		Temperature:  0.3,
		TopP:         0.9,
	}
	SaveSettings(kv, in)

	out := LoadSettings(kv, DefaultSettings())
	if out != in {
		t.Errorf("settings did not round-trip: got %+v, want %+v", out, in)
	}
}
