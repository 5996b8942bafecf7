package settings

import (
	"log/slog"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	s, err := NewStore(path, slog.Default())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

func TestGetReturnsDefaults(t *testing.T) {
	s := newTestStore(t)

	got := s.Get("alice")
	if got.VoiceTone != "friendly" {
		t.Errorf("Expected default tone friendly, got %q", got.VoiceTone)
	}
	if got.Temperature != 0.7 || got.MaxTokens != 512 {
		t.Errorf("Unexpected model defaults: %+v", got)
	}
	if got.UserID != "alice" {
		t.Errorf("Expected userId alice, got %q", got.UserID)
	}
}

func TestUpdateMergesPatch(t *testing.T) {
	s := newTestStore(t)

	updated, err := s.Update("alice", []byte(`{"voiceTone":"sassy","maxTokens":256}`))
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if updated.VoiceTone != "sassy" {
		t.Errorf("Expected sassy, got %q", updated.VoiceTone)
	}
	if updated.MaxTokens != 256 {
		t.Errorf("Expected 256, got %d", updated.MaxTokens)
	}
	// Untouched fields keep their defaults
	if updated.Temperature != 0.7 {
		t.Errorf("Temperature should be unchanged, got %v", updated.Temperature)
	}
	if updated.UpdatedAt == "" {
		t.Error("UpdatedAt should be stamped")
	}
}

func TestUpdateRejectsInvalidPatch(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Update("alice", []byte(`{not json`)); err == nil {
		t.Error("Expected error for malformed patch")
	}
}

func TestStoreSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	s1, err := NewStore(path, slog.Default())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if _, err := s1.Update("bob", []byte(`{"theme":"light"}`)); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	s2, err := NewStore(path, slog.Default())
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if got := s2.Get("bob").Theme; got != "light" {
		t.Errorf("Expected persisted theme light, got %q", got)
	}
}

func TestReset(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Update("alice", []byte(`{"voiceTone":"calm"}`)); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, err := s.Reset("alice")
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if got.VoiceTone != "friendly" {
		t.Errorf("Expected default tone after reset, got %q", got.VoiceTone)
	}
}
