// Package settings stores per-user assistant preferences in a JSON file.
// Reads come from an in-memory cache; every update rewrites the file.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Settings holds one user's preferences. Fields mirror what the client
// sends, so json tags are the source of truth for names.
type Settings struct {
	Language         string  `json:"language"`
	Theme            string  `json:"theme"`
	Personality      string  `json:"personality"`
	VoiceTone        string  `json:"voiceTone"`
	VoiceSpeed       float64 `json:"voiceSpeed"`
	VoicePitch       float64 `json:"voicePitch"`
	VoiceLanguage    string  `json:"voiceLanguage"`
	VoiceCallEnabled bool    `json:"voiceCallEnabled"`
	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"maxTokens"`
	PrivacyMode      bool    `json:"privacyMode"`
	DataCollection   bool    `json:"dataCollection"`
	Notifications    bool    `json:"notifications"`
	AutoLaunch       bool    `json:"autoLaunch"`
	WakeWord         string  `json:"wakeWord"`
	UserID           string  `json:"userId,omitempty"`
	UpdatedAt        string  `json:"updatedAt,omitempty"`
}

// Defaults returns the settings a user starts with.
func Defaults() Settings {
	return Settings{
		Language:      "en-US",
		Theme:         "dark",
		Personality:   "friendly",
		VoiceTone:     "friendly",
		VoiceSpeed:    1.0,
		VoicePitch:    1.0,
		VoiceLanguage: "en-US",
		Temperature:   0.7,
		MaxTokens:     512,
		Notifications: true,
		WakeWord:      "hey vezora",
	}
}

// Store is a file-backed settings store keyed by user ID.
type Store struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	users map[string]Settings
}

// NewStore loads (or creates) the settings file at path.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logger.With("component", "settings"),
		users:  make(map[string]Settings),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the user's settings, falling back to defaults for a user
// that has never saved anything.
func (s *Store) Get(userID string) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, ok := s.users[userID]
	if !ok {
		out = Defaults()
	}
	out.UserID = userID
	return out
}

// Update applies a partial JSON patch to the user's settings and
// persists the result. Unknown fields in the patch are ignored.
func (s *Store) Update(userID string, patch []byte) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[userID]
	if !ok {
		current = Defaults()
	}
	if err := json.Unmarshal(patch, &current); err != nil {
		return Settings{}, fmt.Errorf("invalid settings patch: %w", err)
	}
	current.UserID = userID
	current.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	s.users[userID] = current
	if err := s.save(); err != nil {
		return Settings{}, err
	}
	return current, nil
}

// Reset restores a user to defaults and persists.
func (s *Store) Reset(userID string) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Defaults()
	out.UserID = userID
	out.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	s.users[userID] = out
	if err := s.save(); err != nil {
		return Settings{}, err
	}
	return out, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s.save()
	}
	if err != nil {
		return fmt.Errorf("read settings file: %w", err)
	}
	if err := json.Unmarshal(data, &s.users); err != nil {
		return fmt.Errorf("parse settings file %s: %w", s.path, err)
	}
	return nil
}

// save writes the full map. Callers hold the lock.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.logger.Error("failed to save settings", "error", err)
		return fmt.Errorf("write settings file: %w", err)
	}
	return nil
}
