// Package memory stores long-lived context entries per user. Entries are
// short facts the assistant should remember across conversations; the top
// few are injected as system context when a chat requests memory.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxEntriesPerUser caps stored entries; the oldest are evicted first.
const MaxEntriesPerUser = 100

// Entry is one remembered fact.
type Entry struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Category  string `json:"category,omitempty"`
	UserID    string `json:"userId"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// ErrNotFound is returned when an entry ID does not exist for the user.
var ErrNotFound = errors.New("memory: entry not found")

// Store is a file-backed memory store keyed by user ID.
type Store struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	users map[string][]Entry
}

// NewStore loads (or creates) the memory file at path.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logger.With("component", "memory"),
		users:  make(map[string][]Entry),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// List returns all entries for a user, newest last.
func (s *Store) List(userID string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.users[userID]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Top returns the contents of up to n of the user's oldest entries.
// Old entries are the durable facts; recent ones may still be churn.
func (s *Store) Top(userID string, n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.users[userID]
	if len(entries) < n {
		n = len(entries)
	}
	out := make([]string, 0, n)
	for _, e := range entries[:n] {
		out = append(out, e.Content)
	}
	return out
}

// Add stores a new entry, evicting the oldest past the per-user cap.
func (s *Store) Add(userID, content, category string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{
		ID:        uuid.NewString(),
		Content:   content,
		Category:  category,
		UserID:    userID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	entries := append(s.users[userID], entry)
	if len(entries) > MaxEntriesPerUser {
		entries = entries[len(entries)-MaxEntriesPerUser:]
	}
	s.users[userID] = entries

	if err := s.save(); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Update replaces an entry's content and persists.
func (s *Store) Update(userID, id, content string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.users[userID]
	for i := range entries {
		if entries[i].ID != id {
			continue
		}
		entries[i].Content = content
		entries[i].UpdatedAt = time.Now().UTC().Format(time.RFC3339)
		if err := s.save(); err != nil {
			return Entry{}, err
		}
		return entries[i], nil
	}
	return Entry{}, ErrNotFound
}

// Delete removes an entry by ID.
func (s *Store) Delete(userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.users[userID]
	for i := range entries {
		if entries[i].ID != id {
			continue
		}
		s.users[userID] = append(entries[:i], entries[i+1:]...)
		return s.save()
	}
	return ErrNotFound
}

// Clear removes all entries for a user.
func (s *Store) Clear(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, userID)
	return s.save()
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s.save()
	}
	if err != nil {
		return fmt.Errorf("read memory file: %w", err)
	}
	if err := json.Unmarshal(data, &s.users); err != nil {
		return fmt.Errorf("parse memory file %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.logger.Error("failed to save memory", "error", err)
		return fmt.Errorf("write memory file: %w", err)
	}
	return nil
}
