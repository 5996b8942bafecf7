// Package journal records assistant interactions for the activity view.
// Recording is fire-and-forget: entries go through a buffered channel and
// a single writer goroutine, so a slow disk never stalls a chat response.
// When the buffer is full the entry is dropped and counted.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MaxEntriesPerUser caps stored entries; the oldest are evicted first.
const MaxEntriesPerUser = 500

// defaultBuffer is the channel depth between Record and the writer.
const defaultBuffer = 256

// Entry is one recorded interaction.
type Entry struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	UserID       string `json:"userId"`
	Message      string `json:"message,omitempty"`
	Response     string `json:"response,omitempty"`
	Intent       string `json:"intent,omitempty"`
	Provider     string `json:"provider,omitempty"`
	ResponseTime int64  `json:"responseTime,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// ListOptions filters and paginates List results.
type ListOptions struct {
	Type   string
	Offset int
	Limit  int
}

// Journal is the async interaction log.
type Journal struct {
	path   string
	logger *slog.Logger

	in      chan Entry
	done    chan struct{}
	dropped atomic.Int64

	mu    sync.Mutex
	users map[string][]Entry

	closeOnce sync.Once
}

// New loads (or creates) the journal file at path and starts the writer.
func New(path string, logger *slog.Logger) (*Journal, error) {
	j := &Journal{
		path:   path,
		logger: logger.With("component", "journal"),
		in:     make(chan Entry, defaultBuffer),
		done:   make(chan struct{}),
		users:  make(map[string][]Entry),
	}
	if err := j.load(); err != nil {
		return nil, err
	}
	go j.run()
	return j, nil
}

// Record queues an entry for writing. Never blocks; returns false when
// the buffer is full and the entry was dropped.
func (j *Journal) Record(e Entry) bool {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.UserID == "" {
		e.UserID = "default"
	}
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	select {
	case j.in <- e:
		return true
	default:
		j.dropped.Add(1)
		return false
	}
}

// Dropped returns how many entries were discarded due to backpressure.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// List returns a user's entries, newest first.
func (j *Journal) List(userID string, opts ListOptions) []Entry {
	j.mu.Lock()
	entries := make([]Entry, len(j.users[userID]))
	copy(entries, j.users[userID])
	j.mu.Unlock()

	if opts.Type != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Type == opts.Type {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Timestamp > entries[b].Timestamp
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if opts.Offset >= len(entries) {
		return nil
	}
	entries = entries[opts.Offset:]
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// Close stops accepting entries and drains the buffer to disk.
func (j *Journal) Close() error {
	j.closeOnce.Do(func() {
		close(j.in)
		<-j.done
	})
	return nil
}

// run is the single writer goroutine.
func (j *Journal) run() {
	defer close(j.done)
	for e := range j.in {
		j.append(e)
	}
}

func (j *Journal) append(e Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries := append(j.users[e.UserID], e)
	if len(entries) > MaxEntriesPerUser {
		entries = entries[len(entries)-MaxEntriesPerUser:]
	}
	j.users[e.UserID] = entries

	if err := j.save(); err != nil {
		j.logger.Error("failed to persist journal entry", "error", err)
	}
}

func (j *Journal) load() error {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read journal file: %w", err)
	}
	if err := json.Unmarshal(data, &j.users); err != nil {
		return fmt.Errorf("parse journal file %s: %w", j.path, err)
	}
	return nil
}

func (j *Journal) save() error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.MarshalIndent(j.users, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(j.path, data, 0o644)
}
