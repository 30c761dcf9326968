// Package state persists the per-client state record: the WAL pending
// list, the session record, and queue/stats counters, as a single JSON
// file with atomic rewrite-by-rename, matching the durability discipline
// the graph store's bbolt backend gives for free but a flat file does not.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmylchreest/eva-memory/pkg/model"
)

// WAL is the write-ahead pending list.
type WAL struct {
	Pending   []model.Memory `json:"pending"`
	LastFlush time.Time      `json:"lastFlush,omitempty"`
}

// SessionRecord is the currently active session, if any.
type SessionRecord struct {
	ID        string    `json:"id,omitempty"`
	StartedAt time.Time `json:"startedAt,omitempty"`
	Project   string    `json:"project,omitempty"`
	Branch    string    `json:"branch,omitempty"`
}

// QueueStats tracks the offline embedding queue's drain history.
type QueueStats struct {
	PendingCount        int       `json:"pendingCount"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastDrainAttempt    time.Time `json:"lastDrainAttempt,omitempty"`
	LastSuccess         time.Time `json:"lastSuccess,omitempty"`
}

// Stats tracks lifetime counters.
type Stats struct {
	TotalMemories int       `json:"totalMemories"`
	TotalRecalls  int       `json:"totalRecalls"`
	TotalSearches int       `json:"totalSearches"`
	LastMemoryAt  time.Time `json:"lastMemoryAt,omitempty"`
}

// Record is the full on-disk state record.
type Record struct {
	WAL     WAL           `json:"wal"`
	Session SessionRecord `json:"session"`
	Queue   QueueStats    `json:"queue"`
	Stats   Stats         `json:"stats"`
}

// Store owns the state file for one client. Read-modify-write is
// serialized with a process-local mutex; inter-process isolation is
// achieved by suffixing the filename with the client id.
type Store struct {
	path string
	mu   sync.Mutex
}

// PathFor returns the state file path for a given store root and client id.
func PathFor(root, clientID string) string {
	name := "state.json"
	if clientID != "" {
		name = fmt.Sprintf("state-%s.json", clientID)
	}
	return filepath.Join(root, name)
}

// Open returns a Store for the given path, creating the parent directory
// if needed. It does not create the file itself; Load returns a zero
// Record if the file does not yet exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return &Store{path: path}, nil
}

// Load reads the current record, returning a zero-value Record if the
// file does not exist yet.
func (s *Store) Load() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (Record, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Record{}, nil
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("corrupt state record %s: %w", s.path, err)
	}
	return rec, nil
}

// saveLocked writes rec to a temp file in the same directory then renames
// it over the target path. The rename is the single atomic commit point.
func (s *Store) saveLocked(rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Mutate loads the record, applies fn, and saves the result, holding the
// process-local mutex for the whole read-modify-write.
func (s *Store) Mutate(fn func(*Record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.loadLocked()
	if err != nil {
		return err
	}
	if err := fn(&rec); err != nil {
		return err
	}
	return s.saveLocked(rec)
}

// AppendPending adds mem to the WAL pending list. Step 5 of remember():
// this call must complete before any fan-out write is attempted.
func (s *Store) AppendPending(mem model.Memory) error {
	return s.Mutate(func(r *Record) error {
		r.WAL.Pending = append(r.WAL.Pending, mem)
		return nil
	})
}

// RemovePending removes id from the WAL pending list, if present, and
// stamps LastFlush.
func (s *Store) RemovePending(id string) error {
	return s.Mutate(func(r *Record) error {
		out := r.WAL.Pending[:0]
		for _, m := range r.WAL.Pending {
			if m.ID != id {
				out = append(out, m)
			}
		}
		r.WAL.Pending = out
		r.WAL.LastFlush = time.Now().UTC()
		return nil
	})
}

// ListPending returns a snapshot of the WAL pending list.
func (s *Store) ListPending() ([]model.Memory, error) {
	rec, err := s.Load()
	if err != nil {
		return nil, err
	}
	return rec.WAL.Pending, nil
}
