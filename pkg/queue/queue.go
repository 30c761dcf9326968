// Package queue implements the durable append-only pending-embeddings log
// and its drain state machine.
package queue

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmylchreest/eva-memory/pkg/state"
)

// MaxFailures is the backoff gate: after this many consecutive drain
// failures, drain skips without attempting a health check or embed.
const MaxFailures = 10

// HealthCheckTimeout bounds the vector-store liveness probe.
const HealthCheckTimeout = 500 * time.Millisecond

// Metadata mirrors the flat metadata carried alongside a queued record.
type Metadata struct {
	Type       string `json:"type"`
	Importance string `json:"importance"`
	Project    string `json:"project,omitempty"`
	Created    string `json:"created"`
	Summary    string `json:"summary,omitempty"`
}

// Record is one pending-embeddings log entry.
type Record struct {
	ID       string    `json:"id"`
	Content  string    `json:"content"`
	Metadata Metadata  `json:"metadata"`
	QueuedAt time.Time `json:"queuedAt"`
}

// Embedder is the subset of pkg/embed's client the drain loop needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// VectorStore is the subset of pkg/vector's client the drain loop needs.
type VectorStore interface {
	HealthCheck(ctx context.Context) error
	Upsert(ctx context.Context, id string, embedding []float64, document string, metadata map[string]string) error
}

// Queue owns the pending-embeddings log file for one client.
type Queue struct {
	path  string
	state *state.Store
}

// Open returns a Queue backed by path, creating its parent directory.
func Open(path string, st *state.Store) (*Queue, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating queue directory: %w", err)
	}
	return &Queue{path: path, state: st}, nil
}

// Enqueue appends rec as one JSON line.
func (q *Queue) Enqueue(rec Record) error {
	f, err := os.OpenFile(q.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// readAll parses every line of the log, silently dropping malformed
// records (MalformedQueueRecord: dropped during drain, not retried).
func (q *Queue) readAll() ([]Record, error) {
	f, err := os.Open(q.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue // malformed, dropped
		}
		out = append(out, rec)
	}
	return out, scanner.Err()
}

// rewrite atomically replaces the log contents with remaining, using a
// temp-file-then-rename so the rewrite is the single commit point for
// drain progress.
func (q *Queue) rewrite(remaining []Record) error {
	tmp, err := os.CreateTemp(filepath.Dir(q.path), ".queue-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	w := bufio.NewWriter(tmp)
	for _, rec := range remaining {
		data, err := json.Marshal(rec)
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return err
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return err
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, q.path)
}

// DrainResult is the outcome of one Drain call.
type DrainResult struct {
	Processed int    `json:"processed"`
	Remaining int    `json:"remaining"`
	Status    string `json:"status"` // empty | skipped-max-failures | vector-offline | ok
}

// Drain runs the queue's state machine: empty log short-circuits; the
// backoff gate short-circuits after MaxFailures; a health check guards
// against spending embed/upsert calls on a dead vector store; otherwise
// each record is embedded and upserted in file order, with the rewrite as
// the sole atomic commit point.
func (q *Queue) Drain(ctx context.Context, embedder Embedder, vector VectorStore) (DrainResult, error) {
	records, err := q.readAll()
	if err != nil {
		return DrainResult{}, err
	}
	if len(records) == 0 {
		return DrainResult{Status: "empty"}, nil
	}

	rec, err := q.state.Load()
	if err != nil {
		return DrainResult{}, err
	}
	if rec.Queue.ConsecutiveFailures >= MaxFailures {
		return DrainResult{Remaining: len(records), Status: "skipped-max-failures"}, nil
	}

	hcCtx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()
	if err := vector.HealthCheck(hcCtx); err != nil {
		_ = q.state.Mutate(func(r *state.Record) error {
			r.Queue.ConsecutiveFailures++
			r.Queue.LastDrainAttempt = time.Now().UTC()
			return nil
		})
		return DrainResult{Remaining: len(records), Status: "vector-offline"}, nil
	}

	var remaining []Record
	processed := 0
	for _, r := range records {
		vec, err := embedder.Embed(ctx, r.Content)
		if err != nil || vec == nil {
			remaining = append(remaining, r)
			continue
		}
		metadata := map[string]string{
			"type": r.Metadata.Type, "importance": r.Metadata.Importance,
			"project": r.Metadata.Project, "created": r.Metadata.Created,
			"summary": r.Metadata.Summary,
		}
		if err := vector.Upsert(ctx, r.ID, vec, r.Content, metadata); err != nil {
			remaining = append(remaining, r)
			continue
		}
		processed++
	}

	if err := q.rewrite(remaining); err != nil {
		return DrainResult{}, err
	}

	if err := q.state.Mutate(func(r *state.Record) error {
		r.Queue.ConsecutiveFailures = 0
		now := time.Now().UTC()
		r.Queue.LastDrainAttempt = now
		r.Queue.LastSuccess = now
		r.Queue.PendingCount = len(remaining)
		return nil
	}); err != nil {
		return DrainResult{}, err
	}

	return DrainResult{Processed: processed, Remaining: len(remaining), Status: "ok"}, nil
}

// PathFor returns the pending-embeddings log path for a store root and
// client id, following the per-client isolation convention used by state
// and the WAL.
func PathFor(root, clientID string) string {
	name := "pending-embeddings.ndjson"
	if clientID != "" {
		name = fmt.Sprintf("pending-embeddings-%s.ndjson", clientID)
	}
	return filepath.Join(root, name)
}
