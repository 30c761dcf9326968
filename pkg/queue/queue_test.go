package queue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmylchreest/eva-memory/pkg/state"
)

type stubEmbedder struct {
	fail bool
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if s.fail {
		return nil, nil
	}
	return []float64{0.1, 0.2}, nil
}

type stubVector struct {
	healthErr   error
	healthCalls int
	upserted    []string
}

func (s *stubVector) HealthCheck(ctx context.Context) error {
	s.healthCalls++
	return s.healthErr
}
func (s *stubVector) Upsert(ctx context.Context, id string, embedding []float64, document string, metadata map[string]string) error {
	s.upserted = append(s.upserted, id)
	return nil
}

func newTestQueue(t *testing.T) (*Queue, *state.Store) {
	t.Helper()
	dir := t.TempDir()
	st, err := state.Open(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	q, err := Open(filepath.Join(dir, "queue.ndjson"), st)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	return q, st
}

func TestDrainEmpty(t *testing.T) {
	q, _ := newTestQueue(t)
	res, err := q.Drain(context.Background(), &stubEmbedder{}, &stubVector{})
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.Status != "empty" {
		t.Fatalf("expected empty status, got %+v", res)
	}
}

func TestDrainVectorOffline(t *testing.T) {
	q, st := newTestQueue(t)
	if err := q.Enqueue(Record{ID: "m1", Content: "x"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	res, err := q.Drain(context.Background(), &stubEmbedder{}, &stubVector{healthErr: errors.New("down")})
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.Status != "vector-offline" || res.Remaining != 1 {
		t.Fatalf("expected vector-offline with 1 remaining, got %+v", res)
	}
	rec, _ := st.Load()
	if rec.Queue.ConsecutiveFailures != 1 {
		t.Fatalf("expected consecutiveFailures incremented, got %d", rec.Queue.ConsecutiveFailures)
	}
}

func TestDrainBackoffGate(t *testing.T) {
	q, st := newTestQueue(t)
	if err := q.Enqueue(Record{ID: "m1", Content: "x"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := st.Mutate(func(r *state.Record) error {
		r.Queue.ConsecutiveFailures = MaxFailures
		return nil
	}); err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	vec := &stubVector{}
	res, err := q.Drain(context.Background(), &stubEmbedder{}, vec)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.Status != "skipped-max-failures" {
		t.Fatalf("expected skipped-max-failures, got %+v", res)
	}
	if vec.healthCalls != 0 || len(vec.upserted) != 0 {
		t.Fatalf("expected no health check / upsert attempted")
	}
}

func TestDrainKeepsRecordOnNullEmbedding(t *testing.T) {
	q, _ := newTestQueue(t)
	if err := q.Enqueue(Record{ID: "m1", Content: "x"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	res, err := q.Drain(context.Background(), &stubEmbedder{fail: true}, &stubVector{})
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.Status != "ok" || res.Processed != 0 || res.Remaining != 1 {
		t.Fatalf("expected record retained after null embedding, got %+v", res)
	}
}

func TestDrainProcessesAndEmptiesLog(t *testing.T) {
	q, _ := newTestQueue(t)
	if err := q.Enqueue(Record{ID: "m1", Content: "x"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	res, err := q.Drain(context.Background(), &stubEmbedder{}, &stubVector{})
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.Status != "ok" || res.Processed != 1 || res.Remaining != 0 {
		t.Fatalf("expected fully drained, got %+v", res)
	}
	again, err := q.Drain(context.Background(), &stubEmbedder{}, &stubVector{})
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if again.Status != "empty" {
		t.Fatalf("expected empty on second drain, got %+v", again)
	}
}
