package orchestrator

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/jmylchreest/eva-memory/pkg/markdown"
	"github.com/jmylchreest/eva-memory/pkg/queue"
	"github.com/jmylchreest/eva-memory/pkg/state"
	"github.com/jmylchreest/eva-memory/pkg/store"
	"github.com/jmylchreest/eva-memory/pkg/vector"
)

func setupTestOrchestrator(t *testing.T) (*Orchestrator, func()) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "eva-orchestrator-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}

	graph, err := store.Open(store.Config{DBPath: tmpDir + "/graph.db"})
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("store.Open: %v", err)
	}
	st, err := state.Open(state.PathFor(tmpDir, ""))
	if err != nil {
		graph.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("state.Open: %v", err)
	}
	q, err := queue.Open(queue.PathFor(tmpDir, ""), st)
	if err != nil {
		graph.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("queue.Open: %v", err)
	}

	o := &Orchestrator{
		Graph:    graph,
		Markdown: markdown.New(tmpDir),
		State:    st,
		Queue:    q,
	}
	cleanup := func() {
		graph.Close()
		os.RemoveAll(tmpDir)
	}
	return o, cleanup
}

func TestRememberWritesMarkdownAndGraphAndFlushesWAL(t *testing.T) {
	o, cleanup := setupTestOrchestrator(t)
	defer cleanup()

	out, err := o.Remember(context.Background(), Request{Content: "Decided to use Postgres over MySQL for ACID guarantees"})
	if err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if out.Skipped {
		t.Fatalf("expected first remember to not be skipped")
	}
	if out.Type != "decision" {
		t.Errorf("expected classifier to yield decision, got %q", out.Type)
	}
	if !out.Layers.Markdown || !out.Layers.Graph {
		t.Errorf("expected markdown and graph layers to succeed, got %+v", out.Layers)
	}

	pending, err := o.State.ListPending()
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	for _, m := range pending {
		if m.ID == out.ID {
			t.Errorf("expected %s to be flushed from the WAL", out.ID)
		}
	}

	mem, err := o.Graph.GetMemory(out.ID)
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	found := false
	for _, e := range mem.Entities {
		if e == "postgres" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected entities to include postgres, got %v", mem.Entities)
	}
}

// fixedEmbedder returns the same vector for every input.
type fixedEmbedder struct{}

func (fixedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return []float64{0.1, 0.2, 0.3}, nil
}

// scoredVector answers every QueryWhere with a single hit at a fixed score.
type scoredVector struct {
	hitID    string
	score    float64
	upserted []string
}

func (s *scoredVector) Upsert(ctx context.Context, id string, embedding []float64, document string, metadata map[string]string) error {
	s.upserted = append(s.upserted, id)
	return nil
}

func (s *scoredVector) QueryWhere(ctx context.Context, embedding []float64, n int, where map[string]string) ([]vector.QueryResult, error) {
	if s.hitID == "" {
		return nil, nil
	}
	return []vector.QueryResult{{ID: s.hitID, Score: s.score}}, nil
}

func TestRememberSupersessionOnNearDuplicate(t *testing.T) {
	o, cleanup := setupTestOrchestrator(t)
	defer cleanup()

	first, err := o.Remember(context.Background(), Request{Content: "The API key is in vault at path secrets/api"})
	if err != nil {
		t.Fatalf("Remember (1): %v", err)
	}

	// similarity in (0.5, 0.92]: the new memory replaces the old one.
	o.Embedder = fixedEmbedder{}
	o.Vector = &scoredVector{hitID: first.ID, score: 0.8}

	second, err := o.Remember(context.Background(), Request{Content: "API key lives in vault under secrets/api"})
	if err != nil {
		t.Fatalf("Remember (2): %v", err)
	}
	if second.Skipped {
		t.Fatalf("expected replace, not skip, at similarity 0.8")
	}
	if second.Supersedes != first.ID {
		t.Errorf("expected supersedes=%s, got %q", first.ID, second.Supersedes)
	}

	prev, err := o.Graph.GetMemory(first.ID)
	if err != nil {
		t.Fatalf("GetMemory(prev): %v", err)
	}
	if !prev.Forgotten {
		t.Errorf("expected superseded memory to be forgotten")
	}
	if !strings.Contains(prev.DeleteReason, second.ID) {
		t.Errorf("expected deleteReason to name the superseding id, got %q", prev.DeleteReason)
	}
}

func TestRememberSkipsExactDuplicate(t *testing.T) {
	o, cleanup := setupTestOrchestrator(t)
	defer cleanup()

	first, err := o.Remember(context.Background(), Request{Content: "The API key is in vault at path secrets/api"})
	if err != nil {
		t.Fatalf("Remember (1): %v", err)
	}

	o.Embedder = fixedEmbedder{}
	vec := &scoredVector{hitID: first.ID, score: 0.95}
	o.Vector = vec
	upsertsBefore := len(vec.upserted)

	second, err := o.Remember(context.Background(), Request{Content: "The API key is in vault at path secrets/api"})
	if err != nil {
		t.Fatalf("Remember (2): %v", err)
	}
	if !second.Skipped || second.ExistingID != first.ID {
		t.Fatalf("expected skip pointing at %s, got %+v", first.ID, second)
	}
	if second.Similarity != 0.95 {
		t.Errorf("expected similarity carried in outcome, got %v", second.Similarity)
	}
	if len(vec.upserted) != upsertsBefore {
		t.Errorf("expected no layer writes on skip")
	}
	pending, err := o.State.ListPending()
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no WAL entry on skip, got %d", len(pending))
	}
}

func TestRememberClassifiesStructuredRequest(t *testing.T) {
	o, cleanup := setupTestOrchestrator(t)
	defer cleanup()

	// The CLI hands the whole decoded args object to the extractor, so
	// classification must reach the content through the structured form.
	content := "Decided to use Postgres over MySQL for ACID guarantees"
	out, err := o.Remember(context.Background(), Request{
		Content: content,
		Structured: map[string]any{
			"content":    content,
			"importance": 5.0,
		},
	})
	if err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if out.Type != "decision" {
		t.Errorf("expected structured request classified as decision, got %q", out.Type)
	}
	found := false
	for _, e := range out.Entities {
		if e == "postgres" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected entities mined from structured content, got %v", out.Entities)
	}
}

func TestRememberMissingContentIsInputError(t *testing.T) {
	o, cleanup := setupTestOrchestrator(t)
	defer cleanup()

	if _, err := o.Remember(context.Background(), Request{}); err == nil {
		t.Fatalf("expected an error for missing content")
	}
}

// nullEmbedder simulates an embedding endpoint that exists but is
// unreachable: every call yields a null embedding.
type nullEmbedder struct{}

func (nullEmbedder) Embed(ctx context.Context, text string) ([]float64, error) { return nil, nil }

func TestRememberQueuesWhenVectorUnconfigured(t *testing.T) {
	o, cleanup := setupTestOrchestrator(t)
	defer cleanup()
	o.Embedder = nullEmbedder{}

	out, err := o.Remember(context.Background(), Request{Content: "temporary note about onboarding"})
	if err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if out.Layers.Vector {
		t.Errorf("expected vector layer to be false with no vector configured")
	}
	if !out.Layers.Queued {
		t.Errorf("expected queued layer to be true with an embedder but no vector store")
	}
}

func TestRememberDoesNotQueueWithNoEndpoints(t *testing.T) {
	o, cleanup := setupTestOrchestrator(t)
	defer cleanup()

	out, err := o.Remember(context.Background(), Request{Content: "plain note with no semantic layer"})
	if err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if out.Layers.Queued {
		t.Errorf("expected no queueing when neither vector nor embedder is configured")
	}
}
