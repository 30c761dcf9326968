package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmylchreest/eva-memory/pkg/model"
	"github.com/jmylchreest/eva-memory/pkg/store"
)

func newTestGraph(t *testing.T) *store.GraphStore {
	t.Helper()
	dir := t.TempDir()
	g, err := store.Open(store.Config{DBPath: filepath.Join(dir, "graph.db")})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g
}

func TestSearchGraphOnlyMergesAndSorts(t *testing.T) {
	g := newTestGraph(t)
	now := time.Now().UTC()
	mem := &model.Memory{
		ID: "m1", Content: "Decided to use Postgres over MySQL for ACID guarantees",
		Summary: "db choice", Type: "decision", Importance: 5, Confidence: 0.8,
		Created: now, Updated: now, Entities: []string{"postgres", "mysql", "acid"},
	}
	if err := g.UpsertMemory(mem); err != nil {
		t.Fatalf("UpsertMemory: %v", err)
	}

	merger := &Merger{Graph: g}
	resp, err := merger.Search(context.Background(), "postgres", Filter{Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Count != 1 || resp.Results[0].Memory.ID != "m1" {
		t.Fatalf("expected single hit m1, got %+v", resp)
	}
	if resp.Results[0].Source != "graph-fulltext" && resp.Results[0].Source != "graph-entity" {
		t.Fatalf("expected graph source, got %q", resp.Results[0].Source)
	}
}

func TestAutoRecallIsGraphOnly(t *testing.T) {
	g := newTestGraph(t)
	now := time.Now().UTC()
	instr := &model.Memory{ID: "i1", Content: "always x", Summary: "always x", Type: "instruction", Importance: 9, Created: now, Updated: now}
	note := &model.Memory{ID: "n1", Content: "some note", Summary: "some note", Type: "note", Importance: 6, Created: now, Updated: now}
	if err := g.UpsertMemory(instr); err != nil {
		t.Fatalf("UpsertMemory: %v", err)
	}
	if err := g.UpsertMemory(note); err != nil {
		t.Fatalf("UpsertMemory: %v", err)
	}

	merger := &Merger{Graph: g}
	resp, err := merger.AutoRecall(AutoRecallFilter{MinImportance: 1, Limit: 5})
	if err != nil {
		t.Fatalf("AutoRecall: %v", err)
	}
	if len(resp.Memories) != 1 || resp.Memories[0].ID != "n1" {
		t.Fatalf("expected note only in memories, got %+v", resp.Memories)
	}
	if len(resp.Instructions) != 1 || resp.Instructions[0].ID != "i1" {
		t.Fatalf("expected instruction in instructions, got %+v", resp.Instructions)
	}
}
