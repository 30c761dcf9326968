package maintain

import (
	"os"
	"testing"
	"time"

	"github.com/jmylchreest/eva-memory/pkg/model"
	"github.com/jmylchreest/eva-memory/pkg/store"
)

func setupTestGraph(t *testing.T) (*store.GraphStore, func()) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "eva-maintain-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	g, err := store.Open(store.Config{DBPath: tmpDir + "/graph.db"})
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("store.Open: %v", err)
	}
	return g, func() {
		g.Close()
		os.RemoveAll(tmpDir)
	}
}

func TestRunPrunesOldLowImportance(t *testing.T) {
	g, cleanup := setupTestGraph(t)
	defer cleanup()

	old := model.Memory{
		ID: "old1", Content: "stale note", Summary: "stale note",
		Type: "note", Importance: 2, Confidence: 0.8,
		Created: time.Now().UTC().AddDate(0, 0, -120),
		Updated: time.Now().UTC().AddDate(0, 0, -120),
	}
	if err := g.UpsertMemory(&old); err != nil {
		t.Fatalf("UpsertMemory: %v", err)
	}

	recent := model.Memory{
		ID: "recent1", Content: "fresh note", Summary: "fresh note",
		Type: "note", Importance: 2, Confidence: 0.8,
		Created: time.Now().UTC(), Updated: time.Now().UTC(),
	}
	if err := g.UpsertMemory(&recent); err != nil {
		t.Fatalf("UpsertMemory: %v", err)
	}

	m := &Maintainer{Graph: g}
	res, err := m.Run(Request{MaxAgeDays: 90, MinImportance: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Pruned != 1 {
		t.Errorf("expected 1 pruned, got %d", res.Pruned)
	}
	if res.Compacted != 0 {
		t.Errorf("expected compacted to stay 0, got %d", res.Compacted)
	}

	got, err := g.GetMemory("old1")
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if !got.Forgotten {
		t.Errorf("expected old memory to be forgotten after prune")
	}

	stillThere, err := g.GetMemory("recent1")
	if err != nil {
		t.Fatalf("GetMemory(recent1): %v", err)
	}
	if stillThere.Forgotten {
		t.Errorf("expected recent memory to survive prune")
	}
}

func TestRunDefaults(t *testing.T) {
	g, cleanup := setupTestGraph(t)
	defer cleanup()
	m := &Maintainer{Graph: g}
	res, err := m.Run(Request{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Pruned != 0 {
		t.Errorf("expected no memories to prune on empty graph, got %d", res.Pruned)
	}
}
