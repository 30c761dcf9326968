package state

import (
	"path/filepath"
	"testing"

	"github.com/jmylchreest/eva-memory/pkg/model"
)

func TestAppendAndRemovePending(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.AppendPending(model.Memory{ID: "m1", Content: "x"}); err != nil {
		t.Fatalf("AppendPending: %v", err)
	}
	pending, err := s.ListPending()
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "m1" {
		t.Fatalf("expected one pending entry m1, got %v", pending)
	}
	if err := s.RemovePending("m1"); err != nil {
		t.Fatalf("RemovePending: %v", err)
	}
	pending, err = s.ListPending()
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected empty pending after removal, got %v", pending)
	}
}

func TestLoadMissingFileReturnsZeroValue(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rec, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rec.WAL.Pending) != 0 {
		t.Fatalf("expected zero-value record, got %+v", rec)
	}
}

func TestClientIsolationDistinctPaths(t *testing.T) {
	dir := t.TempDir()
	p1 := PathFor(dir, "client-a")
	p2 := PathFor(dir, "client-b")
	if p1 == p2 {
		t.Fatalf("expected distinct paths for distinct client ids")
	}
}
