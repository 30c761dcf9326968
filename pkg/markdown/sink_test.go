package markdown

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmylchreest/eva-memory/pkg/model"
)

func TestAppendCreatesDailyAndProjectFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	now := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	mem := &model.Memory{
		ID: "m1", Content: "Decided to use Postgres", Summary: "Decided to use Postgres",
		Type: "decision", Importance: 7, Confidence: 0.8, Created: now,
		Project: "eva", Entities: []string{"postgres"}, Tags: []string{"db"},
	}
	if err := s.Append(mem); err != nil {
		t.Fatalf("Append: %v", err)
	}

	daily, err := os.ReadFile(filepath.Join(dir, "daily", "2026-07-29.md"))
	if err != nil {
		t.Fatalf("reading daily file: %v", err)
	}
	if !strings.Contains(string(daily), "## [DECISION] Decided to use Postgres") {
		t.Fatalf("expected rendered block header, got:\n%s", daily)
	}
	if !strings.Contains(string(daily), "`m1`") {
		t.Fatalf("expected id in block, got:\n%s", daily)
	}

	proj, err := os.ReadFile(filepath.Join(dir, "projects", "eva.md"))
	if err != nil {
		t.Fatalf("reading project file: %v", err)
	}
	if !strings.Contains(string(proj), "#db") {
		t.Fatalf("expected tag rendered in project file, got:\n%s", proj)
	}
}

func TestAppendTwiceDoesNotDuplicateHeader(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	now := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	mem := &model.Memory{ID: "m1", Content: "a", Summary: "a", Type: "note", Created: now}
	mem2 := &model.Memory{ID: "m2", Content: "b", Summary: "b", Type: "note", Created: now}
	if err := s.Append(mem); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(mem2); err != nil {
		t.Fatalf("Append: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "daily", "2026-07-29.md"))
	if strings.Count(string(data), "# 2026-07-29\n") != 1 {
		t.Fatalf("expected header written exactly once, got:\n%s", data)
	}
}
