// Package session implements SessionManager: sync-start/end, WAL
// recovery, and the pre-compaction snapshot.
package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/eva-memory/pkg/markdown"
	"github.com/jmylchreest/eva-memory/pkg/queue"
	"github.com/jmylchreest/eva-memory/pkg/state"
	"github.com/jmylchreest/eva-memory/pkg/store"
)

// sessionStateTemplate is the fixed template syncEnd resets the
// session-state markdown file to.
const sessionStateTemplate = "# Session\n\n_No active session._\n"

// Manager wires the graph, state, queue, and markdown collaborators for
// session lifecycle operations.
type Manager struct {
	Graph    *store.GraphStore
	State    *state.Store
	Queue    *queue.Queue
	Markdown *markdown.Sink
	Embedder queue.Embedder
	Vector   queue.VectorStore
	Root     string
	// ClientID suffixes the session-state markdown filename so concurrent
	// clients do not race on it, same convention as the state and queue
	// files.
	ClientID string
}

func (m *Manager) sessionStatePath() string {
	name := "session-state.md"
	if m.ClientID != "" {
		name = fmt.Sprintf("session-state-%s.md", m.ClientID)
	}
	return filepath.Join(m.Root, name)
}

// StartRequest is sync-start's input.
type StartRequest struct {
	SessionID string
	Project   string
	Branch    string
}

// Overview summarizes graph state for the client at sync-start.
type Overview struct {
	ActiveMemories int                   `json:"activeMemories"`
	TopEntities    []store.EntitySummary `json:"topEntities"`
	Projects       []string              `json:"projects"`
	PendingQueue   int                   `json:"pendingQueue"`
}

// StartResult is sync-start's output.
type StartResult struct {
	SessionID    string           `json:"sessionId"`
	WALRecovered int              `json:"walRecovered"`
	QueueDrain   queue.DrainResult `json:"queueDrain"`
	Overview     Overview         `json:"overview"`
}

// SyncStart assigns or adopts a session id, replays the WAL, attempts a
// queue drain, links the session node, and returns an overview.
func (m *Manager) SyncStart(ctx context.Context, req StartRequest) (StartResult, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = ulid.Make().String()
	}
	now := time.Now().UTC()

	if err := m.State.Mutate(func(r *state.Record) error {
		r.Session = state.SessionRecord{ID: sessionID, StartedAt: now, Project: req.Project, Branch: req.Branch}
		return nil
	}); err != nil {
		return StartResult{}, fmt.Errorf("persisting session record: %w", err)
	}

	recovered, err := m.replayWAL()
	if err != nil {
		return StartResult{}, err
	}

	var drainResult queue.DrainResult
	if m.Queue != nil && m.Embedder != nil && m.Vector != nil {
		drainResult, _ = m.Queue.Drain(ctx, m.Embedder, m.Vector)
	}

	if err := m.Graph.LinkSession(sessionID, now, req.Project, req.Branch); err != nil {
		return StartResult{}, fmt.Errorf("linking session: %w", err)
	}

	overview, err := m.buildOverview()
	if err != nil {
		return StartResult{}, err
	}

	return StartResult{SessionID: sessionID, WALRecovered: recovered, QueueDrain: drainResult, Overview: overview}, nil
}

// replayWAL re-runs MarkdownSink + GraphStore.UpsertMemory for every
// pending memory; a memory is dropped from the WAL if either succeeds.
func (m *Manager) replayWAL() (int, error) {
	pending, err := m.State.ListPending()
	if err != nil {
		return 0, err
	}
	recovered := 0
	for i := range pending {
		mem := pending[i]
		mdOK := m.Markdown.Append(&mem) == nil
		graphOK := m.Graph.UpsertMemory(&mem) == nil
		if mdOK || graphOK {
			if err := m.State.RemovePending(mem.ID); err != nil {
				return recovered, err
			}
			recovered++
		}
	}
	return recovered, nil
}

func (m *Manager) buildOverview() (Overview, error) {
	active, err := m.Graph.CountActive()
	if err != nil {
		active = 0
	}
	entities, err := m.Graph.ListEntities(10)
	if err != nil {
		entities = nil
	}
	projects, err := m.Graph.ProjectNames()
	if err != nil {
		projects = nil
	}
	rec, err := m.State.Load()
	pending := 0
	if err == nil {
		pending = rec.Queue.PendingCount
	}
	return Overview{ActiveMemories: active, TopEntities: entities, Projects: projects, PendingQueue: pending}, nil
}

// EndRequest is sync-end's input.
type EndRequest struct {
	Summary string
}

// EndResult is sync-end's output.
type EndResult struct {
	SessionID string `json:"sessionId"`
}

// SyncEnd closes the session in the graph, clears it from state, and
// resets the session-state markdown file to a fixed template.
func (m *Manager) SyncEnd(req EndRequest) (EndResult, error) {
	rec, err := m.State.Load()
	if err != nil {
		return EndResult{}, err
	}
	sessionID := rec.Session.ID
	if sessionID != "" {
		if err := m.Graph.CloseSession(sessionID, time.Now().UTC(), req.Summary); err != nil {
			return EndResult{}, fmt.Errorf("closing session: %w", err)
		}
	}
	if err := m.State.Mutate(func(r *state.Record) error {
		r.Session = state.SessionRecord{}
		return nil
	}); err != nil {
		return EndResult{}, err
	}
	if err := os.MkdirAll(m.Root, 0o755); err == nil {
		_ = os.WriteFile(m.sessionStatePath(), []byte(sessionStateTemplate), 0o644)
	}
	return EndResult{SessionID: sessionID}, nil
}

// FlushResult is pre-compaction-flush's output.
type FlushResult struct {
	BackupDir   string `json:"backupDir"`
	FilesBacked int    `json:"filesBacked"`
	WALFlushed  int    `json:"walFlushed"`
}

// PreCompactionFlush copies the current session-state files and the state
// record to a timestamped backup directory, then replays the WAL
// identically to SyncStart.
func (m *Manager) PreCompactionFlush() (FlushResult, error) {
	backupDir := filepath.Join(m.Root, "backups", time.Now().UTC().Format("20060102T150405Z"))
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return FlushResult{}, fmt.Errorf("creating backup directory: %w", err)
	}

	candidates := []string{
		m.sessionStatePath(),
	}
	if entries, err := os.ReadDir(m.Root); err == nil {
		for _, e := range entries {
			if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
				candidates = append(candidates, filepath.Join(m.Root, e.Name()))
			}
		}
	}

	filesBacked := 0
	for _, src := range candidates {
		if err := copyFile(src, filepath.Join(backupDir, filepath.Base(src))); err == nil {
			filesBacked++
		}
	}

	recovered, err := m.replayWAL()
	if err != nil {
		return FlushResult{}, err
	}

	return FlushResult{BackupDir: backupDir, FilesBacked: filesBacked, WALFlushed: recovered}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
