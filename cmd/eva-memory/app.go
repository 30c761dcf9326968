package main

import (
	"os"
	"path/filepath"

	"github.com/jmylchreest/eva-memory/pkg/embed"
	"github.com/jmylchreest/eva-memory/pkg/maintain"
	"github.com/jmylchreest/eva-memory/pkg/markdown"
	"github.com/jmylchreest/eva-memory/pkg/orchestrator"
	"github.com/jmylchreest/eva-memory/pkg/queue"
	"github.com/jmylchreest/eva-memory/pkg/search"
	"github.com/jmylchreest/eva-memory/pkg/session"
	"github.com/jmylchreest/eva-memory/pkg/state"
	"github.com/jmylchreest/eva-memory/pkg/store"
	"github.com/jmylchreest/eva-memory/pkg/vector"
)

const defaultHomeDirName = ".eva-memory"

// App is the dependency bag every cmd_<name>.go handler receives. It owns
// the graph store (process-singleton, one bbolt handle per CLI invocation)
// and the lighter collaborators wired on top of it.
type App struct {
	Root     string
	ClientID string

	Graph    *store.GraphStore
	Markdown *markdown.Sink
	State    *state.Store
	Queue    *queue.Queue
	Embedder *embed.Client
	Vector   *vector.Client

	Orchestrator *orchestrator.Orchestrator
	Search       *search.Merger
	Session      *session.Manager
	Maintain     *maintain.Maintainer
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// newApp reads the CLI's environment variables, opens the graph store, and
// wires every other collaborator. Env vars are read directly rather than
// through a config framework, since the whole surface is a handful of
// paths and URLs.
func newApp() (*App, error) {
	home, _ := os.UserHomeDir()
	root := getEnvOrDefault("EVA_MEMORY_HOME", filepath.Join(home, defaultHomeDirName))
	clientID := os.Getenv("EVA_CLIENT_ID")

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}

	graphPath := getEnvOrDefault("EVA_GRAPH_PATH", filepath.Join(root, "graph.db"))
	graph, err := store.Open(store.Config{DBPath: graphPath})
	if err != nil {
		return nil, err
	}

	mdSink := markdown.New(root)

	stateStore, err := state.Open(state.PathFor(root, clientID))
	if err != nil {
		graph.Close()
		return nil, err
	}

	q, err := queue.Open(queue.PathFor(root, clientID), stateStore)
	if err != nil {
		graph.Close()
		return nil, err
	}

	var embedder *embed.Client
	var vec *vector.Client
	embedURL := os.Getenv("EVA_EMBEDDER_URL")
	vectorURL := os.Getenv("EVA_VECTOR_URL")
	if embedURL != "" {
		embedder = embed.New(embedURL, getEnvOrDefault("EVA_EMBEDDER_MODEL", "default"))
	}
	if vectorURL != "" {
		vec = vector.New(vectorURL, getEnvOrDefault("EVA_VECTOR_COLLECTION", "eva-memory"))
	}

	orch := &orchestrator.Orchestrator{
		Graph:    graph,
		Markdown: mdSink,
		State:    stateStore,
		Queue:    q,
	}
	// Wired independently: an embedder without a vector store still means
	// remember() should queue records for a later drain.
	if embedder != nil {
		orch.Embedder = embedder
	}
	if vec != nil {
		orch.Vector = vec
	}

	merger := &search.Merger{Graph: graph}
	if embedder != nil && vec != nil {
		merger.Embedder = embedder
		merger.Vector = vec
	}

	sessMgr := &session.Manager{
		Graph:    graph,
		State:    stateStore,
		Queue:    q,
		Markdown: mdSink,
		Root:     root,
		ClientID: clientID,
	}
	if embedder != nil && vec != nil {
		sessMgr.Embedder = embedder
		sessMgr.Vector = vec
	}

	return &App{
		Root:         root,
		ClientID:     clientID,
		Graph:        graph,
		Markdown:     mdSink,
		State:        stateStore,
		Queue:        q,
		Embedder:     embedder,
		Vector:       vec,
		Orchestrator: orch,
		Search:       merger,
		Session:      sessMgr,
		Maintain:     &maintain.Maintainer{Graph: graph},
	}, nil
}

func (a *App) Close() error {
	return a.Graph.Close()
}
