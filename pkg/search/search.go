// Package search implements SearchMerger: it runs the graph and vector
// queries, filters by active, merges and sorts.
package search

import (
	"context"
	"log"
	"sort"

	"github.com/jmylchreest/eva-memory/pkg/model"
	"github.com/jmylchreest/eva-memory/pkg/store"
	"github.com/jmylchreest/eva-memory/pkg/vector"
)

// Embedder is the subset of pkg/embed's client Merger needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// VectorQuerier is the subset of pkg/vector's client Merger needs.
type VectorQuerier interface {
	Query(ctx context.Context, embedding []float64, n int) ([]vector.QueryResult, error)
}

// Merger runs the merged search and auto-recall paths. Embedder/Vector may
// be nil, in which case search falls back to graph-only.
type Merger struct {
	Graph    *store.GraphStore
	Embedder Embedder
	Vector   VectorQuerier
}

// Result is one merged search hit.
type Result struct {
	Memory *model.Memory `json:"memory"`
	Score  float64       `json:"score"`
	Source string        `json:"source"`
}

// Sources reports how many hits came from each backing query.
type Sources struct {
	Graph  int `json:"graph"`
	Vector int `json:"vector"`
}

// Response is search's return payload.
type Response struct {
	Results []Result `json:"results"`
	Count   int      `json:"count"`
	Sources Sources  `json:"sources"`
}

// Filter narrows a search.
type Filter struct {
	Limit   int
	Project string
	Type    string
}

// Search runs GraphStore.fulltextMemory and GraphStore.fulltextEntity, and
// (if configured) a vector query, merges by id preserving first-seen
// source, sorts by score desc, and truncates to Limit.
func (m *Merger) Search(ctx context.Context, query string, f Filter) (Response, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	ftFilter := store.FulltextFilter{Project: f.Project, Type: f.Type, Limit: limit}

	memHits, err := m.Graph.FulltextMemory(query, ftFilter)
	if err != nil {
		log.Printf("search: WARN memory fulltext failed, continuing without: %v", err)
		memHits = nil
	}
	entHits, err := m.Graph.FulltextEntity(query, ftFilter)
	if err != nil {
		log.Printf("search: WARN entity fulltext failed, continuing without: %v", err)
		entHits = nil
	}

	graphCount := len(memHits) + len(entHits)

	var vectorHits []Result
	if m.Embedder != nil && m.Vector != nil {
		if vec, err := m.Embedder.Embed(ctx, query); err == nil && vec != nil {
			qr, err := m.Vector.Query(ctx, vec, limit)
			if err == nil {
				ids := make([]string, len(qr))
				for i, r := range qr {
					ids[i] = r.ID
				}
				active := make(map[string]struct{})
				for _, id := range m.Graph.FilterActive(ids) {
					active[id] = struct{}{}
				}
				for _, r := range qr {
					if _, ok := active[r.ID]; !ok {
						continue
					}
					mem, err := m.Graph.GetMemory(r.ID)
					if err != nil {
						continue
					}
					vectorHits = append(vectorHits, Result{Memory: mem, Score: r.Score, Source: "vector"})
				}
			}
		}
	}

	merged := make(map[string]Result)
	order := make([]string, 0)
	appendHit := func(id string, r Result) {
		if _, ok := merged[id]; ok {
			return
		}
		merged[id] = r
		order = append(order, id)
	}
	for _, h := range memHits {
		appendHit(h.Memory.ID, Result{Memory: h.Memory, Score: h.Score, Source: h.Source})
	}
	for _, h := range entHits {
		appendHit(h.Memory.ID, Result{Memory: h.Memory, Score: h.Score, Source: h.Source})
	}
	for _, h := range vectorHits {
		appendHit(h.Memory.ID, h)
	}

	results := make([]Result, 0, len(order))
	for _, id := range order {
		results = append(results, merged[id])
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}

	return Response{
		Results: results,
		Count:   len(results),
		Sources: Sources{Graph: graphCount, Vector: len(vectorHits)},
	}, nil
}

// AutoRecallResponse is auto-recall's return payload.
type AutoRecallResponse struct {
	Memories     []*model.Memory `json:"memories"`
	Instructions []*model.Memory `json:"instructions"`
}

// AutoRecallFilter narrows auto-recall.
type AutoRecallFilter struct {
	Project       string
	MinImportance int
	Limit         int
}

// AutoRecall is intentionally graph-only for latency: exactly two graph
// queries, no vector call.
func (m *Merger) AutoRecall(f AutoRecallFilter) (AutoRecallResponse, error) {
	memories, err := m.Graph.AutoRecall(store.AutoRecallFilter{
		Project: f.Project, MinImportance: f.MinImportance, Limit: f.Limit,
	})
	if err != nil {
		memories = nil
	}
	instructions, err := m.Graph.GetInstructions(f.Project)
	if err != nil {
		instructions = nil
	}
	return AutoRecallResponse{Memories: memories, Instructions: instructions}, nil
}
