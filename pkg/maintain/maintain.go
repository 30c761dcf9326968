// Package maintain implements periodic maintenance: pruning old,
// low-importance memories on an age/importance cutoff.
package maintain

import "github.com/jmylchreest/eva-memory/pkg/store"

// DefaultMaxAgeDays and DefaultMinImportance are maintain's defaults.
const (
	DefaultMaxAgeDays    = 90
	DefaultMinImportance = 3
)

// Request configures a maintain run.
type Request struct {
	MaxAgeDays    int
	MinImportance int
}

// Result is maintain's return payload. Compacted is reserved for a future
// daily-log rollup and always 0 until that lands.
type Result struct {
	Pruned    int `json:"pruned"`
	Compacted int `json:"compacted"`
}

// Maintainer owns the graph collaborator pruning delegates to.
type Maintainer struct {
	Graph *store.GraphStore
}

// Run soft-deletes active memories below MinImportance created before the
// MaxAgeDays cutoff.
func (m *Maintainer) Run(req Request) (Result, error) {
	maxAge := req.MaxAgeDays
	if maxAge <= 0 {
		maxAge = DefaultMaxAgeDays
	}
	minImportance := req.MinImportance
	if minImportance <= 0 {
		minImportance = DefaultMinImportance
	}
	pruned, err := m.Graph.PruneOld(minImportance, maxAge)
	if err != nil {
		return Result{}, err
	}
	return Result{Pruned: pruned, Compacted: 0}, nil
}
