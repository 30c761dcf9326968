package main

import (
	"github.com/jmylchreest/eva-memory/pkg/state"
	"github.com/jmylchreest/eva-memory/pkg/store"
)

// cmdRecall implements `recall {id? | type?, project?, limit?=10}`.
func cmdRecall(app *App, a args) (any, error) {
	memories, err := app.Graph.RecentByFilter(store.RecentFilter{
		ID:      a.str("id"),
		Type:    a.str("type"),
		Project: a.str("project"),
		Limit:   a.intDefault("limit", 10),
	})
	if err != nil {
		return nil, err
	}
	_ = app.State.Mutate(func(r *state.Record) error {
		r.Stats.TotalRecalls++
		return nil
	})
	return map[string]any{"memories": memories}, nil
}
