package main

import (
	"context"

	"github.com/jmylchreest/eva-memory/pkg/model"
	"github.com/jmylchreest/eva-memory/pkg/search"
	"github.com/jmylchreest/eva-memory/pkg/state"
)

// cmdSearch implements `search {query, limit?=10, project?, type?}`.
func cmdSearch(app *App, a args) (any, error) {
	query := a.str("query")
	if query == "" {
		return nil, model.ErrMissingQuery
	}
	resp, err := app.Search.Search(context.Background(), query, search.Filter{
		Limit:   a.intDefault("limit", 10),
		Project: a.str("project"),
		Type:    a.str("type"),
	})
	if err != nil {
		return nil, err
	}
	_ = app.State.Mutate(func(r *state.Record) error {
		r.Stats.TotalSearches++
		return nil
	})
	return resp, nil
}

// cmdAutoRecall implements `auto-recall {project?, minImportance?=3, limit?=5}`.
func cmdAutoRecall(app *App, a args) (any, error) {
	resp, err := app.Search.AutoRecall(search.AutoRecallFilter{
		Project:       a.str("project"),
		MinImportance: a.intDefault("minImportance", 3),
		Limit:         a.intDefault("limit", 5),
	})
	if err != nil {
		return nil, err
	}
	_ = app.State.Mutate(func(r *state.Record) error {
		r.Stats.TotalRecalls++
		return nil
	})
	return resp, nil
}
