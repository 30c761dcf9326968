package main

import (
	"github.com/jmylchreest/eva-memory/pkg/model"
	"github.com/jmylchreest/eva-memory/pkg/store"
)

// cmdList implements `list {page?=1, pageSize?=20, sortBy?=created,
// sortOrder?=DESC, project?, type?}`. sortBy/sortOrder outside the
// allowlist fall back to created/DESC; the fallback happens inside
// GraphStore.Page itself.
func cmdList(app *App, a args) (any, error) {
	sortBy := a.strDefault("sortBy", string(model.SortCreated))
	sortOrder := a.strDefault("sortOrder", string(model.SortDesc))

	res, err := app.Graph.Page(store.PageFilter{
		Project:   a.str("project"),
		Type:      a.str("type"),
		SortBy:    sortBy,
		SortOrder: sortOrder,
		Page:      a.intDefault("page", 1),
		PageSize:  a.intDefault("pageSize", 20),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"memories": res.Memories, "total": res.Total}, nil
}
