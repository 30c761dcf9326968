package main

import (
	"github.com/jmylchreest/eva-memory/pkg/model"
	"github.com/jmylchreest/eva-memory/pkg/store"
)

// cmdSummarize implements `summarize {topic?, project?, limit?=50}`,
// grouping active memories by type. "topic" narrows via fulltext when
// given; otherwise a plain recent listing is grouped.
func cmdSummarize(app *App, a args) (any, error) {
	limit := a.intDefault("limit", 50)
	project := a.str("project")

	var memories []*model.Memory
	if topic := a.str("topic"); topic != "" {
		hits, err := app.Graph.FulltextMemory(topic, store.FulltextFilter{Project: project, Limit: limit})
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			memories = append(memories, h.Memory)
		}
	} else {
		res, err := app.Graph.Page(store.PageFilter{
			Project: project, SortBy: "created", SortOrder: "DESC", Page: 1, PageSize: limit,
		})
		if err != nil {
			return nil, err
		}
		memories = res.Memories
	}

	groups := make(map[string][]*model.Memory)
	for _, m := range memories {
		groups[m.Type] = append(groups[m.Type], m)
	}
	return map[string]any{"groups": groups, "count": len(memories)}, nil
}
