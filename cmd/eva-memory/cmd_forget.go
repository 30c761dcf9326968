package main

import (
	"context"
	"errors"

	"github.com/jmylchreest/eva-memory/pkg/store"
)

// cmdForget implements `forget {id? | query?, reason?}`: if only query is
// given, the top fulltext match is forgotten.
func cmdForget(app *App, a args) (any, error) {
	id := a.str("id")
	if id == "" {
		query := a.str("query")
		if query == "" {
			return nil, errors.New("missing required field: id or query")
		}
		hits, err := app.Graph.FulltextMemory(query, store.FulltextFilter{Limit: 1})
		if err != nil {
			return nil, err
		}
		if len(hits) == 0 {
			return map[string]any{"forgotten": false}, nil
		}
		id = hits[0].Memory.ID
	}
	if err := app.Graph.Forget(id, a.str("reason")); err != nil {
		return nil, err
	}
	// The graph is authoritative for activeness; removing the vector entry
	// is best-effort housekeeping.
	if app.Vector != nil {
		if err := app.Vector.Delete(context.Background(), id); err != nil {
			warnLog.Printf("vector delete for %s failed: %v", id, err)
		}
	}
	return map[string]any{"forgotten": true, "id": id}, nil
}
