package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jmylchreest/eva-memory/pkg/extract"
	"github.com/jmylchreest/eva-memory/pkg/model"
	"github.com/jmylchreest/eva-memory/pkg/queue"
	"github.com/jmylchreest/eva-memory/pkg/state"
	"github.com/jmylchreest/eva-memory/pkg/store"
)

// cmdUpdate implements `update | evolve {id, content?, summary?, type?,
// importance?, project?, confidence?, decayDays?}`. If content changed,
// entities are re-extracted and merged (existing MENTIONS edges are kept)
// and the memory is re-embedded into the vector layer, falling back to the
// pending-embeddings queue when the vector write does not land.
//
// A synthetic markdown entry tagged "updated" is also appended: preserved
// to match observable upstream behavior (open question, see DESIGN.md),
// not because it's an obviously desired audit artifact.
func cmdUpdate(app *App, a args) (any, error) {
	id := a.str("id")
	if id == "" {
		return nil, model.ErrMissingID
	}

	fields := store.UpdateFields{}
	if s, ok := a.strOpt("content"); ok {
		fields.Content = &s
		fields.Entities = extract.ExtractEntities(extract.Plain(s))
	}
	if s, ok := a.strOpt("summary"); ok {
		fields.Summary = &s
	}
	if s, ok := a.strOpt("type"); ok {
		fields.Type = &s
	}
	if p := a.intPtr("importance"); p != nil {
		fields.Importance = p
	}
	if s, ok := a.strOpt("project"); ok {
		fields.Project = &s
	}
	if v, ok := a["confidence"]; ok {
		if f, ok := v.(float64); ok {
			fields.Confidence = &f
		}
	}
	fields.DecayDays = a.intPtr("decayDays")

	updated, err := app.Graph.Update(id, fields)
	if err != nil {
		return nil, err
	}

	if fields.Content != nil {
		reembed(app, updated)
	}

	synthetic := *updated
	synthetic.Tags = []string{"updated"}
	_ = app.Markdown.Append(&synthetic)

	return updated, nil
}

// reembed pushes an updated memory's fresh content into the vector layer,
// queueing it when the write does not land, same degradation ladder as
// remember's fan-out.
func reembed(app *App, mem *model.Memory) {
	ctx := context.Background()
	if app.Embedder != nil && app.Vector != nil {
		if vec, err := app.Embedder.Embed(ctx, mem.Content); err == nil && vec != nil {
			metadata := map[string]string{
				"type":       mem.Type,
				"importance": fmt.Sprintf("%d", mem.Importance),
				"project":    mem.Project,
				"created":    mem.Created.Format(time.RFC3339),
				"summary":    mem.Summary,
			}
			if err := app.Vector.Upsert(ctx, mem.ID, vec, mem.Content, metadata); err == nil {
				return
			}
		}
	} else if app.Embedder == nil && app.Vector == nil {
		return
	}
	rec := queue.Record{
		ID:      mem.ID,
		Content: mem.Content,
		Metadata: queue.Metadata{
			Type:       mem.Type,
			Importance: fmt.Sprintf("%d", mem.Importance),
			Project:    mem.Project,
			Created:    mem.Created.Format(time.RFC3339),
			Summary:    mem.Summary,
		},
		QueuedAt: time.Now().UTC(),
	}
	if err := app.Queue.Enqueue(rec); err != nil {
		warnLog.Printf("queueing re-embedding for %s failed: %v", mem.ID, err)
		return
	}
	_ = app.State.Mutate(func(r *state.Record) error {
		r.Queue.PendingCount++
		return nil
	})
}
