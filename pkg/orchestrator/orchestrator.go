// Package orchestrator implements the write pipeline: normalize, dedup
// check, WAL append, fan-out to markdown/graph/vector-or-queue, WAL flush,
// stats update. Of the post-creation mutations it applies supersession;
// update and forget are applied by the CLI handlers directly through the
// graph store, and pkg/maintain prunes independently.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/eva-memory/pkg/extract"
	"github.com/jmylchreest/eva-memory/pkg/markdown"
	"github.com/jmylchreest/eva-memory/pkg/model"
	"github.com/jmylchreest/eva-memory/pkg/queue"
	"github.com/jmylchreest/eva-memory/pkg/state"
	"github.com/jmylchreest/eva-memory/pkg/store"
	"github.com/jmylchreest/eva-memory/pkg/vector"
)

// similarity thresholds for the dedup decision ladder.
const (
	vectorSkipThreshold    = 0.92
	vectorReplaceThreshold = 0.5
	// BM25 fallback thresholds depend on the fulltext engine's scoring
	// range; kept as named constants independent of the vector thresholds
	// above.
	bm25SkipThreshold    = 8.0
	bm25ReplaceThreshold = 4.0
)

// Embedder is the subset of pkg/embed's client the dedup/fan-out steps need.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// VectorStore is the subset of pkg/vector's client the dedup/fan-out steps
// need.
type VectorStore interface {
	Upsert(ctx context.Context, id string, embedding []float64, document string, metadata map[string]string) error
	QueryWhere(ctx context.Context, embedding []float64, n int, where map[string]string) ([]vector.QueryResult, error)
}

// Orchestrator wires the collaborators remember() fans out to.
type Orchestrator struct {
	Graph    *store.GraphStore
	Markdown *markdown.Sink
	State    *state.Store
	Queue    *queue.Queue
	Embedder Embedder
	Vector   VectorStore
}

// Request is remember's input.
type Request struct {
	Content         string
	Type            string
	Importance      int
	Project         string
	Tags            []string
	Summary         string
	Entities        []string
	Confidence      float64
	DecayDays       *int
	Supersedes      string
	Source          string
	SourceChannel   string
	SourceMessageID string
	SessionID       string
	// Structured carries the raw decoded JSON object when the caller wants
	// extractor/classifier keyword detection over more than Content, e.g. a
	// {"topic": ..., "type": ...} shaped input. Nil for plain text.
	Structured map[string]any
}

// Layers reports which backing stores a remember() call actually wrote.
type Layers struct {
	Markdown bool `json:"markdown"`
	Graph    bool `json:"graph"`
	Vector   bool `json:"vector"`
	Queued   bool `json:"queued"`
}

// Outcome is remember's return payload.
type Outcome struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	Importance int      `json:"importance"`
	Confidence float64  `json:"confidence"`
	DecayDays  *int     `json:"decayDays,omitempty"`
	Supersedes string   `json:"supersedes,omitempty"`
	Entities   []string `json:"entities"`
	Layers     Layers   `json:"layers"`

	Skipped    bool    `json:"skipped,omitempty"`
	ExistingID string  `json:"existingId,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
}

func extractorInput(req Request) extract.Input {
	if req.Structured != nil {
		return extract.Structured(req.Structured)
	}
	return extract.Plain(req.Content)
}

// Remember runs the write pipeline: normalize, dedup check, WAL append,
// fan-out, WAL flush, stats update.
func (o *Orchestrator) Remember(ctx context.Context, req Request) (Outcome, error) {
	if req.Content == "" {
		return Outcome{}, model.ErrMissingContent
	}

	now := time.Now().UTC()

	mem := model.Memory{
		ID:              ulid.Make().String(),
		Content:         req.Content,
		Type:            req.Type,
		Importance:      req.Importance,
		Project:         req.Project,
		Tags:            req.Tags,
		Entities:        req.Entities,
		Confidence:      req.Confidence,
		DecayDays:       req.DecayDays,
		Source:          req.Source,
		SourceChannel:   req.SourceChannel,
		SourceMessageID: req.SourceMessageID,
		SessionID:       req.SessionID,
		Created:         now,
		Updated:         now,
	}
	if mem.Confidence == 0 {
		mem.Confidence = 0.8
	}
	if mem.Importance == 0 {
		mem.Importance = 5
	}
	in := extractorInput(req)
	if mem.Type == "" {
		mem.Type = extract.Classify(in)
	}
	if len(mem.Entities) == 0 {
		mem.Entities = extract.ExtractEntities(in)
	}
	if mem.Summary == "" {
		if req.Summary != "" {
			mem.Summary = req.Summary
		} else {
			mem.Summary = extract.Summarize(mem.Content)
		}
	}

	// Step 2: dedup check against existing memories of the same type.
	action, existingID, similarity := o.dedupCheck(ctx, mem)
	if action == dedupSkip {
		return Outcome{Skipped: true, ExistingID: existingID, Similarity: similarity}, nil
	}
	if action == dedupReplace {
		mem.Supersedes = existingID
	}
	if req.Supersedes != "" {
		mem.Supersedes = req.Supersedes
	}

	// Step 5: WAL append, before any store write.
	if err := o.State.AppendPending(mem); err != nil {
		return Outcome{}, fmt.Errorf("WAL append: %w", err)
	}

	// Step 6: fan-out.
	layers := o.fanOut(ctx, &mem)

	// Step 8: WAL flush.
	if layers.Markdown || layers.Graph {
		if err := o.State.RemovePending(mem.ID); err != nil {
			log.Printf("orchestrator: WARN WAL flush failed for %s: %v", mem.ID, err)
		}
	}

	// Step 9: stats.
	if err := o.State.Mutate(func(r *state.Record) error {
		r.Stats.TotalMemories++
		r.Stats.LastMemoryAt = now
		return nil
	}); err != nil {
		log.Printf("orchestrator: WARN stats update failed: %v", err)
	}

	entities := mem.Entities
	if len(entities) > 5 {
		entities = entities[:5]
	}

	return Outcome{
		ID:         mem.ID,
		Type:       mem.Type,
		Importance: mem.Importance,
		Confidence: mem.Confidence,
		DecayDays:  mem.DecayDays,
		Supersedes: mem.Supersedes,
		Entities:   entities,
		Layers:     layers,
	}, nil
}

type dedupAction int

const (
	dedupAllow dedupAction = iota
	dedupSkip
	dedupReplace
)

// dedupCheck implements the dedup decision ladder: vector
// similarity when embedder+vector are both configured, else graph
// fulltext on the content prefix, else allow.
func (o *Orchestrator) dedupCheck(ctx context.Context, mem model.Memory) (dedupAction, string, float64) {
	if o.Embedder != nil && o.Vector != nil {
		vec, err := o.Embedder.Embed(ctx, mem.Content)
		if err == nil && vec != nil {
			hits, err := o.Vector.QueryWhere(ctx, vec, 1, map[string]string{"type": mem.Type})
			if err == nil {
				if len(hits) == 0 {
					return dedupAllow, "", 0
				}
				s := hits[0].Score
				switch {
				case s > vectorSkipThreshold:
					return dedupSkip, hits[0].ID, s
				case s > vectorReplaceThreshold:
					return dedupReplace, hits[0].ID, s
				}
				return dedupAllow, "", 0
			}
		}
	}

	prefix := mem.Content
	if len(prefix) > 200 {
		prefix = prefix[:200]
	}
	hits, err := o.Graph.FulltextMemory(prefix, store.FulltextFilter{Type: mem.Type, Limit: 1})
	if err == nil && len(hits) > 0 {
		r := hits[0].Score
		switch {
		case r > bm25SkipThreshold:
			return dedupSkip, hits[0].Memory.ID, r
		case r > bm25ReplaceThreshold:
			return dedupReplace, hits[0].Memory.ID, r
		}
	}
	return dedupAllow, "", 0
}

// fanOut writes mem to markdown, the graph, and the vector layer (or the
// offline queue), independently: each writer's success is independent of
// the others'.
func (o *Orchestrator) fanOut(ctx context.Context, mem *model.Memory) Layers {
	var layers Layers

	if err := o.Markdown.Append(mem); err != nil {
		log.Printf("orchestrator: WARN markdown append failed for %s: %v", mem.ID, err)
	} else {
		layers.Markdown = true
	}

	if err := o.Graph.UpsertMemory(mem); err != nil {
		log.Printf("orchestrator: WARN graph upsert failed for %s: %v", mem.ID, err)
	} else {
		layers.Graph = true
	}

	vectorOK := false
	if o.Vector != nil && o.Embedder != nil {
		vec, err := o.Embedder.Embed(ctx, mem.Content)
		if err == nil && vec != nil {
			metadata := sanitizedMetadata(mem)
			if err := o.Vector.Upsert(ctx, mem.ID, vec, mem.Content, metadata); err == nil {
				vectorOK = true
			}
		}
	}
	layers.Vector = vectorOK

	// Queue when the vector write did not land but a vector or embedding
	// endpoint exists (now or for a later drain); with neither configured
	// there is nothing a drain could ever do with the record.
	if o.Queue != nil && !vectorOK && (o.Vector != nil || o.Embedder != nil) {
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
		if err := o.Queue.Enqueue(rec); err != nil {
			log.Printf("orchestrator: WARN queue enqueue failed for %s: %v", mem.ID, err)
		} else {
			layers.Queued = true
			_ = o.State.Mutate(func(r *state.Record) error {
				r.Queue.PendingCount++
				return nil
			})
		}
	}

	return layers
}

func sanitizedMetadata(mem *model.Memory) map[string]string {
	return map[string]string{
		"type":       mem.Type,
		"importance": fmt.Sprintf("%d", mem.Importance),
		"project":    mem.Project,
		"created":    mem.Created.Format(time.RFC3339),
		"summary":    mem.Summary,
	}
}
