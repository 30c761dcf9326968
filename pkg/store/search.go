package store

import (
	"fmt"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
)

// IndexDirFor returns the directory holding the bleve indexes given a
// bbolt database path, mirroring the co-location convention of putting
// search.bleve next to the database file.
func IndexDirFor(dbPath string) string {
	return filepath.Dir(dbPath)
}

// buildStandardMapping builds a single-analyzer mapping (standard_lower:
// unicode tokenizer + lowercase filter) shared by both indexes. The richer
// edge-ngram/ngram multi-analyzer stack is not needed here since both
// fulltext surfaces are scored disjunctions over a single text field, not
// prefix/substring autocomplete.
func buildStandardMapping(textField string) (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer("standard_lower", map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("building standard_lower analyzer: %w", err)
	}

	doc := bleve.NewDocumentMapping()
	field := bleve.NewTextFieldMapping()
	field.Analyzer = "standard_lower"
	field.Store = true
	doc.AddFieldMappingsAt(textField, field)

	im.DefaultMapping = doc
	return im, nil
}

// memoryDoc is indexed into memory_fulltext.
type memoryDoc struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Project    string  `json:"project"`
	Importance int     `json:"importance"`
	Confidence float64 `json:"confidence"`
}

// MemoryIndex wraps the memory_fulltext bleve index (content+summary).
type MemoryIndex struct {
	idx bleve.Index
}

func newMemoryIndex(dir string) (*MemoryIndex, error) {
	idx, err := openOrCreate(filepath.Join(dir, "memory_fulltext.bleve"), func() (mapping.IndexMapping, error) {
		return buildStandardMapping("text")
	})
	if err != nil {
		return nil, err
	}
	return &MemoryIndex{idx: idx}, nil
}

// Hit is a raw fulltext hit: the indexed document's id and its score.
type Hit struct {
	ID    string
	Score float64
}

// Index upserts a memory's searchable text (content+summary) by id.
func (m *MemoryIndex) Index(id, content, summary, typ, project string, importance int, confidence float64) error {
	return m.idx.Index(id, memoryDoc{
		Text:       content + " " + summary,
		Type:       typ,
		Project:    project,
		Importance: importance,
		Confidence: confidence,
	})
}

// Delete removes a memory from the index (used when content is erased on
// forget; the node itself stays in bbolt as a tombstone).
func (m *MemoryIndex) Delete(id string) error {
	return m.idx.Delete(id)
}

// Search runs a match query against the text field and returns raw hits
// (id + score); the caller applies the active filter and project/type
// predicates.
func (m *MemoryIndex) Search(query string, limit int) ([]Hit, error) {
	return runQuery(m.idx, query, limit)
}

func (m *MemoryIndex) Close() error { return m.idx.Close() }

// entityDoc is indexed into entity_fulltext.
type entityDoc struct {
	Name string `json:"text"`
}

// EntityIndex wraps the entity_fulltext bleve index (entity names).
type EntityIndex struct {
	idx bleve.Index
}

func newEntityIndex(dir string) (*EntityIndex, error) {
	idx, err := openOrCreate(filepath.Join(dir, "entity_fulltext.bleve"), func() (mapping.IndexMapping, error) {
		return buildStandardMapping("text")
	})
	if err != nil {
		return nil, err
	}
	return &EntityIndex{idx: idx}, nil
}

// Index upserts an entity name, keyed by the name itself.
func (e *EntityIndex) Index(name string) error {
	return e.idx.Index(name, entityDoc{Name: name})
}

// Search runs a match query over entity names.
func (e *EntityIndex) Search(query string, limit int) ([]Hit, error) {
	return runQuery(e.idx, query, limit)
}

func (e *EntityIndex) Close() error { return e.idx.Close() }

func runQuery(idx bleve.Index, queryStr string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	q := bleve.NewMatchQuery(queryStr)
	q.SetField("text")
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	res, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("fulltext search failed: %w", err)
	}
	out := make([]Hit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, Hit{ID: hit.ID, Score: hit.Score})
	}
	return out, nil
}

func openOrCreate(path string, buildMapping func() (mapping.IndexMapping, error)) (bleve.Index, error) {
	idx, err := bleve.Open(path)
	if err == nil {
		return idx, nil
	}
	im, mapErr := buildMapping()
	if mapErr != nil {
		return nil, mapErr
	}
	return bleve.New(path, im)
}
