package store

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/jmylchreest/eva-memory/pkg/model"
)

const sep = "\x00"

func relKey(a, b string) []byte { return []byte(a + sep + b) }

func relPrefix(a string) []byte { return []byte(a + sep) }

// upsertNode merges a bare {name} node into a label bucket if absent.
func upsertNode(tx *bolt.Tx, bucket []byte, name string) error {
	b := tx.Bucket(bucket)
	if b.Get([]byte(name)) != nil {
		return nil
	}
	return b.Put([]byte(name), []byte("{}"))
}

func putMemory(tx *bolt.Tx, mem *model.Memory) error {
	data, err := json.Marshal(mem)
	if err != nil {
		return err
	}
	return tx.Bucket(BucketMemories).Put([]byte(mem.ID), data)
}

func getMemoryTx(tx *bolt.Tx, id string) (*model.Memory, error) {
	data := tx.Bucket(BucketMemories).Get([]byte(id))
	if data == nil {
		return nil, ErrNotFound
	}
	var m model.Memory
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMemory returns a memory by id, regardless of active state.
func (s *GraphStore) GetMemory(id string) (*model.Memory, error) {
	var m *model.Memory
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		m, err = getMemoryTx(tx, id)
		return err
	})
	return m, err
}

// UpsertMemory merges a Memory node by id, sets all scalar fields, then
// merges Entity/Tag/Project/Session nodes and their relationships. If
// mem.Supersedes is set, a SUPERSEDES edge is created and the predecessor
// is marked forgotten in the same transaction.
func (s *GraphStore) UpsertMemory(mem *model.Memory) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := putMemory(tx, mem); err != nil {
			return err
		}
		for _, e := range mem.Entities {
			if err := upsertNode(tx, BucketEntities, e); err != nil {
				return err
			}
			if err := tx.Bucket(BucketMentions).Put(relKey(e, mem.ID), []byte{}); err != nil {
				return err
			}
		}
		for _, t := range mem.Tags {
			if err := upsertNode(tx, BucketTags, t); err != nil {
				return err
			}
			if err := tx.Bucket(BucketTagged).Put(relKey(t, mem.ID), []byte{}); err != nil {
				return err
			}
		}
		if mem.Project != "" {
			if err := upsertNode(tx, BucketProjects, mem.Project); err != nil {
				return err
			}
			if err := tx.Bucket(BucketBelongsTo).Put(relKey(mem.Project, mem.ID), []byte{}); err != nil {
				return err
			}
		}
		if mem.SessionID != "" {
			if err := upsertNode(tx, BucketSessions, mem.SessionID); err != nil {
				return err
			}
			if err := tx.Bucket(BucketRecordedIn).Put(relKey(mem.SessionID, mem.ID), []byte{}); err != nil {
				return err
			}
		}
		if mem.Supersedes != "" {
			prev, err := getMemoryTx(tx, mem.Supersedes)
			if err == nil {
				prev.Forgotten = true
				prev.ForgottenAt = time.Now().UTC()
				prev.Content = ""
				prev.Summary = ""
				prev.DeleteReason = fmt.Sprintf("superseded by %s", mem.ID)
				if err := putMemory(tx, prev); err != nil {
					return err
				}
			}
			if err := tx.Bucket(BucketSupersedes).Put(relKey(mem.ID, mem.Supersedes), []byte{}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.memoryIdx.Index(mem.ID, mem.Content, mem.Summary, mem.Type, mem.Project, mem.Importance, mem.Confidence); err != nil {
		log.Printf("store: WARN memory_fulltext index failed for %s: %v", mem.ID, err)
	}
	for _, e := range mem.Entities {
		if err := s.entityIdx.Index(e); err != nil {
			log.Printf("store: WARN entity_fulltext index failed for %s: %v", e, err)
		}
	}
	if mem.Supersedes != "" {
		if prev, err := s.GetMemory(mem.Supersedes); err == nil {
			_ = s.memoryIdx.Delete(prev.ID)
		}
	}
	return nil
}

// Forget soft-deletes a memory: content and summary are erased, forgotten
// is set true, forgottenAt stamped.
func (s *GraphStore) Forget(id, reason string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		m, err := getMemoryTx(tx, id)
		if err != nil {
			return err
		}
		m.Forgotten = true
		m.ForgottenAt = time.Now().UTC()
		m.DeleteReason = reason
		m.Content = ""
		m.Summary = ""
		return putMemory(tx, m)
	})
	if err != nil {
		return err
	}
	return s.memoryIdx.Delete(id)
}

// UpdateFields is the set of mutable fields accepted by Update.
type UpdateFields struct {
	Content    *string
	Summary    *string
	Type       *string
	Importance *int
	Project    *string
	Confidence *float64
	DecayDays  *int
	// Entities is set by the caller when Content changed and the extractor
	// has re-derived a fresh entity list; existing MENTIONS are kept.
	Entities []string
}

// Update applies fields to a memory, stamping Updated = now. If Content
// changed, the caller is expected to have supplied a re-extracted Entities
// list; new MENTIONS edges are merged without removing old ones.
func (s *GraphStore) Update(id string, f UpdateFields) (*model.Memory, error) {
	var updated *model.Memory
	err := s.db.Update(func(tx *bolt.Tx) error {
		m, err := getMemoryTx(tx, id)
		if err != nil {
			return err
		}
		if f.Content != nil {
			m.Content = *f.Content
		}
		if f.Summary != nil {
			m.Summary = *f.Summary
		}
		if f.Type != nil {
			m.Type = *f.Type
		}
		if f.Importance != nil {
			m.Importance = *f.Importance
		}
		if f.Project != nil {
			m.Project = *f.Project
		}
		if f.Confidence != nil {
			m.Confidence = *f.Confidence
		}
		if f.DecayDays != nil {
			m.DecayDays = f.DecayDays
		}
		if f.Content != nil && len(f.Entities) > 0 {
			existing := make(map[string]struct{}, len(m.Entities))
			for _, e := range m.Entities {
				existing[e] = struct{}{}
			}
			for _, e := range f.Entities {
				if _, ok := existing[e]; !ok {
					m.Entities = append(m.Entities, e)
					existing[e] = struct{}{}
				}
				if err := upsertNode(tx, BucketEntities, e); err != nil {
					return err
				}
				if err := tx.Bucket(BucketMentions).Put(relKey(e, m.ID), []byte{}); err != nil {
					return err
				}
			}
		}
		m.Updated = time.Now().UTC()
		if err := putMemory(tx, m); err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.memoryIdx.Index(updated.ID, updated.Content, updated.Summary, updated.Type, updated.Project, updated.Importance, updated.Confidence); err != nil {
		log.Printf("store: WARN memory_fulltext reindex failed for %s: %v", updated.ID, err)
	}
	return updated, nil
}

// FulltextResult is a scored fulltext hit.
type FulltextResult struct {
	Memory *model.Memory
	Score  float64
	Source string // "graph-fulltext" or "graph-entity"
}

// FulltextFilter narrows a fulltext query by project and/or type.
type FulltextFilter struct {
	Project string
	Type    string
	Limit   int
}

// FulltextMemory runs a full-text query over content+summary and returns
// only active memories, optionally filtered by project/type.
func (s *GraphStore) FulltextMemory(q string, filter FulltextFilter) ([]FulltextResult, error) {
	escaped := EscapeQuery(q)
	if escaped == "" {
		return nil, nil
	}
	hits, err := s.memoryIdx.Search(escaped, filter.Limit)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	var out []FulltextResult
	err = s.db.View(func(tx *bolt.Tx) error {
		for _, h := range hits {
			m, err := getMemoryTx(tx, h.ID)
			if err != nil {
				continue
			}
			if !m.IsActive(now) {
				continue
			}
			if filter.Project != "" && m.Project != filter.Project {
				continue
			}
			if filter.Type != "" && m.Type != filter.Type {
				continue
			}
			out = append(out, FulltextResult{Memory: m, Score: h.Score, Source: "graph-fulltext"})
		}
		return nil
	})
	return out, err
}

// FulltextEntity runs a full-text query over entity names and returns the
// active memories mentioning the matched entities, with score scaled 0.8.
func (s *GraphStore) FulltextEntity(q string, filter FulltextFilter) ([]FulltextResult, error) {
	escaped := EscapeQuery(q)
	if escaped == "" {
		return nil, nil
	}
	hits, err := s.entityIdx.Search(escaped, filter.Limit)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	var out []FulltextResult
	seen := make(map[string]struct{})
	err = s.db.View(func(tx *bolt.Tx) error {
		for _, h := range hits {
			entity := h.ID
			c := tx.Bucket(BucketMentions).Cursor()
			prefix := relPrefix(entity)
			for k, _ := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, _ = c.Next() {
				memID := strings.TrimPrefix(string(k), string(prefix))
				if _, ok := seen[memID]; ok {
					continue
				}
				m, err := getMemoryTx(tx, memID)
				if err != nil || !m.IsActive(now) {
					continue
				}
				if filter.Project != "" && m.Project != filter.Project {
					continue
				}
				if filter.Type != "" && m.Type != filter.Type {
					continue
				}
				seen[memID] = struct{}{}
				out = append(out, FulltextResult{Memory: m, Score: h.Score * 0.8, Source: "graph-entity"})
				if filter.Limit > 0 && len(out) >= filter.Limit {
					return nil
				}
			}
		}
		return nil
	})
	return out, err
}

// AutoRecallFilter configures AutoRecall.
type AutoRecallFilter struct {
	Project       string
	MinImportance int
	Limit         int
}

// AutoRecall returns active memories of type != instruction, importance >=
// MinImportance, ordered by (importance desc, created desc).
func (s *GraphStore) AutoRecall(f AutoRecallFilter) ([]*model.Memory, error) {
	now := time.Now().UTC()
	var out []*model.Memory
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(BucketMemories).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var m model.Memory
			if err := json.Unmarshal(v, &m); err != nil {
				continue
			}
			if !m.IsActive(now) || m.Type == "instruction" {
				continue
			}
			if m.Importance < f.MinImportance {
				continue
			}
			if f.Project != "" && m.Project != f.Project {
				continue
			}
			mCopy := m
			out = append(out, &mCopy)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].Created.After(out[j].Created)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// GetInstructions returns all active instruction memories ordered by
// importance desc, no limit.
func (s *GraphStore) GetInstructions(project string) ([]*model.Memory, error) {
	now := time.Now().UTC()
	var out []*model.Memory
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(BucketMemories).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var m model.Memory
			if err := json.Unmarshal(v, &m); err != nil {
				continue
			}
			if !m.IsActive(now) || m.Type != "instruction" {
				continue
			}
			if project != "" && m.Project != project {
				continue
			}
			mCopy := m
			out = append(out, &mCopy)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out, nil
}

// EntitySummary is a listEntities row.
type EntitySummary struct {
	Name     string   `json:"name"`
	Mentions int      `json:"mentions"`
	Types    []string `json:"types"`
}

// ListEntities returns the top entities by incoming MENTIONS count, with up
// to 5 distinct linked memory types each.
func (s *GraphStore) ListEntities(limit int) ([]EntitySummary, error) {
	var out []EntitySummary
	err := s.db.View(func(tx *bolt.Tx) error {
		ec := tx.Bucket(BucketEntities).Cursor()
		for name, _ := ec.First(); name != nil; name, _ = ec.Next() {
			entity := string(name)
			mc := tx.Bucket(BucketMentions).Cursor()
			prefix := relPrefix(entity)
			count := 0
			typeSet := map[string]struct{}{}
			var types []string
			for k, _ := mc.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, _ = mc.Next() {
				count++
				memID := strings.TrimPrefix(string(k), string(prefix))
				m, err := getMemoryTx(tx, memID)
				if err != nil {
					continue
				}
				if _, ok := typeSet[m.Type]; !ok && len(types) < 5 {
					typeSet[m.Type] = struct{}{}
					types = append(types, m.Type)
				}
			}
			out = append(out, EntitySummary{Name: entity, Mentions: count, Types: types})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mentions > out[j].Mentions })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FilterActive returns the subset of ids that are active. On any error it
// fails open: it returns the full input set, since its role is to remove
// tombstones and expiry misses from an external store, not to gate writes.
func (s *GraphStore) FilterActive(ids []string) []string {
	now := time.Now().UTC()
	var out []string
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, id := range ids {
			m, err := getMemoryTx(tx, id)
			if err != nil {
				continue
			}
			if m.IsActive(now) {
				out = append(out, id)
			}
		}
		return nil
	})
	if err != nil {
		return ids
	}
	return out
}

// PageFilter configures Page.
type PageFilter struct {
	Project   string
	Type      string
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// PageResult is a bounded sorted listing with total count.
type PageResult struct {
	Memories []*model.Memory
	Total    int
}

// Page returns a bounded sorted listing with total count. SortBy/SortOrder
// are validated against an allowlist before use (injection defense); an
// invalid value falls back to created/DESC.
func (s *GraphStore) Page(f PageFilter) (PageResult, error) {
	now := time.Now().UTC()
	sortBy := f.SortBy
	if !model.ValidSortField(sortBy) {
		sortBy = string(model.SortCreated)
	}
	sortOrder := f.SortOrder
	if !model.ValidSortOrder(sortOrder) {
		sortOrder = string(model.SortDesc)
	}

	var all []*model.Memory
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(BucketMemories).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var m model.Memory
			if err := json.Unmarshal(v, &m); err != nil {
				continue
			}
			if !m.IsActive(now) {
				continue
			}
			if f.Project != "" && m.Project != f.Project {
				continue
			}
			if f.Type != "" && m.Type != f.Type {
				continue
			}
			mCopy := m
			all = append(all, &mCopy)
		}
		return nil
	})
	if err != nil {
		return PageResult{}, err
	}

	less := func(i, j int) bool {
		a, b := all[i], all[j]
		var lt bool
		switch model.SortField(sortBy) {
		case model.SortImportance:
			lt = a.Importance < b.Importance
		case model.SortConfidence:
			lt = a.Confidence < b.Confidence
		case model.SortUpdated:
			lt = a.Updated.Before(b.Updated)
		default:
			lt = a.Created.Before(b.Created)
		}
		if sortOrder == string(model.SortDesc) {
			return !lt
		}
		return lt
	}
	sort.SliceStable(all, less)

	total := len(all)
	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return PageResult{Memories: all[start:end], Total: total}, nil
}

// RecentFilter configures RecentByFilter.
type RecentFilter struct {
	ID      string
	Type    string
	Project string
	Limit   int
}

// RecentByFilter either looks up a single id, or returns a filtered recent
// list (active only), newest first.
func (s *GraphStore) RecentByFilter(f RecentFilter) ([]*model.Memory, error) {
	if f.ID != "" {
		m, err := s.GetMemory(f.ID)
		if err != nil {
			if err == ErrNotFound {
				return nil, nil
			}
			return nil, err
		}
		if !m.IsActive(time.Now().UTC()) {
			return nil, nil
		}
		return []*model.Memory{m}, nil
	}
	res, err := s.Page(PageFilter{
		Project: f.Project, Type: f.Type,
		SortBy: string(model.SortCreated), SortOrder: string(model.SortDesc),
		Page: 1, PageSize: f.Limit,
	})
	if err != nil {
		return nil, err
	}
	return res.Memories, nil
}

// PruneOld soft-deletes active memories with importance below threshold
// created before the cutoff, stamping deleteReason "maintenance-pruned".
func (s *GraphStore) PruneOld(minImportance, maxAgeDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -maxAgeDays)
	var ids []string
	now := time.Now().UTC()
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(BucketMemories).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var m model.Memory
			if err := json.Unmarshal(v, &m); err != nil {
				continue
			}
			if !m.IsActive(now) {
				continue
			}
			if m.Importance < minImportance && m.Created.Before(cutoff) {
				ids = append(ids, m.ID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := s.Forget(id, "maintenance-pruned"); err != nil {
			log.Printf("store: WARN prune failed for %s: %v", id, err)
		}
	}
	return len(ids), nil
}

// LinkSession creates or updates a Session node and its BELONGS_TO edge.
func (s *GraphStore) LinkSession(sessionID string, startedAt time.Time, project, branch string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		sess := model.Session{ID: sessionID, StartedAt: startedAt, Project: project, Branch: branch}
		data, err := json.Marshal(sess)
		if err != nil {
			return err
		}
		if err := tx.Bucket(BucketSessions).Put([]byte(sessionID), data); err != nil {
			return err
		}
		if project != "" {
			if err := upsertNode(tx, BucketProjects, project); err != nil {
				return err
			}
			return tx.Bucket(BucketBelongsTo).Put(relKey(project, sessionID), []byte{})
		}
		return nil
	})
}

// CloseSession stamps endedAt and summary on a session.
func (s *GraphStore) CloseSession(sessionID string, endedAt time.Time, summary string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(BucketSessions)
		data := b.Get([]byte(sessionID))
		if data == nil {
			return ErrNotFound
		}
		var sess model.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			return err
		}
		sess.EndedAt = endedAt
		sess.Summary = summary
		out, err := json.Marshal(sess)
		if err != nil {
			return err
		}
		return b.Put([]byte(sessionID), out)
	})
}

// ProjectNames returns every known project name.
func (s *GraphStore) ProjectNames() ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(BucketProjects).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			out = append(out, string(k))
		}
		return nil
	})
	return out, err
}

// CountActive returns the total number of active memories, used by the
// sync-start overview.
func (s *GraphStore) CountActive() (int, error) {
	now := time.Now().UTC()
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(BucketMemories).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var m model.Memory
			if err := json.Unmarshal(v, &m); err != nil {
				continue
			}
			if m.IsActive(now) {
				count++
			}
		}
		return nil
	})
	return count, err
}
