// Package store implements GraphStore: an embedded property-graph-shaped
// store over bbolt (nodes, relationships, uniqueness) plus bleve (full-text
// over memory content and entity names).
package store

import (
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned when a lookup by id finds nothing.
var ErrNotFound = errors.New("not found")

// Bucket names. One bucket per node label, plus one per relationship kind.
var (
	BucketMemories = []byte("memories")
	BucketEntities = []byte("entities")
	BucketTags     = []byte("tags")
	BucketProjects = []byte("projects")
	BucketSessions = []byte("sessions")
	BucketMeta     = []byte("meta")

	// Relationship buckets are keyed "<a>\x00<b>" with the value carrying
	// any edge metadata (currently empty); existence is the relationship.
	// Keys lead with the side prefix scans run on.
	BucketMentions   = []byte("rel_mentions")   // entity \x00 memory
	BucketTagged     = []byte("rel_tagged")     // tag \x00 memory
	BucketBelongsTo  = []byte("rel_belongsto")  // project \x00 memory|session
	BucketRecordedIn = []byte("rel_recordedin") // session \x00 memory
	BucketSupersedes = []byte("rel_supersedes") // new memory \x00 old memory
)

var allBuckets = [][]byte{
	BucketMemories, BucketEntities, BucketTags, BucketProjects, BucketSessions,
	BucketMeta, BucketMentions, BucketTagged, BucketBelongsTo, BucketRecordedIn,
	BucketSupersedes,
}

// GraphStore is the process-singleton owner of the bbolt database and the
// bleve full-text indexes layered over it.
type GraphStore struct {
	db        *bolt.DB
	memoryIdx *MemoryIndex
	entityIdx *EntityIndex
}

// Config configures where the store's files live.
type Config struct {
	// DBPath is the bbolt database file.
	DBPath string
	// IndexDir is the directory holding the two bleve indexes
	// (memory_fulltext, entity_fulltext). Defaults to DBPath's directory.
	IndexDir string
}

// Open creates or opens a GraphStore at the configured paths, running any
// pending schema migrations.
func Open(cfg Config) (*GraphStore, error) {
	db, err := bolt.Open(cfg.DBPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening graph database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	indexDir := cfg.IndexDir
	if indexDir == "" {
		indexDir = IndexDirFor(cfg.DBPath)
	}

	memoryIdx, err := newMemoryIndex(indexDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening memory_fulltext index: %w", err)
	}
	entityIdx, err := newEntityIndex(indexDir)
	if err != nil {
		memoryIdx.Close()
		db.Close()
		return nil, fmt.Errorf("opening entity_fulltext index: %w", err)
	}

	return &GraphStore{db: db, memoryIdx: memoryIdx, entityIdx: entityIdx}, nil
}

// Close closes the database and both full-text indexes.
func (s *GraphStore) Close() error {
	var errs []error
	if err := s.memoryIdx.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.entityIdx.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// GetMeta reads a string value from the meta bucket.
func (s *GraphStore) GetMeta(key string) (string, error) {
	var val string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(BucketMeta)
		data := b.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		val = string(data)
		return nil
	})
	return val, err
}

// SetMeta writes a string value to the meta bucket.
func (s *GraphStore) SetMeta(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(BucketMeta)
		return b.Put([]byte(key), []byte(value))
	})
}
