// This file implements schema versioning and migration for the graph
// store's bbolt database.
package store

import (
	"encoding/binary"
	"fmt"
	"log"

	bolt "go.etcd.io/bbolt"
)

// SchemaVersion is the current schema version. Increment when adding a
// migration to the migrations slice below.
var SchemaVersion uint64 = 1

type migration struct {
	version     uint64
	description string
	migrate     func(tx *bolt.Tx) error
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{version: 1, description: "baseline schema stamp", migrate: func(tx *bolt.Tx) error { return nil }},
}

const versionKey = "schema_version"

// RunMigrations applies pending schema migrations to db.
func RunMigrations(db *bolt.DB) error {
	current, err := getSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	if current > SchemaVersion {
		return fmt.Errorf("database schema version %d is ahead of binary version %d (downgrade not supported)", current, SchemaVersion)
	}
	if current == SchemaVersion {
		return nil
	}

	var pending []migration
	for _, m := range migrations {
		if m.version > current {
			pending = append(pending, m)
		}
	}

	if len(pending) == 0 {
		return setSchemaVersion(db, SchemaVersion)
	}

	return db.Update(func(tx *bolt.Tx) error {
		for _, m := range pending {
			log.Printf("store: applying migration v%d: %s", m.version, m.description)
			if err := m.migrate(tx); err != nil {
				return fmt.Errorf("migration v%d (%s) failed: %w", m.version, m.description, err)
			}
		}
		meta := tx.Bucket(BucketMeta)
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, SchemaVersion)
		return meta.Put([]byte(versionKey), buf)
	})
}

func getSchemaVersion(db *bolt.DB) (uint64, error) {
	var version uint64
	err := db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(BucketMeta)
		if meta == nil {
			return nil
		}
		data := meta.Get([]byte(versionKey))
		if data == nil {
			return nil
		}
		if len(data) != 8 {
			return fmt.Errorf("corrupt schema_version: expected 8 bytes, got %d", len(data))
		}
		version = binary.BigEndian.Uint64(data)
		return nil
	})
	return version, err
}

func setSchemaVersion(db *bolt.DB, version uint64) error {
	return db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(BucketMeta)
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, version)
		return meta.Put([]byte(versionKey), buf)
	})
}

// -------------------------------------------------------------------
// Example migration (commented out) showing the pattern to follow when
// a real field addition is needed:
//
// {version: 2, description: "add source field to memories", migrate: func(tx *bolt.Tx) error {
// 	b := tx.Bucket(BucketMemories)
// 	c := b.Cursor()
// 	for k, v := c.First(); k != nil; k, v = c.Next() {
// 		var rec model.Memory
// 		if err := json.Unmarshal(v, &rec); err != nil {
// 			return err
// 		}
// 		data, err := json.Marshal(rec)
// 		if err != nil {
// 			return err
// 		}
// 		if err := b.Put(k, data); err != nil {
// 			return err
// 		}
// 	}
// 	return nil
// }},
