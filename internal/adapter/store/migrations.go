package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyStoreID       = []byte("store_id")
	keyModel         = []byte("embedding_model")
	keyCreatedAt     = []byte("created_at")
)

// Meta describes the store instance.
type Meta struct {
	Version   int       `json:"version"`
	StoreID   string    `json:"store_id"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// migrate creates missing buckets and brings the meta bucket up to
// CurrentSchemaVersion.
func (s *BoltKnowledgeStore) migrate() error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketFragments, bucketVectors, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}

		version := getMetaInt(tx, keySchemaVersion)
		if version > CurrentSchemaVersion {
			return fmt.Errorf("database created by newer version (v%d > v%d)", version, CurrentSchemaVersion)
		}
		for v := version; v < CurrentSchemaVersion; v++ {
			if err := runMigration(tx, v, v+1); err != nil {
				return fmt.Errorf("migration from v%d to v%d failed: %w", v, v+1, err)
			}
		}
		return putMetaInt(tx, keySchemaVersion, CurrentSchemaVersion)
	})
	if err != nil {
		return err
	}

	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		s.meta = Meta{
			Version: getMetaInt(tx, keySchemaVersion),
			StoreID: string(b.Get(keyStoreID)),
			Model:   string(b.Get(keyModel)),
		}
		if raw := b.Get(keyCreatedAt); raw != nil {
			_ = json.Unmarshal(raw, &s.meta.CreatedAt)
		}
		return nil
	})
}

// runMigration runs a specific version migration.
func runMigration(tx *bbolt.Tx, from, to int) error {
	b := tx.Bucket(bucketMeta)
	switch {
	case from == 0 && to == 1:
		if b.Get(keyStoreID) != nil {
			return nil
		}
		created, err := json.Marshal(time.Now().UTC())
		if err != nil {
			return err
		}
		if err := b.Put(keyStoreID, []byte(uuid.NewString())); err != nil {
			return err
		}
		return b.Put(keyCreatedAt, created)
	default:
		return nil
	}
}

// checkModel binds the store to one embedding model: vectors from different
// models are not comparable.
func (s *BoltKnowledgeStore) checkModel() error {
	if s.model == "" {
		return nil
	}
	if s.meta.Model != "" && s.meta.Model != s.model {
		if s.Len() > 0 {
			return fmt.Errorf("store %s holds %s embeddings, configured model is %s", s.path, s.meta.Model, s.model)
		}
	}
	if s.meta.Model == s.model {
		return nil
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyModel, []byte(s.model))
	})
	if err != nil {
		return fmt.Errorf("failed to record embedding model: %w", err)
	}
	s.meta.Model = s.model
	return nil
}

func getMetaInt(tx *bbolt.Tx, key []byte) int {
	raw := tx.Bucket(bucketMeta).Get(key)
	if raw == nil {
		return 0
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0
	}
	return n
}

func putMetaInt(tx *bbolt.Tx, key []byte, n int) error {
	return tx.Bucket(bucketMeta).Put(key, []byte(strconv.Itoa(n)))
}
