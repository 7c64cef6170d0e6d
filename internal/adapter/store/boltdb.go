package store

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"carspire/internal/adapter/similarity"
	"carspire/internal/domain"
)

var (
	bucketFragments = []byte("fragments")
	bucketVectors   = []byte("vectors")
	bucketMeta      = []byte("meta")
)

// snapshot is an immutable view of the store. A new one is published after
// every successful commit; readers never observe a half-applied append.
type snapshot struct {
	fragments []string
	vectors   []domain.Vector
	dim       int
	gen       uint64
}

// BoltKnowledgeStore keeps fragments and their vectors in two bolt buckets
// keyed by sequence index. Both buckets are written in one transaction, so
// an append is durably visible as a whole or not at all.
type BoltKnowledgeStore struct {
	db     *bbolt.DB
	path   string
	logger *zap.Logger
	model  string

	writeMu sync.Mutex
	state   atomic.Pointer[snapshot]

	meta      Meta
	recovered *domain.ConsistencyViolation

	// beforeCommit runs inside the append transaction; a non-nil error
	// aborts the commit.
	beforeCommit func(tx *bbolt.Tx) error
}

type Option func(*BoltKnowledgeStore)

func WithLogger(logger *zap.Logger) Option {
	return func(s *BoltKnowledgeStore) { s.logger = logger }
}

// WithModel records the embedding model the vectors come from. Opening a
// non-empty store with a different model fails.
func WithModel(model string) Option {
	return func(s *BoltKnowledgeStore) { s.model = model }
}

// NewBoltKnowledgeStore opens (or creates) the store at path and loads it.
func NewBoltKnowledgeStore(path string, opts ...Option) (*BoltKnowledgeStore, error) {
	s := &BoltKnowledgeStore{
		path:   path,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	s.db = db

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Load(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.checkModel(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Load replaces the in-memory state with the committed state on disk. A
// fragment/vector count mismatch is repaired by truncating both collections
// to their common prefix.
func (s *BoltKnowledgeStore) Load() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var fragments []string
	var vectors []domain.Vector
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketFragments).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			seq, ok := keySeq(k)
			if !ok || seq != uint64(len(fragments)) {
				break
			}
			fragments = append(fragments, string(v))
		}

		c = tx.Bucket(bucketVectors).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			seq, ok := keySeq(k)
			if !ok || seq != uint64(len(vectors)) {
				break
			}
			vec, err := decodeVector(v)
			if err != nil {
				s.logger.Warn("undecodable vector, treating as end of store",
					zap.Uint64("seq", seq), zap.Error(err))
				break
			}
			vectors = append(vectors, vec)
		}
		return nil
	})
	if err != nil {
		return &domain.PersistenceError{Op: "load", Err: err}
	}

	keep := min(len(fragments), len(vectors))
	dim := 0
	if keep > 0 {
		dim = len(vectors[0])
	}
	for i := 0; i < keep; i++ {
		if len(vectors[i]) != dim {
			keep = i
			break
		}
	}

	s.recovered = nil
	if keep != len(fragments) || keep != len(vectors) {
		violation := &domain.ConsistencyViolation{Fragments: len(fragments), Vectors: len(vectors)}
		s.logger.Warn("knowledge store inconsistent, truncating to common prefix",
			zap.Int("fragments", len(fragments)),
			zap.Int("vectors", len(vectors)),
			zap.Int("kept", keep),
		)
		if err := s.truncate(uint64(keep)); err != nil {
			return &domain.PersistenceError{Op: "truncate", Err: err}
		}
		s.recovered = violation
		fragments = fragments[:keep]
		vectors = vectors[:keep]
	}

	prev := s.state.Load()
	var gen uint64
	if prev != nil {
		gen = prev.gen + 1
	}
	s.state.Store(&snapshot{
		fragments: fragments,
		vectors:   vectors,
		dim:       dim,
		gen:       gen,
	})

	s.logger.Debug("knowledge store loaded",
		zap.String("path", s.path),
		zap.Int("fragments", len(fragments)),
		zap.Int("dimension", dim),
	)
	return nil
}

// truncate deletes every fragment and vector at or beyond seq.
func (s *BoltKnowledgeStore) truncate(seq uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketFragments, bucketVectors} {
			b := tx.Bucket(name)
			var stale [][]byte
			c := b.Cursor()
			for k, _ := c.First(); k != nil; k, _ = c.Next() {
				if n, ok := keySeq(k); !ok || n >= seq {
					stale = append(stale, append([]byte(nil), k...))
				}
			}
			for _, k := range stale {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Append adds texts[i] paired with vectors[i]. Concurrent calls are applied
// one after another, each as its own commit. If the commit fails the
// in-memory state is left as it was before the call.
func (s *BoltKnowledgeStore) Append(texts []string, vectors []domain.Vector) (int, error) {
	if len(texts) != len(vectors) {
		return 0, fmt.Errorf("append: %w (%d texts, %d vectors)", domain.ErrLengthMismatch, len(texts), len(vectors))
	}
	if len(texts) == 0 {
		return 0, nil
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return 0, domain.NewValidationError("text", "fragment %d is empty", i)
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.state.Load()
	dim := cur.dim
	added := make([]domain.Vector, len(vectors))
	for i, v := range vectors {
		if len(v) == 0 {
			return 0, fmt.Errorf("append: vector %d: %w", i, domain.ErrEmptyVector)
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return 0, fmt.Errorf("append: vector %d has dimension %d, store has %d: %w", i, len(v), dim, domain.ErrDimensionMismatch)
		}
		added[i] = append(domain.Vector(nil), v...)
	}

	base := uint64(len(cur.fragments))
	err := s.db.Update(func(tx *bbolt.Tx) error {
		fb := tx.Bucket(bucketFragments)
		vb := tx.Bucket(bucketVectors)
		for i, text := range texts {
			key := seqKey(base + uint64(i))
			if err := fb.Put(key, []byte(text)); err != nil {
				return err
			}
			if err := vb.Put(key, encodeVector(added[i])); err != nil {
				return err
			}
		}
		if s.beforeCommit != nil {
			return s.beforeCommit(tx)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("append failed, store unchanged",
			zap.Int("fragments", len(texts)),
			zap.Error(err),
		)
		return 0, &domain.PersistenceError{Op: "append", Err: err}
	}

	// Clipping forces append to copy, so readers holding cur keep their view.
	n := len(cur.fragments)
	next := &snapshot{
		fragments: append(cur.fragments[:n:n], texts...),
		vectors:   append(cur.vectors[:n:n], added...),
		dim:       dim,
		gen:       cur.gen + 1,
	}
	s.state.Store(next)

	s.logger.Debug("fragments appended",
		zap.Int("added", len(texts)),
		zap.Int("total", len(next.fragments)),
	)
	return len(texts), nil
}

// Search returns at most k fragments ranked by cosine similarity to query.
// It never blocks on a pending Append.
func (s *BoltKnowledgeStore) Search(query domain.Vector, k int) ([]domain.ScoredFragment, error) {
	snap := s.state.Load()
	if len(snap.fragments) == 0 {
		return nil, nil
	}
	if len(query) != snap.dim {
		return nil, fmt.Errorf("query has dimension %d, store has %d: %w", len(query), snap.dim, domain.ErrDimensionMismatch)
	}

	hits := similarity.TopK(snap.vectors, query, k)
	results := make([]domain.ScoredFragment, len(hits))
	for i, h := range hits {
		results[i] = domain.ScoredFragment{
			Fragment: domain.Fragment{Seq: uint64(h.Index), Text: snap.fragments[h.Index]},
			Score:    h.Score,
		}
	}
	return results, nil
}

// Save flushes the database file to stable storage. Every Append is already
// committed, so Save is only needed before handing the file to another process.
func (s *BoltKnowledgeStore) Save() error {
	if err := s.db.Sync(); err != nil {
		return &domain.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

func (s *BoltKnowledgeStore) Len() int {
	return len(s.state.Load().fragments)
}

func (s *BoltKnowledgeStore) Dimension() int {
	return s.state.Load().dim
}

func (s *BoltKnowledgeStore) Generation() uint64 {
	return s.state.Load().gen
}

// Fragments returns the stored fragments in sequence order.
func (s *BoltKnowledgeStore) Fragments() []domain.Fragment {
	snap := s.state.Load()
	out := make([]domain.Fragment, len(snap.fragments))
	for i, text := range snap.fragments {
		out[i] = domain.Fragment{Seq: uint64(i), Text: text}
	}
	return out
}

// Recovered returns the inconsistency repaired by the last Load, if any.
func (s *BoltKnowledgeStore) Recovered() *domain.ConsistencyViolation {
	return s.recovered
}

func (s *BoltKnowledgeStore) Stats() domain.Stats {
	snap := s.state.Load()
	return domain.Stats{
		Fragments: len(snap.fragments),
		Vectors:   len(snap.vectors),
		Dimension: snap.dim,
		StoreID:   s.meta.StoreID,
		Model:     s.meta.Model,
		CreatedAt: s.meta.CreatedAt,
	}
}

func (s *BoltKnowledgeStore) Close() error {
	return s.db.Close()
}
