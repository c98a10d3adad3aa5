package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// ChromemStore is a VectorStore backed by one chromem-go collection.
type ChromemStore struct {
	db          *chromem.DB
	name        string
	dimensions  int
	concurrency int

	mu         sync.RWMutex
	collection *chromem.Collection
}

var errNoEmbeddingFunc = errors.New("documents must carry precomputed embeddings")

// noEmbed stops chromem from falling back to its default remote embedder.
func noEmbed(ctx context.Context, text string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

// OpenChromem opens (or creates) a persistent store under dir.
func OpenChromem(dir string, compress bool, collection string, dimensions int) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(dir, compress)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", ErrStoreUnavailable, dir, err)
	}
	return newChromemStore(db, collection, dimensions), nil
}

// NewMemoryStore creates a non-persistent store, used in tests.
func NewMemoryStore(collection string, dimensions int) *ChromemStore {
	return newChromemStore(chromem.NewDB(), collection, dimensions)
}

func newChromemStore(db *chromem.DB, name string, dimensions int) *ChromemStore {
	return &ChromemStore{
		db:          db,
		name:        name,
		dimensions:  dimensions,
		concurrency: 8,
		collection:  db.GetCollection(name, noEmbed),
	}
}

// getOrCreate returns the collection, creating it on first write.
func (s *ChromemStore) getOrCreate() (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collection != nil {
		return s.collection, nil
	}
	col, err := s.db.GetOrCreateCollection(s.name, map[string]string{
		"dimensions": strconv.Itoa(s.dimensions),
	}, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.collection = col
	return col, nil
}

func (s *ChromemStore) current() *chromem.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection
}

func (s *ChromemStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	col, err := s.getOrCreate()
	if err != nil {
		return err
	}

	out := make([]chromem.Document, len(docs))
	for i, d := range docs {
		if len(d.Vector) != s.dimensions {
			return fmt.Errorf("%w: document %s has %d dimensions, collection has %d", ErrDimensionMismatch, d.ID, len(d.Vector), s.dimensions)
		}
		out[i] = chromem.Document{
			ID:        d.ID,
			Content:   d.Content,
			Embedding: storableVector(d.Vector),
			Metadata: map[string]string{
				MetaFilePath:  d.FilePath,
				MetaStartLine: strconv.Itoa(d.StartLine),
				MetaEndLine:   strconv.Itoa(d.EndLine),
			},
		}
	}

	if err := col.AddDocuments(ctx, out, s.concurrency); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// storableVector maps the all-zero placeholder to the uniform unit vector.
// chromem normalizes every vector it stores and a zero vector would turn into NaNs.
func storableVector(v []float32) []float32 {
	for _, x := range v {
		if x != 0 {
			return v
		}
	}
	out := make([]float32, len(v))
	c := float32(1 / math.Sqrt(float64(len(v))))
	for i := range out {
		out[i] = c
	}
	return out
}

func (s *ChromemStore) Delete(ctx context.Context, ids ...string) error {
	col := s.current()
	if col == nil || len(ids) == 0 {
		return nil
	}
	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteByFile relies on the caller holding the project's sync lock: the
// removed count is the difference in collection size around the delete.
func (s *ChromemStore) DeleteByFile(ctx context.Context, filePath string) (int, error) {
	col := s.current()
	if col == nil {
		return 0, nil
	}
	before := col.Count()
	if err := col.Delete(ctx, map[string]string{MetaFilePath: filePath}, nil); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return before - col.Count(), nil
}

func (s *ChromemStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.collection = nil
	return nil
}

func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	col := s.current()
	if col == nil {
		return 0, nil
	}
	return col.Count(), nil
}

func (s *ChromemStore) Exists(ctx context.Context) bool {
	return s.current() != nil
}

func (s *ChromemStore) Query(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	col := s.current()
	if col == nil || limit <= 0 {
		return nil, nil
	}
	if len(vector) != s.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection has %d", ErrDimensionMismatch, len(vector), s.dimensions)
	}

	// chromem rejects nResults larger than the collection.
	n := col.Count()
	if n == 0 {
		return nil, nil
	}
	if limit > n {
		limit = n
	}

	res, err := col.QueryEmbedding(ctx, storableVector(vector), limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	matches := make([]Match, 0, len(res))
	for _, r := range res {
		start, _ := strconv.Atoi(r.Metadata[MetaStartLine])
		end, _ := strconv.Atoi(r.Metadata[MetaEndLine])
		matches = append(matches, Match{
			ID:        r.ID,
			Content:   r.Content,
			FilePath:  r.Metadata[MetaFilePath],
			StartLine: start,
			EndLine:   end,
			Distance:  1 - r.Similarity,
		})
	}
	return matches, nil
}

// Close is a no-op: chromem persists every write immediately.
func (s *ChromemStore) Close() error {
	return nil
}
