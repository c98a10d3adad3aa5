// Package storage holds the vector store that backs semantic search.
//
// Each project owns exactly one collection, named by its project key.
// Documents carry the chunk text and {file_path, start_line, end_line}
// metadata so stale chunks can be found by file without recomputing ids.
package storage

import (
	"context"
	"errors"
)

// Metadata keys stored with every document.
const (
	MetaFilePath  = "file_path"
	MetaStartLine = "start_line"
	MetaEndLine   = "end_line"
)

var (
	// ErrStoreUnavailable indicates the store could not be opened or written.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrDimensionMismatch indicates a vector whose length differs from the collection's.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Document is one chunk as written to the store.
type Document struct {
	ID        string
	Vector    []float32
	Content   string
	FilePath  string
	StartLine int
	EndLine   int
}

// Match is one similarity query result. Distance is the cosine distance
// (1 - cosine similarity), so smaller is closer.
type Match struct {
	ID        string
	Content   string
	FilePath  string
	StartLine int
	EndLine   int
	Distance  float32
}

// VectorStore is the per-project collection the sync orchestrator writes to.
type VectorStore interface {
	// Upsert writes documents, replacing any with the same id.
	Upsert(ctx context.Context, docs []Document) error

	// Delete removes documents by id. Unknown ids are ignored.
	Delete(ctx context.Context, ids ...string) error

	// DeleteByFile removes every document whose file_path metadata equals
	// filePath and returns how many were removed.
	DeleteByFile(ctx context.Context, filePath string) (int, error)

	// Reset drops the whole collection.
	Reset(ctx context.Context) error

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Exists reports whether the collection has been created.
	Exists(ctx context.Context) bool

	// Query returns up to limit nearest documents, closest first.
	Query(ctx context.Context, vector []float32, limit int) ([]Match, error)

	Close() error
}
