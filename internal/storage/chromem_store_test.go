package storage

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for ChromemStore:
// - A fresh store does not exist and counts zero
// - Upsert creates the collection, and re-upserting the same id does not grow it
// - Upsert rejects vectors of the wrong dimension
// - Delete removes by id and ignores unknown ids
// - DeleteByFile removes only that file's documents and reports the count
// - Query clamps the limit to the collection size and orders by distance
// - Query converts metadata back to ints and reports distance = 1 - similarity
// - A zero (sentinel) vector is stored and counted instead of failing
// - Reset drops everything, and the store can be written again afterwards
// - A persistent store reloads its documents from disk

func doc(id, file string, start int, vec ...float32) Document {
	return Document{ID: id, Vector: vec, Content: "content of " + id, FilePath: file, StartLine: start, EndLine: start + 9}
}

func TestChromemStore_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewMemoryStore("proj_1234abcd", 3)
	assert.False(t, s.Exists(ctx))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.Upsert(ctx, []Document{
		doc("a1", "a.py", 1, 1, 0, 0),
		doc("a2", "a.py", 8, 0.9, 0.1, 0),
		doc("b1", "b.py", 1, 0, 1, 0),
	}))
	assert.True(t, s.Exists(ctx))
	n, _ = s.Count(ctx)
	assert.Equal(t, 3, n)

	// Idempotent write
	require.NoError(t, s.Upsert(ctx, []Document{doc("a1", "a.py", 1, 1, 0, 0)}))
	n, _ = s.Count(ctx)
	assert.Equal(t, 3, n)

	removed, err := s.DeleteByFile(ctx, "a.py")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	n, _ = s.Count(ctx)
	assert.Equal(t, 1, n)

	removed, err = s.DeleteByFile(ctx, "missing.py")
	require.NoError(t, err)
	assert.Zero(t, removed)

	require.NoError(t, s.Delete(ctx, "b1", "unknown"))
	n, _ = s.Count(ctx)
	assert.Zero(t, n)
}

func TestChromemStore_UpsertRejectsWrongDimension(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore("p", 3)
	err := s.Upsert(context.Background(), []Document{doc("x", "x.go", 1, 1, 2)})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestChromemStore_Query(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewMemoryStore("p", 3)
	require.NoError(t, s.Upsert(ctx, []Document{
		doc("x", "x.go", 1, 1, 0, 0),
		doc("y", "y.go", 11, 0, 1, 0),
	}))

	matches, err := s.Query(ctx, []float32{1, 0.1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "x", matches[0].ID)
	assert.Equal(t, "x.go", matches[0].FilePath)
	assert.Equal(t, 1, matches[0].StartLine)
	assert.Equal(t, 10, matches[0].EndLine)
	assert.Equal(t, "content of x", matches[0].Content)
	assert.Less(t, matches[0].Distance, matches[1].Distance)

	expected := 1 - 1/math.Sqrt(1.01)
	assert.InDelta(t, expected, matches[0].Distance, 1e-4)

	_, err = s.Query(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	empty := NewMemoryStore("empty", 3)
	matches, err = empty.Query(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestChromemStore_SentinelVectorIsStored(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewMemoryStore("p", 4)
	require.NoError(t, s.Upsert(ctx, []Document{doc("z", "z.go", 1, 0, 0, 0, 0)}))

	n, _ := s.Count(ctx)
	assert.Equal(t, 1, n)

	matches, err := s.Query(ctx, []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.False(t, math.IsNaN(float64(matches[0].Distance)))
}

func TestChromemStore_Reset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewMemoryStore("p", 3)
	require.NoError(t, s.Upsert(ctx, []Document{doc("a", "a.go", 1, 1, 0, 0)}))
	require.NoError(t, s.Reset(ctx))
	assert.False(t, s.Exists(ctx))

	n, _ := s.Count(ctx)
	assert.Zero(t, n)

	require.NoError(t, s.Upsert(ctx, []Document{doc("b", "b.go", 1, 0, 1, 0)}))
	n, _ = s.Count(ctx)
	assert.Equal(t, 1, n)
}

func TestChromemStore_PersistentReload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenChromem(dir, false, "proj", 3)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, []Document{
		doc("a", "a.go", 1, 1, 0, 0),
		doc("b", "b.go", 1, 0, 1, 0),
	}))
	require.NoError(t, s.Close())

	reopened, err := OpenChromem(dir, false, "proj", 3)
	require.NoError(t, err)
	assert.True(t, reopened.Exists(ctx))
	n, _ := reopened.Count(ctx)
	assert.Equal(t, 2, n)

	removed, err := reopened.DeleteByFile(ctx, "a.go")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	other, err := OpenChromem(dir, false, "other", 3)
	require.NoError(t, err)
	assert.False(t, other.Exists(ctx))
}
