package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHNSWVectorStore_AddAndSearch(t *testing.T) {
	s := NewHNSWVectorStore(4)
	ctx := context.Background()

	err := s.AddChunks(ctx,
		[]string{"a", "b", "c"},
		[][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0.9, 0.1, 0, 0},
		})
	require.NoError(t, err)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "a", results[0].ChunkID)
}

func TestHNSWVectorStore_DimensionMismatch(t *testing.T) {
	s := NewHNSWVectorStore(4)
	err := s.AddChunks(context.Background(), []string{"a"}, [][]float32{{1, 0}})
	assert.Error(t, err)
}

func TestHNSWVectorStore_OverwriteOnReAdd(t *testing.T) {
	s := NewHNSWVectorStore(2)
	ctx := context.Background()

	require.NoError(t, s.AddChunks(ctx, []string{"a"}, [][]float32{{1, 0}}))
	require.NoError(t, s.AddChunks(ctx, []string{"a"}, [][]float32{{0, 1}}))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHNSWVectorStore_DeleteAll(t *testing.T) {
	s := NewHNSWVectorStore(2)
	ctx := context.Background()

	require.NoError(t, s.AddChunks(ctx, []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, s.DeleteAll(ctx))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestHNSWVectorStore_EmptySearch(t *testing.T) {
	s := NewHNSWVectorStore(2)
	results, err := s.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWVectorStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")

	s := NewHNSWVectorStore(4)
	require.NoError(t, s.AddChunks(ctx, []string{"a", "b"}, [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))
	require.NoError(t, s.Save(path))

	loaded := NewHNSWVectorStore(4)
	require.NoError(t, loaded.Load(path))

	count, err := loaded.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	results, err := loaded.Search(ctx, []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ChunkID)
}

func TestHNSWVectorStore_LoadMissingFileIsNoop(t *testing.T) {
	s := NewHNSWVectorStore(4)
	require.NoError(t, s.Load(filepath.Join(t.TempDir(), "absent.hnsw")))

	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
