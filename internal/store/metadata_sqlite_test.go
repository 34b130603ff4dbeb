package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inventivepotter/dotmd/internal/model"
)

func newTestMetadataStore(t *testing.T) *SQLiteMetadataStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metadata.db")
	s, err := OpenSQLiteMetadataStore(path, false)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteMetadataStore_SaveAndGetChunk(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	chunk := model.Chunk{
		ChunkID:          "abc123",
		FilePath:         "a.md",
		HeadingHierarchy: []string{"Alpha", "Beta"},
		Level:            2,
		Text:             "Alpha > Beta\n\nHello world.",
		ChunkIndex:       0,
		CharOffset:       0,
	}

	require.NoError(t, s.SaveChunks(ctx, []model.Chunk{chunk}))

	got, err := s.GetChunk(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, chunk.HeadingHierarchy, got.HeadingHierarchy)
	assert.Equal(t, chunk.Text, got.Text)
}

func TestSQLiteMetadataStore_GetChunksPreservesRequestOrder(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	chunks := []model.Chunk{
		{ChunkID: "a", FilePath: "f.md", Text: "A"},
		{ChunkID: "b", FilePath: "f.md", Text: "B"},
		{ChunkID: "c", FilePath: "f.md", Text: "C"},
	}
	require.NoError(t, s.SaveChunks(ctx, chunks))

	got, err := s.GetChunks(ctx, []string{"c", "a", "missing", "b"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{got[0].ChunkID, got[1].ChunkID, got[2].ChunkID})
}

func TestSQLiteMetadataStore_SaveAndGetStats(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	stats := model.IndexStats{
		TotalFiles:    3,
		TotalChunks:   10,
		TotalEntities: 5,
		TotalEdges:    8,
		LastIndexed:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.SaveStats(ctx, stats))

	got, err := s.GetStats(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, stats.TotalFiles, got.TotalFiles)
	assert.Equal(t, stats.TotalChunks, got.TotalChunks)
	assert.True(t, stats.LastIndexed.Equal(got.LastIndexed))
}

func TestSQLiteMetadataStore_GetStats_NoneSaved(t *testing.T) {
	s := newTestMetadataStore(t)
	got, err := s.GetStats(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteMetadataStore_DeleteAll(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveChunks(ctx, []model.Chunk{{ChunkID: "a", FilePath: "f.md"}}))
	require.NoError(t, s.SaveStats(ctx, model.IndexStats{TotalChunks: 1}))

	require.NoError(t, s.DeleteAll(ctx))

	chunks, err := s.GetAllChunks(ctx)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Nil(t, stats)
}
