package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inventivepotter/dotmd/internal/store"
)

func TestBM25Search(t *testing.T) {
	idx, err := store.OpenBleveBM25Index("")
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, "a.md:0", "graph traversal over knowledge edges"))
	require.NoError(t, idx.Index(ctx, "b.md:0", "vector search with hnsw indexes"))

	hits, err := BM25Search(ctx, idx, "graph traversal", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "a.md:0", hits[0].ChunkID)
}

func TestBM25Search_EmptyQuery(t *testing.T) {
	idx, err := store.OpenBleveBM25Index("")
	require.NoError(t, err)
	defer idx.Close()

	hits, err := BM25Search(context.Background(), idx, "  ", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
