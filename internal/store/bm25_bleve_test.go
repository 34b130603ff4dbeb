package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBleveBM25Index_IndexAndSearch(t *testing.T) {
	idx, err := OpenBleveBM25Index("")
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, "a.md:0", "graph traversal over knowledge edges"))
	require.NoError(t, idx.Index(ctx, "b.md:0", "vector search with hnsw indexes"))

	hits, err := idx.Search(ctx, "graph traversal", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "a.md:0", hits[0].ChunkID)
	assert.NotEmpty(t, hits[0].MatchedTerms)
}

func TestBleveBM25Index_Count(t *testing.T) {
	idx, err := OpenBleveBM25Index("")
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, idx.Index(ctx, "a.md:0", "hello world"))
	n, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBleveBM25Index_DeleteAll(t *testing.T) {
	idx, err := OpenBleveBM25Index("")
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, "a.md:0", "hello world"))
	require.NoError(t, idx.Index(ctx, "b.md:0", "goodbye world"))

	require.NoError(t, idx.DeleteAll(ctx))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	hits, err := idx.Search(ctx, "world", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBleveBM25Index_SearchEmptyIndex(t *testing.T) {
	idx, err := OpenBleveBM25Index("")
	require.NoError(t, err)
	defer idx.Close()

	hits, err := idx.Search(context.Background(), "anything", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
