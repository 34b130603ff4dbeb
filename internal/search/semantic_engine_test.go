package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inventivepotter/dotmd/internal/embed"
	"github.com/inventivepotter/dotmd/internal/store"
)

func TestSemanticSearch(t *testing.T) {
	vs := store.NewHNSWVectorStore(768)
	embedder := embed.NewStaticEmbedder768()
	ctx := context.Background()

	vecA, err := embedder.Embed(ctx, "graph traversal over knowledge edges")
	require.NoError(t, err)
	require.NoError(t, vs.AddChunks(ctx, []string{"a.md:0"}, [][]float32{vecA}))

	vecB, err := embedder.Embed(ctx, "vector search with approximate nearest neighbors")
	require.NoError(t, err)
	require.NoError(t, vs.AddChunks(ctx, []string{"b.md:0"}, [][]float32{vecB}))

	hits, err := SemanticSearch(ctx, vs, embedder, "graph traversal over knowledge edges", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "a.md:0", hits[0].ChunkID)
}

func TestSemanticSearch_EmptyQuery(t *testing.T) {
	vs := store.NewHNSWVectorStore(768)
	embedder := embed.NewStaticEmbedder768()

	hits, err := SemanticSearch(context.Background(), vs, embedder, "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
