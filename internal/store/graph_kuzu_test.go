package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGraphStore(t *testing.T) *KuzuGraphStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "graph.kuzu")
	s, err := OpenKuzuGraphStore(dbPath, false)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKuzuGraphStore_AddNodesAndEdge(t *testing.T) {
	s := newTestGraphStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddFileNode(ctx, "a.md", "A", "checksum-a"))
	require.NoError(t, s.AddSectionNode(ctx, "a.md:0", "Intro", 1, "a.md", "Hello world"))
	require.NoError(t, s.AddEdge(ctx, "a.md", "a.md:0", "CONTAINS", 1.0))

	nodes, err := s.NodeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, nodes)

	edges, err := s.EdgeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, edges)
}

func TestKuzuGraphStore_GetNeighbors(t *testing.T) {
	s := newTestGraphStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddSectionNode(ctx, "a.md:0", "Intro", 1, "a.md", "preview"))
	require.NoError(t, s.AddEntityNode(ctx, "Kubernetes", "concept", "wikilink"))
	require.NoError(t, s.AddEdge(ctx, "a.md:0", "Kubernetes", "MENTIONS", 0.5))

	neighbors, err := s.GetNeighbors(ctx, "a.md:0", 1)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "Kubernetes", neighbors[0].NodeID)
}

func TestKuzuGraphStore_GetNeighborsUnknownNode(t *testing.T) {
	s := newTestGraphStore(t)

	neighbors, err := s.GetNeighbors(context.Background(), "missing", 2)
	require.NoError(t, err)
	assert.Empty(t, neighbors)
}

func TestKuzuGraphStore_DeleteAll(t *testing.T) {
	s := newTestGraphStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddFileNode(ctx, "a.md", "A", "checksum-a"))
	require.NoError(t, s.AddTagNode(ctx, "golang"))
	require.NoError(t, s.AddEdge(ctx, "a.md", "golang", "HAS_TAG", 1.0))

	require.NoError(t, s.DeleteAll(ctx))

	nodes, err := s.NodeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, nodes)

	edges, err := s.EdgeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, edges)
}

func TestKuzuGraphStore_AddEdgeMissingNode(t *testing.T) {
	s := newTestGraphStore(t)

	err := s.AddEdge(context.Background(), "missing-a", "missing-b", "CONTAINS", 1.0)
	assert.Error(t, err)
}
