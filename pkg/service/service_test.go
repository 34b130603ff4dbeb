package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inventivepotter/dotmd/internal/config"
	"github.com/inventivepotter/dotmd/internal/embed"
	"github.com/inventivepotter/dotmd/internal/model"
	"github.com/inventivepotter/dotmd/internal/search"
	"github.com/inventivepotter/dotmd/internal/store"
)

// fakeMetadata, fakeVector, fakeBM25, fakeGraph give the facade real,
// in-memory stand-ins for the sqlite/hnsw/bleve/kuzu backends so Service's
// wiring can be exercised without any real storage backend.

type fakeMetadata struct {
	chunks map[string]model.Chunk
	stats  *model.IndexStats
}

func newFakeMetadata() *fakeMetadata { return &fakeMetadata{chunks: map[string]model.Chunk{}} }

func (f *fakeMetadata) SaveChunks(ctx context.Context, chunks []model.Chunk) error {
	for _, c := range chunks {
		f.chunks[c.ChunkID] = c
	}
	return nil
}
func (f *fakeMetadata) GetChunk(ctx context.Context, chunkID string) (*model.Chunk, error) {
	c, ok := f.chunks[chunkID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}
func (f *fakeMetadata) GetChunks(ctx context.Context, chunkIDs []string) ([]model.Chunk, error) {
	out := make([]model.Chunk, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		if c, ok := f.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}
func (f *fakeMetadata) GetAllChunks(ctx context.Context) ([]model.Chunk, error) {
	out := make([]model.Chunk, 0, len(f.chunks))
	for _, c := range f.chunks {
		out = append(out, c)
	}
	return out, nil
}
func (f *fakeMetadata) SaveStats(ctx context.Context, stats model.IndexStats) error {
	f.stats = &stats
	return nil
}
func (f *fakeMetadata) GetStats(ctx context.Context) (*model.IndexStats, error) { return f.stats, nil }
func (f *fakeMetadata) DeleteAll(ctx context.Context) error {
	f.chunks = map[string]model.Chunk{}
	f.stats = nil
	return nil
}
func (f *fakeMetadata) Close() error { return nil }

type fakeVector struct{ deleted bool }

func (f *fakeVector) AddChunks(ctx context.Context, chunkIDs []string, embeddings [][]float32) error {
	return nil
}
func (f *fakeVector) Search(ctx context.Context, vector []float32, topK int) ([]store.VectorScore, error) {
	return []store.VectorScore{{ChunkID: "a.md:0", Score: 0.9}}, nil
}
func (f *fakeVector) DeleteAll(ctx context.Context) error    { f.deleted = true; return nil }
func (f *fakeVector) Count(ctx context.Context) (int, error) { return 1, nil }
func (f *fakeVector) Close() error                           { return nil }

type fakeBM25 struct{ deleted bool }

func (f *fakeBM25) Index(ctx context.Context, chunkID, text string) error { return nil }
func (f *fakeBM25) Search(ctx context.Context, query string, topK int) ([]store.BM25Hit, error) {
	return []store.BM25Hit{{ChunkID: "a.md:0", Score: 1.2}}, nil
}
func (f *fakeBM25) DeleteAll(ctx context.Context) error    { f.deleted = true; return nil }
func (f *fakeBM25) Count(ctx context.Context) (int, error) { return 1, nil }
func (f *fakeBM25) Close() error                           { return nil }

type fakeGraph struct{ deleted bool }

func (f *fakeGraph) AddFileNode(ctx context.Context, filePath, title, checksum string) error {
	return nil
}
func (f *fakeGraph) AddSectionNode(ctx context.Context, chunkID, heading string, level int, filePath, textPreview string) error {
	return nil
}
func (f *fakeGraph) AddEntityNode(ctx context.Context, name, entityType, source string) error {
	return nil
}
func (f *fakeGraph) AddTagNode(ctx context.Context, name string) error { return nil }
func (f *fakeGraph) AddEdge(ctx context.Context, sourceID, targetID, relationType string, weight float64) error {
	return nil
}
func (f *fakeGraph) GetNeighbors(ctx context.Context, nodeID string, maxHops int) ([]store.NeighborEdge, error) {
	return nil, nil
}
func (f *fakeGraph) DeleteAll(ctx context.Context) error        { f.deleted = true; return nil }
func (f *fakeGraph) NodeCount(ctx context.Context) (int, error) { return 0, nil }
func (f *fakeGraph) EdgeCount(ctx context.Context) (int, error) { return 0, nil }
func (f *fakeGraph) Close() error                               { return nil }

func newTestService(t *testing.T) (*Service, *fakeMetadata, *fakeVector, *fakeBM25, *fakeGraph) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.NewConfig()
	cfg.DataDir = dir
	cfg.IndexDir = filepath.Join(dir, ".dotmd")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("# Alpha\n\nHello world.\n"), 0o644))

	meta := newFakeMetadata()
	meta.chunks["a.md:0"] = model.Chunk{ChunkID: "a.md:0", FilePath: "a.md", Text: "Hello world.", HeadingHierarchy: []string{"Alpha"}}
	vec := &fakeVector{}
	bm := &fakeBM25{}
	graph := &fakeGraph{}

	svc := New(cfg, Stores{Metadata: meta, Vector: vec, BM25: bm, Graph: graph}, embed.NewStaticEmbedder768(), &search.NoOpReranker{})
	return svc, meta, vec, bm, graph
}

func TestService_Search_Hybrid(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	results, err := svc.Search(context.Background(), SearchOptions{Query: "hello", TopK: 5, Mode: ModeHybrid})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.md:0", results[0].ChunkID)
}

func TestService_Search_SemanticOnly(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	results, err := svc.Search(context.Background(), SearchOptions{Query: "hello", Mode: ModeSemantic})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestService_Search_UnknownMode(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.Search(context.Background(), SearchOptions{Query: "hello", Mode: "bogus"})
	assert.Error(t, err)
}

func TestService_Status_EmptyBeforeIndex(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	stats, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stats)
}

func TestService_Clear_WipesAllStoresAndAcronyms(t *testing.T) {
	svc, meta, vec, bm, graph := newTestService(t)

	require.NoError(t, saveAcronyms(svc.cfg.IndexDir, map[string][]string{"SIEM": {"security information and event management"}}))
	svc.acronyms = loadAcronyms(svc.cfg.IndexDir)
	require.NotEmpty(t, svc.acronyms)

	require.NoError(t, svc.Clear(context.Background()))

	assert.True(t, vec.deleted)
	assert.True(t, bm.deleted)
	assert.True(t, graph.deleted)
	assert.Empty(t, meta.chunks)
	assert.Empty(t, svc.acronyms)
	_, statErr := os.Stat(filepath.Join(svc.cfg.IndexDir, acronymsFileName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestService_Index_RefusesWhenReadOnly(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	svc.cfg.ReadOnly = true

	_, err := svc.Index(context.Background())
	assert.Error(t, err)
}
