package search

import (
	"context"

	"github.com/inventivepotter/dotmd/internal/model"
	"github.com/inventivepotter/dotmd/internal/store"
)

// fakeMetadataStore is the in-memory store.MetadataStore shared by every
// test in this package that hydrates chunk IDs: fusion, graph traversal,
// reranking, and query expansion all read through the same fake rather
// than each defining its own.
type fakeMetadataStore struct {
	chunks map[string]model.Chunk
}

// newFakeMetadataStore indexes the given chunks by ChunkID.
func newFakeMetadataStore(chunks ...model.Chunk) *fakeMetadataStore {
	m := &fakeMetadataStore{chunks: make(map[string]model.Chunk, len(chunks))}
	for _, c := range chunks {
		m.chunks[c.ChunkID] = c
	}
	return m
}

func (f *fakeMetadataStore) SaveChunks(ctx context.Context, chunks []model.Chunk) error { return nil }

func (f *fakeMetadataStore) GetChunk(ctx context.Context, chunkID string) (*model.Chunk, error) {
	c, ok := f.chunks[chunkID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// GetChunks preserves the requested order, silently skipping unknown ids,
// matching store.MetadataStore's documented contract.
func (f *fakeMetadataStore) GetChunks(ctx context.Context, chunkIDs []string) ([]model.Chunk, error) {
	out := make([]model.Chunk, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		if c, ok := f.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeMetadataStore) GetAllChunks(ctx context.Context) ([]model.Chunk, error) {
	out := make([]model.Chunk, 0, len(f.chunks))
	for _, c := range f.chunks {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeMetadataStore) SaveStats(ctx context.Context, stats model.IndexStats) error { return nil }
func (f *fakeMetadataStore) GetStats(ctx context.Context) (*model.IndexStats, error)     { return nil, nil }
func (f *fakeMetadataStore) DeleteAll(ctx context.Context) error                        { return nil }
func (f *fakeMetadataStore) Close() error                                               { return nil }

var _ store.MetadataStore = (*fakeMetadataStore)(nil)
