// Package store defines the storage protocols the retrieval core depends
// on and their concrete backends: bleve for BM25, coder/hnsw for vectors,
// go-kuzu for the knowledge graph, and modernc.org/sqlite for chunk
// metadata. The core never depends on a concrete backend, only on these
// capability interfaces.
package store

import (
	"context"

	"github.com/inventivepotter/dotmd/internal/model"
)

// VectorScore is a single nearest-neighbor hit.
type VectorScore struct {
	ChunkID string
	Score   float64
}

// VectorStore is the capability set the semantic engine depends on.
// Add uses overwrite semantics: re-adding a chunk ID replaces its vector.
type VectorStore interface {
	AddChunks(ctx context.Context, chunkIDs []string, embeddings [][]float32) error
	Search(ctx context.Context, vector []float32, topK int) ([]VectorScore, error)
	DeleteAll(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// NeighborEdge is a single hop discovered by GetNeighbors.
type NeighborEdge struct {
	NodeID        string
	RelationLabel string // may be empty when the store cannot attribute the hop
	Weight        float64
}

// GraphStore is the capability set the graph engine and the indexing
// pipeline depend on. Node and edge upserts merge on primary key so
// repeated indexing runs are idempotent.
type GraphStore interface {
	AddFileNode(ctx context.Context, filePath, title, checksum string) error
	AddSectionNode(ctx context.Context, chunkID, heading string, level int, filePath, textPreview string) error
	AddEntityNode(ctx context.Context, name, entityType, source string) error
	AddTagNode(ctx context.Context, name string) error
	AddEdge(ctx context.Context, sourceID, targetID, relationType string, weight float64) error
	GetNeighbors(ctx context.Context, nodeID string, maxHops int) ([]NeighborEdge, error)
	DeleteAll(ctx context.Context) error
	NodeCount(ctx context.Context) (int, error)
	EdgeCount(ctx context.Context) (int, error)
	Close() error
}

// MetadataStore persists chunks and the last IndexStats snapshot.
type MetadataStore interface {
	SaveChunks(ctx context.Context, chunks []model.Chunk) error
	GetChunk(ctx context.Context, chunkID string) (*model.Chunk, error)
	// GetChunks returns chunks for the requested ids, preserving request
	// order on a best-effort basis; missing ids are silently skipped.
	GetChunks(ctx context.Context, chunkIDs []string) ([]model.Chunk, error)
	GetAllChunks(ctx context.Context) ([]model.Chunk, error)
	SaveStats(ctx context.Context, stats model.IndexStats) error
	GetStats(ctx context.Context) (*model.IndexStats, error)
	DeleteAll(ctx context.Context) error
	Close() error
}

// BM25Hit is a single lexical search result.
type BM25Hit struct {
	ChunkID      string
	Score        float64
	MatchedTerms []string
}

// BM25Index is the capability set the lexical engine depends on.
type BM25Index interface {
	Index(ctx context.Context, chunkID, text string) error
	Search(ctx context.Context, query string, topK int) ([]BM25Hit, error)
	DeleteAll(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Close() error
}
