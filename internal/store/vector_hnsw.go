package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWVectorStore implements VectorStore with coder/hnsw, a pure-Go HNSW
// index. Deletion is lazy: the graph node is orphaned rather than removed,
// since coder/hnsw does not support removing the last node cleanly.
type HNSWVectorStore struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[uint64]
	dimensions int

	idToKey map[string]uint64
	keyToID map[uint64]string
	nextKey uint64

	closed bool
}

// NewHNSWVectorStore creates a cosine-similarity HNSW vector store for the
// given embedding dimension.
func NewHNSWVectorStore(dimensions int) *HNSWVectorStore {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &HNSWVectorStore{
		graph:      graph,
		dimensions: dimensions,
		idToKey:    make(map[string]uint64),
		keyToID:    make(map[uint64]string),
	}
}

func (s *HNSWVectorStore) AddChunks(ctx context.Context, chunkIDs []string, embeddings [][]float32) error {
	if len(chunkIDs) != len(embeddings) {
		return fmt.Errorf("chunk ids and embeddings length mismatch: %d vs %d", len(chunkIDs), len(embeddings))
	}
	if len(chunkIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	for _, v := range embeddings {
		if len(v) != s.dimensions {
			return fmt.Errorf("embedding dimension mismatch: expected %d, got %d", s.dimensions, len(v))
		}
	}

	for i, id := range chunkIDs {
		if existing, ok := s.idToKey[id]; ok {
			delete(s.keyToID, existing)
			delete(s.idToKey, id)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(embeddings[i]))
		copy(vec, embeddings[i])
		normalize(vec)

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idToKey[id] = key
		s.keyToID[key] = id
	}

	return nil
}

func (s *HNSWVectorStore) Search(ctx context.Context, vector []float32, topK int) ([]VectorScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("vector store is closed")
	}
	if len(vector) != s.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimensions, len(vector))
	}
	if s.graph.Len() == 0 {
		return []VectorScore{}, nil
	}

	query := make([]float32, len(vector))
	copy(query, vector)
	normalize(query)

	nodes := s.graph.Search(query, topK)

	out := make([]VectorScore, 0, len(nodes))
	for _, node := range nodes {
		id, ok := s.keyToID[node.Key]
		if !ok {
			continue // lazily-deleted node, still present in the graph
		}
		distance := s.graph.Distance(query, node.Value)
		out = append(out, VectorScore{ChunkID: id, Score: 1 / (1 + float64(distance))})
	}
	return out, nil
}

func (s *HNSWVectorStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	s.graph = graph
	s.idToKey = make(map[string]uint64)
	s.keyToID = make(map[uint64]string)
	s.nextKey = 0
	return nil
}

func (s *HNSWVectorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idToKey), nil
}

func (s *HNSWVectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// hnswMetadata is the gob-encoded sidecar next to the exported graph file,
// carrying the ID<->key mapping the graph itself doesn't know about.
type hnswMetadata struct {
	IDToKey    map[string]uint64
	NextKey    uint64
	Dimensions int
}

// Save persists the graph and its ID mapping to path and path+".meta" using
// an atomic temp-file-then-rename on each.
func (s *HNSWVectorStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create vector store directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create vector index file: %w", err)
	}
	if err := s.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("export hnsw graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close vector index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename vector index file: %w", err)
	}

	return s.saveMetadata(path + ".meta")
}

func (s *HNSWVectorStore) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create vector metadata file: %w", err)
	}

	meta := hnswMetadata{IDToKey: s.idToKey, NextKey: s.nextKey, Dimensions: s.dimensions}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode vector metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close vector metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load restores a graph previously written by Save. A missing path is not
// an error: the store simply stays empty, matching a fresh index.
func (s *HNSWVectorStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if err := s.loadMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("load vector metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open vector index file: %w", err)
	}
	defer file.Close()

	if err := s.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import hnsw graph: %w", err)
	}
	return nil
}

func (s *HNSWVectorStore) loadMetadata(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open vector metadata file: %w", err)
	}
	defer file.Close()

	var meta hnswMetadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return fmt.Errorf("decode vector metadata: %w", err)
	}

	s.idToKey = meta.IDToKey
	s.nextKey = meta.NextKey
	s.keyToID = make(map[uint64]string, len(meta.IDToKey))
	for id, key := range s.idToKey {
		s.keyToID[key] = id
	}
	return nil
}

func normalize(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

var _ VectorStore = (*HNSWVectorStore)(nil)
