package search

import (
	"context"
	"sort"

	"github.com/inventivepotter/dotmd/internal/store"
)

// DefaultRerankerMinLength and DefaultRerankerScoreThreshold mirror the
// cross-encoder rescoring defaults.
const (
	DefaultRerankerMinLength      = 100
	DefaultRerankerScoreThreshold = -8.0
)

// RerankResult represents a single reranked result
type RerankResult struct {
	// Index is the original position in the input documents slice
	Index int
	// Score is the relevance score; higher is more relevant. It is not
	// bounded to [0, 1] and may be negative.
	Score float64
	// Document is the original document content
	Document string
}

// Reranker reranks search results using a cross-encoder model.
// Cross-encoders jointly encode query-document pairs for more accurate
// relevance scoring than bi-encoders, but at higher computational cost.
type Reranker interface {
	// Rerank scores and reorders documents by relevance to the query.
	// Returns results sorted by score descending.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - query: The search query
	//   - documents: Documents to rerank (max ~50-100 for reasonable latency)
	//   - topK: Optional limit on results (0 = return all)
	//
	// Returns:
	//   - Results sorted by score descending
	//   - Error if reranking fails
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)

	// Available checks if the reranker service is available
	Available(ctx context.Context) bool

	// Close releases resources
	Close() error
}

// NoOpReranker is a reranker that returns results in original order.
// Used when reranking is disabled or unavailable.
type NoOpReranker struct{}

// Rerank returns documents in original order with decreasing scores.
func (n *NoOpReranker) Rerank(_ context.Context, _ string, documents []string, topK int) ([]RerankResult, error) {
	results := make([]RerankResult, len(documents))
	for i, doc := range documents {
		// Assign decreasing scores to maintain original order
		results[i] = RerankResult{
			Index:    i,
			Score:    1.0 - float64(i)*0.01, // 1.0, 0.99, 0.98, ...
			Document: doc,
		}
	}

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}

	return results, nil
}

// Available always returns true for NoOpReranker.
func (n *NoOpReranker) Available(_ context.Context) bool {
	return true
}

// Close is a no-op for NoOpReranker.
func (n *NoOpReranker) Close() error {
	return nil
}

// Verify interface implementation at compile time
var _ Reranker = (*NoOpReranker)(nil)

// RerankChunks fetches chunk_ids' texts (preserving order), scores the
// (query, text) pairs through reranker, applies a length penalty to
// short texts, drops pairs below scoreThreshold, and returns the
// surviving chunk IDs sorted descending by adjusted score, truncated to
// topK.
func RerankChunks(ctx context.Context, reranker Reranker, query string, chunkIDs []string, metadata store.MetadataStore, topK int, minLength int, scoreThreshold float64) ([]EngineHit, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}
	if minLength <= 0 {
		minLength = DefaultRerankerMinLength
	}

	chunks, err := metadata.GetChunks(ctx, chunkIDs)
	if err != nil {
		return nil, err
	}
	chunksByID := make(map[string]string, len(chunks))
	for _, c := range chunks {
		chunksByID[c.ChunkID] = c.Text
	}

	orderedIDs := make([]string, 0, len(chunkIDs))
	texts := make([]string, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		text, ok := chunksByID[id]
		if !ok {
			continue
		}
		orderedIDs = append(orderedIDs, id)
		texts = append(texts, text)
	}

	scored, err := reranker.Rerank(ctx, query, texts, 0)
	if err != nil {
		return nil, err
	}

	hits := make([]EngineHit, 0, len(scored))
	for _, r := range scored {
		id := orderedIDs[r.Index]
		text := texts[r.Index]

		score := r.Score
		if len(text) < minLength {
			score *= 0.5 + 0.5*(float64(len(text))/float64(minLength))
		}
		if score < scoreThreshold {
			continue
		}
		hits = append(hits, EngineHit{ChunkID: id, Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if topK > 0 && topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}
