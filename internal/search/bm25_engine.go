package search

import (
	"context"
	"strings"

	"github.com/inventivepotter/dotmd/internal/store"
)

// BM25Search runs the lexical engine: tokenize is delegated to the index
// itself, so an empty (post-trim) query short-circuits to no results, and
// non-positive scores are dropped before ranking.
func BM25Search(ctx context.Context, index store.BM25Index, query string, topK int) ([]EngineHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	hits, err := index.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	out := make([]EngineHit, 0, len(hits))
	for _, h := range hits {
		if h.Score <= 0 {
			continue
		}
		out = append(out, EngineHit{ChunkID: h.ChunkID, Score: h.Score})
	}
	return out, nil
}
