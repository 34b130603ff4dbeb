package search

import (
	"context"
	"strings"

	"github.com/inventivepotter/dotmd/internal/embed"
	"github.com/inventivepotter/dotmd/internal/store"
)

// SemanticSearch runs the dense-vector engine: encode the query through the
// lazily-loaded embedding model, then search the vector store. The vector
// store reports similarity as 1/(1+distance) for its native distance
// metric, so scores here are already in that space.
func SemanticSearch(ctx context.Context, vector store.VectorStore, embedder embed.Embedder, query string, topK int) ([]EngineHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	scores, err := vector.Search(ctx, vec, topK)
	if err != nil {
		return nil, err
	}

	out := make([]EngineHit, len(scores))
	for i, s := range scores {
		out[i] = EngineHit{ChunkID: s.ChunkID, Score: s.Score}
	}
	return out, nil
}
