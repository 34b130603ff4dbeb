package search

import (
	"context"
	"sort"

	"github.com/inventivepotter/dotmd/internal/store"
)

// DefaultGraphMaxHops is the default traversal radius from a seed chunk.
const DefaultGraphMaxHops = 2

// GraphSearch runs the knowledge-graph engine: for each seed chunk, walk its
// neighbors up to maxHops away (intended to reach other sections via
// Section -> Entity -> Section) and accumulate edge weight per neighbor
// across all seeds. The query text itself is unused; seeds are mandatory,
// and an empty seed set yields no results. Seeds are dropped from the
// output so fusion never double-counts them, and any neighbor that is not
// a valid chunk ID (an entity or file node) is filtered out.
func GraphSearch(ctx context.Context, graph store.GraphStore, metadata store.MetadataStore, seedChunkIDs []string, topK int, maxHops int) ([]EngineHit, error) {
	if len(seedChunkIDs) == 0 {
		return nil, nil
	}
	if maxHops <= 0 {
		maxHops = DefaultGraphMaxHops
	}

	seeds := make(map[string]struct{}, len(seedChunkIDs))
	for _, id := range seedChunkIDs {
		seeds[id] = struct{}{}
	}

	scores := make(map[string]float64)
	var order []string
	seen := make(map[string]struct{})

	for _, seed := range seedChunkIDs {
		neighbors, err := graph.GetNeighbors(ctx, seed, maxHops)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if _, isSeed := seeds[n.NodeID]; isSeed {
				continue
			}
			scores[n.NodeID] += n.Weight
			if _, ok := seen[n.NodeID]; !ok {
				seen[n.NodeID] = struct{}{}
				order = append(order, n.NodeID)
			}
		}
	}

	hits := make([]EngineHit, 0, len(order))
	for _, id := range order {
		chunk, err := metadata.GetChunk(ctx, id)
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			continue
		}
		hits = append(hits, EngineHit{ChunkID: id, Score: scores[id]})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if topK > 0 && topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}
