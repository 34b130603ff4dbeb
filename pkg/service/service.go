// Package service wires the chunker, the three search engines, fusion,
// expansion, and reranking behind four operations (index, search, status,
// clear) and is the only thing cmd/dotmd calls into.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/inventivepotter/dotmd/internal/config"
	"github.com/inventivepotter/dotmd/internal/embed"
	dotmderrors "github.com/inventivepotter/dotmd/internal/errors"
	"github.com/inventivepotter/dotmd/internal/extract"
	"github.com/inventivepotter/dotmd/internal/index"
	"github.com/inventivepotter/dotmd/internal/model"
	"github.com/inventivepotter/dotmd/internal/search"
	"github.com/inventivepotter/dotmd/internal/store"
)

// Mode selects which engines contribute to a search.
type Mode string

const (
	ModeSemantic Mode = "semantic"
	ModeBM25     Mode = "bm25"
	ModeGraph    Mode = "graph"
	ModeHybrid   Mode = "hybrid"
)

const acronymsFileName = "acronyms.json"

// Stores bundles the three storage protocols the facade reads and writes
// through. Callers own opening and closing them.
type Stores struct {
	Metadata store.MetadataStore
	Vector   store.VectorStore
	BM25     store.BM25Index
	Graph    store.GraphStore
}

// SearchOptions configures a single search() call.
type SearchOptions struct {
	Query  string
	TopK   int
	Mode   Mode
	Rerank bool
	Expand bool
}

// Service is the retrieval core's facade. It is single-writer and
// multi-reader: Index holds an advisory file lock for the duration of the
// run, while Search and Status never block on it.
type Service struct {
	cfg    *config.Config
	stores Stores

	embedder embed.Embedder
	reranker search.Reranker

	lock *embed.FileLock

	mu       sync.RWMutex
	acronyms extract.AcronymDictionary
}

// New constructs a Service. The embedder and reranker are external model
// collaborators; reranker may be nil if rerank is never requested.
func New(cfg *config.Config, stores Stores, embedder embed.Embedder, reranker search.Reranker) *Service {
	return &Service{
		cfg:      cfg,
		stores:   stores,
		embedder: embedder,
		reranker: reranker,
		lock:     embed.NewFileLock(cfg.IndexDir),
		acronyms: loadAcronyms(cfg.IndexDir),
	}
}

// Index runs a full reindex, the system's only write path. It refuses to
// run when the config is opened read-only, and holds an advisory lock for
// the duration so no second writer runs against a half-built index.
func (s *Service) Index(ctx context.Context) (model.IndexStats, error) {
	if s.cfg.ReadOnly {
		return model.IndexStats{}, dotmderrors.New(dotmderrors.ErrCodeConfigInvalid,
			"index() called on a read-only service", nil)
	}

	locked, err := s.lock.TryLock()
	if err != nil {
		return model.IndexStats{}, dotmderrors.Wrap(dotmderrors.ErrCodeStorageBackendFailure, err)
	}
	if !locked {
		return model.IndexStats{}, dotmderrors.New(dotmderrors.ErrCodeStorageBackendFailure,
			"another index() is already running", nil)
	}
	defer s.lock.Unlock()

	pipeline, err := index.New(s.cfg, index.Dependencies{
		Metadata: s.stores.Metadata,
		Vector:   s.stores.Vector,
		BM25:     s.stores.BM25,
		Graph:    s.stores.Graph,
		Embedder: s.embedder,
	})
	if err != nil {
		return model.IndexStats{}, err
	}

	result, err := pipeline.Run(ctx)
	if err != nil {
		return model.IndexStats{}, err
	}

	if err := saveAcronyms(s.cfg.IndexDir, result.Acronyms); err != nil {
		slog.Warn("acronym_dictionary_save_failed", slog.String("error", err.Error()))
	}
	s.mu.Lock()
	s.acronyms = result.Acronyms
	s.mu.Unlock()

	return result.Stats, nil
}

// Search fuses the engines selected by mode, optionally expanding the
// query first and reranking the fused pool. An absent index is not an
// error: every engine call against empty stores returns no hits.
func (s *Service) Search(ctx context.Context, opts SearchOptions) ([]model.SearchResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}
	mode := opts.Mode
	if mode == "" {
		mode = ModeHybrid
	}

	queryText := opts.Query
	if opts.Expand {
		s.mu.RLock()
		acronyms := s.acronyms
		s.mu.RUnlock()
		expander := search.NewQueryExpander(acronyms, s.stores.Metadata, s.cfg.FuzzyThreshold)
		expanded, err := expander.Expand(ctx, opts.Query)
		if err != nil {
			return nil, dotmderrors.Wrap(dotmderrors.ErrCodeStorageBackendFailure, err)
		}
		queryText = expanded.ExpandedText
	}

	poolSize := topK
	if opts.Rerank {
		poolSize = s.cfg.RerankPoolSize
		if poolSize < topK {
			poolSize = topK
		}
	}

	lists, err := s.runEngines(ctx, queryText, mode, poolSize)
	if err != nil {
		return nil, err
	}

	fused := search.FuseResults(lists, s.cfg.FusionK)

	if opts.Rerank && s.reranker != nil {
		ids := make([]string, 0, len(fused))
		for _, h := range fused {
			if len(ids) >= poolSize {
				break
			}
			ids = append(ids, h.ChunkID)
		}
		reranked, err := search.RerankChunks(ctx, s.reranker, queryText, ids, s.stores.Metadata,
			topK, s.cfg.RerankerMinLength, s.cfg.RerankerScoreThresh)
		if err != nil {
			return nil, dotmderrors.Wrap(dotmderrors.ErrCodeSearchFailed, err)
		}
		fused = reranked
		topK = len(fused)
	}

	results, err := search.BuildSearchResults(ctx, fused, lists, s.stores.Metadata, queryText, topK, s.cfg.SnippetLength)
	if err != nil {
		return nil, dotmderrors.Wrap(dotmderrors.ErrCodeStorageBackendFailure, err)
	}
	return results, nil
}

// runEngines runs the engines required by mode. Semantic and BM25 never
// depend on each other so they run in parallel; graph depends only on
// their combined output as seeds.
func (s *Service) runEngines(ctx context.Context, query string, mode Mode, poolSize int) (search.RankedLists, error) {
	lists := make(search.RankedLists)

	runSemanticBM25 := func() (semantic, bm25 []search.EngineHit, err error) {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			hits, err := search.SemanticSearch(gctx, s.stores.Vector, s.embedder, query, poolSize)
			if err != nil {
				return err
			}
			semantic = hits
			return nil
		})
		g.Go(func() error {
			hits, err := search.BM25Search(gctx, s.stores.BM25, query, poolSize)
			if err != nil {
				return err
			}
			bm25 = hits
			return nil
		})
		err = g.Wait()
		return
	}

	switch mode {
	case ModeSemantic:
		hits, err := search.SemanticSearch(ctx, s.stores.Vector, s.embedder, query, poolSize)
		if err != nil {
			return nil, dotmderrors.Wrap(dotmderrors.ErrCodeSearchFailed, err)
		}
		lists["semantic"] = hits

	case ModeBM25:
		hits, err := search.BM25Search(ctx, s.stores.BM25, query, poolSize)
		if err != nil {
			return nil, dotmderrors.Wrap(dotmderrors.ErrCodeSearchFailed, err)
		}
		lists["bm25"] = hits

	case ModeGraph:
		semantic, bm25, err := runSemanticBM25()
		if err != nil {
			return nil, dotmderrors.Wrap(dotmderrors.ErrCodeSearchFailed, err)
		}
		seeds := seedIDs(semantic, bm25)
		graphHits, err := search.GraphSearch(ctx, s.stores.Graph, s.stores.Metadata, seeds, poolSize, s.cfg.GraphMaxHops)
		if err != nil {
			return nil, dotmderrors.Wrap(dotmderrors.ErrCodeSearchFailed, err)
		}
		lists["graph"] = graphHits

	case ModeHybrid:
		semantic, bm25, err := runSemanticBM25()
		if err != nil {
			return nil, dotmderrors.Wrap(dotmderrors.ErrCodeSearchFailed, err)
		}
		lists["semantic"] = semantic
		lists["bm25"] = bm25

		seeds := seedIDs(semantic, bm25)
		graphHits, err := search.GraphSearch(ctx, s.stores.Graph, s.stores.Metadata, seeds, poolSize, s.cfg.GraphMaxHops)
		if err != nil {
			return nil, dotmderrors.Wrap(dotmderrors.ErrCodeSearchFailed, err)
		}
		lists["graph"] = graphHits

	default:
		return nil, dotmderrors.New(dotmderrors.ErrCodeInvalidInput, fmt.Sprintf("unknown search mode %q", mode), nil)
	}

	return lists, nil
}

// seedIDs unions the semantic and BM25 chunk IDs as the graph engine's
// traversal seeds, deduplicated and order-stable.
func seedIDs(lists ...[]search.EngineHit) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, list := range lists {
		for _, hit := range list {
			if _, ok := seen[hit.ChunkID]; !ok {
				seen[hit.ChunkID] = struct{}{}
				ids = append(ids, hit.ChunkID)
			}
		}
	}
	return ids
}

// Status returns the persisted IndexStats, or nil if no index has been
// built.
func (s *Service) Status(ctx context.Context) (*model.IndexStats, error) {
	stats, err := s.stores.Metadata.GetStats(ctx)
	if err != nil {
		return nil, dotmderrors.Wrap(dotmderrors.ErrCodeStorageBackendFailure, err)
	}
	return stats, nil
}

// Clear wipes all three stores and the acronym dictionary.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.stores.Metadata.DeleteAll(ctx); err != nil {
		return dotmderrors.Wrap(dotmderrors.ErrCodeStorageBackendFailure, err)
	}
	if err := s.stores.Vector.DeleteAll(ctx); err != nil {
		return dotmderrors.Wrap(dotmderrors.ErrCodeStorageBackendFailure, err)
	}
	if err := s.stores.BM25.DeleteAll(ctx); err != nil {
		return dotmderrors.Wrap(dotmderrors.ErrCodeStorageBackendFailure, err)
	}
	if err := s.stores.Graph.DeleteAll(ctx); err != nil {
		return dotmderrors.Wrap(dotmderrors.ErrCodeStorageBackendFailure, err)
	}

	s.mu.Lock()
	s.acronyms = extract.AcronymDictionary{}
	s.mu.Unlock()
	_ = os.Remove(filepath.Join(s.cfg.IndexDir, acronymsFileName))

	return nil
}

func loadAcronyms(indexDir string) extract.AcronymDictionary {
	data, err := os.ReadFile(filepath.Join(indexDir, acronymsFileName))
	if err != nil {
		return extract.AcronymDictionary{}
	}
	var dict extract.AcronymDictionary
	if err := json.Unmarshal(data, &dict); err != nil {
		return extract.AcronymDictionary{}
	}
	return dict
}

func saveAcronyms(indexDir string, dict extract.AcronymDictionary) error {
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(dict, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(indexDir, acronymsFileName), data, 0o644)
}

