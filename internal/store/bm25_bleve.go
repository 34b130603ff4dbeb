package store

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/stop"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	_ "github.com/blevesearch/bleve/v2/analysis/tokenmap"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"

	"github.com/inventivepotter/dotmd/internal/textutil"
)

const canonAnalyzerName = "dotmd_canon"

// bm25Document is the bleve document shape: a chunk's searchable text.
type bm25Document struct {
	Text string `json:"text"`
}

// BleveBM25Index implements BM25Index with a bleve index. Its analyzer is
// registered to share the noise-word list in internal/textutil, so BM25
// scoring and the TF-IDF/query-expansion code paths never disagree on
// which terms are noise.
type BleveBM25Index struct {
	mu    sync.RWMutex
	index bleve.Index
}

// OpenBleveBM25Index opens (creating if absent) a bleve index at path. An
// empty path opens an in-memory index, used by tests.
func OpenBleveBM25Index(path string) (*BleveBM25Index, error) {
	im := buildIndexMapping()

	if path == "" {
		idx, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("create in-memory bm25 index: %w", err)
		}
		return &BleveBM25Index{index: idx}, nil
	}

	if _, err := os.Stat(path); err == nil {
		idx, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open bm25 index: %w", err)
		}
		return &BleveBM25Index{index: idx}, nil
	}

	idx, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("create bm25 index: %w", err)
	}
	return &BleveBM25Index{index: idx}, nil
}

// buildIndexMapping registers the canonical analyzer (unicode word
// boundaries, lowercased, noise words dropped) and applies it to the
// single "text" field every chunk document carries.
func buildIndexMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	stopWordsList := make([]interface{}, 0, len(textutil.NoiseWords))
	for _, w := range textutil.NoiseWords {
		stopWordsList = append(stopWordsList, w)
	}

	if err := im.AddCustomTokenMap("dotmd_stop_words", map[string]interface{}{
		"type":   "custom",
		"tokens": stopWordsList,
	}); err != nil {
		panic(fmt.Sprintf("register stop word list: %v", err))
	}

	if err := im.AddCustomTokenFilter("dotmd_stop_filter", map[string]interface{}{
		"type":           stop.Name,
		"stop_token_map": "dotmd_stop_words",
	}); err != nil {
		panic(fmt.Sprintf("register stop filter: %v", err))
	}

	if err := im.AddCustomAnalyzer(canonAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
			"dotmd_stop_filter",
		},
	}); err != nil {
		panic(fmt.Sprintf("register canon analyzer: %v", err))
	}

	im.DefaultAnalyzer = canonAnalyzerName

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = canonAnalyzerName

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("text", textField)
	im.DefaultMapping = docMapping

	return im
}

func (b *BleveBM25Index) Index(ctx context.Context, chunkID, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.index.Index(chunkID, bm25Document{Text: text}); err != nil {
		return fmt.Errorf("index chunk %s: %w", chunkID, err)
	}
	return nil
}

func (b *BleveBM25Index) Search(ctx context.Context, query string, topK int) ([]BM25Hit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if topK <= 0 {
		topK = 10
	}

	q := bleve.NewMatchQuery(query)
	q.SetField("text")
	req := bleve.NewSearchRequestOptions(q, topK, 0, false)
	req.IncludeLocations = true

	result, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bm25 search: %w", err)
	}

	hits := make([]BM25Hit, 0, len(result.Hits))
	for _, h := range result.Hits {
		hits = append(hits, BM25Hit{
			ChunkID:      h.ID,
			Score:        h.Score,
			MatchedTerms: matchedTermsFrom(h),
		})
	}
	return hits, nil
}

func matchedTermsFrom(h *search.DocumentMatch) []string {
	var terms []string
	seen := map[string]struct{}{}
	for _, termLocations := range h.Locations {
		for term := range termLocations {
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				terms = append(terms, term)
			}
		}
	}
	return terms
}

func (b *BleveBM25Index) DeleteAll(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	count, err := b.index.DocCount()
	if err != nil {
		return fmt.Errorf("count bm25 docs: %w", err)
	}
	if count == 0 {
		return nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
	result, err := b.index.Search(req)
	if err != nil {
		return fmt.Errorf("list bm25 docs: %w", err)
	}

	batch := b.index.NewBatch()
	for _, h := range result.Hits {
		batch.Delete(h.ID)
	}
	return b.index.Batch(batch)
}

func (b *BleveBM25Index) Count(ctx context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n, err := b.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("count bm25 docs: %w", err)
	}
	return int(n), nil
}

func (b *BleveBM25Index) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Close()
}

var _ BM25Index = (*BleveBM25Index)(nil)
