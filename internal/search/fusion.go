// Package search implements the three retrieval engines (semantic, BM25,
// graph), fuses their output with Reciprocal Rank Fusion, and hydrates the
// fused chunk IDs into snippet-bearing SearchResult records.
package search

import (
	"context"
	"sort"
	"strings"

	"github.com/inventivepotter/dotmd/internal/model"
	"github.com/inventivepotter/dotmd/internal/store"
	"github.com/inventivepotter/dotmd/internal/textutil"
)

// DefaultRRFConstant is the standard RRF smoothing parameter. k=60 is the
// conventional default shared by most hybrid search implementations.
const DefaultRRFConstant = 60

// EngineHit is one engine's scored result for a chunk.
type EngineHit struct {
	ChunkID string
	Score   float64
}

// RankedLists maps engine name ("semantic", "bm25", "graph") to that
// engine's descending-score result list. An absent or empty list means the
// engine was not run, or ran and found nothing; fusion treats both the same.
type RankedLists map[string][]EngineHit

// engineOrder fixes iteration order over RankedLists so FuseResults never
// depends on map iteration order.
var engineOrder = []string{"semantic", "bm25", "graph"}

// FuseResults merges per-engine ranked lists by Reciprocal Rank Fusion:
//
//	rrf(c) = Σ 1 / (k + rank_in_engine(c))
//
// rank is 1-based within each engine's own list; a chunk absent from an
// engine's list contributes nothing for that engine. Ties in fused score
// are broken by first-seen order across engines, matching a stable sort.
func FuseResults(lists RankedLists, k int) []EngineHit {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	scores := make(map[string]float64)
	var order []string
	seen := make(map[string]struct{})

	for _, engine := range engineOrder {
		for rank0, hit := range lists[engine] {
			rank := rank0 + 1
			scores[hit.ChunkID] += 1.0 / float64(k+rank)
			if _, ok := seen[hit.ChunkID]; !ok {
				seen[hit.ChunkID] = struct{}{}
				order = append(order, hit.ChunkID)
			}
		}
	}

	fused := make([]EngineHit, len(order))
	for i, id := range order {
		fused[i] = EngineHit{ChunkID: id, Score: scores[id]}
	}

	sort.SliceStable(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })
	return fused
}

const defaultSnippetLength = 300

// BuildSearchResults hydrates fused chunk IDs into full SearchResult
// records: it batch-fetches chunk metadata, computes a best-window
// snippet per chunk, and attributes each chunk's per-engine scores.
func BuildSearchResults(ctx context.Context, fused []EngineHit, perEngine RankedLists, metadataStore store.MetadataStore, query string, topK int, snippetLength int) ([]model.SearchResult, error) {
	if snippetLength <= 0 {
		snippetLength = defaultSnippetLength
	}
	if topK < 0 || topK > len(fused) {
		topK = len(fused)
	}
	top := fused[:topK]

	engineScores := make(map[string]map[string]float64, len(perEngine))
	for engine, hits := range perEngine {
		m := make(map[string]float64, len(hits))
		for _, h := range hits {
			m[h.ChunkID] = h.Score
		}
		engineScores[engine] = m
	}

	ids := make([]string, len(top))
	for i, h := range top {
		ids[i] = h.ChunkID
	}

	chunks, err := metadataStore.GetChunks(ctx, ids)
	if err != nil {
		return nil, err
	}
	chunksByID := make(map[string]model.Chunk, len(chunks))
	for _, c := range chunks {
		chunksByID[c.ChunkID] = c
	}

	results := make([]model.SearchResult, 0, len(top))
	for _, hit := range top {
		chunk, ok := chunksByID[hit.ChunkID]
		if !ok {
			continue
		}

		result := model.SearchResult{
			ChunkID:     hit.ChunkID,
			FilePath:    chunk.FilePath,
			HeadingPath: strings.Join(chunk.HeadingHierarchy, " > "),
			Snippet:     ExtractBestSnippet(chunk.Text, query, snippetLength),
			FusedScore:  hit.Score,
		}

		var matched []string
		if s, ok := engineScores["semantic"][hit.ChunkID]; ok {
			v := s
			result.SemanticScore = &v
			matched = append(matched, "semantic")
		}
		if s, ok := engineScores["bm25"][hit.ChunkID]; ok {
			v := s
			result.BM25Score = &v
			matched = append(matched, "bm25")
		}
		if s, ok := engineScores["graph"][hit.ChunkID]; ok {
			v := s
			result.GraphScore = &v
			matched = append(matched, "graph")
		}
		sort.Strings(matched)
		result.MatchedEngines = matched

		results = append(results, result)
	}

	return results, nil
}

// ExtractBestSnippet finds the length-char window of text with the most
// query-term overlap, sliding on word boundaries. Falls back to a
// word-aware truncation from the start when the query has no tokens.
func ExtractBestSnippet(text, query string, length int) string {
	if len(text) <= length {
		return text
	}

	queryTokens := textutil.BuildSet(textutil.Tokenize(query))
	if len(queryTokens) == 0 {
		return wordAwareTruncate(text, length)
	}

	bestScore := -1
	bestStart := 0

	for _, start := range wordStartPositions(text) {
		end := start + length
		if end > len(text) {
			start = len(text) - length
			if start < 0 {
				start = 0
			}
			end = len(text)
		}

		window := strings.ToLower(text[start:end])
		score := 0
		for t := range queryTokens {
			if strings.Contains(window, t) {
				score++
			}
		}

		if score > bestScore {
			bestScore = score
			bestStart = start
		}

		if end >= len(text) {
			break
		}
	}

	snippetEnd := bestStart + length
	if snippetEnd > len(text) {
		snippetEnd = len(text)
	}
	snippet := text[bestStart:snippetEnd]

	prefix := ""
	if bestStart > 0 {
		prefix = "..."
	}
	suffix := ""
	if snippetEnd < len(text) {
		suffix = "..."
		if lastSpace := strings.LastIndexByte(snippet, ' '); lastSpace > int(float64(len(snippet))*0.8) {
			snippet = snippet[:lastSpace]
		}
	}

	return prefix + snippet + suffix
}

func wordAwareTruncate(text string, length int) string {
	if length > len(text) {
		length = len(text)
	}
	truncated := text[:length]
	if lastSpace := strings.LastIndexByte(truncated, ' '); lastSpace > int(float64(length)*0.8) {
		return truncated[:lastSpace] + "..."
	}
	return truncated + "..."
}

// wordStartPositions returns the byte offset of each whitespace-delimited
// word in text, used to slide the snippet window on word boundaries.
func wordStartPositions(text string) []int {
	var starts []int
	inWord := false
	for i, r := range text {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if !isSpace && !inWord {
			starts = append(starts, i)
			inWord = true
		} else if isSpace {
			inWord = false
		}
	}
	if len(starts) == 0 {
		starts = append(starts, 0)
	}
	return starts
}
