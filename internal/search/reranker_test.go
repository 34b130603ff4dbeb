package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inventivepotter/dotmd/internal/model"
)

func TestNoOpReranker_Rerank_PreservesOrderWithDecreasingScores(t *testing.T) {
	reranker := &NoOpReranker{}
	results, err := reranker.Rerank(context.Background(), "query", []string{"doc1", "doc2", "doc3"}, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "doc1", results[0].Document)
	assert.InDelta(t, 1.0, results[0].Score, 0.001)
	assert.Equal(t, "doc2", results[1].Document)
	assert.InDelta(t, 0.99, results[1].Score, 0.001)
	assert.Equal(t, "doc3", results[2].Document)
	assert.InDelta(t, 0.98, results[2].Score, 0.001)
}

func TestNoOpReranker_Rerank_TopKTruncates(t *testing.T) {
	reranker := &NoOpReranker{}
	documents := []string{"doc1", "doc2", "doc3", "doc4", "doc5"}

	results, err := reranker.Rerank(context.Background(), "query", documents, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"doc1", "doc2", "doc3"}, []string{results[0].Document, results[1].Document, results[2].Document})
}

func TestNoOpReranker_Rerank_TopKZeroOrOverLenReturnsAll(t *testing.T) {
	reranker := &NoOpReranker{}

	results, err := reranker.Rerank(context.Background(), "query", []string{"doc1", "doc2", "doc3"}, 0)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	results, err = reranker.Rerank(context.Background(), "query", []string{"doc1", "doc2"}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestNoOpReranker_Rerank_EmptyDocuments(t *testing.T) {
	reranker := &NoOpReranker{}
	results, err := reranker.Rerank(context.Background(), "query", []string{}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNoOpReranker_AvailableAndClose(t *testing.T) {
	reranker := &NoOpReranker{}
	assert.True(t, reranker.Available(context.Background()))
	assert.NoError(t, reranker.Close())
}

var _ Reranker = (*NoOpReranker)(nil)

// scriptedReranker returns a fixed score per document text, keyed by the
// text itself, so tests can assert RerankChunks' own bookkeeping (length
// penalty, threshold, ordering, topK) independent of any real scoring model.
type scriptedReranker struct {
	scores map[string]float64
}

func (s *scriptedReranker) Rerank(_ context.Context, _ string, documents []string, _ int) ([]RerankResult, error) {
	results := make([]RerankResult, len(documents))
	for i, doc := range documents {
		results[i] = RerankResult{Index: i, Score: s.scores[doc], Document: doc}
	}
	return results, nil
}

func (s *scriptedReranker) Available(_ context.Context) bool { return true }
func (s *scriptedReranker) Close() error                     { return nil }

var _ Reranker = (*scriptedReranker)(nil)

func TestRerankChunks_NoIDsReturnsNil(t *testing.T) {
	hits, err := RerankChunks(context.Background(), &scriptedReranker{}, "q", nil, newFakeMetadataStore(), 0, 0, -8.0)
	require.NoError(t, err)
	assert.Nil(t, hits)
}

func TestRerankChunks_AppliesLengthPenaltyToShortText(t *testing.T) {
	shortText := "0123456789" // 10 runes, well under minLength
	ms := newFakeMetadataStore(model.Chunk{ChunkID: "c1", Text: shortText})
	reranker := &scriptedReranker{scores: map[string]float64{shortText: 1.0}}

	hits, err := RerankChunks(context.Background(), reranker, "q", []string{"c1"}, ms, 0, 100, -8.0)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	// 1.0 * (0.5 + 0.5*(10/100)) = 0.55
	assert.InDelta(t, 0.55, hits[0].Score, 1e-9)
}

func TestRerankChunks_TextAtOrAboveMinLengthUnpenalized(t *testing.T) {
	longText := make([]byte, 100)
	for i := range longText {
		longText[i] = 'a'
	}
	ms := newFakeMetadataStore(model.Chunk{ChunkID: "c1", Text: string(longText)})
	reranker := &scriptedReranker{scores: map[string]float64{string(longText): 0.7}}

	hits, err := RerankChunks(context.Background(), reranker, "q", []string{"c1"}, ms, 0, 100, -8.0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 0.7, hits[0].Score, 1e-9)
}

func TestRerankChunks_DropsBelowScoreThreshold(t *testing.T) {
	ms := newFakeMetadataStore(
		model.Chunk{ChunkID: "keep", Text: "well above the minimum length for this particular test case to avoid penalty"},
		model.Chunk{ChunkID: "drop", Text: "well above the minimum length for this particular test case to avoid penalty too"},
	)
	reranker := &scriptedReranker{scores: map[string]float64{
		"well above the minimum length for this particular test case to avoid penalty":      -1.0,
		"well above the minimum length for this particular test case to avoid penalty too":  -9.0,
	}}

	hits, err := RerankChunks(context.Background(), reranker, "q", []string{"keep", "drop"}, ms, 0, 50, -8.0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "keep", hits[0].ChunkID)
}

func TestRerankChunks_OrdersDescendingAndTruncatesTopK(t *testing.T) {
	ms := newFakeMetadataStore(
		model.Chunk{ChunkID: "low", Text: "text long enough to not trip the length penalty at all in this test"},
		model.Chunk{ChunkID: "high", Text: "another text long enough to not trip the length penalty in this test"},
		model.Chunk{ChunkID: "mid", Text: "yet another text long enough to not trip the length penalty in this test"},
	)
	reranker := &scriptedReranker{scores: map[string]float64{
		"text long enough to not trip the length penalty at all in this test":          0.1,
		"another text long enough to not trip the length penalty in this test":         0.9,
		"yet another text long enough to not trip the length penalty in this test":      0.5,
	}}

	hits, err := RerankChunks(context.Background(), reranker, "q", []string{"low", "high", "mid"}, ms, 2, 50, -8.0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, []string{"high", "mid"}, []string{hits[0].ChunkID, hits[1].ChunkID})
}

func TestRerankChunks_UnknownChunkIDsSilentlySkipped(t *testing.T) {
	ms := newFakeMetadataStore(model.Chunk{ChunkID: "c1", Text: "text long enough to not trip the length penalty in this test case"})
	reranker := &scriptedReranker{scores: map[string]float64{
		"text long enough to not trip the length penalty in this test case": 0.42,
	}}

	hits, err := RerankChunks(context.Background(), reranker, "q", []string{"c1", "missing"}, ms, 0, 50, -8.0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].ChunkID)
}
