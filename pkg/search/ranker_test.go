package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgrail/kgrail/pkg/graph"
	"github.com/kgrail/kgrail/pkg/types"
)

func candidate(id, docID, docType, content string, sim float64) types.ScoredChunk {
	return types.ScoredChunk{
		Chunk: types.Chunk{
			ChunkID:    id,
			DocID:      docID,
			Content:    content,
			SourcePath: "docs/" + docID + ".md",
			DocType:    docType,
		},
		Similarity: sim,
	}
}

func TestRankReferenceCatalogIntentBoost(t *testing.T) {
	candidates := []types.ScoredChunk{
		candidate("t1", "doc-ts1", "TROUBLESHOOT", "fixing upload failures", 0.80),
		candidate("t2", "doc-ts2", "TROUBLESHOOT", "network troubleshooting", 0.79),
		candidate("t3", "doc-ts3", "TROUBLESHOOT", "login problems", 0.78),
		candidate("ref", "doc-ref", "REFERENCE", "complete table of error codes", 0.70),
	}
	result := NewRanker().Rank(context.Background(), "List all error codes for ToolX", candidates, Options{MaxResults: 5})

	require.NotEmpty(t, result.ContextChunks)
	found := false
	for _, c := range result.ContextChunks {
		if c.ChunkID == "ref" {
			found = true
		}
	}
	assert.True(t, found, "REFERENCE candidate must rank in the top results")
	// reference_catalog is high-confidence: feature 1.5, boost 1+(0.7*1.5).
	assert.Equal(t, "ref", result.ContextChunks[0].ChunkID)
}

func TestRankErrorCodeExactMatchDoubles(t *testing.T) {
	candidates := []types.ScoredChunk{
		candidate("a", "d1", "UNKNOWN", "generic text with no codes", 0.6),
		candidate("b", "d2", "UNKNOWN", "resolution for AUTH401 failures", 0.5),
	}
	result := NewRanker().Rank(context.Background(), "AUTH401", candidates, Options{})
	require.Len(t, result.ContextChunks, 2)
	assert.Equal(t, "b", result.ContextChunks[0].ChunkID)
}

func TestRankImageDeboost(t *testing.T) {
	img := candidate("img", "d1", "UNKNOWN", "zzqy", 0.6)
	img.IsImageDesc = true
	img.ImageID = "img-7"
	text := candidate("txt", "d2", "UNKNOWN", "zzqy", 0.6)

	result := NewRanker().Rank(context.Background(), "zzqy", []types.ScoredChunk{img, text}, Options{})
	require.Len(t, result.ContextChunks, 2)
	assert.Equal(t, "txt", result.ContextChunks[0].ChunkID)
	require.Len(t, result.ImageNotes, 1)
	assert.Contains(t, result.ImageNotes[0], "img-7")
}

func TestRankTroubleshootDeboostForCapabilityIntent(t *testing.T) {
	ts := candidate("ts", "d1", "TROUBLESHOOT", "preview failures", 0.9)
	guide := candidate("g", "d2", "USER_GUIDE", "preview support matrix", 0.75)
	result := NewRanker().Rank(context.Background(), "which files can I preview", []types.ScoredChunk{ts, guide}, Options{})
	require.Len(t, result.ContextChunks, 2)
	assert.Equal(t, "g", result.ContextChunks[0].ChunkID)
}

func TestRankDedupPerDocument(t *testing.T) {
	candidates := []types.ScoredChunk{
		candidate("c1", "doc1", "UNKNOWN", "alpha", 0.9),
		candidate("c2", "doc1", "UNKNOWN", "beta", 0.8),
		candidate("c3", "doc2", "UNKNOWN", "gamma", 0.7),
	}
	result := NewRanker().Rank(context.Background(), "query", candidates, Options{MaxResults: 5})
	require.Len(t, result.ContextChunks, 2)
	assert.Equal(t, "c1", result.ContextChunks[0].ChunkID)
	assert.Equal(t, "c3", result.ContextChunks[1].ChunkID)
}

func TestRankMaxResults(t *testing.T) {
	var candidates []types.ScoredChunk
	for i := 0; i < 10; i++ {
		candidates = append(candidates, candidate(
			string(rune('a'+i)), "doc"+string(rune('a'+i)), "UNKNOWN", "content", 0.9-float64(i)*0.01))
	}
	result := NewRanker().Rank(context.Background(), "query", candidates, Options{MaxResults: 3})
	assert.Len(t, result.ContextChunks, 3)
}

func TestRankConfidence(t *testing.T) {
	result := NewRanker().Rank(context.Background(), "query", []types.ScoredChunk{
		candidate("c1", "d1", "UNKNOWN", "x", 0.9),
		candidate("c2", "d2", "UNKNOWN", "y", 0.8),
	}, Options{})
	assert.InDelta(t, 0.7, result.Confidence, 1e-9)

	empty := NewRanker().Rank(context.Background(), "query", nil, Options{})
	assert.InDelta(t, 0.15, empty.Confidence, 1e-9)
	assert.Empty(t, empty.ContextChunks)
}

func TestRankConfidenceCapped(t *testing.T) {
	var candidates []types.ScoredChunk
	for i := 0; i < 8; i++ {
		id := string(rune('a' + i))
		candidates = append(candidates, candidate(id, "doc"+id, "UNKNOWN", "c", 0.5))
	}
	result := NewRanker().Rank(context.Background(), "query", candidates, Options{MaxResults: 8})
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
}

func TestRankToolFilter(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.UpsertNode("doc:d1", types.NodeDocument, map[string]any{
		"title": "Upload Guide",
		"path":  "docs/d1.md",
		"tags":  []any{"uploads", "storage"},
	}))
	require.NoError(t, g.UpsertNode("doc:d2", types.NodeDocument, map[string]any{
		"title": "Other Guide",
		"path":  "docs/d2.md",
	}))
	require.NoError(t, g.UpsertNode("tool:uploader", types.NodeTool, map[string]any{"name": "uploader"}))
	require.NoError(t, g.UpsertEdge("doc:d1", "tool:uploader", types.EdgeMentions))

	r := NewRanker()
	r.Graph = g
	result := r.Rank(context.Background(), "query", []types.ScoredChunk{
		candidate("c1", "d1", "UNKNOWN", "a", 0.9),
		candidate("c2", "d2", "UNKNOWN", "b", 0.8),
	}, Options{ToolFilter: "uploader"})

	require.Len(t, result.ContextChunks, 1)
	assert.Equal(t, "c1", result.ContextChunks[0].ChunkID)
	assert.Equal(t, []string{"storage", "uploads"}, result.RelatedTopics)
}

func TestRankGraphBoost(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.UpsertNode("doc:d1", types.NodeDocument, map[string]any{
		"title": "Retry Logic", "path": "docs/d1.md",
	}))
	require.NoError(t, g.UpsertNode("concept:retry", types.NodeConcept, map[string]any{"name": "retry"}))
	require.NoError(t, g.UpsertEdge("doc:d1", "concept:retry", types.EdgeDefines))

	assert.InDelta(t, 0.3, GraphBoost("how does retry work", "d1", g), 1e-9)
	assert.Zero(t, GraphBoost("unrelated", "d1", g))
	assert.Zero(t, GraphBoost("how does retry work", "missing", g))
}

func TestRankGraphBoostCap(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.UpsertNode("doc:d1", types.NodeDocument, map[string]any{
		"title": "T", "path": "p",
	}))
	names := []string{"alpha", "beta", "gamma", "delta"}
	for _, n := range names {
		require.NoError(t, g.UpsertNode("concept:"+n, types.NodeConcept, map[string]any{"name": n}))
		require.NoError(t, g.UpsertEdge("doc:d1", "concept:"+n, types.EdgeDefines))
		require.NoError(t, g.UpsertEdge("concept:"+n, "doc:d1", types.EdgeDefines))
	}
	boost := GraphBoost("alpha beta gamma delta", "d1", g)
	assert.InDelta(t, GraphBoostCap, boost, 1e-9)
}

type stubReranker struct {
	scores []float64
	err    error
}

func (s *stubReranker) Score(_ context.Context, _ string, passages []string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.scores[:len(passages)], nil
}

func TestRankCrossEncoderBlend(t *testing.T) {
	r := NewRanker()
	// High logit for the second passage flips the order.
	r.Reranker = &stubReranker{scores: []float64{-4.0, 4.0}}
	result := r.Rank(context.Background(), "query", []types.ScoredChunk{
		candidate("c1", "d1", "UNKNOWN", "a", 0.9),
		candidate("c2", "d2", "UNKNOWN", "b", 0.5),
	}, Options{})
	require.Len(t, result.ContextChunks, 2)
	assert.Equal(t, "c2", result.ContextChunks[0].ChunkID)
}

func TestRankCrossEncoderFailureDegrades(t *testing.T) {
	r := NewRanker()
	r.Reranker = &stubReranker{err: errors.New("model offline")}
	result := r.Rank(context.Background(), "query", []types.ScoredChunk{
		candidate("c1", "d1", "UNKNOWN", "a", 0.9),
		candidate("c2", "d2", "UNKNOWN", "b", 0.5),
	}, Options{})
	require.Len(t, result.ContextChunks, 2)
	assert.Equal(t, "c1", result.ContextChunks[0].ChunkID)
}

type stubExtractor struct {
	byText map[string]types.Extraction
}

func (s *stubExtractor) Extract(_ context.Context, text string) (types.Extraction, error) {
	return s.byText[text], nil
}

func TestRankEntityOverlapBoost(t *testing.T) {
	r := NewRanker()
	r.Extractor = &stubExtractor{byText: map[string]types.Extraction{
		"who is the master servicer": {Entities: []types.Entity{{Text: "Master Servicer", Label: "ORG"}}},
		"duties of the master servicer": {
			Entities: []types.Entity{{Text: "the Master Servicer's", Label: "ORG"}},
		},
	}}
	result := r.Rank(context.Background(), "who is the master servicer", []types.ScoredChunk{
		candidate("match", "d1", "UNKNOWN", "duties of the master servicer", 0.6),
		candidate("plain", "d2", "UNKNOWN", "unrelated passage", 0.6),
	}, Options{DisableIntent: true})
	require.Len(t, result.ContextChunks, 2)
	assert.Equal(t, "match", result.ContextChunks[0].ChunkID)
}

func TestRankCitations(t *testing.T) {
	c := candidate("c1", "d1", "UNKNOWN", "x", 0.9)
	c.SectionID = "2.3"
	c.Page = 7
	result := NewRanker().Rank(context.Background(), "query", []types.ScoredChunk{c}, Options{})
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "d1.md", result.Citations[0].DocName)
	assert.Equal(t, "file:///docs/d1.md", result.Citations[0].URI)
	assert.Equal(t, "2.3", result.Citations[0].Section)
	assert.Equal(t, 7, result.Citations[0].Page)
}

func TestFuseRRF(t *testing.T) {
	listA := []types.ScoredChunk{
		candidate("c1", "d1", "UNKNOWN", "a", 0.9),
		candidate("c2", "d2", "UNKNOWN", "b", 0.8),
	}
	listB := []types.ScoredChunk{
		candidate("c2", "d2", "UNKNOWN", "b", 0.85),
		candidate("c3", "d3", "UNKNOWN", "c", 0.7),
	}
	fused := FuseRRF([][]types.ScoredChunk{listA, listB}, 60)
	require.Len(t, fused, 3)
	assert.Equal(t, "c2", fused[0].ChunkID)
	assert.InDelta(t, 1.0/61+1.0/61, fused[0].FinalScore, 1e-12)
	assert.InDelta(t, 1.0/61, fused[1].FinalScore, 1e-12)
}

func TestFuseRRFEmpty(t *testing.T) {
	assert.Empty(t, FuseRRF(nil, 60))
	assert.Empty(t, FuseRRF([][]types.ScoredChunk{{}, {}}, 0))
}
