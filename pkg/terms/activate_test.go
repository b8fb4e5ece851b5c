package terms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgrail/kgrail/pkg/graph"
	"github.com/kgrail/kgrail/pkg/types"
)

func termGraph(t *testing.T, slugs ...string) *graph.Graph {
	t.Helper()
	g := graph.New()
	for _, slug := range slugs {
		addDefTerm(t, g, slug, "definition of "+slug)
	}
	return g
}

func TestShouldActivateGenericCorpusNever(t *testing.T) {
	g := termGraph(t, "servicing_fee")
	on, reason := ShouldActivate("what is the Servicing Fee", "define", types.RegimeGenericGuide, nil, g)
	assert.False(t, on)
	assert.Contains(t, reason, "GENERIC")
}

func TestShouldActivateDefinitionalIntent(t *testing.T) {
	on, reason := ShouldActivate("explain accrual", "what_is", types.RegimeGoverningDocLegal, nil, graph.New())
	assert.True(t, on)
	assert.Contains(t, reason, "intent=what_is")
}

func TestShouldActivateTitleCaseExactMatch(t *testing.T) {
	g := termGraph(t, "servicing_fee")
	on, reason := ShouldActivate("How is the Servicing Fee calculated?", "how_to", types.RegimeMixed, nil, g)
	assert.True(t, on)
	assert.Contains(t, reason, `title_case_match="Servicing Fee"`)
}

func TestShouldActivateFuzzyMatch(t *testing.T) {
	g := termGraph(t, "servicing_fees")
	on, reason := ShouldActivate("How is the Servicing Fee calculated?", "how_to", types.RegimeMixed, nil, g)
	assert.True(t, on)
	assert.Contains(t, reason, "fuzzy_match=")
}

func TestShouldActivateLegalResultTrigger(t *testing.T) {
	results := []types.ScoredChunk{{
		Chunk: types.Chunk{
			ChunkID:    "c1",
			DocRegime:  string(types.RegimeGoverningDocLegal),
			DefTermRef: true,
		},
		Similarity: 0.82,
	}}
	on, reason := ShouldActivate("fee remittance schedule", "how_to", types.RegimeGoverningDocLegal, results, graph.New())
	assert.True(t, on)
	assert.Contains(t, reason, "high_conf_legal_chunks=1")
}

func TestShouldActivateLowSimilarityLegalResultIgnored(t *testing.T) {
	results := []types.ScoredChunk{{
		Chunk: types.Chunk{
			ChunkID:    "c1",
			DocRegime:  string(types.RegimeGoverningDocLegal),
			DefTermRef: true,
		},
		Similarity: 0.5,
	}}
	on, _ := ShouldActivate("fee remittance schedule", "how_to", types.RegimeGoverningDocLegal, results, graph.New())
	assert.False(t, on)
}

func TestShouldActivateNoTriggers(t *testing.T) {
	on, reason := ShouldActivate("restart the server", "troubleshoot", types.RegimeMixed, nil, graph.New())
	assert.False(t, on)
	assert.Equal(t, "no query-level triggers matched", reason)
}

func TestShouldActivateCombinesReasons(t *testing.T) {
	g := termGraph(t, "pool_balance")
	on, reason := ShouldActivate("define Pool Balance", "define", types.RegimeGoverningDocLegal, nil, g)
	require.True(t, on)
	assert.Contains(t, reason, " AND ")
}

func TestTitleCasePhrases(t *testing.T) {
	phrases := TitleCasePhrases("How does the Master Servicer report to the Trustee each month?")
	assert.Contains(t, phrases, "Master Servicer")
	assert.Contains(t, phrases, "Trustee")
}

func TestSimilarityRatio(t *testing.T) {
	assert.InDelta(t, 1.0, similarityRatio("abc", "abc"), 1e-9)
	assert.InDelta(t, 0.0, similarityRatio("abc", ""), 1e-9)
	assert.Greater(t, similarityRatio("servicing fee", "servicing fees"), 0.9)
	assert.Less(t, similarityRatio("servicing fee", "quarterly report"), 0.5)
}
