package evidence

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kgrail/kgrail/pkg/types"
)

func chunkWith(content string) types.Chunk {
	return types.Chunk{
		ChunkID:    "c1",
		DocID:      "doc1",
		Content:    content,
		SourcePath: "docs/guide.md",
	}
}

func TestSplitClaims(t *testing.T) {
	claims := SplitClaims("First sentence here. Second sentence follows! Third one? [Fourth is bracketed.]")
	require.Len(t, claims, 4)
	assert.Equal(t, "First sentence here.", claims[0])
	assert.Equal(t, "[Fourth is bracketed.]", claims[3])
}

func TestSplitClaimsNoLowercaseBoundary(t *testing.T) {
	// "e.g. something" must not split mid-abbreviation.
	claims := SplitClaims("Use the admin console, e.g. the settings page.")
	assert.Len(t, claims, 1)
}

func TestSplitClaimsEmpty(t *testing.T) {
	assert.Empty(t, SplitClaims(""))
	assert.Empty(t, SplitClaims("   \n  "))
}

func TestExactMatchScenario(t *testing.T) {
	answer := "Error code AUTH401 indicates authentication failure."
	ledger := NewMatcher().MatchClaims(answer, []types.Chunk{chunkWith(
		"Troubleshooting guide. Error code AUTH401 indicates authentication failure. Retry after login.",
	)}, "what does AUTH401 mean")

	assert.InDelta(t, 1.0, ledger.Coverage, 1e-9)
	require.Len(t, ledger.EvidenceMatches, 1)
	assert.Equal(t, MethodExact, ledger.EvidenceMatches[0].MatchMethod)
	assert.InDelta(t, 1.0, ledger.EvidenceMatches[0].MatchScore, 1e-9)
}

func TestCasefoldedMatch(t *testing.T) {
	m := NewMatcher()
	match := m.FindMatch("the trustee remits collections monthly.", chunkWith(
		"The Trustee remits collections monthly. See Section 3.",
	))
	require.NotNil(t, match)
	assert.Equal(t, MethodCasefolded, match.MatchMethod)
	assert.InDelta(t, 0.95, match.MatchScore, 1e-9)
}

func TestTokenBoundaryMatch(t *testing.T) {
	m := NewMatcher()
	match := m.FindMatch("restart the gateway , then verify status.", chunkWith(
		"First restart the gateway, then verify status. Done.",
	))
	require.NotNil(t, match)
	assert.Equal(t, MethodTokenBoundary, match.MatchMethod)
	assert.InDelta(t, 0.90, match.MatchScore, 1e-9)
}

func TestNumericToleranceMatch(t *testing.T) {
	m := NewMatcher()
	match := m.FindMatch("The pool balance was 1000.5 million as reported.", chunkWith(
		"Reports showed an aggregate figure of 1000.4 million for the period.",
	))
	require.NotNil(t, match)
	assert.Equal(t, MethodNumericTolerance, match.MatchMethod)
	assert.InDelta(t, 0.85, match.MatchScore, 1e-9)
}

func TestNumericToleranceRejectsFarValues(t *testing.T) {
	m := NewMatcher()
	match := m.FindMatch("The total is 500 units in stock.", chunkWith(
		"Inventory lists 900 units across all warehouses.",
	))
	assert.Nil(t, match)
}

func TestCodeNormalizedMatch(t *testing.T) {
	m := NewMatcher()
	match := m.FindMatch("err-auth-fail", chunkWith("Known failures: ERRAUTHFAIL and ERRNETDOWN."))
	require.NotNil(t, match)
	assert.Equal(t, MethodCodeNormalized, match.MatchMethod)
}

func TestDisabledTiersAreSkipped(t *testing.T) {
	m := NewMatcher()
	m.CasefoldingEnabled = false
	// With casefolding off, a case-only difference falls through to the
	// token-boundary tier instead.
	match := m.FindMatch("the trustee holds title.", chunkWith("The Trustee holds title. More."))
	require.NotNil(t, match)
	assert.Equal(t, MethodTokenBoundary, match.MatchMethod)

	m.CodeNormalization = false
	assert.Nil(t, m.FindMatch("err-auth-xyz", chunkWith("Known failures: ERRAUTHXYZ only.")))
}

func TestBestScoreWinsAcrossChunks(t *testing.T) {
	answer := "The Trustee holds legal title."
	chunks := []types.Chunk{
		{ChunkID: "fuzzy", Content: "the trustee holds legal title. more text"},
		{ChunkID: "exact", Content: "As stated: The Trustee holds legal title. End."},
	}
	ledger := NewMatcher().MatchClaims(answer, chunks, "")
	require.Len(t, ledger.EvidenceMatches, 1)
	assert.Equal(t, "exact", ledger.EvidenceMatches[0].MatchedChunkID)
	assert.Equal(t, MethodExact, ledger.EvidenceMatches[0].MatchMethod)
}

func TestUncitedClaims(t *testing.T) {
	answer := "The fee is 3 percent. Unicorns audit the ledger quarterly."
	ledger := NewMatcher().MatchClaims(answer, []types.Chunk{chunkWith(
		"The fee is 3 percent of the outstanding balance.",
	)}, "")
	assert.InDelta(t, 0.5, ledger.Coverage, 1e-9)
	require.Len(t, ledger.UncitedClaims, 1)
	assert.Equal(t, "Unicorns audit the ledger quarterly.", ledger.UncitedClaims[0])
}

func TestNoClaimsZeroCoverage(t *testing.T) {
	ledger := NewMatcher().MatchClaims("", []types.Chunk{chunkWith("anything")}, "")
	assert.Zero(t, ledger.Coverage)
	assert.Empty(t, ledger.Claims)
}

func TestCitationFormat(t *testing.T) {
	chunk := types.Chunk{
		ChunkID:   "c9",
		Content:   "The Cut-off Date is March 1.",
		SourceURI: "docs/psa.pdf",
		SectionID: "1.01",
		Page:      14,
	}
	match := NewMatcher().FindMatch("The Cut-off Date is March 1.", chunk)
	require.NotNil(t, match)
	assert.Equal(t, "[docs/psa.pdf, 1.01, p.14]", match.Citation)
}

// Adding passages can only add matches, never remove them.
func TestCoverageMonotonicProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		sentences := rapid.SliceOfN(
			rapid.SampledFrom([]string{
				"The fee is 3 percent.",
				"Restart the gateway daily.",
				"AUTH401 indicates authentication failure.",
				"The Trustee holds legal title.",
			}), 1, 4).Draw(rt, "sentences")
		answer := ""
		for _, s := range sentences {
			if answer != "" {
				answer += " "
			}
			answer += s
		}

		pool := []types.Chunk{
			{ChunkID: "p1", Content: "The fee is 3 percent. Other content."},
			{ChunkID: "p2", Content: "restart the gateway daily, every morning"},
			{ChunkID: "p3", Content: "Error AUTH401 indicates authentication failure."},
			{ChunkID: "p4", Content: "unrelated filler text about nothing"},
		}
		n := rapid.IntRange(0, len(pool)).Draw(rt, "n")

		m := NewMatcher()
		base := m.MatchClaims(answer, pool[:n], "")
		wider := m.MatchClaims(answer, pool, "")
		if wider.Coverage < base.Coverage {
			rt.Fatalf("coverage dropped from %.2f to %.2f when passages were added (n=%d)",
				base.Coverage, wider.Coverage, n)
		}
	})
}

func TestMatchCountNeverExceedsClaimCount(t *testing.T) {
	for i := 0; i < 3; i++ {
		answer := "One claim. Two claims. Three claims."
		chunks := []types.Chunk{chunkWith("One claim. Two claims. Three claims.")}
		for j := 0; j < i; j++ {
			chunks = append(chunks, chunkWith(fmt.Sprintf("duplicate passage %d: One claim.", j)))
		}
		ledger := NewMatcher().MatchClaims(answer, chunks, "")
		assert.LessOrEqual(t, len(ledger.EvidenceMatches), len(ledger.Claims))
	}
}
