package regime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kgrail/kgrail/pkg/types"
)

const poolingAgreementText = `ARTICLE I DEFINITIONS

"Master Servicer" means the entity appointed to service the Mortgage Loans
pursuant to this Agreement, as amended from time to time.

"Trustee" means the party identified as trustee herein.

SECTION 2.01 Distributions. The Depositor shall deposit all amounts
received on the Mortgage Loans.

WHEREAS, the parties wish to set forth their agreement;

IN WITNESS WHEREOF, the parties have executed this Agreement.`

func TestClassifyGoverningDocument(t *testing.T) {
	result := Classify(poolingAgreementText, "Pooling_Agreement_v3.pdf")

	assert.Equal(t, types.RegimeGoverningDocLegal, result.Regime)
	assert.GreaterOrEqual(t, result.Score, 70)
	assert.True(t, result.Signals["definitions_section"])
	assert.True(t, result.Signals["amendment_boilerplate"])
	assert.True(t, result.Signals["named_party_structure"])
	assert.True(t, result.Signals["signature_notarization"])
}

func TestClassifyGenericGuide(t *testing.T) {
	text := `# Uploading files

To upload files, run the sync tool with the --dest flag. Large uploads
are resumed automatically if the connection drops.`

	result := Classify(text, "uploading-files.md")
	assert.Equal(t, types.RegimeGenericGuide, result.Regime)
	assert.Less(t, result.Score, 40)
}

func TestClassifyMixedDocument(t *testing.T) {
	text := `SECTION 1.1 Scope. This retention policy applies to all backups,
as amended by the operations team.

SECTION 2.1 Schedule. Backups run nightly.`

	result := Classify(text, "retention-policy.md")
	assert.Equal(t, types.RegimeMixed, result.Regime)
	assert.GreaterOrEqual(t, result.Score, 40)
	assert.Less(t, result.Score, 70)
}

func TestClassifyBareDefinitionsHeadingNotEnough(t *testing.T) {
	text := `DEFINITIONS

This glossary lists common backup terminology in plain language.`

	result := Classify(text, "glossary.md")
	assert.False(t, result.Signals["definitions_section"])
}

func TestClassifyScoreIsCapped(t *testing.T) {
	result := Classify(poolingAgreementText, "Pooling_Agreement_v3.pdf")
	assert.LessOrEqual(t, result.Score, 100)
}

func TestClassifyDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`[ -~\n]{0,400}`).Draw(t, "text")
		filename := rapid.StringMatching(`[a-z_]{0,20}(\.md)?`).Draw(t, "filename")

		first := Classify(text, filename)
		second := Classify(text, filename)
		if first.Regime != second.Regime || first.Score != second.Score {
			t.Fatalf("classification not deterministic: %v vs %v", first, second)
		}
		for name, fired := range first.Signals {
			if second.Signals[name] != fired {
				t.Fatalf("signal %s flipped between runs", name)
			}
		}
	})
}

func TestCorpusRegimeEmptyCorpus(t *testing.T) {
	assert.Equal(t, types.RegimeGenericGuide, CorpusRegime(nil))
}

func TestCorpusRegimeMajorityVote(t *testing.T) {
	results := []types.RegimeResult{
		{Regime: types.RegimeGoverningDocLegal},
		{Regime: types.RegimeGenericGuide},
		{Regime: types.RegimeGenericGuide},
	}
	assert.Equal(t, types.RegimeGenericGuide, CorpusRegime(results))
}

func TestCorpusRegimeTieBreaksLegal(t *testing.T) {
	results := []types.RegimeResult{
		{Regime: types.RegimeGoverningDocLegal},
		{Regime: types.RegimeMixed},
	}
	require.Equal(t, types.RegimeGoverningDocLegal, CorpusRegime(results))
}
