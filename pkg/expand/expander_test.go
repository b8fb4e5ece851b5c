package expand

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandStaticTier(t *testing.T) {
	e := NewExpander()
	e.SetStatic(map[string][]string{
		"upload": {"ingest", "import", "transfer", "push"},
	})
	got := e.Expand("upload failing", 3, "", nil)
	assert.Equal(t, "upload failing OR ingest import transfer", got)
}

func TestExpandNoMatchesReturnsOriginal(t *testing.T) {
	e := NewExpander()
	e.SetStatic(map[string][]string{"upload": {"ingest"}})
	assert.Equal(t, "restart the gateway", e.Expand("restart the gateway", 3, "", nil))
}

func TestExpandSkipsTermsAlreadyInQuery(t *testing.T) {
	e := NewExpander()
	e.SetStatic(map[string][]string{"upload": {"ingest", "upload"}})
	got := e.Expand("upload and ingest", 3, "", nil)
	assert.Equal(t, "upload and ingest", got)
}

func TestExpandEntityTierLeads(t *testing.T) {
	e := NewExpander()
	e.SetStatic(map[string][]string{"servicer": {"loan administrator"}})
	got := e.Expand("servicer duties", 3, "", []string{"master servicer"})
	assert.Equal(t, "servicer duties OR master servicer loan administrator", got)
}

func TestExpandLearnedTierGated(t *testing.T) {
	e := NewExpander()
	e.SetLearned(map[string]map[string]LearnedSynonym{
		"GOVERNING_DOC": {
			"remittance": {Synonyms: []string{"payment forwarding"}, Confidence: 0.9, DocCount: 5},
			"custodian":  {Synonyms: []string{"document holder"}, Confidence: 0.4, DocCount: 5},
			"servicer":   {Synonyms: []string{"administrator"}, Confidence: 0.9, DocCount: 1},
		},
	})

	got := e.Expand("remittance custodian servicer report", 3, "GOVERNING_DOC", nil)
	assert.Contains(t, got, "payment forwarding")
	assert.NotContains(t, got, "document holder", "below confidence gate")
	assert.NotContains(t, got, "administrator", "below doc-count gate")
}

func TestExpandLearnedMultiWordTerm(t *testing.T) {
	e := NewExpander()
	e.SetLearned(map[string]map[string]LearnedSynonym{
		"GOVERNING_DOC": {
			"master servicer": {Synonyms: []string{"primary administrator"}, Confidence: 0.9, DocCount: 3},
		},
	})
	got := e.Expand("who is the master servicer", 3, "GOVERNING_DOC", nil)
	assert.Contains(t, got, "primary administrator")
}

func TestExpandLearnedTierSkippedWithoutDocType(t *testing.T) {
	e := NewExpander()
	e.SetLearned(map[string]map[string]LearnedSynonym{
		"GOVERNING_DOC": {
			"remittance": {Synonyms: []string{"payment forwarding"}, Confidence: 0.9, DocCount: 5},
		},
	})
	assert.Equal(t, "remittance report", e.Expand("remittance report", 3, "", nil))
}

func TestLoadStaticJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synonyms.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"upload": ["ingest", "import"]}`), 0644))

	e := NewExpander()
	require.NoError(t, e.LoadStatic(path))
	assert.Equal(t, []string{"ingest", "import"}, e.Synonyms("Upload"))
}

func TestLoadStaticRepairsSloppyJSON(t *testing.T) {
	// Trailing comma, as hand-edited dictionaries tend to have.
	path := filepath.Join(t.TempDir(), "synonyms.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"upload": ["ingest", "import",],}`), 0644))

	e := NewExpander()
	require.NoError(t, e.LoadStatic(path))
	assert.Equal(t, []string{"ingest", "import"}, e.Synonyms("upload"))
}

func TestLoadStaticYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synonyms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("upload:\n  - ingest\n"), 0644))

	e := NewExpander()
	require.NoError(t, e.LoadStatic(path))
	assert.Equal(t, []string{"ingest"}, e.Synonyms("upload"))
}

func TestLoadStaticMissingFile(t *testing.T) {
	e := NewExpander()
	require.NoError(t, e.LoadStatic(filepath.Join(t.TempDir(), "absent.json")))
	assert.Empty(t, e.Synonyms("upload"))
}

func TestGenerateVariationsWhatIs(t *testing.T) {
	e := NewExpander()
	e.SetStatic(map[string][]string{"servicer": {"administrator"}})
	vars := e.GenerateVariations("What is the servicer?", 4)

	require.NotEmpty(t, vars)
	assert.Equal(t, "What is the servicer?", vars[0])
	assert.Contains(t, vars, "the servicer definition meaning")
	assert.Contains(t, vars, "servicer")
}

func TestGenerateVariationsHowTo(t *testing.T) {
	vars := NewExpander().GenerateVariations("how do I upload files", 4)
	assert.Contains(t, vars, "steps to upload files")
	assert.Contains(t, vars, "upload files")
}

func TestGenerateVariationsListAll(t *testing.T) {
	vars := NewExpander().GenerateVariations("list all error codes", 4)
	assert.Contains(t, vars, "error codes complete reference")
}

func TestGenerateVariationsDedupAndCap(t *testing.T) {
	vars := NewExpander().GenerateVariations("gateway", 2)
	assert.LessOrEqual(t, len(vars), 2)
	assert.Equal(t, "gateway", vars[0])

	seen := map[string]struct{}{}
	for _, v := range vars {
		_, dup := seen[v]
		assert.False(t, dup, "duplicate variation %q", v)
		seen[v] = struct{}{}
	}
}

func TestAcronymExpand(t *testing.T) {
	r := NewAcronymResolver()
	r.Set(map[string]string{"PSA": "Pooling and Servicing Agreement"})
	assert.Equal(t,
		"What is a PSA (Pooling and Servicing Agreement)?",
		r.Expand("What is a PSA?"))
}

func TestAcronymExpandUnknownUntouched(t *testing.T) {
	r := NewAcronymResolver()
	r.Set(map[string]string{"PSA": "Pooling and Servicing Agreement"})
	assert.Equal(t, "the ABC process", r.Expand("the ABC process"))
}

func TestAcronymExpandTokens(t *testing.T) {
	r := NewAcronymResolver()
	r.Set(map[string]string{"psa": "Pooling and Servicing Agreement"})
	got := r.ExpandTokens([]string{"psa", "report"})
	assert.Equal(t, []string{"psa", "Pooling and Servicing Agreement", "report"}, got)
}
