package evidence

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerWithCoverage(coverage float64, uncited ...string) *Ledger {
	total := 4
	matched := int(coverage * float64(total))
	claims := make([]string, total)
	for i := range claims {
		claims[i] = "claim"
	}
	matches := make([]EvidenceMatch, matched)
	return &Ledger{
		Query:           "q",
		GeneratedAnswer: "answer text",
		Claims:          claims,
		EvidenceMatches: matches,
		Coverage:        coverage,
		UncitedClaims:   uncited,
	}
}

func TestEnforceContractStrictPasses(t *testing.T) {
	ledger := ledgerWithCoverage(1.0)
	result, err := EnforceContract(ledger, true, DefaultProductionThreshold)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	require.NotNil(t, ledger.StrictModePassed)
	assert.True(t, *ledger.StrictModePassed)
}

func TestEnforceContractStrictViolation(t *testing.T) {
	ledger := ledgerWithCoverage(0.75, "the uncited sentence")
	_, err := EnforceContract(ledger, true, DefaultProductionThreshold)
	require.Error(t, err)

	var perr *ProvenanceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, ErrCodeIncompleteProvenance, perr.Code)
	assert.Equal(t, 4, perr.Details["total_sentences"])
	assert.Equal(t, 3, perr.Details["cited_sentences"])
	assert.Equal(t, 0.75, perr.Details["coverage"])
	assert.Equal(t, []string{"the uncited sentence"}, perr.Details["uncited_sentences"])

	payload := perr.Payload()
	inner, ok := payload["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, ErrCodeIncompleteProvenance, inner["code"])
}

func TestEnforceContractProductionPasses(t *testing.T) {
	result, err := EnforceContract(ledgerWithCoverage(1.0), false, 0.95)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Equal(t, "Production provenance coverage passed", result.Message)
}

func TestEnforceContractProductionFailsBelowThreshold(t *testing.T) {
	result, err := EnforceContract(ledgerWithCoverage(0.5, "a", "b"), false, 0.95)
	require.NoError(t, err, "production mode never errors")
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "below threshold")
	assert.Len(t, result.UncitedClaims, 2)
}

func TestEnforceContractDefaultThreshold(t *testing.T) {
	result, err := EnforceContract(ledgerWithCoverage(0.75, "x"), false, 0)
	require.NoError(t, err)
	assert.False(t, result.Passed)
}

func TestAppendLedgerIsAppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "ledger.jsonl")
	first := ledgerWithCoverage(1.0)
	second := ledgerWithCoverage(0.5, "missing")
	require.NoError(t, AppendLedger(path, first))
	require.NoError(t, AppendLedger(path, second))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)

	var decoded Ledger
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &decoded))
	assert.InDelta(t, 0.5, decoded.Coverage, 1e-9)
	assert.Equal(t, []string{"missing"}, decoded.UncitedClaims)
}

func TestParquetAuditLogFlush(t *testing.T) {
	dir := t.TempDir()
	log, err := NewParquetAuditLog(dir, 10)
	require.NoError(t, err)

	require.NoError(t, log.Record(ledgerWithCoverage(1.0)))
	require.NoError(t, log.Flush())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "provenance_audit_")
	assert.Contains(t, entries[0].Name(), ".parquet")
}

func TestParquetAuditLogBatching(t *testing.T) {
	dir := t.TempDir()
	log, err := NewParquetAuditLog(dir, 2)
	require.NoError(t, err)

	require.NoError(t, log.Record(ledgerWithCoverage(1.0)))
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries, "below batch size, nothing written")

	require.NoError(t, log.Record(ledgerWithCoverage(0.75, "x")))
	entries, _ = os.ReadDir(dir)
	assert.Len(t, entries, 1, "batch full, one file written")
}
