package kgrail

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgrail/kgrail/pkg/evidence"
	"github.com/kgrail/kgrail/pkg/graph"
	"github.com/kgrail/kgrail/pkg/types"
)

// memoryVector is an in-process vector backend for round-trip tests. It
// scores by query-token overlap, which is enough to exercise fusion and
// ranking without an embedding service.
type memoryVector struct {
	chunks []types.Chunk
	closed bool
}

func (m *memoryVector) Index(ctx context.Context, chunks []types.Chunk) error {
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *memoryVector) Search(ctx context.Context, queryText string, topK int, docTypeFilter string) ([]types.ScoredChunk, error) {
	queryTokens := map[string]struct{}{}
	for _, tok := range strings.Fields(strings.ToLower(queryText)) {
		if len(tok) > 3 {
			queryTokens[tok] = struct{}{}
		}
	}

	var scored []types.ScoredChunk
	for _, chunk := range m.chunks {
		if docTypeFilter != "" && chunk.DocType != docTypeFilter {
			continue
		}
		content := strings.ToLower(chunk.Content)
		overlap := 0
		for tok := range queryTokens {
			if strings.Contains(content, tok) {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		scored = append(scored, types.ScoredChunk{
			Chunk:      chunk,
			Similarity: float64(overlap) / float64(len(queryTokens)+1),
		})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func (m *memoryVector) Close() error {
	m.closed = true
	return nil
}

func testClient(t *testing.T) (*Client, *memoryVector) {
	t.Helper()
	store, err := graph.NewJSONStore(filepath.Join(t.TempDir(), "graph.json"))
	require.NoError(t, err)

	vec := &memoryVector{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := NewClient(store, vec, nil, nil, nil, log)
	require.NoError(t, err)
	return client, vec
}

func testDocuments() []types.IngestedDocument {
	return []types.IngestedDocument{
		{
			DocID:      "backup-guide",
			Title:      "Backup Guide",
			SourcePath: "docs/backup-guide.md",
			DocType:    "GUIDE",
			Text: `# Backups

To upload files to the backup server, run the sync tool with the --dest
flag. Large uploads are resumed automatically if the connection drops.

Nightly backups are verified against the retention policy before old
snapshots are pruned.`,
			Tools:  []string{"sync"},
			Topics: []string{"backups"},
		},
		{
			DocID:      "pooling-agreement",
			Title:      "Pooling and Servicing Agreement",
			SourcePath: "docs/Pooling_Agreement_v3.pdf",
			DocType:    "AGREEMENT",
			Text: `ARTICLE I DEFINITIONS

"Master Servicer" means the entity appointed by the Trustee to service the Mortgage Loans pursuant to this Agreement, as amended.

"Trustee" means the party identified as trustee herein.

SECTION 2.01 Distributions. The Depositor shall deposit all amounts
received on the Mortgage Loans.

IN WITNESS WHEREOF, the parties have executed this Agreement.`,
		},
	}
}

func TestNewClientRequiresStoreAndVector(t *testing.T) {
	vec := &memoryVector{}
	_, err := NewClient(nil, vec, nil, nil, nil, nil)
	assert.Error(t, err)

	store, err := graph.NewJSONStore(filepath.Join(t.TempDir(), "graph.json"))
	require.NoError(t, err)
	_, err = NewClient(store, nil, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestIngestBuildsGraphAndIndex(t *testing.T) {
	client, vec := testClient(t)
	ctx := context.Background()

	report, err := client.Ingest(ctx, testDocuments())
	require.NoError(t, err)
	assert.Empty(t, report.Errors)

	assert.Equal(t, 2, report.Documents)
	assert.Greater(t, report.Chunks, 0)
	assert.GreaterOrEqual(t, report.DefinedTerms, 2)
	assert.Equal(t, "GENERIC_GUIDE", report.Regimes["backup-guide"])
	assert.Equal(t, "GOVERNING_DOC_LEGAL", report.Regimes["pooling-agreement"])
	assert.NotEmpty(t, vec.chunks)

	stats, err := client.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 1, stats.DocsByType["GUIDE"])
	assert.Equal(t, 1, stats.DocsByType["AGREEMENT"])
	assert.Greater(t, stats.Edges, 0)
}

func TestIngestSkipsEmptyDocID(t *testing.T) {
	client, _ := testClient(t)

	report, err := client.Ingest(context.Background(), []types.IngestedDocument{
		{DocID: "", Text: "orphan text", SourcePath: "x.md"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Documents)
	assert.NotEmpty(t, report.Errors)
}

func TestQueryRoundTrip(t *testing.T) {
	client, _ := testClient(t)
	ctx := context.Background()

	_, err := client.Ingest(ctx, testDocuments())
	require.NoError(t, err)

	result, err := client.Query(ctx, "How do I upload files to the backup server?", nil)
	require.NoError(t, err)

	require.NotEmpty(t, result.ContextChunks)
	assert.Contains(t, strings.ToLower(result.ContextChunks[0].Content), "upload")
	assert.NotEmpty(t, result.Citations)
	assert.Greater(t, result.Confidence, 0.0)
	assert.Equal(t, "how_to", result.Intent)

	// The original query is always executed, expansion or not.
	require.NotEmpty(t, result.Queries)
}

func TestQueryWithExpansionDisabled(t *testing.T) {
	client, _ := testClient(t)
	ctx := context.Background()

	_, err := client.Ingest(ctx, testDocuments())
	require.NoError(t, err)

	result, err := client.Query(ctx, "upload files", &QueryOptions{DisableExpansion: true})
	require.NoError(t, err)
	assert.Len(t, result.Queries, 1)
}

func TestQueryDocTypeFilter(t *testing.T) {
	client, _ := testClient(t)
	ctx := context.Background()

	_, err := client.Ingest(ctx, testDocuments())
	require.NoError(t, err)

	result, err := client.Query(ctx, "upload files to the backup server", &QueryOptions{DocTypeFilter: "AGREEMENT"})
	require.NoError(t, err)
	for _, chunk := range result.ContextChunks {
		assert.Equal(t, "AGREEMENT", chunk.DocType)
	}
}

func TestResolveTermClosure(t *testing.T) {
	client, _ := testClient(t)
	ctx := context.Background()

	_, err := client.Ingest(ctx, testDocuments())
	require.NoError(t, err)

	resolution, err := client.ResolveTerm(ctx, "Master Servicer")
	require.NoError(t, err)
	assert.Equal(t, "Master Servicer", resolution.RootTerm)
	require.NotEmpty(t, resolution.Closure)

	// The Master Servicer definition mentions the Trustee, so the closure
	// pulls it in.
	joined := strings.ToLower(strings.Join(resolution.Closure, " "))
	assert.Contains(t, joined, "trustee")
}

func TestValidateAnswerStrictRejectsUncited(t *testing.T) {
	client, _ := testClient(t)
	client.config.StrictProvenance = true

	answer := "The moon is made of green cheese and backups are optional."
	_, ledger, err := client.ValidateAnswer(context.Background(), "backups", answer, nil)
	require.Error(t, err)

	var provErr *evidence.ProvenanceError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, evidence.ErrCodeIncompleteProvenance, provErr.Code)
	require.NotNil(t, ledger)
	assert.Less(t, ledger.Coverage, 1.0)
}

func TestValidateAnswerPassesWithSupportingChunks(t *testing.T) {
	client, _ := testClient(t)
	client.config.StrictProvenance = true

	chunk := types.Chunk{
		ChunkID:    "backup-guide_chunk_0",
		DocID:      "backup-guide",
		SourcePath: "docs/backup-guide.md",
		Content:    "Large uploads are resumed automatically if the connection drops.",
	}
	answer := "Large uploads are resumed automatically if the connection drops."

	result, ledger, err := client.ValidateAnswer(context.Background(), "uploads", answer, []types.Chunk{chunk})
	require.NoError(t, err)
	assert.True(t, result.Passed)
	require.NotNil(t, ledger)
	assert.Equal(t, 1.0, ledger.Coverage)
}

func TestCloseReleasesVectorClient(t *testing.T) {
	client, vec := testClient(t)
	require.NoError(t, client.Close(context.Background()))
	assert.True(t, vec.closed)
}
