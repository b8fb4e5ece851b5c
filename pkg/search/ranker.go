package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kgrail/kgrail/pkg/graph"
	"github.com/kgrail/kgrail/pkg/types"
)

// Weights are the multiplicative feature boosts. Each non-binary boost is
// applied as 1 + (weight-1)*feature; the binary error-code boost
// multiplies by its weight directly.
type Weights struct {
	ErrorCodeExactMatch float64
	IntentDocTypeMatch  float64
	TitleTermMatch      float64
	QueryKeywordMatch   float64
	ImagePenalty        float64
}

// DefaultWeights returns the tuned production weights.
func DefaultWeights() Weights {
	return Weights{
		ErrorCodeExactMatch: 2.0,
		IntentDocTypeMatch:  1.7,
		TitleTermMatch:      1.3,
		QueryKeywordMatch:   1.2,
		ImagePenalty:        0.95,
	}
}

// capabilityTroubleshootDeboost de-boosts TROUBLESHOOT candidates when
// the query asks about file capabilities.
const capabilityTroubleshootDeboost = 0.6

// lowConfidenceFloor is reported when no results survive ranking.
const lowConfidenceFloor = 0.15

// DefaultMaxResults bounds the response when the caller does not specify.
const DefaultMaxResults = 5

// Reranker is the optional cross-encoder collaborator. Scores are raw
// logits; the ranker squashes them through a sigmoid before blending.
type Reranker interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
}

// Extractor is the optional NLP collaborator used for entity and
// keyphrase overlap boosts.
type Extractor interface {
	Extract(ctx context.Context, text string) (types.Extraction, error)
}

// Ranker computes final scores for retrieved candidates. Graph, Reranker,
// and Extractor are all optional; a nil collaborator simply contributes
// no signal.
type Ranker struct {
	Weights   Weights
	Graph     *graph.Graph
	Reranker  Reranker
	Extractor Extractor
	Logger    *slog.Logger
}

// NewRanker returns a ranker with default weights and no collaborators.
func NewRanker() *Ranker {
	return &Ranker{Weights: DefaultWeights(), Logger: slog.Default()}
}

// Options adjusts one Rank call.
type Options struct {
	MaxResults        int
	ToolFilter        string
	DisableIntent     bool
	DisableGraphBoost bool
}

// Rank scores, sorts, deduplicates, and packages candidates into a
// search response. Candidates arrive with their base vector similarity
// already set.
func (r *Ranker) Rank(ctx context.Context, query string, candidates []types.ScoredChunk, opts Options) types.SearchResult {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	intent, expected := DetectIntent(query)
	if opts.DisableIntent {
		expected = nil
	}

	ceScores := r.crossEncoderScores(ctx, query, candidates, logger)
	queryExtraction := r.queryExtraction(ctx, query, logger)

	scored := make([]types.ScoredChunk, len(candidates))
	copy(scored, candidates)
	for i := range scored {
		scored[i].FinalScore = r.score(ctx, query, &scored[i], intent, expected, ceScores, opts, queryExtraction)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].FinalScore != scored[j].FinalScore {
			return scored[i].FinalScore > scored[j].FinalScore
		}
		return scored[i].ChunkID < scored[j].ChunkID
	})

	// One chunk per document, best first, until the result budget fills.
	seen := map[string]struct{}{}
	var deduped []types.ScoredChunk
	for _, c := range scored {
		if _, dup := seen[c.DocID]; dup {
			continue
		}
		seen[c.DocID] = struct{}{}
		deduped = append(deduped, c)
		if len(deduped) >= maxResults {
			break
		}
	}

	chunks := deduped
	var relatedTopics []string
	if opts.ToolFilter != "" && r.Graph != nil {
		chunks, relatedTopics = r.applyToolFilter(chunks, opts.ToolFilter)
	}

	citations := make([]types.Citation, 0, len(chunks))
	var imageNotes []string
	for _, c := range chunks {
		docName := filepath.Base(c.SourcePath)
		citation := types.Citation{
			DocID:      c.DocID,
			DocName:    docName,
			SourcePath: c.SourcePath,
			URI:        "file:///" + strings.ReplaceAll(c.SourcePath, "\\", "/"),
			Section:    c.SectionID,
			Page:       c.Page,
		}
		if c.IsImageDesc {
			citation.ImageNote = fmt.Sprintf("See source image context for %s", c.ImageID)
			imageNotes = append(imageNotes, fmt.Sprintf("Image context available for %s in %s", c.ImageID, docName))
		}
		citations = append(citations, citation)
	}

	confidence := lowConfidenceFloor
	if len(chunks) > 0 {
		confidence = math.Min(1.0, 0.5+0.1*float64(len(chunks)))
	}

	return types.SearchResult{
		ContextChunks: chunks,
		Citations:     citations,
		Confidence:    confidence,
		ImageNotes:    imageNotes,
		RelatedTopics: relatedTopics,
	}
}

func (r *Ranker) score(ctx context.Context, query string, c *types.ScoredChunk, intent string, expected []string, ceScores map[string]float64, opts Options, queryExtraction *types.Extraction) float64 {
	f := ComputeFeatures(query, *c, intent, expected)

	final := c.Similarity

	if !opts.DisableGraphBoost && r.Graph != nil {
		final *= 1.0 + GraphBoost(query, c.DocID, r.Graph)
	}

	if ce, ok := ceScores[c.ChunkID]; ok {
		final = 0.6*sigmoid(ce) + 0.4*final
	}

	if f.ErrorCodeExactMatch > 0 {
		final *= r.Weights.ErrorCodeExactMatch
	}
	final *= 1.0 + (r.Weights.IntentDocTypeMatch-1.0)*f.IntentDocTypeMatch
	final *= 1.0 + (r.Weights.TitleTermMatch-1.0)*f.TitleTermMatch
	final *= 1.0 + (r.Weights.QueryKeywordMatch-1.0)*f.QueryKeywordMatch
	final *= 1.0 + (r.Weights.ImagePenalty-1.0)*f.ImagePenalty

	if queryExtraction != nil && r.Extractor != nil {
		chunkExtraction, err := r.Extractor.Extract(ctx, c.Content)
		if err == nil {
			if overlap := entityOverlap(queryExtraction.Entities, chunkExtraction.Entities); overlap > 0 {
				final *= 1.0 + 0.5*overlap
			}
			if kp := keyphraseMatch(queryExtraction.Keyphrases, chunkExtraction.Keyphrases); kp > 0 {
				final *= 1.0 + 0.3*kp
			}
		}
	}

	if intent == IntentFileCapability && c.DocType == "TROUBLESHOOT" {
		final *= capabilityTroubleshootDeboost
	}
	return final
}

// crossEncoderScores asks the optional reranker for raw scores keyed by
// chunk id. Failure degrades to vector-only ranking.
func (r *Ranker) crossEncoderScores(ctx context.Context, query string, candidates []types.ScoredChunk, logger *slog.Logger) map[string]float64 {
	if r.Reranker == nil || len(candidates) == 0 {
		return nil
	}
	passages := make([]string, len(candidates))
	for i, c := range candidates {
		passages[i] = c.Content
	}
	scores, err := r.Reranker.Score(ctx, query, passages)
	if err != nil || len(scores) != len(candidates) {
		logger.Warn("cross-encoder unavailable, ranking on vector similarity only", "error", err)
		return nil
	}
	out := make(map[string]float64, len(scores))
	for i, c := range candidates {
		out[c.ChunkID] = scores[i]
	}
	return out
}

func (r *Ranker) queryExtraction(ctx context.Context, query string, logger *slog.Logger) *types.Extraction {
	if r.Extractor == nil {
		return nil
	}
	extraction, err := r.Extractor.Extract(ctx, query)
	if err != nil {
		logger.Warn("nlp extraction unavailable, skipping entity boosts", "error", err)
		return nil
	}
	return &extraction
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// applyToolFilter keeps only chunks from documents the graph links to the
// tool, preserving rank order, and collects the linked documents' tags.
func (r *Ranker) applyToolFilter(chunks []types.ScoredChunk, tool string) ([]types.ScoredChunk, []string) {
	docs := r.Graph.DocsForTool(tool)
	allowed := map[string]struct{}{}
	topicSet := map[string]struct{}{}
	for _, doc := range docs {
		if path := doc.Attr("path"); path != "" {
			allowed[path] = struct{}{}
		}
		if tags, ok := doc.Attrs["tags"].([]any); ok {
			for _, tag := range tags {
				if s, ok := tag.(string); ok && s != "" {
					topicSet[s] = struct{}{}
				}
			}
		}
	}

	var kept []types.ScoredChunk
	for _, c := range chunks {
		if _, ok := allowed[c.SourcePath]; ok {
			kept = append(kept, c)
		}
	}
	topics := make([]string, 0, len(topicSet))
	for topic := range topicSet {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return kept, topics
}
