package kgrail

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kgrail/kgrail/pkg/chunker"
	"github.com/kgrail/kgrail/pkg/crossencoder"
	"github.com/kgrail/kgrail/pkg/evidence"
	"github.com/kgrail/kgrail/pkg/expand"
	"github.com/kgrail/kgrail/pkg/graph"
	"github.com/kgrail/kgrail/pkg/nlp"
	"github.com/kgrail/kgrail/pkg/search"
	"github.com/kgrail/kgrail/pkg/terms"
	"github.com/kgrail/kgrail/pkg/types"
	"github.com/kgrail/kgrail/pkg/vector"
)

// Engine is the main interface for interacting with the grounded
// retrieval engine.
type Engine interface {
	// Ingest processes documents into the knowledge graph and vector
	// index. Per-node failures are reported, not fatal.
	Ingest(ctx context.Context, docs []types.IngestedDocument) (*IngestReport, error)

	// Query answers a natural-language query with ranked, citation-backed
	// chunks, optionally resolving defined-term dependency closures.
	Query(ctx context.Context, query string, opts *QueryOptions) (*QueryResult, error)

	// ResolveTerm resolves a term's transitive dependency closure.
	ResolveTerm(ctx context.Context, term string) (types.TermResolution, error)

	// ValidateAnswer checks a generated answer against retrieved chunks
	// under the provenance contract and records the ledger to the audit
	// log.
	ValidateAnswer(ctx context.Context, query, answer string, chunks []types.Chunk) (evidence.ValidationResult, *evidence.Ledger, error)

	// Stats summarizes the current knowledge graph.
	Stats(ctx context.Context) (*GraphStats, error)

	// Close flushes audit buffers and releases collaborator resources.
	Close(ctx context.Context) error
}

// Config holds configuration for the engine client.
type Config struct {
	// MaxResults bounds the ranked response.
	MaxResults int
	// TopKPerQuery is the vector fan-out per query variation.
	TopKPerQuery int
	// MaxVariations caps generated query variations (original included).
	MaxVariations int
	// StrictProvenance makes incomplete citation a hard error.
	StrictProvenance bool
	// ProductionThreshold is the coverage pass bar outside strict mode.
	ProductionThreshold float64
	// GraphBoost enables the multiplicative graph-link score boost.
	GraphBoost bool
	// AuditPath is the JSONL provenance audit log; empty disables it.
	AuditPath string

	// Dictionary files. Missing files are not errors.
	StaticSynonymsPath  string
	LearnedSynonymsPath string
	AcronymsPath        string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxResults:          search.DefaultMaxResults,
		TopKPerQuery:        20,
		MaxVariations:       expand.DefaultMaxVariations,
		ProductionThreshold: evidence.DefaultProductionThreshold,
		GraphBoost:          true,
	}
}

// Client is the main implementation of the Engine interface.
type Client struct {
	store     graph.Store
	vector    vector.Client
	extractor nlp.Extractor
	reranker  crossencoder.Reranker

	expander     *expand.Expander
	acronyms     *expand.AcronymResolver
	chunker      *chunker.Chunker
	termsExt     *terms.Extractor
	resolver     *terms.Resolver
	matcher      *evidence.Matcher
	parquetAudit *evidence.ParquetAuditLog

	config *Config
	logger *slog.Logger

	mu    sync.RWMutex
	graph *graph.Graph
}

var _ Engine = (*Client)(nil)

// NewClient creates a new engine client. extractor and reranker are
// optional collaborators; pass nil to run without entity enrichment or
// cross-encoder reranking.
func NewClient(store graph.Store, vec vector.Client, extractor nlp.Extractor, reranker crossencoder.Reranker, cfg *Config, logger *slog.Logger) (*Client, error) {
	if store == nil {
		return nil, fmt.Errorf("graph store is required")
	}
	if vec == nil {
		return nil, fmt.Errorf("vector client is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = search.DefaultMaxResults
	}
	if cfg.TopKPerQuery <= 0 {
		cfg.TopKPerQuery = 20
	}
	if cfg.MaxVariations <= 0 {
		cfg.MaxVariations = expand.DefaultMaxVariations
	}
	if cfg.ProductionThreshold <= 0 {
		cfg.ProductionThreshold = evidence.DefaultProductionThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		store:     store,
		vector:    vec,
		extractor: extractor,
		reranker:  reranker,
		expander:  expand.NewExpander(),
		acronyms:  expand.NewAcronymResolver(),
		chunker:   chunker.New(),
		termsExt:  terms.NewExtractor(),
		resolver:  terms.NewResolver(),
		matcher:   evidence.NewMatcher(),
		config:    cfg,
		logger:    logger,
	}

	if cfg.StaticSynonymsPath != "" {
		if err := c.expander.LoadStatic(cfg.StaticSynonymsPath); err != nil {
			logger.Warn("static synonym dictionary not loaded", "path", cfg.StaticSynonymsPath, "error", err)
		}
	}
	if cfg.LearnedSynonymsPath != "" {
		if err := c.expander.LoadLearned(cfg.LearnedSynonymsPath); err != nil {
			logger.Warn("learned synonym dictionary not loaded", "path", cfg.LearnedSynonymsPath, "error", err)
		}
	}
	if cfg.AcronymsPath != "" {
		if err := c.acronyms.Load(cfg.AcronymsPath); err != nil {
			logger.Warn("acronym dictionary not loaded", "path", cfg.AcronymsPath, "error", err)
		}
	}

	return c, nil
}

// SetParquetAudit attaches a Parquet batch writer for provenance
// ledgers in addition to the JSONL audit log.
func (c *Client) SetParquetAudit(log *evidence.ParquetAuditLog) { c.parquetAudit = log }

// currentGraph returns the cached graph, loading it from the store on
// first use. Load failure degrades to an empty graph.
func (c *Client) currentGraph(ctx context.Context) *graph.Graph {
	c.mu.RLock()
	g := c.graph
	c.mu.RUnlock()
	if g != nil {
		return g
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.graph != nil {
		return c.graph
	}
	loaded, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Error("graph load failed, continuing with empty graph", "error", err)
		loaded = graph.New()
	}
	c.graph = loaded
	return c.graph
}

func (c *Client) setGraph(g *graph.Graph) {
	c.mu.Lock()
	c.graph = g
	c.mu.Unlock()
}

// QueryOptions adjusts one Query call.
type QueryOptions struct {
	MaxResults       int
	ToolFilter       string
	DocTypeFilter    string
	DisableExpansion bool
	DisableResolver  bool
}

// QueryResult is the full response to one query: the ranked search
// result plus the detected intent, the queries actually executed, and
// the optional term resolution with the reason it activated.
type QueryResult struct {
	types.SearchResult

	Intent         string                `json:"intent"`
	Queries        []string              `json:"queries"`
	Resolution     *types.TermResolution `json:"resolution,omitempty"`
	ResolverReason string                `json:"resolver_reason,omitempty"`
}

// Query implements Engine.
func (c *Client) Query(ctx context.Context, query string, opts *QueryOptions) (*QueryResult, error) {
	if opts == nil {
		opts = &QueryOptions{}
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}

	g := c.currentGraph(ctx)

	searchQuery := c.acronyms.Expand(query)

	var entityTerms []string
	if c.extractor != nil {
		if extraction, err := c.extractor.Extract(ctx, query); err == nil {
			for _, e := range extraction.Entities {
				entityTerms = append(entityTerms, e.Text)
			}
		} else {
			c.logger.Warn("query entity extraction unavailable", "error", err)
		}
	}

	queries := []string{searchQuery}
	if !opts.DisableExpansion {
		expanded := c.expander.Expand(searchQuery, 3, string(g.CorpusRegime), entityTerms)
		queries = c.expander.GenerateVariations(expanded, c.config.MaxVariations)
	}

	var lists [][]types.ScoredChunk
	for _, q := range queries {
		rows, err := c.vector.Search(ctx, q, c.config.TopKPerQuery, opts.DocTypeFilter)
		if err != nil {
			c.logger.Warn("vector search failed for query variation", "query", q, "error", err)
			continue
		}
		lists = append(lists, rows)
	}
	fused := search.FuseRRF(lists, search.RRFK)

	ranker := &search.Ranker{
		Weights:   search.DefaultWeights(),
		Graph:     g,
		Reranker:  c.reranker,
		Extractor: c.extractor,
		Logger:    c.logger,
	}
	result := ranker.Rank(ctx, query, fused, search.Options{
		MaxResults:        maxResults,
		ToolFilter:        opts.ToolFilter,
		DisableGraphBoost: !c.config.GraphBoost,
	})

	intent, _ := search.DetectIntent(query)
	out := &QueryResult{
		SearchResult: result,
		Intent:       intent,
		Queries:      queries,
	}

	if !opts.DisableResolver {
		if activate, reason := terms.ShouldActivate(query, intent, g.CorpusRegime, result.ContextChunks, g); activate {
			if resolution := c.resolveFromQuery(query, g); resolution != nil {
				out.Resolution = resolution
				out.ResolverReason = reason
			}
		}
	}

	return out, nil
}

// resolveFromQuery resolves the first title-case phrase with a non-empty
// closure, falling back to the full query.
func (c *Client) resolveFromQuery(query string, g *graph.Graph) *types.TermResolution {
	for _, phrase := range terms.TitleCasePhrases(query) {
		res := c.resolver.Resolve(phrase, g)
		if len(res.Closure) > 0 {
			return &res
		}
	}
	res := c.resolver.Resolve(query, g)
	if len(res.Closure) > 0 {
		return &res
	}
	return nil
}

// ResolveTerm implements Engine.
func (c *Client) ResolveTerm(ctx context.Context, term string) (types.TermResolution, error) {
	g := c.currentGraph(ctx)
	return c.resolver.Resolve(term, g), nil
}

// ValidateAnswer implements Engine.
func (c *Client) ValidateAnswer(ctx context.Context, query, answer string, chunks []types.Chunk) (evidence.ValidationResult, *evidence.Ledger, error) {
	ledger := c.matcher.MatchClaims(answer, chunks, query)
	result, err := evidence.EnforceContract(ledger, c.config.StrictProvenance, c.config.ProductionThreshold)

	if c.config.AuditPath != "" {
		if auditErr := evidence.AppendLedger(c.config.AuditPath, ledger); auditErr != nil {
			c.logger.Error("provenance audit append failed", "path", c.config.AuditPath, "error", auditErr)
		}
	}
	if c.parquetAudit != nil {
		if auditErr := c.parquetAudit.Record(ledger); auditErr != nil {
			c.logger.Error("provenance parquet record failed", "error", auditErr)
		}
	}

	return result, ledger, err
}

// GraphStats summarizes the knowledge graph.
type GraphStats struct {
	Nodes        int            `json:"nodes"`
	Edges        int            `json:"edges"`
	Documents    int            `json:"documents"`
	DocsByType   map[string]int `json:"docs_by_type"`
	CorpusRegime types.Regime   `json:"corpus_regime,omitempty"`
}

// Stats implements Engine.
func (c *Client) Stats(ctx context.Context) (*GraphStats, error) {
	g := c.currentGraph(ctx)
	total, byType := g.DocStats()
	return &GraphStats{
		Nodes:        len(g.Nodes),
		Edges:        len(g.Edges),
		Documents:    total,
		DocsByType:   byType,
		CorpusRegime: g.CorpusRegime,
	}, nil
}

// Close implements Engine.
func (c *Client) Close(ctx context.Context) error {
	if c.parquetAudit != nil {
		if err := c.parquetAudit.Flush(); err != nil {
			c.logger.Error("provenance parquet flush failed", "error", err)
		}
	}
	return c.vector.Close()
}
