package kgrail

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kgrail/kgrail"
	"github.com/kgrail/kgrail/pkg/config"
	"github.com/kgrail/kgrail/pkg/crossencoder"
	"github.com/kgrail/kgrail/pkg/evidence"
	"github.com/kgrail/kgrail/pkg/graph"
	kgrailLogger "github.com/kgrail/kgrail/pkg/logger"
	"github.com/kgrail/kgrail/pkg/nlp"
	"github.com/kgrail/kgrail/pkg/server"
	"github.com/kgrail/kgrail/pkg/telemetry"
	"github.com/kgrail/kgrail/pkg/vector"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the kgrail HTTP server",
	Long: `Start the kgrail HTTP server to provide REST API access to the
retrieval engine and knowledge graph.

The server provides endpoints for:
- Ingesting documents
- Searching with query expansion and RRF fusion
- Resolving defined-term closures
- Validating answers against the provenance contract
- Health checks

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	// Server-specific flags
	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "debug", "Server mode (debug, release, test)")

	// Graph store flags
	serverCmd.Flags().String("graph-driver", "json", "Graph store driver (json, badger, neo4j)")
	serverCmd.Flags().String("graph-uri", "", "Graph store URI/path")
	serverCmd.Flags().String("graph-username", "", "Graph store username (neo4j only)")
	serverCmd.Flags().String("graph-password", "", "Graph store password (neo4j only)")
	serverCmd.Flags().String("graph-database", "", "Graph store database name (neo4j only)")

	// Vector backend flags
	serverCmd.Flags().String("vector-backend", "", "Vector backend (http, embedded)")
	serverCmd.Flags().String("vector-base-url", "", "Vector service base URL (http backend)")
	serverCmd.Flags().String("vector-api-key", "", "Embedding API key (embedded backend)")
	serverCmd.Flags().String("embedding-model", "", "Embedding model (embedded backend)")

	// Collaborator flags
	serverCmd.Flags().String("nlp-base-url", "", "NLP extractor service base URL")
	serverCmd.Flags().String("cross-encoder-base-url", "", "Cross-encoder reranker base URL")

	// Telemetry flags
	serverCmd.Flags().String("telemetry-parquet-path", "", "Path to directory for telemetry (error records and audit logs)")
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with command-line flags
	overrideConfigWithFlags(cmd, cfg)

	// Validate configuration
	if err := validateServerConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Initialize the engine
	fmt.Println("Initializing kgrail...")
	engine, err := initializeEngine(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize kgrail: %w", err)
	}

	// Create and setup server
	srv := server.New(cfg, engine)
	srv.Setup()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal: %v\n", sig)

		// Create shutdown context with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Shutdown server
		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		// Flush telemetry buffers and release the vector client.
		if err := engine.Close(shutdownCtx); err != nil {
			fmt.Printf("Warning: engine close error: %v\n", err)
		}

		fmt.Println("Server stopped gracefully")
		return nil
	}
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	// Server flags
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}

	// Graph store flags
	if cmd.Flags().Changed("graph-driver") {
		cfg.Graph.Driver, _ = cmd.Flags().GetString("graph-driver")
	}
	if cmd.Flags().Changed("graph-uri") {
		cfg.Graph.URI, _ = cmd.Flags().GetString("graph-uri")
	}
	if cmd.Flags().Changed("graph-username") {
		cfg.Graph.Username, _ = cmd.Flags().GetString("graph-username")
	}
	if cmd.Flags().Changed("graph-password") {
		cfg.Graph.Password, _ = cmd.Flags().GetString("graph-password")
	}
	if cmd.Flags().Changed("graph-database") {
		cfg.Graph.Database, _ = cmd.Flags().GetString("graph-database")
	}

	// Vector backend flags
	if cmd.Flags().Changed("vector-backend") {
		cfg.Vector.Backend, _ = cmd.Flags().GetString("vector-backend")
	}
	if cmd.Flags().Changed("vector-base-url") {
		cfg.Vector.BaseURL, _ = cmd.Flags().GetString("vector-base-url")
	}
	if cmd.Flags().Changed("vector-api-key") {
		cfg.Vector.APIKey, _ = cmd.Flags().GetString("vector-api-key")
	}
	if cmd.Flags().Changed("embedding-model") {
		cfg.Vector.EmbeddingModel, _ = cmd.Flags().GetString("embedding-model")
	}

	// Collaborator flags
	if cmd.Flags().Changed("nlp-base-url") {
		cfg.NLP.BaseURL, _ = cmd.Flags().GetString("nlp-base-url")
	}
	if cmd.Flags().Changed("cross-encoder-base-url") {
		cfg.CrossEncoder.BaseURL, _ = cmd.Flags().GetString("cross-encoder-base-url")
	}

	// Telemetry flags
	if cmd.Flags().Changed("telemetry-parquet-path") {
		cfg.Telemetry.ParquetPath, _ = cmd.Flags().GetString("telemetry-parquet-path")
	}
}

func validateServerConfig(cfg *config.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if cfg.Graph.URI == "" {
		return fmt.Errorf("graph store URI is required")
	}
	return nil
}

// initializeEngine wires the graph store, vector backend, and optional
// collaborators into a ready engine.
func initializeEngine(cfg *config.Config) (kgrail.Engine, error) {
	log, err := buildLogger(cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildGraphStore(cfg)
	if err != nil {
		return nil, err
	}

	vec, err := buildVectorClient(cfg, log)
	if err != nil {
		return nil, err
	}

	// Optional NER/keyphrase collaborator. Absent means entity-driven
	// expansion is skipped.
	var extractor nlp.Extractor
	if cfg.NLP.BaseURL != "" {
		httpExtractor := nlp.NewHTTPExtractor(cfg.NLP.BaseURL, time.Duration(cfg.NLP.TimeoutSeconds)*time.Second, cfg.NLP.MaxKeyphrases)
		if cfg.NLP.CacheTTLMinutes > 0 {
			ttl := time.Duration(cfg.NLP.CacheTTLMinutes) * time.Minute
			extractor = nlp.NewCachingExtractor(httpExtractor, ttl, ttl*2)
		} else {
			extractor = httpExtractor
		}
		fmt.Printf("NLP extractor enabled at: %s\n", cfg.NLP.BaseURL)
	}

	// Optional cross-encoder reranker.
	var reranker crossencoder.Reranker
	if cfg.CrossEncoder.BaseURL != "" {
		reranker = crossencoder.NewHTTPReranker(cfg.CrossEncoder.BaseURL, cfg.CrossEncoder.Model, time.Duration(cfg.CrossEncoder.TimeoutSeconds)*time.Second)
		fmt.Printf("Cross-encoder reranker enabled at: %s\n", cfg.CrossEncoder.BaseURL)
	}

	engineConfig := &kgrail.Config{
		MaxResults:          cfg.Retrieval.MaxResults,
		MaxVariations:       cfg.Retrieval.MaxVariations,
		StrictProvenance:    cfg.Retrieval.StrictProvenance,
		ProductionThreshold: cfg.Retrieval.ProductionThreshold,
		GraphBoost:          cfg.Retrieval.GraphBoost,
		AuditPath:           cfg.Telemetry.AuditPath,
		StaticSynonymsPath:  cfg.Dictionaries.StaticSynonyms,
		LearnedSynonymsPath: cfg.Dictionaries.LearnedSynonyms,
		AcronymsPath:        cfg.Dictionaries.Acronyms,
	}

	client, err := kgrail.NewClient(store, vec, extractor, reranker, engineConfig, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create kgrail client: %w", err)
	}

	if cfg.Telemetry.ParquetPath != "" {
		auditLog, err := evidence.NewParquetAuditLog(cfg.Telemetry.ParquetPath, 100)
		if err != nil {
			fmt.Printf("Warning: failed to initialize parquet audit log: %v\n", err)
		} else {
			client.SetParquetAudit(auditLog)
			fmt.Printf("Provenance audit tracking enabled at: %s\n", cfg.Telemetry.ParquetPath)
		}
	}

	fmt.Printf("kgrail initialized successfully with graph driver: %s\n", cfg.Graph.Driver)
	return client, nil
}

func buildLogger(cfg *config.Config) (*slog.Logger, error) {
	colorHandler := kgrailLogger.NewColorHandler(os.Stderr, &slog.HandlerOptions{
		Level: kgrailLogger.ParseLevel(cfg.Log.Level),
	})

	if cfg.Telemetry.ParquetPath == "" {
		return slog.New(colorHandler), nil
	}

	if err := os.MkdirAll(cfg.Telemetry.ParquetPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}

	parquetHandler, err := telemetry.NewParquetHandler(colorHandler, cfg.Telemetry.ParquetPath)
	if err != nil {
		fmt.Printf("Warning: failed to initialize error tracking: %v\n", err)
		return slog.New(colorHandler), nil
	}
	fmt.Println("Error tracking enabled")
	return slog.New(parquetHandler), nil
}

func buildGraphStore(cfg *config.Config) (graph.Store, error) {
	switch cfg.Graph.Driver {
	case "json":
		store, err := graph.NewJSONStore(cfg.Graph.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to create json graph store: %w", err)
		}
		return store, nil
	case "badger":
		store, err := graph.OpenBadgerStore(cfg.Graph.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger graph store: %w", err)
		}
		return store, nil
	case "neo4j":
		store, err := graph.NewNeo4jStore(cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password, cfg.Graph.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported graph driver: %s", cfg.Graph.Driver)
	}
}

func buildVectorClient(cfg *config.Config, log *slog.Logger) (vector.Client, error) {
	var client vector.Client

	switch cfg.Vector.Backend {
	case "http":
		opts := []vector.HTTPClientOption{
			vector.WithTimeout(time.Duration(cfg.Vector.TimeoutSeconds) * time.Second),
		}
		if cfg.Vector.RateLimitRPS > 0 {
			opts = append(opts, vector.WithRateLimit(cfg.Vector.RateLimitRPS, cfg.Vector.RateLimitBurst))
		}
		client = vector.NewHTTPClient(cfg.Vector.BaseURL, opts...)
	case "embedded":
		store, err := vector.NewEmbeddedStore(vector.EmbeddedStoreConfig{
			APIKey:  cfg.Vector.APIKey,
			BaseURL: cfg.Vector.BaseURL,
			Model:   cfg.Vector.EmbeddingModel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embedded vector store: %w", err)
		}
		client = store
	default:
		return nil, fmt.Errorf("unsupported vector backend: %s", cfg.Vector.Backend)
	}

	if cfg.Vector.CircuitBreaker.Enabled {
		client = vector.NewCircuitBreakerClient(client, "vector-search", vector.BreakerSettings{
			MaxRequests:      cfg.Vector.CircuitBreaker.MaxRequests,
			Interval:         time.Duration(cfg.Vector.CircuitBreaker.Interval) * time.Second,
			Timeout:          time.Duration(cfg.Vector.CircuitBreaker.Timeout) * time.Second,
			ReadyToTripRatio: cfg.Vector.CircuitBreaker.ReadyToTripRatio,
		}, log)
	}
	return client, nil
}
