// Package config loads kgrail configuration from file, environment,
// and defaults via viper.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Graph store configuration
	Graph GraphConfig `mapstructure:"graph"`

	// Vector backend configuration
	Vector VectorConfig `mapstructure:"vector"`

	// NLP collaborator configuration
	NLP NLPConfig `mapstructure:"nlp"`

	// CrossEncoder collaborator configuration
	CrossEncoder CrossEncoderConfig `mapstructure:"cross_encoder"`

	// Retrieval behavior configuration
	Retrieval RetrievalConfig `mapstructure:"retrieval"`

	// Dictionaries configuration
	Dictionaries DictionariesConfig `mapstructure:"dictionaries"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// GraphConfig holds graph store configuration.
type GraphConfig struct {
	Driver   string `mapstructure:"driver"` // json, badger, neo4j
	URI      string `mapstructure:"uri"`    // file path or bolt URI
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// VectorConfig holds vector backend configuration.
type VectorConfig struct {
	Backend        string  `mapstructure:"backend"` // http, embedded
	BaseURL        string  `mapstructure:"base_url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`

	// Embedded backend (OpenAI embeddings, in-memory index).
	APIKey         string `mapstructure:"api_key"`
	EmbeddingModel string `mapstructure:"embedding_model"`

	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// CircuitBreakerConfig holds configuration for circuit breaking.
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// NLPConfig holds NLP extractor configuration.
type NLPConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	MaxKeyphrases   int    `mapstructure:"max_keyphrases"`
	CacheTTLMinutes int    `mapstructure:"cache_ttl_minutes"`
}

// CrossEncoderConfig holds cross-encoder reranker configuration.
type CrossEncoderConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// RetrievalConfig holds retrieval behavior configuration.
type RetrievalConfig struct {
	MaxResults          int     `mapstructure:"max_results"`
	StrictProvenance    bool    `mapstructure:"strict_provenance"`
	ProductionThreshold float64 `mapstructure:"production_threshold"`
	GraphBoost          bool    `mapstructure:"graph_boost"`
	MaxVariations       int     `mapstructure:"max_variations"`
}

// DictionariesConfig holds synonym/acronym dictionary file locations.
type DictionariesConfig struct {
	StaticSynonyms  string `mapstructure:"static_synonyms"`
	LearnedSynonyms string `mapstructure:"learned_synonyms"`
	Acronyms        string `mapstructure:"acronyms"`
}

// TelemetryConfig holds telemetry configuration.
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
	AuditPath   string `mapstructure:"audit_path"`
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Graph store defaults
	viper.SetDefault("graph.driver", "json")
	viper.SetDefault("graph.uri", "./knowledge_graph.json")

	// Vector defaults
	viper.SetDefault("vector.backend", "http")
	viper.SetDefault("vector.base_url", "http://localhost:8001")
	viper.SetDefault("vector.timeout_seconds", 10)
	viper.SetDefault("vector.embedding_model", "text-embedding-3-small")
	viper.SetDefault("vector.circuit_breaker.enabled", true)
	viper.SetDefault("vector.circuit_breaker.max_requests", 1)
	viper.SetDefault("vector.circuit_breaker.interval", 60)
	viper.SetDefault("vector.circuit_breaker.timeout", 30)
	viper.SetDefault("vector.circuit_breaker.ready_to_trip_ratio", 0.6)

	// NLP defaults
	viper.SetDefault("nlp.timeout_seconds", 5)
	viper.SetDefault("nlp.max_keyphrases", 10)
	viper.SetDefault("nlp.cache_ttl_minutes", 10)

	// CrossEncoder defaults
	viper.SetDefault("cross_encoder.timeout_seconds", 10)

	// Retrieval defaults
	viper.SetDefault("retrieval.max_results", 5)
	viper.SetDefault("retrieval.strict_provenance", false)
	viper.SetDefault("retrieval.production_threshold", 0.95)
	viper.SetDefault("retrieval.graph_boost", true)
	viper.SetDefault("retrieval.max_variations", 4)

	// Telemetry defaults
	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("telemetry.parquet_path", fmt.Sprintf("%s/.kgrail/telemetry", home))
		viper.SetDefault("telemetry.audit_path", fmt.Sprintf("%s/.kgrail/provenance_audit.jsonl", home))
	}
}

// overrideWithEnv overrides config with environment variables.
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Vector.APIKey = apiKey
	}

	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Graph.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Graph.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Graph.Password = pass
	}

	if driver := os.Getenv("GRAPH_DRIVER"); driver != "" {
		config.Graph.Driver = driver
	}
	if uri := os.Getenv("GRAPH_URI"); uri != "" {
		config.Graph.URI = uri
	}

	if url := os.Getenv("VECTOR_BASE_URL"); url != "" {
		config.Vector.BaseURL = url
	}
	if url := os.Getenv("NLP_BASE_URL"); url != "" {
		config.NLP.BaseURL = url
	}
	if url := os.Getenv("CROSS_ENCODER_BASE_URL"); url != "" {
		config.CrossEncoder.BaseURL = url
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			config.Server.Port = parsed
		}
	}

	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}
