package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Config holds the configuration for the SPARQL proxy.
// Variables are read from the unprefixed environment names below so that
// deployments configured for the original proxy keep working unchanged.
type Config struct {
	// HTTP listen port.
	Port int `envconfig:"PORT" default:"3000"`

	// Upstream SPARQL endpoint URL. Required.
	SparqlBackend string `envconfig:"SPARQL_BACKEND"`

	// Queue capacities.
	MaxConcurrency int `envconfig:"MAX_CONCURRENCY" default:"1"`
	// MaxWaiting caps admission; 0 means unlimited.
	MaxWaiting int `envconfig:"MAX_WAITING" default:"0"`

	// Admin UI credentials.
	AdminUser     string `envconfig:"ADMIN_USER" default:"admin"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD" default:"password"`

	// Cache store selection: null, memory, file or sqlite.
	CacheStore     string `envconfig:"CACHE_STORE" default:"null"`
	CacheStorePath string `envconfig:"CACHE_STORE_PATH" default:"/tmp/sparql-proxy/cache"`
	// Compressor for cache values: raw or deflate.
	Compressor string `envconfig:"COMPRESSOR" default:"raw"`
	// Entry cap for the in-memory store.
	MemoryCacheMaxEntries int `envconfig:"MEMORY_CACHE_MAX_ENTRIES" default:"1024"`

	// Job lifecycle, both in milliseconds.
	JobTimeoutMs            int `envconfig:"JOB_TIMEOUT" default:"300000"`
	DurationToKeepOldJobsMs int `envconfig:"DURATION_TO_KEEP_OLD_JOBS" default:"300000"`

	// Query splitting.
	EnableQuerySplitting bool  `envconfig:"ENABLE_QUERY_SPLITTING" default:"false"`
	MaxChunkLimit        int64 `envconfig:"MAX_CHUNK_LIMIT" default:"1000"`
	MaxLimit             int64 `envconfig:"MAX_LIMIT" default:"10000"`

	// Honour X-Forwarded-For when resolving the client IP.
	TrustProxy bool `envconfig:"TRUST_PROXY" default:"false"`

	// If set, append one JSON line per request to this path.
	QueryLogPath string `envconfig:"QUERY_LOG_PATH"`
}

// Validate checks invariants that envconfig cannot express.
func (c *Config) Validate() error {
	if c.SparqlBackend == "" {
		return fmt.Errorf("SPARQL_BACKEND is required")
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("MAX_CONCURRENCY must be >= 1, got %d", c.MaxConcurrency)
	}
	if c.MaxWaiting < 0 {
		return fmt.Errorf("MAX_WAITING must be >= 0, got %d", c.MaxWaiting)
	}
	switch c.CacheStore {
	case "null", "memory", "file", "sqlite":
	default:
		return fmt.Errorf("unsupported CACHE_STORE: %s", c.CacheStore)
	}
	switch c.Compressor {
	case "raw", "deflate":
	default:
		return fmt.Errorf("unsupported COMPRESSOR: %s", c.Compressor)
	}
	if c.MaxChunkLimit < 1 {
		return fmt.Errorf("MAX_CHUNK_LIMIT must be >= 1, got %d", c.MaxChunkLimit)
	}
	if c.MaxLimit < 1 {
		return fmt.Errorf("MAX_LIMIT must be >= 1, got %d", c.MaxLimit)
	}
	return nil
}

// New creates a new Config by parsing environment variables.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Info().
		Int("port", cfg.Port).
		Str("backend", cfg.SparqlBackend).
		Int("max_concurrency", cfg.MaxConcurrency).
		Int("max_waiting", cfg.MaxWaiting).
		Str("cache_store", cfg.CacheStore).
		Str("compressor", cfg.Compressor).
		Bool("query_splitting", cfg.EnableQuerySplitting).
		Msg("Configuration loaded")

	return &cfg, nil
}

// JobTimeout returns the running-job timeout as a duration.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutMs) * time.Millisecond
}

// DurationToKeepOldJobs returns the retention window for terminal jobs.
func (c *Config) DurationToKeepOldJobs() time.Duration {
	return time.Duration(c.DurationToKeepOldJobsMs) * time.Millisecond
}

// GetHTTPAddr returns the HTTP server address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
