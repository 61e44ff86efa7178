package config

import (
	"time"

	"genefetch/internal/infra/cache"
	"genefetch/internal/infra/ratelimit"
	"genefetch/internal/infra/retry"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Batch     BatchConfig     `yaml:"batch"`
	Cache     CacheConfig     `yaml:"cache"`
	Services  ServicesConfig  `yaml:"services"`
	Retry     RetryConfig     `yaml:"retry"`
	Selection SelectionConfig `yaml:"selection"`
}

// ServerConfig holds health/metrics HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// BatchConfig holds worker pool and checkpoint settings.
type BatchConfig struct {
	Concurrency        int           `yaml:"concurrency"`
	CheckpointDir      string        `yaml:"checkpoint_dir"`
	CheckpointEvery    int           `yaml:"checkpoint_every"`    // items between snapshots
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"` // max time between snapshots
}

// CacheConfig selects and sizes the cache backend.
type CacheConfig struct {
	Backend  string            `yaml:"backend"` // memory, file, redis
	Dir      string            `yaml:"dir"`
	MaxBytes int64             `yaml:"max_bytes"`
	Redis    cache.RedisConfig `yaml:"redis"`

	DefaultTTL   time.Duration `yaml:"default_ttl"`
	GeneTTL      time.Duration `yaml:"gene_ttl"`
	SequenceTTL  time.Duration `yaml:"sequence_ttl"`
	ConsensusTTL time.Duration `yaml:"consensus_ttl"`
	ProteinTTL   time.Duration `yaml:"protein_ttl"`
}

// TTLs maps the configured per-namespace TTLs.
func (c CacheConfig) TTLs() map[string]time.Duration {
	return map[string]time.Duration{
		cache.NamespaceGenes:     c.GeneTTL,
		cache.NamespaceSequences: c.SequenceTTL,
		cache.NamespaceConsensus: c.ConsensusTTL,
		cache.NamespaceProteins:  c.ProteinTTL,
	}
}

// ServicesConfig holds the collaborator dataset and per-service
// request budgets.
type ServicesConfig struct {
	DatasetPath string                     `yaml:"dataset_path"`
	RateLimits  map[string]RateLimitConfig `yaml:"rate_limits"`
}

// RateLimitConfig holds one token bucket's parameters.
type RateLimitConfig struct {
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

// Limiter converts the configured budgets into ratelimit settings.
func (s ServicesConfig) Limiter() *ratelimit.Limiter {
	l := ratelimit.New()
	for service, rl := range s.RateLimits {
		if rl.RatePerSecond <= 0 {
			continue
		}
		l.Configure(service, ratelimit.Config{RatePerSecond: rl.RatePerSecond, Burst: rl.Burst})
	}
	return l
}

// RetryConfig holds backoff settings for transient failures.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialDelay    time.Duration `yaml:"initial_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	BackoffMultiple float64       `yaml:"backoff_multiple"`
}

// Policy converts to the retry package's config.
func (r RetryConfig) Policy() retry.Config {
	return retry.Config{
		MaxAttempts:     r.MaxAttempts,
		InitialDelay:    r.InitialDelay,
		MaxDelay:        r.MaxDelay,
		BackoffMultiple: r.BackoffMultiple,
	}
}

// SelectionConfig tunes the transcript selector.
type SelectionConfig struct {
	ProteinXrefConfidence   float64 `yaml:"protein_xref_confidence"`
	MinResolutionConfidence float64 `yaml:"min_resolution_confidence"`
}
