package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration usable without a config file.
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.applyDefaults()
	return cfg
}

func (cfg *AppConfig) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.Batch.Concurrency == 0 {
		cfg.Batch.Concurrency = 4
	}
	if cfg.Batch.CheckpointDir == "" {
		cfg.Batch.CheckpointDir = ".genefetch/checkpoints"
	}
	if cfg.Batch.CheckpointEvery == 0 {
		cfg.Batch.CheckpointEvery = 10
	}
	if cfg.Batch.CheckpointInterval == 0 {
		cfg.Batch.CheckpointInterval = 30 * time.Second
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "file"
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = ".genefetch/cache"
	}
	if cfg.Cache.MaxBytes == 0 {
		cfg.Cache.MaxBytes = 256 << 20
	}
	if cfg.Cache.DefaultTTL == 0 {
		cfg.Cache.DefaultTTL = 24 * time.Hour
	}
	if cfg.Cache.GeneTTL == 0 {
		cfg.Cache.GeneTTL = 7 * 24 * time.Hour
	}
	if cfg.Cache.SequenceTTL == 0 {
		cfg.Cache.SequenceTTL = 30 * 24 * time.Hour
	}
	if cfg.Cache.ConsensusTTL == 0 {
		cfg.Cache.ConsensusTTL = 7 * 24 * time.Hour
	}
	if cfg.Cache.ProteinTTL == 0 {
		cfg.Cache.ProteinTTL = 7 * 24 * time.Hour
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 5
	}
	if cfg.Retry.InitialDelay == 0 {
		cfg.Retry.InitialDelay = 500 * time.Millisecond
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 30 * time.Second
	}
	if cfg.Retry.BackoffMultiple == 0 {
		cfg.Retry.BackoffMultiple = 2.0
	}

	if cfg.Selection.ProteinXrefConfidence == 0 {
		cfg.Selection.ProteinXrefConfidence = 0.85
	}
}

// Fingerprint hashes the settings that determine per-gene results.
// A resumed batch refuses to continue under a different fingerprint,
// so server, logging and backoff tuning are deliberately excluded.
func (cfg *AppConfig) Fingerprint() string {
	relevant := struct {
		Services  ServicesConfig  `yaml:"services"`
		Selection SelectionConfig `yaml:"selection"`
	}{cfg.Services, cfg.Selection}

	data, err := yaml.Marshal(relevant)
	if err != nil {
		// yaml.Marshal of a plain struct does not fail.
		return "unknown"
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
