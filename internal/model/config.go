package model

import "time"

// Config is the full application configuration.
//
// Hierarchy (highest to lowest priority):
//  1. CLI flags
//  2. Environment variables (TRUTHINDEX_*)
//  3. Config file (~/.truthindex/config.yaml)
//  4. Defaults
type Config struct {
	Store       StoreConfig       `yaml:"store"`
	Generator   GeneratorConfig   `yaml:"generator"`
	TTL         TTLConfig         `yaml:"ttl"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Reaper      ReaperConfig      `yaml:"reaper"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Output      OutputConfig      `yaml:"output"`
}

// StoreConfig selects and configures the record store backend.
type StoreConfig struct {
	// Backend: "sqlite" or "memory"
	Backend string `yaml:"backend"`
	// Path to the sqlite database file
	Path string `yaml:"path"`
}

// GeneratorConfig configures the text-generation collaborator.
type GeneratorConfig struct {
	// Provider name: "openai", "ollama", "static", ""
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`

	// Per-stage call timeouts
	SignalTimeout    time.Duration `yaml:"signal_timeout"`
	NormalizeTimeout time.Duration `yaml:"normalize_timeout"`
	IndexTimeout     time.Duration `yaml:"index_timeout"`

	MaxTokens int `yaml:"max_tokens"`

	// Calls per second against the provider, shared across workers
	RatePerSecond float64 `yaml:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst"`
}

// TTLConfig holds the per-stage cache freshness windows in days.
// Community signal decays faster than technical specs.
type TTLConfig struct {
	Claims int `yaml:"claims_days"`
	Signal int `yaml:"signal_days"`
	Norm   int `yaml:"normalize_days"`
	Index  int `yaml:"index_days"`
}

// Days returns the TTL for the given stage.
func (t TTLConfig) Days(s Stage) int {
	switch s {
	case StageClaims:
		return t.Claims
	case StageSignal:
		return t.Signal
	case StageNorm:
		return t.Norm
	case StageIndex:
		return t.Index
	default:
		return 0
	}
}

// ConcurrencyConfig bounds parallel work.
type ConcurrencyConfig struct {
	// BatchWorkers is the number of subjects audited in parallel
	BatchWorkers int `yaml:"batch_workers"`
}

// ReaperConfig configures stalled-run detection.
type ReaperConfig struct {
	// HeartbeatThreshold: a Running run whose heartbeat is older than
	// this is considered stalled and reset to pending
	HeartbeatThreshold time.Duration `yaml:"heartbeat_threshold"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	Verbose bool   `yaml:"verbose"`
	Dir     string `yaml:"dir"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    "truthindex.db",
		},
		Generator: GeneratorConfig{
			Provider:         "",
			Model:            "",
			SignalTimeout:    15 * time.Second,
			NormalizeTimeout: 25 * time.Second,
			IndexTimeout:     25 * time.Second,
			MaxTokens:        1500,
			RatePerSecond:    2,
			RateBurst:        4,
		},
		TTL: TTLConfig{
			Claims: 60,
			Signal: 14,
			Norm:   45,
			Index:  45,
		},
		Concurrency: ConcurrencyConfig{
			BatchWorkers: 4,
		},
		Reaper: ReaperConfig{
			HeartbeatThreshold: 2 * time.Minute,
			SweepInterval:      30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9215",
		},
		Output: OutputConfig{
			Verbose: false,
			Dir:     "./truthindex-reports",
		},
	}
}
