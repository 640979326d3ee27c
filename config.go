/*
File: config.go
Description: YAML-based static configuration with environment-variable
             credential overrides. Any absent credential disables the
             owning subsystem with a logged warning; the pipeline
             continues in degraded mode.
*/

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Poller    PollerConfig    `yaml:"poller"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Cache     CacheConfig     `yaml:"cache"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Heuristic HeuristicConfig `yaml:"heuristic"`
	Anomaly   AnomalyConfig   `yaml:"anomaly"`
	Reasoning ReasoningConfig `yaml:"reasoning"`
	Learner   LearnerConfig   `yaml:"learner"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Workers   WorkerConfig    `yaml:"workers"`
	Buffer    BufferConfig    `yaml:"buffer"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	HistorySize int   `yaml:"history_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type PollerConfig struct {
	URLs         []string `yaml:"urls"`
	PollInterval string   `yaml:"poll_interval"`
	BatchLimit   int      `yaml:"batch_limit"`
	Timeout      string   `yaml:"timeout"`

	// User/Pass are populated from environment, never from YAML.
	User string `yaml:"-"`
	Pass string `yaml:"-"`

	Enabled              bool
	parsedPollInterval   time.Duration
	parsedTimeout        time.Duration
}

type DedupConfig struct {
	Window int `yaml:"window"`
}

type CacheConfig struct {
	MemoryCapacity int    `yaml:"memory_capacity"`
	MemoryTTL      string `yaml:"memory_ttl"`
	DiskPath       string `yaml:"disk_path"`
	DiskCapacity   int    `yaml:"disk_capacity"`
	DiskTTL        string `yaml:"disk_ttl"`
	SweepInterval  string `yaml:"sweep_interval"`

	parsedMemoryTTL     time.Duration
	parsedDiskTTL       time.Duration
	parsedSweepInterval time.Duration
}

type ClassifierConfig struct {
	MetadataThreshold  float64 `yaml:"metadata_threshold"`
	SnapshotPath       string  `yaml:"snapshot_path"`
	SignatureStaleAfter string `yaml:"signature_stale_after"`

	parsedStaleAfter time.Duration
}

type HeuristicConfig struct {
	InitialEntropyThreshold float64 `yaml:"initial_entropy_threshold"`
	DigitRatioThreshold     float64 `yaml:"digit_ratio_threshold"`
	TuningWindow            int     `yaml:"tuning_window"`
}

type AnomalyConfig struct {
	RingBufferSize int     `yaml:"ring_buffer_size"`
	MinSamples     int     `yaml:"min_samples"`
	InitialThreshold float64 `yaml:"initial_threshold"`
}

type ReasoningConfig struct {
	Endpoint string `yaml:"endpoint"`
	Timeout  string `yaml:"timeout"`
	QPS      float64 `yaml:"qps"`
	Burst    int     `yaml:"burst"`

	// APIKey is populated from environment, never from YAML.
	APIKey string `yaml:"-"`

	Enabled       bool
	parsedTimeout time.Duration
}

type LearnerConfig struct {
	SnapshotPath     string `yaml:"snapshot_path"`
	SnapshotInterval string `yaml:"snapshot_interval"`

	parsedSnapshotInterval time.Duration
}

type LedgerConfig struct {
	// ID/Credentials are populated from environment, never from YAML.
	ID          string `yaml:"-"`
	Credentials string `yaml:"-"`
	Enabled     bool
}

type WorkerConfig struct {
	PoolSize     int `yaml:"pool_size"`
	FairnessRatio int `yaml:"fairness_ratio"`
}

type BufferConfig struct {
	Capacity           int `yaml:"capacity"`
	SubscriberQueueLen int `yaml:"subscriber_queue_len"`
}

// RateLimitConfig guards the manual /analyze endpoint: a per-client-IP
// token bucket, plus a system-wide goroutine-count based load shedder
// that paces or drops requests before the process falls over.
type RateLimitConfig struct {
	// Enabled is not YAML-configurable: rate limiting on the manual
	// analysis endpoint is always on, applyDefaults sets it.
	Enabled           bool    `yaml:"-"`
	ClientQPS         float64 `yaml:"client_qps"`
	ClientBurst       int     `yaml:"client_burst"`
	MaxGoroutines     int     `yaml:"max_goroutines"`
	HardMaxGoroutines int     `yaml:"hard_max_goroutines"`
	BaseDelay         string  `yaml:"base_delay"`
	MaxDelay          string  `yaml:"max_delay"`
	CleanupInterval   string  `yaml:"cleanup_interval"`
	ClientExpiration  string  `yaml:"client_expiration"`

	parsedBaseDelay         time.Duration
	parsedMaxDelay          time.Duration
	parsedCleanupInterval   time.Duration
	parsedClientExpiration  time.Duration
}

var config *Config

func LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := InitLogger(cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	loadCredentials(&cfg)

	if err := parseDurations(&cfg); err != nil {
		return fmt.Errorf("failed to parse config durations: %w", err)
	}

	config = &cfg
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "0.0.0.0:8080"
	}
	if cfg.Server.HistorySize == 0 {
		cfg.Server.HistorySize = 200
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Poller.PollInterval == "" {
		cfg.Poller.PollInterval = "30s"
	}
	if cfg.Poller.BatchLimit == 0 {
		cfg.Poller.BatchLimit = 100
	}
	if cfg.Poller.Timeout == "" {
		cfg.Poller.Timeout = "10s"
	}
	if cfg.Dedup.Window == 0 {
		cfg.Dedup.Window = 5000
	}
	if cfg.Cache.MemoryCapacity == 0 {
		cfg.Cache.MemoryCapacity = 5000
	}
	if cfg.Cache.MemoryTTL == "" {
		cfg.Cache.MemoryTTL = "5m"
	}
	if cfg.Cache.DiskCapacity == 0 {
		cfg.Cache.DiskCapacity = 50000
	}
	if cfg.Cache.DiskTTL == "" {
		cfg.Cache.DiskTTL = "1h"
	}
	if cfg.Cache.SweepInterval == "" {
		cfg.Cache.SweepInterval = "60s"
	}
	if cfg.Classifier.MetadataThreshold == 0 {
		cfg.Classifier.MetadataThreshold = 0.75
	}
	if cfg.Classifier.SignatureStaleAfter == "" {
		cfg.Classifier.SignatureStaleAfter = "720h" // 30 days
	}
	if cfg.Heuristic.InitialEntropyThreshold == 0 {
		cfg.Heuristic.InitialEntropyThreshold = 3.8
	}
	if cfg.Heuristic.DigitRatioThreshold == 0 {
		cfg.Heuristic.DigitRatioThreshold = 0.3
	}
	if cfg.Heuristic.TuningWindow == 0 {
		cfg.Heuristic.TuningWindow = 500
	}
	if cfg.Anomaly.RingBufferSize == 0 {
		cfg.Anomaly.RingBufferSize = 10000
	}
	if cfg.Anomaly.MinSamples == 0 {
		cfg.Anomaly.MinSamples = 10
	}
	if cfg.Anomaly.InitialThreshold == 0 {
		cfg.Anomaly.InitialThreshold = -0.1
	}
	if cfg.Reasoning.Timeout == "" {
		cfg.Reasoning.Timeout = "10s"
	}
	if cfg.Reasoning.QPS == 0 {
		cfg.Reasoning.QPS = 5
	}
	if cfg.Reasoning.Burst == 0 {
		cfg.Reasoning.Burst = 10
	}
	if cfg.Learner.SnapshotInterval == "" {
		cfg.Learner.SnapshotInterval = "60s"
	}
	if cfg.Learner.SnapshotPath == "" {
		cfg.Learner.SnapshotPath = "signatures.snap"
	}
	if cfg.Workers.PoolSize == 0 {
		cfg.Workers.PoolSize = 8
	}
	if cfg.Workers.FairnessRatio == 0 {
		cfg.Workers.FairnessRatio = 4
	}
	if cfg.Buffer.Capacity == 0 {
		cfg.Buffer.Capacity = 200
	}
	if cfg.Buffer.SubscriberQueueLen == 0 {
		cfg.Buffer.SubscriberQueueLen = 32
	}
	cfg.RateLimit.Enabled = true
	if cfg.RateLimit.ClientQPS == 0 {
		cfg.RateLimit.ClientQPS = 2
	}
	if cfg.RateLimit.ClientBurst == 0 {
		cfg.RateLimit.ClientBurst = 5
	}
	if cfg.RateLimit.MaxGoroutines == 0 {
		cfg.RateLimit.MaxGoroutines = 4000
	}
	if cfg.RateLimit.HardMaxGoroutines == 0 {
		cfg.RateLimit.HardMaxGoroutines = 8000
	}
	if cfg.RateLimit.BaseDelay == "" {
		cfg.RateLimit.BaseDelay = "10ms"
	}
	if cfg.RateLimit.MaxDelay == "" {
		cfg.RateLimit.MaxDelay = "500ms"
	}
	if cfg.RateLimit.CleanupInterval == "" {
		cfg.RateLimit.CleanupInterval = "1m"
	}
	if cfg.RateLimit.ClientExpiration == "" {
		cfg.RateLimit.ClientExpiration = "5m"
	}
}

// loadCredentials reads secrets from the environment only. An absent
// credential disables the owning subsystem with a logged warning.
func loadCredentials(cfg *Config) {
	cfg.Poller.User = os.Getenv("UPSTREAM_USER")
	cfg.Poller.Pass = os.Getenv("UPSTREAM_PASS")
	if len(cfg.Poller.URLs) == 0 {
		LogWarn("[CONFIG] poller.urls is empty; poller disabled, manual analysis still works")
		cfg.Poller.Enabled = false
	} else {
		cfg.Poller.Enabled = true
	}

	cfg.Reasoning.APIKey = os.Getenv("REASONING_API_KEY")
	if cfg.Reasoning.APIKey == "" {
		LogWarn("[CONFIG] REASONING_API_KEY not set; reasoning tier disabled, pipeline falls back to lower tiers")
		cfg.Reasoning.Enabled = false
	} else {
		cfg.Reasoning.Enabled = true
	}

	cfg.Ledger.ID = os.Getenv("LEDGER_ID")
	cfg.Ledger.Credentials = os.Getenv("LEDGER_CREDENTIALS")
	if cfg.Ledger.ID == "" || cfg.Ledger.Credentials == "" {
		LogWarn("[CONFIG] LEDGER_ID/LEDGER_CREDENTIALS not set; ledger sink disabled, verdicts still committed and served")
		cfg.Ledger.Enabled = false
	} else {
		cfg.Ledger.Enabled = true
	}
}

func parseDurations(cfg *Config) error {
	var err error
	if cfg.Poller.parsedPollInterval, err = time.ParseDuration(cfg.Poller.PollInterval); err != nil {
		return fmt.Errorf("poller.poll_interval: %w", err)
	}
	if cfg.Poller.parsedPollInterval < 5*time.Second {
		LogWarn("[CONFIG] poller.poll_interval below 5s floor, clamping")
		cfg.Poller.parsedPollInterval = 5 * time.Second
	}
	if cfg.Poller.parsedTimeout, err = time.ParseDuration(cfg.Poller.Timeout); err != nil {
		return fmt.Errorf("poller.timeout: %w", err)
	}
	if cfg.Cache.parsedMemoryTTL, err = time.ParseDuration(cfg.Cache.MemoryTTL); err != nil {
		return fmt.Errorf("cache.memory_ttl: %w", err)
	}
	if cfg.Cache.parsedDiskTTL, err = time.ParseDuration(cfg.Cache.DiskTTL); err != nil {
		return fmt.Errorf("cache.disk_ttl: %w", err)
	}
	if cfg.Cache.parsedSweepInterval, err = time.ParseDuration(cfg.Cache.SweepInterval); err != nil {
		return fmt.Errorf("cache.sweep_interval: %w", err)
	}
	if cfg.Classifier.parsedStaleAfter, err = time.ParseDuration(cfg.Classifier.SignatureStaleAfter); err != nil {
		return fmt.Errorf("classifier.signature_stale_after: %w", err)
	}
	if cfg.Reasoning.parsedTimeout, err = time.ParseDuration(cfg.Reasoning.Timeout); err != nil {
		return fmt.Errorf("reasoning.timeout: %w", err)
	}
	if cfg.Learner.parsedSnapshotInterval, err = time.ParseDuration(cfg.Learner.SnapshotInterval); err != nil {
		return fmt.Errorf("learner.snapshot_interval: %w", err)
	}
	if cfg.RateLimit.parsedBaseDelay, err = time.ParseDuration(cfg.RateLimit.BaseDelay); err != nil {
		return fmt.Errorf("rate_limit.base_delay: %w", err)
	}
	if cfg.RateLimit.parsedMaxDelay, err = time.ParseDuration(cfg.RateLimit.MaxDelay); err != nil {
		return fmt.Errorf("rate_limit.max_delay: %w", err)
	}
	if cfg.RateLimit.parsedCleanupInterval, err = time.ParseDuration(cfg.RateLimit.CleanupInterval); err != nil {
		return fmt.Errorf("rate_limit.cleanup_interval: %w", err)
	}
	if cfg.RateLimit.parsedClientExpiration, err = time.ParseDuration(cfg.RateLimit.ClientExpiration); err != nil {
		return fmt.Errorf("rate_limit.client_expiration: %w", err)
	}
	return nil
}
