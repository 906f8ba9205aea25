// Package config loads runtime configuration from file and environment via
// viper, with defaults that match production tuning for the Kenyan deployment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration tree.
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Chunking   ChunkingConfig   `mapstructure:"chunking"`
	Oracle     OracleConfig     `mapstructure:"oracle"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Validation ValidationConfig `mapstructure:"validation"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr          string `mapstructure:"addr"`
	MaxUploadSize int64  `mapstructure:"max_upload_size"`
	UploadDir     string `mapstructure:"upload_dir"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"` // "inmemory" or "bigquery"
	ProjectID string `mapstructure:"project_id"`
	Dataset   string `mapstructure:"dataset"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// ChunkingConfig tunes oversized-text splitting for the oracle.
type ChunkingConfig struct {
	ChunkSize    int           `mapstructure:"chunk_size"`
	ChunkOverlap int           `mapstructure:"chunk_overlap"`
	PacingDelay  time.Duration `mapstructure:"pacing_delay"`
}

// OracleConfig tunes the text-understanding oracle client.
type OracleConfig struct {
	Model       string        `mapstructure:"model"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// QueueConfig tunes the processing queue and batch paths.
type QueueConfig struct {
	MaxAttempts      int           `mapstructure:"max_attempts"`
	DrainBatchSize   int           `mapstructure:"drain_batch_size"`
	DocumentBatch    int           `mapstructure:"document_batch"`
	BatchPacingDelay time.Duration `mapstructure:"batch_pacing_delay"`
}

// ValidationConfig carries the tunable validation knobs. The reconciliation
// tolerance is configurable per deployment; the default is one cent.
type ValidationConfig struct {
	ReconcileTolerance string `mapstructure:"reconcile_tolerance"`
	SmallFileBytes     int64  `mapstructure:"small_file_bytes"`
}

// ScoringConfig carries the regional factor weights. Weights must sum to 1.
type ScoringConfig struct {
	PaymentHistoryWeight  float64 `mapstructure:"payment_history_weight"`
	MobileMoneyWeight     float64 `mapstructure:"mobile_money_weight"`
	CooperativeWeight     float64 `mapstructure:"cooperative_weight"`
	IncomeStabilityWeight float64 `mapstructure:"income_stability_weight"`
	CommunityWeight       float64 `mapstructure:"community_weight"`
	AssetsWeight          float64 `mapstructure:"assets_weight"`
	DigitalWeight         float64 `mapstructure:"digital_weight"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_upload_size", 10*1024*1024)
	v.SetDefault("server.upload_dir", "uploads")

	v.SetDefault("storage.backend", "inmemory")
	v.SetDefault("storage.dataset", "creditlens")

	v.SetDefault("chunking.chunk_size", 4000)
	v.SetDefault("chunking.chunk_overlap", 200)
	v.SetDefault("chunking.pacing_delay", time.Second)

	v.SetDefault("oracle.model", "gemini-2.5-flash")
	v.SetDefault("oracle.max_attempts", 3)
	v.SetDefault("oracle.base_backoff", time.Second)
	v.SetDefault("oracle.max_backoff", 30*time.Second)
	v.SetDefault("oracle.timeout", 2*time.Minute)

	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.drain_batch_size", 10)
	v.SetDefault("queue.document_batch", 3)
	v.SetDefault("queue.batch_pacing_delay", 2*time.Second)

	v.SetDefault("validation.reconcile_tolerance", "0.01")
	v.SetDefault("validation.small_file_bytes", 1024)

	v.SetDefault("scoring.payment_history_weight", 0.25)
	v.SetDefault("scoring.mobile_money_weight", 0.20)
	v.SetDefault("scoring.cooperative_weight", 0.15)
	v.SetDefault("scoring.income_stability_weight", 0.15)
	v.SetDefault("scoring.community_weight", 0.10)
	v.SetDefault("scoring.assets_weight", 0.10)
	v.SetDefault("scoring.digital_weight", 0.05)
}

// Load reads configuration from the given file (optional) plus CREDITLENS_*
// environment variables, applying defaults for anything unset.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CREDITLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(err) // defaults are always valid
	}
	return cfg
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap must be in [0, chunk_size), got %d", c.Chunking.ChunkOverlap)
	}
	if c.Oracle.MaxAttempts < 1 {
		return fmt.Errorf("oracle.max_attempts must be at least 1, got %d", c.Oracle.MaxAttempts)
	}
	if c.Queue.DrainBatchSize < 1 || c.Queue.DocumentBatch < 1 {
		return fmt.Errorf("queue batch sizes must be at least 1")
	}
	sum := c.Scoring.PaymentHistoryWeight + c.Scoring.MobileMoneyWeight +
		c.Scoring.CooperativeWeight + c.Scoring.IncomeStabilityWeight +
		c.Scoring.CommunityWeight + c.Scoring.AssetsWeight + c.Scoring.DigitalWeight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("scoring weights must sum to 1, got %.3f", sum)
	}
	if c.Storage.Backend != "inmemory" && c.Storage.Backend != "bigquery" {
		return fmt.Errorf("storage.backend must be inmemory or bigquery, got %q", c.Storage.Backend)
	}
	return nil
}
