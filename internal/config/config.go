// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/searchlab/search-eval/internal/pkg/errors"
)

// Config holds all application configuration.
type Config struct {
	// Pooling configuration
	Pool PoolConfig `yaml:"pool"`

	// Labeling configuration
	Label LabelConfig `yaml:"label"`

	// Judge (relevance classifier) configuration
	Judge JudgeConfig `yaml:"judge"`

	// Judgment store configuration
	Judgments JudgmentsConfig `yaml:"judgments"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics"`

	// Qdrant configuration (result fetching)
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Event bus configuration
	Bus BusConfig `yaml:"bus"`

	// Logging configuration
	Log LogConfig `yaml:"log"`
}

// PoolConfig holds depth-K pooling settings.
type PoolConfig struct {
	DepthK int `envconfig:"SEVAL_DEPTH_K" yaml:"depth_k"`
}

// LabelConfig holds labeling orchestrator settings.
type LabelConfig struct {
	Concurrency int           `envconfig:"SEVAL_LABEL_CONCURRENCY" yaml:"concurrency"`
	SkipJudged  bool          `envconfig:"SEVAL_LABEL_SKIP_JUDGED" yaml:"skip_judged"`
	Limit       int           `envconfig:"SEVAL_LABEL_LIMIT" yaml:"limit"` // 0 = no limit
	CallTimeout time.Duration `envconfig:"SEVAL_LABEL_CALL_TIMEOUT" yaml:"call_timeout"`
	LabeledBy   string        `envconfig:"SEVAL_LABELED_BY" yaml:"labeled_by"`
}

// JudgeConfig holds settings for the LLM relevance judge.
type JudgeConfig struct {
	APIKey            string  `envconfig:"SEVAL_OPENAI_API_KEY" yaml:"api_key"`
	BaseURL           string  `envconfig:"SEVAL_OPENAI_BASE_URL" yaml:"base_url"` // empty = official API
	Model             string  `envconfig:"SEVAL_JUDGE_MODEL" yaml:"model"`
	EmbedModel        string  `envconfig:"SEVAL_EMBED_MODEL" yaml:"embed_model"`
	Temperature       float32 `envconfig:"SEVAL_JUDGE_TEMPERATURE" yaml:"temperature"`
	MaxTokens         int     `envconfig:"SEVAL_JUDGE_MAX_TOKENS" yaml:"max_tokens"`
	RequestsPerSecond float64 `envconfig:"SEVAL_JUDGE_RPS" yaml:"requests_per_second"` // 0 = unlimited
}

// JudgmentsConfig holds judgment store settings.
type JudgmentsConfig struct {
	Backend  string `envconfig:"SEVAL_JUDGMENTS_BACKEND" yaml:"backend"` // memory, file, redis
	FilePath string `envconfig:"SEVAL_JUDGMENTS_FILE" yaml:"file_path"`
	RedisURL string `envconfig:"SEVAL_JUDGMENTS_REDIS_URL" yaml:"redis_url"`
}

// MetricsConfig holds metric computation settings.
type MetricsConfig struct {
	KValues []int `envconfig:"SEVAL_K_VALUES" yaml:"k_values"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	Host             string `envconfig:"SEVAL_QDRANT_HOST" yaml:"host"`
	Port             int    `envconfig:"SEVAL_QDRANT_PORT" yaml:"port"`
	APIKey           string `envconfig:"SEVAL_QDRANT_API_KEY" yaml:"api_key"`
	UseTLS           bool   `envconfig:"SEVAL_QDRANT_TLS" yaml:"use_tls"`
	CollectionPrefix string `envconfig:"SEVAL_QDRANT_COLLECTION_PREFIX" yaml:"collection_prefix"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Type         string `envconfig:"SEVAL_BUS_TYPE" yaml:"type"` // none, memory, kafka
	KafkaBrokers string `envconfig:"SEVAL_KAFKA_BROKERS" yaml:"kafka_brokers"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"SEVAL_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"SEVAL_LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Pool = PoolConfig{
		DepthK: 20,
	}

	cfg.Label = LabelConfig{
		Concurrency: 10,
		SkipJudged:  true,
		CallTimeout: 120 * time.Second,
		LabeledBy:   "ai-judge",
	}

	cfg.Judge = JudgeConfig{
		Model:       "gpt-4o-mini",
		EmbedModel:  "text-embedding-3-small",
		Temperature: 0.1,
		MaxTokens:   200,
	}

	cfg.Judgments = JudgmentsConfig{
		Backend:  "file",
		FilePath: "data/judgments.csv",
		RedisURL: "redis://localhost:6379",
	}

	cfg.Metrics = MetricsConfig{
		KValues: []int{5, 10, 20},
	}

	cfg.Qdrant = QdrantConfig{
		Host:             "localhost",
		Port:             6334,
		CollectionPrefix: "seval_",
	}

	cfg.Bus = BusConfig{
		Type: "none",
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Pool.DepthK < 1 {
		errs = append(errs, "pool depth_k must be positive")
	}

	if c.Label.Concurrency < 1 {
		errs = append(errs, "label concurrency must be positive")
	}

	if c.Label.Limit < 0 {
		errs = append(errs, "label limit must not be negative")
	}

	if c.Label.CallTimeout <= 0 {
		errs = append(errs, "label call_timeout must be positive")
	}

	validBackends := map[string]bool{"memory": true, "file": true, "redis": true}
	if !validBackends[c.Judgments.Backend] {
		errs = append(errs, fmt.Sprintf("invalid judgments backend: %s (must be memory, file, or redis)", c.Judgments.Backend))
	}
	if c.Judgments.Backend == "file" && c.Judgments.FilePath == "" {
		errs = append(errs, "judgments file_path is required for the file backend")
	}
	if c.Judgments.Backend == "redis" && c.Judgments.RedisURL == "" {
		errs = append(errs, "judgments redis_url is required for the redis backend")
	}

	if len(c.Metrics.KValues) == 0 {
		errs = append(errs, "metrics k_values must not be empty")
	}
	for _, k := range c.Metrics.KValues {
		if k < 1 {
			errs = append(errs, fmt.Sprintf("metrics k value must be positive, got %d", k))
		}
	}

	validBusTypes := map[string]bool{"none": true, "memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be none, memory, or kafka)", c.Bus.Type))
	}
	if c.Bus.Type == "kafka" && c.Bus.KafkaBrokers == "" {
		errs = append(errs, "kafka_brokers is required for the kafka bus")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s", c.Log.Format))
	}

	if len(errs) > 0 {
		return errors.ConfigurationError(strings.Join(errs, "; "))
	}

	return nil
}

// KafkaBrokerList returns the configured Kafka brokers as a slice.
func (c *BusConfig) KafkaBrokerList() []string {
	if c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if b := strings.TrimSpace(p); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
