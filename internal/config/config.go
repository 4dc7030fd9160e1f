// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Host string `envconfig:"SIGHT_HOST" yaml:"host"`
	Port int    `envconfig:"SIGHT_PORT" yaml:"port"`

	// Qdrant configuration
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Embed configuration
	Embed EmbedConfig `yaml:"embed"`

	// Search configuration
	Search SearchConfig `yaml:"search"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics"`

	// Bus configuration
	Bus BusConfig `yaml:"bus"`

	// Logging configuration
	Log LogConfig `yaml:"log"`

	// Security configuration
	Security SecurityConfig `yaml:"security"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	URL              string `envconfig:"QDRANT_URL" yaml:"url"`
	APIKey           string `envconfig:"QDRANT_API_KEY" yaml:"api_key"`
	CollectionPrefix string `envconfig:"QDRANT_COLLECTION_PREFIX" yaml:"collection_prefix"`
	TimeoutSeconds   int    `envconfig:"QDRANT_TIMEOUT_SECONDS" yaml:"timeout_seconds"`
}

// EmbedConfig holds embedding provider settings.
type EmbedConfig struct {
	// URL is the base URL of the embedding inference service.
	URL string `envconfig:"SIGHT_EMBED_URL" yaml:"url"`

	// VisualDim is the dimension of visual (page) embedding vectors.
	VisualDim int `envconfig:"SIGHT_VISUAL_DIM" yaml:"visual_dim"`

	// TextDim is the dimension of text (chunk) embedding vectors.
	TextDim int `envconfig:"SIGHT_TEXT_DIM" yaml:"text_dim"`

	// TimeoutSeconds is the per-request timeout.
	TimeoutSeconds int `envconfig:"SIGHT_EMBED_TIMEOUT_SECONDS" yaml:"timeout_seconds"`
}

// SearchConfig holds search engine settings.
type SearchConfig struct {
	DefaultNResults  int  `envconfig:"SIGHT_DEFAULT_N_RESULTS" yaml:"default_n_results"`
	EnableReranking  bool `envconfig:"SIGHT_ENABLE_RERANKING" yaml:"enable_reranking"`
	RerankCandidates int  `envconfig:"SIGHT_RERANK_CANDIDATES" yaml:"rerank_candidates"`
	RerankFanout     int  `envconfig:"SIGHT_RERANK_FANOUT" yaml:"rerank_fanout"`
	StatsWindow      int  `envconfig:"SIGHT_STATS_WINDOW" yaml:"stats_window"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled  bool   `envconfig:"SIGHT_METRICS_ENABLED" yaml:"enabled"`
	RedisURL string `envconfig:"SIGHT_METRICS_REDIS_URL" yaml:"redis_url"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Type          string `envconfig:"SIGHT_BUS_TYPE" yaml:"type"`
	KafkaBrokers  string `envconfig:"SIGHT_KAFKA_BROKERS" yaml:"kafka_brokers"`
	ConsumerGroup string `envconfig:"SIGHT_KAFKA_CONSUMER_GROUP" yaml:"consumer_group"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"SIGHT_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"SIGHT_LOG_FORMAT" yaml:"format"`
}

// SecurityConfig holds security settings.
type SecurityConfig struct {
	APIKey    string `envconfig:"SIGHT_API_KEY" yaml:"api_key"`
	RateLimit int    `envconfig:"SIGHT_RATE_LIMIT" yaml:"rate_limit"` // 0 = disabled
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
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
	cfg.Host = "0.0.0.0"
	cfg.Port = 8080

	cfg.Qdrant = QdrantConfig{
		URL:              "http://localhost:6333",
		CollectionPrefix: "sight_",
		TimeoutSeconds:   30,
	}

	cfg.Embed = EmbedConfig{
		URL:            "http://localhost:8091",
		VisualDim:      128,
		TextDim:        128,
		TimeoutSeconds: 30,
	}

	cfg.Search = SearchConfig{
		DefaultNResults:  10,
		EnableReranking:  true,
		RerankCandidates: 50,
		RerankFanout:     8,
		StatsWindow:      500,
	}

	cfg.Metrics = MetricsConfig{
		Enabled: true,
	}

	cfg.Bus = BusConfig{
		Type:          "memory",
		ConsumerGroup: "sightline",
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	if c.Embed.VisualDim < 1 {
		errs = append(errs, "visual_dim must be positive")
	}
	if c.Embed.TextDim < 1 {
		errs = append(errs, "text_dim must be positive")
	}

	if c.Search.DefaultNResults < 1 {
		errs = append(errs, "default_n_results must be positive")
	}
	if c.Search.RerankCandidates < 1 {
		errs = append(errs, "rerank_candidates must be positive")
	}
	if c.Search.RerankFanout < 1 {
		errs = append(errs, "rerank_fanout must be positive")
	}
	if c.Search.StatsWindow < 100 || c.Search.StatsWindow > 1000 {
		errs = append(errs, "stats_window must be between 100 and 1000")
	}

	validBusTypes := map[string]bool{"memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be memory or kafka)", c.Bus.Type))
	}
	if c.Bus.Type == "kafka" && c.Bus.KafkaBrokers == "" {
		errs = append(errs, "kafka_brokers is required when bus type is kafka")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Address returns the server address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
