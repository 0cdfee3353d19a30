// Package config loads the pipeline's tunables the same way the rest of the
// codebase loads configuration: viper over environment variables with an
// optional YAML file, plus an optional .env file for local development.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// QueueBackend selects how the Coordinator's async mode enqueues work.
type QueueBackend string

const (
	QueueInMemory QueueBackend = "inmemory"
	QueueKafka    QueueBackend = "kafka"
)

// DedupBackend selects the idempotency-guard / classifier-cache storage.
type DedupBackend string

const (
	DedupMemory DedupBackend = "inmemory"
	DedupRedis  DedupBackend = "redis"
)

// Config holds every tunable named in the external interfaces section of
// the pipeline's design: cache TTLs, truncation bounds, retry and timeout
// policy, and the SLA/KB defaults.
type Config struct {
	ClassifierCacheTTLSeconds int `mapstructure:"classifier_cache_ttl_seconds"`
	ClassifierMaxTextChars    int `mapstructure:"classifier_max_text_chars"`
	SentimentMaxTextChars     int `mapstructure:"sentiment_max_text_chars"`

	ExternalCallTimeoutSeconds int `mapstructure:"external_call_timeout_seconds"`
	ExternalCallRetryAttempts  int `mapstructure:"external_call_retry_attempts"`
	ExternalCallConcurrency    int `mapstructure:"external_call_concurrency"`

	AssignmentRetryAttempts int `mapstructure:"assignment_retry_attempts"`
	PipelineDeadlineSeconds int `mapstructure:"pipeline_deadline_seconds"`
	PipelineWorkers         int `mapstructure:"pipeline_workers"`

	SLAScanIntervalMinutes int `mapstructure:"sla_scan_interval_minutes"`

	KBEmbeddingDim       int     `mapstructure:"kb_embedding_dim"`
	KBMinSimilarityScore float64 `mapstructure:"kb_min_similarity_score"`

	RouterVIPTiers []string `mapstructure:"router_vip_tiers"`

	QueueBackend QueueBackend `mapstructure:"queue_backend"`
	KafkaBrokers []string     `mapstructure:"kafka_brokers"`
	KafkaTopic   string       `mapstructure:"kafka_topic"`
	KafkaGroupID string       `mapstructure:"kafka_group_id"`

	DedupBackend DedupBackend  `mapstructure:"dedup_backend"`
	RedisAddr    string        `mapstructure:"redis_addr"`
	DedupWindow  time.Duration `mapstructure:"dedup_window"`
}

// ExternalCallTimeout is the per-call timeout as a time.Duration.
func (c *Config) ExternalCallTimeout() time.Duration {
	return time.Duration(c.ExternalCallTimeoutSeconds) * time.Second
}

// PipelineDeadline is the per-ticket processing deadline as a time.Duration.
func (c *Config) PipelineDeadline() time.Duration {
	return time.Duration(c.PipelineDeadlineSeconds) * time.Second
}

// ClassifierCacheTTL is the classifier cache entry lifetime.
func (c *Config) ClassifierCacheTTL() time.Duration {
	return time.Duration(c.ClassifierCacheTTLSeconds) * time.Second
}

// SLAScanInterval is the SLA scanner's polling cadence.
func (c *Config) SLAScanInterval() time.Duration {
	return time.Duration(c.SLAScanIntervalMinutes) * time.Minute
}

// IsVIPTier reports whether tier is configured as VIP-equivalent for
// routing purposes.
func (c *Config) IsVIPTier(tier string) bool {
	for _, t := range c.RouterVIPTiers {
		if strings.EqualFold(t, tier) {
			return true
		}
	}
	return false
}

// Load reads ticketing configuration from environment variables and an
// optional ticketing.yaml, applying defaults for every key.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("ticketing")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading ticketing config file: %w", err)
		}
	}

	v.SetEnvPrefix("TICKETING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling ticketing config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("classifier_cache_ttl_seconds", 3600)
	v.SetDefault("classifier_max_text_chars", 5000)
	v.SetDefault("sentiment_max_text_chars", 2000)

	v.SetDefault("external_call_timeout_seconds", 30)
	v.SetDefault("external_call_retry_attempts", 3)
	v.SetDefault("external_call_concurrency", 16)

	v.SetDefault("assignment_retry_attempts", 3)
	v.SetDefault("pipeline_deadline_seconds", 300)
	v.SetDefault("pipeline_workers", 8)

	v.SetDefault("sla_scan_interval_minutes", 5)

	v.SetDefault("kb_embedding_dim", 1536)
	v.SetDefault("kb_min_similarity_score", 0.5)

	v.SetDefault("router_vip_tiers", []string{"vip", "enterprise"})

	v.SetDefault("queue_backend", "inmemory")
	v.SetDefault("kafka_brokers", []string{"localhost:9092"})
	v.SetDefault("kafka_topic", "tickets.ingest")
	v.SetDefault("kafka_group_id", "ticket-pipeline")

	v.SetDefault("dedup_backend", "inmemory")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("dedup_window", "24h")
}

func bindEnvVars(v *viper.Viper) {
	keys := []string{
		"classifier_cache_ttl_seconds", "classifier_max_text_chars", "sentiment_max_text_chars",
		"external_call_timeout_seconds", "external_call_retry_attempts", "external_call_concurrency",
		"assignment_retry_attempts", "pipeline_deadline_seconds", "pipeline_workers",
		"sla_scan_interval_minutes", "kb_embedding_dim", "kb_min_similarity_score",
		"router_vip_tiers", "queue_backend", "kafka_brokers", "kafka_topic", "kafka_group_id",
		"dedup_backend", "redis_addr", "dedup_window",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}
