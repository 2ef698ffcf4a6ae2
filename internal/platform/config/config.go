// Package config loads and validates service configuration from the environment
// and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	dErrors "solsignal/pkg/domain-errors"
	"solsignal/pkg/platform/strings"
)

// Secret names resolved at call time.
const (
	SecretPostmarkAPIKey   = "POSTMARK_API_KEY"
	SecretHeliusAPIKey     = "HELIUS_API_KEY"
	SecretHeliusAuthHeader = "HELIUS_AUTH_HEADER"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the listen address of the HTTP server.
	HTTPAddr  string `mapstructure:"HTTP_ADDR"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// DatabaseURL is the Postgres DSN. Empty selects in-memory stores.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL, when set, caches the aggregate document in Redis.
	RedisURL string `mapstructure:"REDIS_URL"`

	// KafkaBrokers is a comma-separated broker list. Empty keeps lifecycle
	// events in-process.
	KafkaBrokers   string `mapstructure:"KAFKA_BROKERS"`
	LifecycleTopic string `mapstructure:"LIFECYCLE_TOPIC"`
	KafkaGroupID   string `mapstructure:"KAFKA_GROUP_ID"`

	// HeliusWebhookID is the registry list every subscription address is added to.
	HeliusWebhookID string `mapstructure:"HELIUS_WEBHOOK_ID"`
	HeliusBaseURL   string `mapstructure:"HELIUS_BASE_URL"`

	PostmarkBaseURL       string `mapstructure:"POSTMARK_BASE_URL"`
	PostmarkFrom          string `mapstructure:"POSTMARK_FROM"`
	PostmarkMessageStream string `mapstructure:"POSTMARK_MESSAGE_STREAM"`
	PostmarkTemplateAlias string `mapstructure:"POSTMARK_TEMPLATE_ALIAS"`

	// AppBaseURL prefixes the alert and login links rendered into notifications.
	AppBaseURL   string `mapstructure:"APP_BASE_URL"`
	SupportEmail string `mapstructure:"SUPPORT_EMAIL"`

	// IngressAuthHeaderName is the request header carrying the shared secret.
	IngressAuthHeaderName string `mapstructure:"INGRESS_AUTH_HEADER_NAME"`
	DispatchConcurrency   int    `mapstructure:"DISPATCH_CONCURRENCY"`

	RelayPollInterval time.Duration `mapstructure:"RELAY_POLL_INTERVAL"`
	RelayBatchSize    int           `mapstructure:"RELAY_BATCH_SIZE"`
	RelayMaxAttempts  int           `mapstructure:"RELAY_MAX_ATTEMPTS"`

	// AggregateDocID identifies the aggregate configuration document.
	AggregateDocID string `mapstructure:"AGGREGATE_DOC_ID"`

	Secrets Secrets `mapstructure:",squash"`
}

// Secrets are provisioned by the deployment. Their absence never blocks
// startup; every invocation checks the ones it needs with Require.
type Secrets struct {
	PostmarkAPIKey   string `mapstructure:"POSTMARK_API_KEY"`
	HeliusAPIKey     string `mapstructure:"HELIUS_API_KEY"`
	HeliusAuthHeader string `mapstructure:"HELIUS_AUTH_HEADER"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored. Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("LIFECYCLE_TOPIC", "alert-lifecycle")
	v.SetDefault("KAFKA_GROUP_ID", "solsignal-registry-sync")
	v.SetDefault("HELIUS_WEBHOOK_ID", "")
	v.SetDefault("HELIUS_BASE_URL", "https://api.helius.xyz")
	v.SetDefault("POSTMARK_BASE_URL", "https://api.postmarkapp.com")
	v.SetDefault("POSTMARK_FROM", "info@solsignal.xyz")
	v.SetDefault("POSTMARK_MESSAGE_STREAM", "alert-email-stream")
	v.SetDefault("POSTMARK_TEMPLATE_ALIAS", "solsignal-transaction-alert")
	v.SetDefault("APP_BASE_URL", "https://solsignal.xyz")
	v.SetDefault("SUPPORT_EMAIL", "support@solsignal.xyz")
	v.SetDefault("INGRESS_AUTH_HEADER_NAME", "Authorization")
	v.SetDefault("DISPATCH_CONCURRENCY", 8)
	v.SetDefault("RELAY_POLL_INTERVAL", "2s")
	v.SetDefault("RELAY_BATCH_SIZE", 50)
	v.SetDefault("RELAY_MAX_ATTEMPTS", 5)
	v.SetDefault("AGGREGATE_DOC_ID", "solsignal")
	v.SetDefault(SecretPostmarkAPIKey, "")
	v.SetDefault(SecretHeliusAPIKey, "")
	v.SetDefault(SecretHeliusAuthHeader, "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.IngressAuthHeaderName == "" {
		return errors.New("config: INGRESS_AUTH_HEADER_NAME must be set")
	}
	if c.DispatchConcurrency < 1 {
		return errors.New("config: DISPATCH_CONCURRENCY must be at least 1")
	}
	if c.RelayPollInterval <= 0 {
		return errors.New("config: RELAY_POLL_INTERVAL must be positive")
	}
	if c.RelayBatchSize < 1 {
		return errors.New("config: RELAY_BATCH_SIZE must be at least 1")
	}
	if c.RelayMaxAttempts < 1 {
		return errors.New("config: RELAY_MAX_ATTEMPTS must be at least 1")
	}
	if c.KafkaBrokers != "" && c.LifecycleTopic == "" {
		return errors.New("config: LIFECYCLE_TOPIC must be set when KAFKA_BROKERS is set")
	}
	if c.AggregateDocID == "" {
		return errors.New("config: AGGREGATE_DOC_ID must be set")
	}
	return nil
}

// Brokers splits KafkaBrokers into a broker list.
func (c *Config) Brokers() []string {
	return strings.SplitList(c.KafkaBrokers)
}

// Require returns a configuration error naming the first secret in names that
// is not set.
func (s Secrets) Require(names ...string) error {
	for _, name := range names {
		if s.value(name) == "" {
			return dErrors.New(dErrors.CodeConfiguration, name+" is not set")
		}
	}
	return nil
}

// Missing lists every unset secret, used for the startup warning.
func (s Secrets) Missing() []string {
	var missing []string
	for _, name := range []string{SecretPostmarkAPIKey, SecretHeliusAPIKey, SecretHeliusAuthHeader} {
		if s.value(name) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func (s Secrets) value(name string) string {
	switch name {
	case SecretPostmarkAPIKey:
		return s.PostmarkAPIKey
	case SecretHeliusAPIKey:
		return s.HeliusAPIKey
	case SecretHeliusAuthHeader:
		return s.HeliusAuthHeader
	default:
		return ""
	}
}

// IngressSecret resolves the shared secret expected on the transaction update
// webhook. The ingress also needs the Postmark key to do any work, so both are
// required.
func (s Secrets) IngressSecret() (string, error) {
	if err := s.Require(SecretHeliusAuthHeader, SecretPostmarkAPIKey); err != nil {
		return "", err
	}
	return s.HeliusAuthHeader, nil
}
