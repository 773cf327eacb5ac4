// Package config loads gateway configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	// Platform connection.
	PlatformBaseURL        string `mapstructure:"PLATFORM_BASE_URL"`
	PlatformPassword       string `mapstructure:"PLATFORM_PASSWORD"`
	PlatformTimeoutSeconds int    `mapstructure:"PLATFORM_TIMEOUT_SECONDS"`
	PlatformMaxAttempts    int    `mapstructure:"PLATFORM_MAX_ATTEMPTS"`
	ProgramCode            string `mapstructure:"PROGRAM_CODE"`
	MinSlotCapacity        int    `mapstructure:"MIN_SLOT_CAPACITY"`

	// Audit store and event bus.
	DatabaseURL  string   `mapstructure:"DATABASE_URL"`
	KafkaBrokers []string `mapstructure:"KAFKA_BROKERS"`

	// Audit relay.
	RelayWorkers      int `mapstructure:"RELAY_WORKERS"`
	RelayBatchSize    int `mapstructure:"RELAY_BATCH_SIZE"`
	RelayIntervalSecs int `mapstructure:"RELAY_INTERVAL_SECONDS"`

	// Gateway surface.
	APIKey      string   `mapstructure:"API_KEY"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Observability.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("PLATFORM_TIMEOUT_SECONDS", 30)
	v.SetDefault("PLATFORM_MAX_ATTEMPTS", 3)
	v.SetDefault("PROGRAM_CODE", "DR-AC")
	v.SetDefault("MIN_SLOT_CAPACITY", 1)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("RELAY_WORKERS", 4)
	v.SetDefault("RELAY_BATCH_SIZE", 100)
	v.SetDefault("RELAY_INTERVAL_SECONDS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	for _, key := range []string{
		"PORT", "ENV",
		"PLATFORM_BASE_URL", "PLATFORM_PASSWORD", "PLATFORM_TIMEOUT_SECONDS",
		"PLATFORM_MAX_ATTEMPTS", "PROGRAM_CODE", "MIN_SLOT_CAPACITY",
		"DATABASE_URL", "KAFKA_BROKERS",
		"RELAY_WORKERS", "RELAY_BATCH_SIZE", "RELAY_INTERVAL_SECONDS",
		"API_KEY", "CORS_ORIGINS", "OTLP_ENDPOINT",
	} {
		v.BindEnv(key)
	}

	// The .env file is a local convenience, not a requirement.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Viper leaves comma-joined env values as single-element slices.
	cfg.KafkaBrokers = splitList(v.GetString("KAFKA_BROKERS"))
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	return cfg, nil
}

func (c *Config) IsDev() bool { return c.Env == "development" }

func (c *Config) IsProduction() bool { return c.Env == "production" }

// PlatformTimeout returns the per-attempt call timeout.
func (c *Config) PlatformTimeout() time.Duration {
	return time.Duration(c.PlatformTimeoutSeconds) * time.Second
}

// RelayInterval returns the outbox polling interval.
func (c *Config) RelayInterval() time.Duration {
	return time.Duration(c.RelayIntervalSecs) * time.Second
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.PlatformBaseURL == "" {
		return fmt.Errorf("PLATFORM_BASE_URL is required")
	}
	u, err := url.Parse(c.PlatformBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("PLATFORM_BASE_URL must be an http(s) URL, got %q", c.PlatformBaseURL)
	}
	if c.IsProduction() {
		if u.Scheme != "https" {
			return fmt.Errorf("PLATFORM_BASE_URL must use https in production")
		}
		if c.PlatformPassword == "" {
			return fmt.Errorf("PLATFORM_PASSWORD is required in production")
		}
		if c.APIKey == "" {
			return fmt.Errorf("API_KEY is required in production")
		}
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.PlatformTimeoutSeconds <= 0 {
		return fmt.Errorf("PLATFORM_TIMEOUT_SECONDS must be positive, got %d", c.PlatformTimeoutSeconds)
	}
	if c.PlatformMaxAttempts <= 0 {
		return fmt.Errorf("PLATFORM_MAX_ATTEMPTS must be positive, got %d", c.PlatformMaxAttempts)
	}
	return nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
