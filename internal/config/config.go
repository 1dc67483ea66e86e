// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"identity-core/internal/security"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// DatabaseURL is the Postgres DSN; empty selects the in-process stores.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// JWTAccessSecret signs access tokens. Required.
	JWTAccessSecret string `mapstructure:"JWT_ACCESS_SECRET"`
	// JWTRefreshSecret signs refresh tokens. Required and independent of the access secret.
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	// JWTIssuer is the iss claim.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAccessTTL is the access token lifetime ("15m", "900", "1d").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "7d").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	AvailabilityCacheTTL      string `mapstructure:"AVAILABILITY_CACHE_TTL"`
	AvailabilityLookupTimeout string `mapstructure:"AVAILABILITY_LOOKUP_TIMEOUT"`
	AvailabilitySweepInterval string `mapstructure:"AVAILABILITY_SWEEP_INTERVAL"`

	// RegistrationStaleAfter is the age past which a pending registration is purged.
	RegistrationStaleAfter string `mapstructure:"REGISTRATION_STALE_AFTER"`
	// RegistrationCleanupHour is the local wall-clock hour (0–23) of the daily cleanup run.
	RegistrationCleanupHour int `mapstructure:"REGISTRATION_CLEANUP_HOUR"`

	SessionReapInterval string `mapstructure:"SESSION_REAP_INTERVAL"`
	SessionIdleAfter    string `mapstructure:"SESSION_IDLE_AFTER"`

	// FanoutConcurrency bounds concurrent store writes in bulk operations.
	FanoutConcurrency int `mapstructure:"FANOUT_CONCURRENCY"`

	// OTLPEndpoint enables OTLP gRPC export when set (host:port or URL).
	OTLPEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// KafkaBrokers is a comma-separated broker list. When set, activity entries are also published to Kafka.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// ActivityKafkaTopic is the topic for activity log entries.
	ActivityKafkaTopic string `mapstructure:"ACTIVITY_KAFKA_TOPIC"`
}

var durationKeys = []struct {
	key   string
	value func(*Config) string
}{
	{"JWT_ACCESS_TTL", func(c *Config) string { return c.JWTAccessTTL }},
	{"JWT_REFRESH_TTL", func(c *Config) string { return c.JWTRefreshTTL }},
	{"AVAILABILITY_CACHE_TTL", func(c *Config) string { return c.AvailabilityCacheTTL }},
	{"AVAILABILITY_LOOKUP_TIMEOUT", func(c *Config) string { return c.AvailabilityLookupTimeout }},
	{"AVAILABILITY_SWEEP_INTERVAL", func(c *Config) string { return c.AvailabilitySweepInterval }},
	{"REGISTRATION_STALE_AFTER", func(c *Config) string { return c.RegistrationStaleAfter }},
	{"SESSION_REAP_INTERVAL", func(c *Config) string { return c.SessionReapInterval }},
	{"SESSION_IDLE_AFTER", func(c *Config) string { return c.SessionIdleAfter }},
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("JWT_ISSUER", "identity-core")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "7d")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("AVAILABILITY_CACHE_TTL", "5m")
	v.SetDefault("AVAILABILITY_LOOKUP_TIMEOUT", "5s")
	v.SetDefault("AVAILABILITY_SWEEP_INTERVAL", "10m")
	v.SetDefault("REGISTRATION_STALE_AFTER", "24h")
	v.SetDefault("REGISTRATION_CLEANUP_HOUR", 2)
	v.SetDefault("SESSION_REAP_INTERVAL", "1m")
	v.SetDefault("SESSION_IDLE_AFTER", "30m")
	v.SetDefault("FANOUT_CONCURRENCY", 8)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "identity-core")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("ACTIVITY_KAFKA_TOPIC", "identity-activity")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.JWTAccessSecret == "" || cfg.JWTRefreshSecret == "" {
		return nil, errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set")
	}
	if cfg.JWTAccessSecret == cfg.JWTRefreshSecret && cfg.Env == "production" {
		return nil, errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.RegistrationCleanupHour < 0 || cfg.RegistrationCleanupHour > 23 {
		return nil, errors.New("config: REGISTRATION_CLEANUP_HOUR must be between 0 and 23")
	}
	if cfg.FanoutConcurrency <= 0 {
		cfg.FanoutConcurrency = 8
	}
	for _, d := range durationKeys {
		if _, err := security.ParseTTL(d.value(&cfg)); err != nil {
			return nil, errors.New("config: " + d.key + " is not a valid duration")
		}
	}

	return &cfg, nil
}

func ttlOr(raw string, fallback time.Duration) time.Duration {
	d, err := security.ParseTTL(raw)
	if err != nil {
		return fallback
	}
	return d
}

// AccessTTL parses JWTAccessTTL. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration { return ttlOr(c.JWTAccessTTL, 15*time.Minute) }

// RefreshTTL parses JWTRefreshTTL. Returns 7d if unset or invalid.
func (c *Config) RefreshTTL() time.Duration { return ttlOr(c.JWTRefreshTTL, 7*24*time.Hour) }

func (c *Config) CacheTTL() time.Duration { return ttlOr(c.AvailabilityCacheTTL, 5*time.Minute) }

func (c *Config) LookupTimeout() time.Duration {
	return ttlOr(c.AvailabilityLookupTimeout, 5*time.Second)
}

func (c *Config) SweepInterval() time.Duration {
	return ttlOr(c.AvailabilitySweepInterval, 10*time.Minute)
}

func (c *Config) StaleAfter() time.Duration { return ttlOr(c.RegistrationStaleAfter, 24*time.Hour) }

func (c *Config) ReapInterval() time.Duration { return ttlOr(c.SessionReapInterval, time.Minute) }

func (c *Config) IdleAfter() time.Duration { return ttlOr(c.SessionIdleAfter, 30*time.Minute) }

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list disables the Kafka activity sink.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
