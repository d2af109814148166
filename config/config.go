package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV"       envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT"      envDefault:"8080"  validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"  validate:"oneof=debug info warn error"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	// Upstream voice-agent API. Auth endpoints live under APIBaseURL with
	// AuthPathSuffix stripped.
	APIBaseURL      string        `env:"API_BASE_URL,required" validate:"required,url"`
	AuthPathSuffix  string        `env:"AUTH_PATH_SUFFIX"      envDefault:"/specialist_consultant"`
	Tenant          string        `env:"TENANT"                envDefault:"keune" validate:"required"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT"      envDefault:"0s"    validate:"min=0"`

	SessionSecret string        `env:"SESSION_SECRET,required" validate:"required,min=32"`
	SessionTTL    time.Duration `env:"SESSION_TTL"             envDefault:"24h"`
	SessionCookie string        `env:"SESSION_COOKIE"          envDefault:"agentgate_session" validate:"required"`

	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`

	RateLimitPerMin     int    `env:"RATE_LIMIT_PER_MIN"    envDefault:"10"          validate:"min=1,max=1000"`
	HealthProbeSchedule string `env:"HEALTH_PROBE_SCHEDULE" envDefault:"@every 30s" validate:"required"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel maps LOG_LEVEL onto slog levels.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SecureCookies reports whether session cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return c.Env != "local"
}
