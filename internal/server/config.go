// Package server provides configuration helpers that define runtime
// defaults, validation, and rate-limiting parameters for the relay service.
package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
)

// RateLimitConfig defines the parameters for per-connection frame rate
// limiting.
type RateLimitConfig struct {
	Burst          int           `env:"RATE_LIMIT_BURST"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL"`
}

// Config holds the server configuration settings including security
// controls and the upload policy.
type Config struct {
	Port            string          `env:"SERVER_PORT"`
	AllowedOrigins  []string        `env:"ALLOWED_ORIGINS"`
	MaxMessageSize  int64           `env:"MAX_MESSAGE_SIZE"`
	RateLimit       RateLimitConfig
	UploadDir       string        `env:"UPLOAD_DIR"`
	MaxUploadSize   int64         `env:"MAX_UPLOAD_SIZE"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`
}

var (
	configMu        sync.RWMutex
	activeConfig    Config
	allowedOrigins  map[string]struct{}
	allowAllOrigins bool
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
			"http://localhost:5173",
		},
		MaxMessageSize: 4096,
		RateLimit: RateLimitConfig{
			Burst:          10,
			RefillInterval: time.Second,
		},
		UploadDir:       "uploads",
		MaxUploadSize:   10 << 20,
		ShutdownTimeout: 10 * time.Second,
	}
}

func sanitizeConfig(cfg Config) Config {
	def := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = def.UploadDir
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = def.MaxUploadSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	normalizedOrigins, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	cfg.AllowedOrigins = normalizedOrigins

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	allowAllOrigins = allowAll
	allowedOrigins = make(map[string]struct{}, len(normalizedOrigins))
	for _, origin := range normalizedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to
// defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		defaultCfg := defaultConfig()
		sanitizeConfig(defaultCfg)
		return
	}

	sanitized := *cfg
	sanitized.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	sanitizeConfig(sanitized)
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all
// settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config from environment variables layered over
// the defaults. Unset variables leave the default in place.
func NewConfigFromEnv() (*Config, error) {
	cfg := defaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}
