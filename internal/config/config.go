// Package config loads the dashboard core configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Backend strategies. Selected once at startup.
const (
	BackendHTTP = "http"
	BackendFake = "fake"
)

// Token store kinds.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	APIURL       string `env:"API_URL" envDefault:"http://localhost:3001/api"`
	WebsocketURL string `env:"WEBSOCKET_URL" envDefault:"ws://localhost:3001"`
	StreamPath   string `env:"CONTENTAI_STREAM_PATH" envDefault:"/ws"`

	Backend     string        `env:"CONTENTAI_BACKEND" envDefault:"http"`
	AuthTimeout time.Duration `env:"CONTENTAI_AUTH_TIMEOUT" envDefault:"10s"`
	FakeLatency time.Duration `env:"CONTENTAI_FAKE_LATENCY" envDefault:"0s"`

	TokenStore string `env:"CONTENTAI_TOKEN_STORE" envDefault:"file"`
	TokenFile  string `env:"CONTENTAI_TOKEN_FILE"`
	DB         string `env:"CONTENTAI_DB"`
	Secret     string `env:"CONTENTAI_SECRET" envDefault:"contentai-dev-secret"`

	LogLevel string `env:"CONTENTAI_LOG_LEVEL" envDefault:"info"`

	APIRate  float64 `env:"CONTENTAI_API_RATE" envDefault:"10"`
	APIBurst int     `env:"CONTENTAI_API_BURST" envDefault:"50"`

	MetricsAddr string `env:"CONTENTAI_METRICS_ADDR"`
	SentryDSN   string `env:"SENTRY_DSN"`
	OTLPURL     string `env:"CONTENTAI_OTLP_URL"`
	OTLPUser    string `env:"CONTENTAI_OTLP_USER"`
	OTLPPass    string `env:"CONTENTAI_OTLP_PASS"`
}

// Load reads an optional .env file from the working directory and then parses the
// environment. Variables already set in the environment win over the .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse parses the environment into a validated Config.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.TokenFile == "" {
		cfg.TokenFile = defaultTokenFile()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendHTTP, BackendFake:
	default:
		return fmt.Errorf("CONTENTAI_BACKEND must be %q or %q, got %q", BackendHTTP, BackendFake, c.Backend)
	}
	switch c.TokenStore {
	case StoreMemory, StoreFile:
	case StorePostgres, StoreSQLite:
		if c.DB == "" {
			return fmt.Errorf("CONTENTAI_DB is required for the %s token store", c.TokenStore)
		}
	default:
		return fmt.Errorf("unknown CONTENTAI_TOKEN_STORE %q", c.TokenStore)
	}
	if c.AuthTimeout <= 0 {
		return fmt.Errorf("CONTENTAI_AUTH_TIMEOUT must be positive, got %s", c.AuthTimeout)
	}
	if c.Secret == "" {
		return fmt.Errorf("CONTENTAI_SECRET is required")
	}
	if c.APIRate <= 0 || c.APIBurst <= 0 {
		return fmt.Errorf("CONTENTAI_API_RATE and CONTENTAI_API_BURST must be positive")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("CONTENTAI_LOG_LEVEL: %w", err)
	}
	return nil
}

// Level returns the zerolog level for LogLevel. Validate has already vetted it.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "contentai", "session")
	}
	return filepath.Join(home, ".contentai", "session")
}
