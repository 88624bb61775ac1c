package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	ServerAddr     string        `env:"GO_PRESENCE_ADDR"`
	DatabaseDSN    string        `env:"GO_PRESENCE_DSN"`
	SigningSecret  string        `env:"GO_PRESENCE_SIGNING_KEY"`
	AllowedOrigins []string      `env:"GO_PRESENCE_ALLOWED_ORIGINS" envSeparator:","`
	TypingTimeout  time.Duration `env:"GO_PRESENCE_TYPING_TIMEOUT" envDefault:"3s"`
	SweepInterval  time.Duration `env:"GO_PRESENCE_SWEEP_INTERVAL" envDefault:"30s"`
	LedgerMaxAge   time.Duration `env:"GO_PRESENCE_LEDGER_MAX_AGE" envDefault:"1h"`

	SigningKey []byte `env:"-"`
}

// NewConfig builds a Config from the environment, then applies any non-empty
// flag overrides. Flag values win over environment values.
func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if serverAddr != "" {
		cfg.ServerAddr = serverAddr
	}
	if databaseDSN != "" {
		cfg.DatabaseDSN = databaseDSN
	}
	if base64Secret != "" {
		cfg.SigningSecret = base64Secret
	}
	if len(allowedOrigins) > 0 {
		cfg.AllowedOrigins = allowedOrigins
	}

	if cfg.ServerAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if cfg.SigningSecret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := base64.StdEncoding.DecodeString(cfg.SigningSecret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}
	cfg.SigningKey = signingKey

	if cfg.TypingTimeout <= 0 {
		cfg.TypingTimeout = 3 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if cfg.LedgerMaxAge <= 0 {
		cfg.LedgerMaxAge = time.Hour
	}

	return cfg, nil
}
