// Package config loads runtime settings from the environment, with an
// optional YAML overlay for the accounting tiers.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration for the raffle service.
type Config struct {
	Server struct {
		Address       string        `env:"HTTP_ADDR,default=:8080" yaml:"address"`
		AuthToken     string        `env:"HTTP_AUTH_TOKEN" yaml:"auth_token"`
		RateLimit     float64       `env:"HTTP_RATE_LIMIT,default=0" yaml:"rate_limit"`
		RateBurst     int           `env:"HTTP_RATE_BURST,default=0" yaml:"rate_burst"`
		ShutdownGrace time.Duration `env:"HTTP_SHUTDOWN_GRACE,default=10s" yaml:"shutdown_grace"`
	} `yaml:"server"`

	Database struct {
		// DSN selects the postgres store when set; empty runs in-memory.
		DSN          string `env:"DATABASE_URL" yaml:"dsn"`
		MaxOpenConns int    `env:"DATABASE_MAX_OPEN_CONNS,default=10" yaml:"max_open_conns"`
		Migrate      bool   `env:"DATABASE_MIGRATE,default=true" yaml:"migrate"`
	} `yaml:"database"`

	Logging struct {
		Level      string `env:"LOG_LEVEL,default=info" yaml:"level"`
		Format     string `env:"LOG_FORMAT,default=json" yaml:"format"`
		Output     string `env:"LOG_OUTPUT,default=stdout" yaml:"output"`
		FilePrefix string `env:"LOG_FILE_PREFIX" yaml:"file_prefix"`
	} `yaml:"logging"`

	Royalty struct {
		BaseRate     uint64 `env:"ROYALTY_BASE_RATE,default=500" yaml:"base_rate"`
		OverflowRate uint64 `env:"ROYALTY_OVERFLOW_RATE,default=1000" yaml:"overflow_rate"`
		Treasury     string `env:"ROYALTY_TREASURY,default=treasury" yaml:"treasury"`
	} `yaml:"royalty"`

	SweepSchedule string `env:"SEED_SWEEP_SCHEDULE,default=@every 1m" yaml:"sweep_schedule"`
}

// Load reads .env when present, decodes the environment and applies the YAML
// overlay named by CONFIG_FILE.
func Load() (*Config, error) {
	_ = godotenv.Load() // allow .env for local runs

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyOverlay(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyOverlay(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config overlay: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config overlay: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server address required")
	}
	if c.Royalty.Treasury == "" {
		return fmt.Errorf("royalty treasury account required")
	}
	return nil
}
