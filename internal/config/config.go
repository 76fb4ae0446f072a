// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

type WorkerConfig struct {
	Count        int           `yaml:"count"`          // pool goroutines
	PollInterval time.Duration `yaml:"poll_interval"`  // dispatcher poll cadence
	ClaimBatch   int           `yaml:"claim_batch"`    // pending candidates per claim scan
	StoreBackoff time.Duration `yaml:"store_backoff"`  // wait after a store outage
	StoreRetries int           `yaml:"store_retries"`  // consecutive outages before surfacing
}

type ReaperConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Interval       time.Duration `yaml:"interval"`
	RunningTimeout time.Duration `yaml:"running_timeout"`
}

type AdminConfig struct {
	Port       int           `yaml:"port"`
	APIKey     string        `yaml:"api_key"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type AuditConfig struct {
	// Backend selects where audit events go: "postgres" | "log".
	Backend string `yaml:"backend"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Worker   WorkerConfig   `yaml:"worker"`
	Reaper   ReaperConfig   `yaml:"reaper"`
	Admin    AdminConfig    `yaml:"admin"`
	Audit    AuditConfig    `yaml:"audit"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Worker.Count <= 0 {
		cfg.Worker.Count = 8
	}
	if cfg.Worker.PollInterval <= 0 {
		cfg.Worker.PollInterval = 500 * time.Millisecond
	}
	if cfg.Worker.ClaimBatch <= 0 {
		cfg.Worker.ClaimBatch = 5
	}
	if cfg.Worker.StoreBackoff <= 0 {
		cfg.Worker.StoreBackoff = 2 * time.Second
	}
	if cfg.Worker.StoreRetries <= 0 {
		cfg.Worker.StoreRetries = 10
	}
	if cfg.Reaper.Interval <= 0 {
		cfg.Reaper.Interval = time.Minute
	}
	if cfg.Reaper.RunningTimeout <= 0 {
		cfg.Reaper.RunningTimeout = 10 * time.Minute
	}
	if cfg.Admin.Port <= 0 {
		cfg.Admin.Port = 8081
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = "postgres"
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.Enabled && cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required when redis is enabled")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
