// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port        int           `yaml:"port"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// RateLimit is requests per client IP per minute on the public payment
	// endpoints. Zero disables limiting.
	RateLimit int `yaml:"rate_limit"`
	// FrontendURL is where the receipt page sends the user back to.
	FrontendURL string `yaml:"frontend_url"`
	// JWTSecret verifies bearer tokens minted by the identity provider.
	// Empty means callbacks are treated as anonymous.
	JWTSecret string `yaml:"jwt_secret"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL       string        `yaml:"url"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	StatusTTL time.Duration `yaml:"status_ttl"`
}

type GatewayConfig struct {
	MerchantID        string   `yaml:"merchant_id"`
	APIKeyLive        string   `yaml:"api_key_live"`
	APIKeyTest        string   `yaml:"api_key_test"`
	BaseURL           string   `yaml:"base_url"`
	RedirectURL       string   `yaml:"redirect_url"`
	WebhookURL        string   `yaml:"webhook_url"`
	AllowUnsignedTest bool     `yaml:"allow_unsigned_test"`
	SuccessTokens     []string `yaml:"success_tokens"`
}

type AnalyticsConfig struct {
	Endpoints []string `yaml:"endpoints"`
	Workers   int      `yaml:"workers"`
}

type SchedulerConfig struct {
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	SweepOlderThan time.Duration `yaml:"sweep_older_than"`
	ExpiryInterval time.Duration `yaml:"expiry_interval"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Security  SecurityConfig  `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 4
	}
	if cfg.Redis.StatusTTL <= 0 {
		cfg.Redis.StatusTTL = 3 * time.Second
	}
	if cfg.Analytics.Workers <= 0 {
		cfg.Analytics.Workers = 2
	}
	if cfg.Scheduler.SweepInterval <= 0 {
		cfg.Scheduler.SweepInterval = 5 * time.Minute
	}
	if cfg.Scheduler.SweepOlderThan <= 0 {
		cfg.Scheduler.SweepOlderThan = 2 * time.Minute
	}
	if cfg.Scheduler.ExpiryInterval <= 0 {
		cfg.Scheduler.ExpiryInterval = time.Hour
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Gateway.MerchantID == "" {
		return nil, errors.New("gateway.merchant_id is required")
	}
	if cfg.Gateway.APIKeyLive == "" {
		return nil, errors.New("gateway.api_key_live is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
