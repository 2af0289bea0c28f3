package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"leverageloop/gateway/middleware"
)

const (
	defaultListen      = ":8088"
	defaultRecordPath  = "leverage.toml"
	defaultReceiptsDSN = "file:leveraged-receipts.db"
)

// Route groups the daemon applies rate limits to.
const (
	RouteDeposit = "deposit"
	RouteQueries = "queries"
)

// Config captures the runtime settings of the leverage daemon.
type Config struct {
	ListenAddress string                          `yaml:"listen"`
	RecordPath    string                          `yaml:"record"`
	InMemory      bool                            `yaml:"in_memory"`
	Receipts      ReceiptsConfig                  `yaml:"receipts"`
	Faucet        FaucetConfig                    `yaml:"faucet"`
	Auth          middleware.AuthConfig           `yaml:"auth"`
	RateLimits    map[string]middleware.RateLimit `yaml:"rate_limits"`
	CORS          middleware.CORSConfig           `yaml:"cors"`
	Observability middleware.ObservabilityConfig  `yaml:"observability"`
}

// ReceiptsConfig points at the sqlite database holding deposit receipts.
type ReceiptsConfig struct {
	DSN string `yaml:"dsn"`
}

// FaucetConfig lets the daemon credit depositors before running their
// deposit. Only meant for devnets.
type FaucetConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	// A rate_limits section replaces the defaults instead of merging into them.
	cfg.RateLimits = nil
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns a loopback configuration with public queries and an
// unauthenticated deposit route.
func Default() Config {
	return Config{
		ListenAddress: defaultListen,
		RecordPath:    defaultRecordPath,
		Receipts:      ReceiptsConfig{DSN: defaultReceiptsDSN},
		RateLimits:    defaultRateLimits(),
	}
}

func defaultRateLimits() map[string]middleware.RateLimit {
	return map[string]middleware.RateLimit{
		RouteDeposit: {RatePerSecond: 1, Burst: 5},
		RouteQueries: {RatePerSecond: 20, Burst: 40},
	}
}

func (cfg *Config) normalize() {
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListen
	}
	cfg.RecordPath = strings.TrimSpace(cfg.RecordPath)
	if cfg.RecordPath == "" {
		cfg.RecordPath = defaultRecordPath
	}
	cfg.Receipts.DSN = strings.TrimSpace(cfg.Receipts.DSN)
	if cfg.Receipts.DSN == "" {
		cfg.Receipts.DSN = defaultReceiptsDSN
	}
	cfg.Auth.HMACSecret = strings.TrimSpace(cfg.Auth.HMACSecret)
	if cfg.RateLimits == nil {
		cfg.RateLimits = defaultRateLimits()
	}
}

func (cfg Config) validate() error {
	if cfg.Auth.Enabled && cfg.Auth.HMACSecret == "" {
		return fmt.Errorf("auth: hmac_secret required when auth is enabled")
	}
	for route, limit := range cfg.RateLimits {
		if route != RouteDeposit && route != RouteQueries {
			return fmt.Errorf("rate_limits: unknown route group %q", route)
		}
		if limit.RatePerSecond < 0 || limit.Burst < 0 || limit.DefaultTokens < 0 {
			return fmt.Errorf("rate_limits.%s: values must not be negative", route)
		}
	}
	return nil
}
