// Package config defines the service configuration and its loading rules:
// built-in defaults, overlaid by an optional TOML file, overlaid by
// HIBRIDA_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/hibrida/pricing-engine/internal/engine"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Demo     DemoConfig     `toml:"demo"`
	Market   MarketConfig   `toml:"market"`
	LogLevel string         `toml:"log_level"`
}

// ServerConfig holds the HTTP listener parameters.
type ServerConfig struct {
	Port string `toml:"port"`
}

// DatabaseConfig holds the PostgreSQL connection string. Empty means no
// database: state lives in memory only.
type DatabaseConfig struct {
	URL string `toml:"url"`
}

// RedisConfig holds the Redis connection string and the snapshot cache TTL.
type RedisConfig struct {
	URL             string `toml:"url"`
	CacheTTLSeconds int    `toml:"cache_ttl_seconds"`
}

// DemoConfig holds the demo-economy credit parameters.
type DemoConfig struct {
	InitialCredit  float64 `toml:"initial_credit"`
	TopUpThreshold float64 `toml:"top_up_threshold"`
	TopUpAmount    float64 `toml:"top_up_amount"`
}

// MarketConfig holds defaults applied to user-created markets.
type MarketConfig struct {
	B         float64 `toml:"b"`
	Liquidity float64 `toml:"liquidity"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server:   ServerConfig{Port: "8080"},
		Redis:    RedisConfig{CacheTTLSeconds: 30},
		Demo:     DemoConfig{InitialCredit: 100, TopUpThreshold: 5, TopUpAmount: 100},
		Market:   MarketConfig{B: 80, Liquidity: 1000},
		LogLevel: "info",
	}
}

// Load reads the TOML file at path (skipped when missing, so the service
// runs on defaults alone), merges it over the defaults, applies HIBRIDA_*
// environment overrides, and returns the result. A .env file is honored
// when present.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	_ = godotenv.Load()

	setStr(&cfg.Server.Port, "HIBRIDA_PORT")
	setStr(&cfg.Server.Port, "PORT") // deploy-platform convention
	setStr(&cfg.Database.URL, "HIBRIDA_DATABASE_URL")
	setStr(&cfg.Database.URL, "DATABASE_URL")
	setStr(&cfg.Redis.URL, "HIBRIDA_REDIS_URL")
	setStr(&cfg.Redis.URL, "REDIS_URL")
	setInt(&cfg.Redis.CacheTTLSeconds, "HIBRIDA_REDIS_CACHE_TTL_SECONDS")
	setFloat(&cfg.Demo.InitialCredit, "HIBRIDA_DEMO_INITIAL_CREDIT")
	setFloat(&cfg.Demo.TopUpThreshold, "HIBRIDA_DEMO_TOP_UP_THRESHOLD")
	setFloat(&cfg.Demo.TopUpAmount, "HIBRIDA_DEMO_TOP_UP_AMOUNT")
	setFloat(&cfg.Market.B, "HIBRIDA_MARKET_B")
	setFloat(&cfg.Market.Liquidity, "HIBRIDA_MARKET_LIQUIDITY")
	setStr(&cfg.LogLevel, "HIBRIDA_LOG_LEVEL")

	return &cfg, nil
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("config: server port must not be empty")
	}
	if c.Demo.InitialCredit <= 0 {
		return fmt.Errorf("config: demo initial_credit must be positive")
	}
	if c.Demo.TopUpAmount <= 0 {
		return fmt.Errorf("config: demo top_up_amount must be positive")
	}
	if c.Market.B <= 0 {
		return fmt.Errorf("config: market b must be positive")
	}
	if c.Redis.CacheTTLSeconds < 0 {
		return fmt.Errorf("config: redis cache_ttl_seconds must not be negative")
	}
	return nil
}

// EngineParams converts the demo and market sections into engine parameters.
func (c *Config) EngineParams() engine.Params {
	return engine.Params{
		InitialCredit:   decimal.NewFromFloat(c.Demo.InitialCredit),
		TopUpThreshold:  decimal.NewFromFloat(c.Demo.TopUpThreshold),
		TopUpAmount:     decimal.NewFromFloat(c.Demo.TopUpAmount),
		MarketB:         decimal.NewFromFloat(c.Market.B),
		MarketLiquidity: decimal.NewFromFloat(c.Market.Liquidity),
	}
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
