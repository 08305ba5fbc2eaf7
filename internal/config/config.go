// Package config defines all configuration for the market-data gateway.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via GROWW_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Groww      GrowwConfig     `mapstructure:"groww"`
	Cache      CacheConfig     `mapstructure:"cache"`
	RateLimits RateLimitConfig `mapstructure:"rate_limits"`
	Server     ServerConfig    `mapstructure:"server"`
	Stream     StreamConfig    `mapstructure:"stream"`
	Logging    LoggingConfig   `mapstructure:"logging"`
}

// GrowwConfig holds upstream API credentials and connection settings.
// TOTPSeed is optional: when empty, login is attempted without a TOTP code.
type GrowwConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	APISecret string        `mapstructure:"api_secret"`
	TOTPSeed  string        `mapstructure:"totp_seed"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// CacheConfig selects the response-cache backend.
//
//   - "redis":  shared cache at RedisAddr; an unreachable server degrades
//     the gateway to pass-through, it never fails requests.
//   - "memory": process-local cache, no external dependency.
//   - "none":   caching disabled.
type CacheConfig struct {
	Backend       string `mapstructure:"backend"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// Limit is one operation class's sliding-window call budget.
type Limit struct {
	Calls  int           `mapstructure:"calls"`
	Window time.Duration `mapstructure:"window"`
}

// RateLimitConfig carries per-operation-class budgets. Zero-valued entries
// fall back to the defaults in the gateway package.
type RateLimitConfig struct {
	MarketQuote Limit `mapstructure:"market_quote"`
	LTP         Limit `mapstructure:"ltp"`
	Historical  Limit `mapstructure:"historical"`
	Default     Limit `mapstructure:"default"`
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// StreamConfig controls the WebSocket LTP broadcast loop.
type StreamConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	WatchSymbols []string      `mapstructure:"watch_symbols"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: GROWW_API_KEY, GROWW_API_SECRET, GROWW_TOTP_SEED.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("groww.base_url", "https://api.groww.in")
	v.SetDefault("groww.timeout", 10*time.Second)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("stream.poll_interval", time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override sensitive fields from env
	if key := os.Getenv("GROWW_API_KEY"); key != "" {
		cfg.Groww.APIKey = key
	}
	if secret := os.Getenv("GROWW_API_SECRET"); secret != "" {
		cfg.Groww.APISecret = secret
	}
	if seed := os.Getenv("GROWW_TOTP_SEED"); seed != "" {
		cfg.Groww.TOTPSeed = seed
	}
	if addr := os.Getenv("GROWW_REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Groww.APIKey == "" {
		return fmt.Errorf("groww.api_key is required (set GROWW_API_KEY)")
	}
	if c.Groww.APISecret == "" {
		return fmt.Errorf("groww.api_secret is required (set GROWW_API_SECRET)")
	}
	if c.Groww.BaseURL == "" {
		return fmt.Errorf("groww.base_url is required")
	}
	if c.Groww.Timeout <= 0 {
		return fmt.Errorf("groww.timeout must be > 0")
	}
	switch c.Cache.Backend {
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required when cache.backend is redis")
		}
	case "memory", "none":
	default:
		return fmt.Errorf("cache.backend must be one of: redis, memory, none")
	}
	limits := []struct {
		name  string
		limit Limit
	}{
		{"rate_limits.market_quote", c.RateLimits.MarketQuote},
		{"rate_limits.ltp", c.RateLimits.LTP},
		{"rate_limits.historical", c.RateLimits.Historical},
		{"rate_limits.default", c.RateLimits.Default},
	}
	for _, l := range limits {
		if l.limit.Calls < 0 || l.limit.Window < 0 {
			return fmt.Errorf("%s must not be negative", l.name)
		}
		if (l.limit.Calls == 0) != (l.limit.Window == 0) {
			return fmt.Errorf("%s must set both calls and window, or neither", l.name)
		}
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port must be in 1..65535")
	}
	if c.Stream.Enabled && c.Stream.PollInterval <= 0 {
		return fmt.Errorf("stream.poll_interval must be > 0")
	}
	return nil
}
