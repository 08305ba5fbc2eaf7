package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
groww:
  api_key: key-from-file
  api_secret: secret-from-file
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Groww.BaseURL != "https://api.groww.in" {
		t.Errorf("BaseURL = %q, want default", cfg.Groww.BaseURL)
	}
	if cfg.Groww.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s default", cfg.Groww.Timeout)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("Cache.Backend = %q, want memory default", cfg.Cache.Backend)
	}
	if !cfg.Server.Enabled || cfg.Server.Port != 8080 {
		t.Errorf("Server = %+v, want enabled on 8080", cfg.Server)
	}
}

func TestLoadFileValues(t *testing.T) {
	path := writeConfig(t, `
groww:
  api_key: k
  api_secret: s
  base_url: https://sandbox.groww.in
  timeout: 30s
cache:
  backend: redis
  redis_addr: localhost:6379
rate_limits:
  market_quote:
    calls: 10
    window: 1s
  historical:
    calls: 5
    window: 1s
stream:
  enabled: true
  watch_symbols: [NIFTY50, SENSEX]
  poll_interval: 2s
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Groww.BaseURL != "https://sandbox.groww.in" || cfg.Groww.Timeout != 30*time.Second {
		t.Errorf("groww = %+v, want file values", cfg.Groww)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.RedisAddr != "localhost:6379" {
		t.Errorf("cache = %+v, want redis backend", cfg.Cache)
	}
	if cfg.RateLimits.MarketQuote.Calls != 10 || cfg.RateLimits.MarketQuote.Window != time.Second {
		t.Errorf("market_quote limit = %+v, want 10/1s", cfg.RateLimits.MarketQuote)
	}
	if cfg.RateLimits.Historical.Calls != 5 {
		t.Errorf("historical limit = %+v, want 5/1s", cfg.RateLimits.Historical)
	}
	if len(cfg.Stream.WatchSymbols) != 2 || cfg.Stream.PollInterval != 2*time.Second {
		t.Errorf("stream = %+v, want watchlist from file", cfg.Stream)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v, want debug/json", cfg.Logging)
	}
}

func TestLoadEnvOverridesCredentials(t *testing.T) {
	path := writeConfig(t, `
groww:
  api_key: file-key
  api_secret: file-secret
`)
	t.Setenv("GROWW_API_KEY", "env-key")
	t.Setenv("GROWW_API_SECRET", "env-secret")
	t.Setenv("GROWW_TOTP_SEED", "JBSWY3DPEHPK3PXP")
	t.Setenv("GROWW_REDIS_ADDR", "redis:6379")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Groww.APIKey != "env-key" || cfg.Groww.APISecret != "env-secret" {
		t.Errorf("credentials = %q/%q, want env overrides", cfg.Groww.APIKey, cfg.Groww.APISecret)
	}
	if cfg.Groww.TOTPSeed != "JBSWY3DPEHPK3PXP" {
		t.Errorf("TOTPSeed = %q, want env value", cfg.Groww.TOTPSeed)
	}
	if cfg.Cache.RedisAddr != "redis:6379" {
		t.Errorf("RedisAddr = %q, want env value", cfg.Cache.RedisAddr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() error = nil for missing file")
	}
}

func validConfig() *Config {
	return &Config{
		Groww: GrowwConfig{
			APIKey:    "k",
			APISecret: "s",
			BaseURL:   "https://api.groww.in",
			Timeout:   10 * time.Second,
		},
		Cache:  CacheConfig{Backend: "memory"},
		Server: ServerConfig{Enabled: true, Port: 8080},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing api key", func(c *Config) { c.Groww.APIKey = "" }, true},
		{"missing api secret", func(c *Config) { c.Groww.APISecret = "" }, true},
		{"missing base url", func(c *Config) { c.Groww.BaseURL = "" }, true},
		{"zero timeout", func(c *Config) { c.Groww.Timeout = 0 }, true},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "memcached" }, true},
		{"redis without addr", func(c *Config) { c.Cache.Backend = "redis" }, true},
		{"redis with addr", func(c *Config) {
			c.Cache.Backend = "redis"
			c.Cache.RedisAddr = "localhost:6379"
		}, false},
		{"cache disabled", func(c *Config) { c.Cache.Backend = "none" }, false},
		{"limit calls without window", func(c *Config) {
			c.RateLimits.LTP = Limit{Calls: 15}
		}, true},
		{"limit window without calls", func(c *Config) {
			c.RateLimits.LTP = Limit{Window: time.Second}
		}, true},
		{"negative limit", func(c *Config) {
			c.RateLimits.Default = Limit{Calls: -1, Window: time.Second}
		}, true},
		{"complete limit", func(c *Config) {
			c.RateLimits.LTP = Limit{Calls: 15, Window: time.Second}
		}, false},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
		{"port ignored when server disabled", func(c *Config) {
			c.Server = ServerConfig{Enabled: false, Port: 0}
		}, false},
		{"stream enabled without interval", func(c *Config) {
			c.Stream = StreamConfig{Enabled: true}
		}, true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
