// Groww market-data gateway — an authenticated caching proxy in front of
// the Groww brokerage API.
//
// Architecture:
//
//	main.go              — entry point: loads config, wires components, waits for SIGINT/SIGTERM
//	config/config.go     — YAML config with GROWW_* env overrides (credentials, cache, limits)
//	groww/client.go      — REST client for the Groww API (login, quotes, LTP, candles)
//	session/manager.go   — TOTP login, session freshness tracking, serialized re-authentication
//	gateway/ratelimit.go — sliding-window admission control per operation class
//	gateway/cache.go     — response cache: redis, in-memory, or disabled (noop)
//	gateway/gateway.go   — orchestration: cache → rate limit → session → provider → normalize
//	api/server.go        — HTTP surface (/api/v1/market/...) plus WebSocket LTP stream
//
// Why it exists:
//
//	The upstream enforces tight per-second call budgets and sessions that
//	expire. The gateway absorbs both: it memoizes answers for as long as
//	each data class tolerates staleness, refuses calls that would blow the
//	budget before they leave the process, and re-authenticates behind the
//	scenes so callers never handle login themselves.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"groww-gateway/internal/api"
	"groww-gateway/internal/config"
	"groww-gateway/internal/gateway"
	"groww-gateway/internal/groww"
	"groww-gateway/internal/session"
)

func main() {
	// Optional .env for local development; real deployments set env vars.
	_ = godotenv.Load()

	cfgPath := "configs/config.yaml"
	if p := os.Getenv("GROWW_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Set up logger
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	cache := buildCache(cfg, logger)

	provider := groww.NewAPI(cfg.Groww, logger)
	sessions := session.NewManager(provider, cfg.Groww, logger)
	limiter := gateway.NewSlidingWindow(cfg.RateLimits)
	gw := gateway.New(sessions, limiter, cache, logger)

	// Establish the session up front so the first request doesn't pay for
	// the login. A failure here is not fatal: GetClient retries lazily.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := sessions.Authenticate(ctx); err != nil {
		logger.Warn("initial authentication failed, will retry on demand", "error", err)
	}
	cancel()

	var apiServer *api.Server
	if cfg.Server.Enabled {
		apiServer = api.NewServer(cfg.Server, cfg.Stream, gw, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("api server failed", "error", err)
				os.Exit(1)
			}
		}()
	}

	logger.Info("groww gateway started",
		"port", cfg.Server.Port,
		"cache", cfg.Cache.Backend,
		"totp", cfg.Groww.TOTPSeed != "",
		"authenticated", sessions.IsAuthenticated(),
	)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop api server", "error", err)
		}
	}
	sessions.Logout()
}

// buildCache selects the cache backend. An unreachable redis degrades to
// pass-through instead of failing startup: caching is an optimization.
func buildCache(cfg *config.Config, logger *slog.Logger) gateway.Cache {
	switch cfg.Cache.Backend {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		cache, err := gateway.NewRedisCache(ctx, cfg.Cache, logger)
		if err != nil {
			logger.Warn("redis unreachable, caching disabled", "addr", cfg.Cache.RedisAddr, "error", err)
			return gateway.NewNoopCache()
		}
		return cache
	case "memory":
		return gateway.NewMemoryCache()
	default:
		return gateway.NewNoopCache()
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
