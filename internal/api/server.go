// Package api exposes the gateway over HTTP and WebSocket.
//
// REST routes mirror the gateway's operations under /api/v1; /ws streams LTP
// ticks for a configured watchlist, fed by a poll loop that goes through the
// regular gateway path (cache, rate limit, session) and only polls while
// subscribers are connected.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"groww-gateway/internal/config"
	"groww-gateway/pkg/types"
)

// Server runs the HTTP/WebSocket API for the gateway.
type Server struct {
	cfg      config.ServerConfig
	stream   config.StreamConfig
	gw       Gateway
	hub      *Hub
	handlers *Handlers
	server   *http.Server
	cancel   context.CancelFunc
	logger   *slog.Logger
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, stream config.StreamConfig, gw Gateway, logger *slog.Logger) *Server {
	hub := NewHub(logger)
	handlers := NewHandlers(gw, hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handlers.HandleHealth)
	mux.HandleFunc("GET /api/v1/market/quote/{symbol}", handlers.HandleQuote)
	mux.HandleFunc("GET /api/v1/market/ltp/{symbol}", handlers.HandleLTP)
	mux.HandleFunc("GET /api/v1/market/bulk/ltp", handlers.HandleBulkLTP)
	mux.HandleFunc("GET /api/v1/market/historical/{symbol}", handlers.HandleHistorical)
	mux.HandleFunc("GET /api/v1/market/overview", handlers.HandleOverview)
	mux.HandleFunc("GET /api/v1/session", handlers.HandleSession)
	mux.HandleFunc("POST /api/v1/session/refresh", handlers.HandleSessionRefresh)
	mux.HandleFunc("GET /ws", handlers.HandleWebSocket)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		stream:   stream,
		gw:       gw,
		hub:      hub,
		handlers: handlers,
		server:   server,
		logger:   logger.With("component", "api-server"),
	}
}

// Start starts the API server, hub, and tick loop. Blocks until Stop.
func (s *Server) Start() error {
	go s.hub.Run()

	if s.stream.Enabled && len(s.stream.WatchSymbols) > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		go s.tickLoop(ctx)
	}

	s.logger.Info("api server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the server and the tick loop.
func (s *Server) Stop() error {
	s.logger.Info("stopping api server")

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// tickLoop polls LTPs for the watchlist and broadcasts them. Per-symbol
// failures are logged and skipped; the loop keeps going.
func (s *Server) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(s.stream.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if s.hub.ClientCount() == 0 {
			continue
		}

		for _, symbol := range s.stream.WatchSymbols {
			quote, err := s.gw.GetLTP(ctx, symbol, string(types.NSE), string(types.SegmentCash))
			if err != nil {
				s.logger.Warn("tick poll failed", "symbol", symbol, "error", err)
				continue
			}
			s.hub.BroadcastTick(TickEvent{
				Type:      "ltp",
				Symbol:    quote.Symbol,
				Exchange:  string(quote.Exchange),
				LTP:       quote.LTP,
				Timestamp: quote.Timestamp,
			})
		}
	}
}
