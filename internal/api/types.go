package api

import (
	"context"
	"time"

	"groww-gateway/internal/session"
	"groww-gateway/pkg/types"
)

// Gateway is the market-data surface the HTTP layer serves. Implemented by
// *gateway.Service; narrowed to an interface so handlers can be tested with
// a fake.
type Gateway interface {
	GetMarketQuote(ctx context.Context, symbol, exchange, segment string) (*types.MarketQuote, error)
	GetLTP(ctx context.Context, symbol, exchange, segment string) (*types.LTPQuote, error)
	GetBulkLTP(ctx context.Context, symbols []string, exchange, segment string) (*types.BulkLTPResult, error)
	GetHistoricalData(ctx context.Context, symbol, exchange, segment, startTime, endTime string, intervalMinutes int) (*types.HistoricalData, error)
	GetMarketOverview(ctx context.Context) (*types.MarketOverview, error)
	IsAuthenticated() bool
	SessionInfo() session.Info
	ForceRefresh(ctx context.Context) error
}

// healthResponse is the /health payload.
type healthResponse struct {
	Status        string    `json:"status"`
	Authenticated bool      `json:"authentication_status"`
	Timestamp     time.Time `json:"timestamp"`
}

// errorResponse is the uniform error body for non-2xx answers.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// TickEvent is one LTP update broadcast to WebSocket subscribers.
type TickEvent struct {
	Type      string    `json:"type"` // always "ltp"
	Symbol    string    `json:"symbol"`
	Exchange  string    `json:"exchange"`
	LTP       float64   `json:"ltp"`
	Timestamp time.Time `json:"timestamp"`
}
