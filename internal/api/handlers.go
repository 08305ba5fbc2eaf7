package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"groww-gateway/internal/gateway"
	"groww-gateway/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Ticks are public market data; any origin may subscribe.
		return true
	},
}

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	gw     Gateway
	hub    *Hub
	logger *slog.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(gw Gateway, hub *Hub, logger *slog.Logger) *Handlers {
	return &Handlers{
		gw:     gw,
		hub:    hub,
		logger: logger.With("component", "api-handlers"),
	}
}

// HandleHealth reports process liveness and session health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "healthy",
		Authenticated: h.gw.IsAuthenticated(),
		Timestamp:     time.Now(),
	})
}

// HandleQuote serves GET /api/v1/market/quote/{symbol}.
func (h *Handlers) HandleQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.gw.GetMarketQuote(r.Context(),
		r.PathValue("symbol"),
		r.URL.Query().Get("exchange"),
		r.URL.Query().Get("segment"),
	)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// HandleLTP serves GET /api/v1/market/ltp/{symbol}.
func (h *Handlers) HandleLTP(w http.ResponseWriter, r *http.Request) {
	quote, err := h.gw.GetLTP(r.Context(),
		r.PathValue("symbol"),
		r.URL.Query().Get("exchange"),
		r.URL.Query().Get("segment"),
	)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// HandleBulkLTP serves GET /api/v1/market/bulk/ltp?symbols=A,B,C.
func (h *Handlers) HandleBulkLTP(w http.ResponseWriter, r *http.Request) {
	var symbols []string
	for _, s := range strings.Split(r.URL.Query().Get("symbols"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}

	result, err := h.gw.GetBulkLTP(r.Context(), symbols,
		r.URL.Query().Get("exchange"),
		r.URL.Query().Get("segment"),
	)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleHistorical serves GET /api/v1/market/historical/{symbol}.
func (h *Handlers) HandleHistorical(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	interval := 1
	if raw := q.Get("interval"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, r, &gateway.ValidationError{Field: "interval", Message: "must be an integer"})
			return
		}
		interval = parsed
	}

	data, err := h.gw.GetHistoricalData(r.Context(),
		r.PathValue("symbol"),
		q.Get("exchange"),
		q.Get("segment"),
		q.Get("start_time"),
		q.Get("end_time"),
		interval,
	)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// HandleOverview serves GET /api/v1/market/overview.
func (h *Handlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.gw.GetMarketOverview(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// HandleSession serves GET /api/v1/session.
func (h *Handlers) HandleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.gw.SessionInfo())
}

// HandleSessionRefresh serves POST /api/v1/session/refresh.
func (h *Handlers) HandleSessionRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.gw.ForceRefresh(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.gw.SessionInfo())
}

// HandleWebSocket upgrades the connection and registers an LTP subscriber.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	NewStreamClient(h.hub, conn)
}

// writeError maps the gateway's error taxonomy onto HTTP status codes.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *gateway.ValidationError
		rateErr       *gateway.RateLimitError
		authErr       *session.AuthError
		providerErr   *gateway.ProviderError
	)

	status := http.StatusInternalServerError
	label := "internal_error"

	switch {
	case errors.As(err, &validationErr):
		status, label = http.StatusBadRequest, "validation_error"
	case errors.As(err, &rateErr):
		status, label = http.StatusTooManyRequests, "rate_limited"
		w.Header().Set("Retry-After", "1")
	case errors.As(err, &authErr):
		status, label = http.StatusBadGateway, "authentication_error"
	case errors.As(err, &providerErr):
		status, label = http.StatusBadGateway, "provider_error"
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: label, Detail: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
