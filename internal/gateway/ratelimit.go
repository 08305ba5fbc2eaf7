// ratelimit.go implements sliding-window admission control for upstream
// calls, grouped by operation class.
//
// Each class has a fixed (calls, window) budget. A check prunes timestamps
// older than the window, admits if room remains, and rejects immediately
// otherwise; rejection does not consume a slot and there is no blocking or
// backoff. The decision is the caller's to act on.
package gateway

import (
	"sync"
	"time"

	"groww-gateway/internal/config"
)

// Operation classes used for admission control and cache keys.
const (
	OpMarketQuote = "market_quote"
	OpLTP         = "ltp"
	OpHistorical  = "historical"
)

// defaultLimits reflect the upstream's documented per-second budgets.
var defaultLimits = map[string]config.Limit{
	OpMarketQuote: {Calls: 10, Window: time.Second},
	OpLTP:         {Calls: 15, Window: time.Second},
	OpHistorical:  {Calls: 5, Window: time.Second},
}

// fallbackLimit applies to operation classes with no configured budget.
var fallbackLimit = config.Limit{Calls: 10, Window: time.Second}

// SlidingWindow admits calls per operation class within a moving time
// window. Admission is a single check-then-act critical section so two
// concurrent callers can never both claim the final slot.
type SlidingWindow struct {
	mu       sync.Mutex
	limits   map[string]config.Limit
	fallback config.Limit
	history  map[string][]time.Time
	now      func() time.Time
}

// NewSlidingWindow creates a limiter with the default budgets, overridden by
// any non-zero entries in cfg.
func NewSlidingWindow(cfg config.RateLimitConfig) *SlidingWindow {
	limits := make(map[string]config.Limit, len(defaultLimits))
	for op, l := range defaultLimits {
		limits[op] = l
	}
	for op, override := range map[string]config.Limit{
		OpMarketQuote: cfg.MarketQuote,
		OpLTP:         cfg.LTP,
		OpHistorical:  cfg.Historical,
	} {
		if override.Calls > 0 && override.Window > 0 {
			limits[op] = override
		}
	}

	fallback := fallbackLimit
	if cfg.Default.Calls > 0 && cfg.Default.Window > 0 {
		fallback = cfg.Default
	}

	return &SlidingWindow{
		limits:   limits,
		fallback: fallback,
		history:  make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Admit records and admits the call if the operation class has budget left
// in its current window, and rejects it otherwise.
func (w *SlidingWindow) Admit(operation string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	limit := w.limitFor(operation)

	// Lazy prune: drop timestamps that fell out of the window.
	kept := w.history[operation][:0]
	for _, t := range w.history[operation] {
		if now.Sub(t) < limit.Window {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit.Calls {
		w.history[operation] = kept
		return false
	}

	w.history[operation] = append(kept, now)
	return true
}

// Limit reports the budget in force for an operation class.
func (w *SlidingWindow) Limit(operation string) config.Limit {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.limitFor(operation)
}

func (w *SlidingWindow) limitFor(operation string) config.Limit {
	if l, ok := w.limits[operation]; ok {
		return l
	}
	return w.fallback
}
