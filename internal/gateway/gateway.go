// Package gateway serves market-data requests by composing the session
// manager, the sliding-window rate limiter, and the response cache.
//
// Every request follows the same path: cache lookup, admission check on a
// miss, client handle from the session manager (which re-authenticates
// silently when stale), the upstream call, then normalization and caching of
// the result. Failures map to the typed errors in errors.go; the cache never
// fails a request.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"groww-gateway/internal/session"
	"groww-gateway/pkg/types"
)

// Per-endpoint TTLs, fixed by the staleness tolerance of each data class:
// LTP moves fastest, historical bars are immutable once closed.
const (
	ttlQuote      = 5 * time.Second
	ttlLTP        = time.Second
	ttlHistorical = 5 * time.Minute
	ttlOverview   = 30 * time.Second
)

// overviewCacheKey is the single whole-overview cache slot.
const overviewCacheKey = "market_overview"

// maxBulkSymbols caps one bulk LTP request.
const maxBulkSymbols = 50

// majorIndices are fetched sequentially for the market overview.
var majorIndices = []string{"NIFTY50", "SENSEX", "BANKNIFTY"}

// indexFetchDelay spaces the per-index upstream calls to stay under burst
// limits.
const indexFetchDelay = 100 * time.Millisecond

// Service is the market-data gateway core.
type Service struct {
	sessions *session.Manager
	limiter  *SlidingWindow
	cache    Cache
	logger   *slog.Logger
	now      func() time.Time

	indexSymbols []string
	indexDelay   time.Duration
}

// New wires the gateway from its collaborators.
func New(sessions *session.Manager, limiter *SlidingWindow, cache Cache, logger *slog.Logger) *Service {
	return &Service{
		sessions:     sessions,
		limiter:      limiter,
		cache:        cache,
		logger:       logger.With("component", "gateway"),
		now:          time.Now,
		indexSymbols: majorIndices,
		indexDelay:   indexFetchDelay,
	}
}

// IsAuthenticated exposes session health for status reporting.
func (s *Service) IsAuthenticated() bool { return s.sessions.IsAuthenticated() }

// SessionInfo exposes the session snapshot for status reporting.
func (s *Service) SessionInfo() session.Info { return s.sessions.SessionInfo() }

// ForceRefresh discards the current session and re-authenticates.
func (s *Service) ForceRefresh(ctx context.Context) error { return s.sessions.ForceRefresh(ctx) }

// GetMarketQuote returns the full normalized quote for one symbol.
func (s *Service) GetMarketQuote(ctx context.Context, symbol, exchange, segment string) (*types.MarketQuote, error) {
	inst, err := s.instrument(symbol, exchange, segment)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("quote:%s", inst)
	var cached types.MarketQuote
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	if !s.limiter.Admit(OpMarketQuote) {
		return nil, &RateLimitError{Operation: OpMarketQuote}
	}

	client, err := s.sessions.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := client.Quote(ctx, inst)
	if err != nil {
		return nil, &ProviderError{Operation: OpMarketQuote, Err: err}
	}

	quote := normalizeQuote(inst, payload, s.now())
	s.cachePut(ctx, key, quote, ttlQuote)
	return quote, nil
}

// GetLTP returns the last traded price for one symbol.
func (s *Service) GetLTP(ctx context.Context, symbol, exchange, segment string) (*types.LTPQuote, error) {
	inst, err := s.instrument(symbol, exchange, segment)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("ltp:%s", inst)
	var cached types.LTPQuote
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	if !s.limiter.Admit(OpLTP) {
		return nil, &RateLimitError{Operation: OpLTP}
	}

	client, err := s.sessions.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := client.LTP(ctx, inst)
	if err != nil {
		return nil, &ProviderError{Operation: OpLTP, Err: err}
	}

	quote := &types.LTPQuote{
		Symbol:    inst.Symbol,
		Exchange:  inst.Exchange,
		Segment:   inst.Segment,
		LTP:       payload.LTP,
		Timestamp: s.now(),
	}
	s.cachePut(ctx, key, quote, ttlLTP)
	return quote, nil
}

// GetBulkLTP fetches LTPs for up to maxBulkSymbols symbols. Per-symbol
// failures are reported inline and never fail the batch.
func (s *Service) GetBulkLTP(ctx context.Context, symbols []string, exchange, segment string) (*types.BulkLTPResult, error) {
	if len(symbols) == 0 {
		return nil, &ValidationError{Field: "symbols", Message: "at least one symbol is required"}
	}
	if len(symbols) > maxBulkSymbols {
		return nil, &ValidationError{Field: "symbols", Message: fmt.Sprintf("maximum %d symbols allowed", maxBulkSymbols)}
	}

	result := &types.BulkLTPResult{
		Symbols:        make(map[string]types.BulkLTPEntry, len(symbols)),
		TotalRequested: len(symbols),
	}
	seen := make(map[string]struct{}, len(symbols))
	for _, symbol := range symbols {
		// Repeated symbols share one result entry; fetch each once.
		if _, dup := seen[symbol]; dup {
			continue
		}
		seen[symbol] = struct{}{}

		quote, err := s.GetLTP(ctx, symbol, exchange, segment)
		if err != nil {
			s.logger.Warn("bulk ltp symbol failed", "symbol", symbol, "error", err)
			result.Symbols[symbol] = types.BulkLTPEntry{Error: err.Error()}
			continue
		}
		result.Symbols[symbol] = types.BulkLTPEntry{Quote: quote}
		result.Successful++
	}
	return result, nil
}

// GetHistoricalData returns normalized candles for a symbol and time range.
func (s *Service) GetHistoricalData(ctx context.Context, symbol, exchange, segment, startTime, endTime string, intervalMinutes int) (*types.HistoricalData, error) {
	inst, err := s.instrument(symbol, exchange, segment)
	if err != nil {
		return nil, err
	}
	if err := validateRange(startTime, endTime, intervalMinutes); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("historical:%s:%s:%s:%d", inst, startTime, endTime, intervalMinutes)
	var cached types.HistoricalData
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	if !s.limiter.Admit(OpHistorical) {
		return nil, &RateLimitError{Operation: OpHistorical}
	}

	client, err := s.sessions.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := client.HistoricalCandles(ctx, types.HistoricalRequest{
		Instrument:      inst,
		StartTime:       startTime,
		EndTime:         endTime,
		IntervalMinutes: intervalMinutes,
	})
	if err != nil {
		return nil, &ProviderError{Operation: OpHistorical, Err: err}
	}

	candles := normalizeCandles(raw)
	data := &types.HistoricalData{
		Symbol:          inst.Symbol,
		Exchange:        inst.Exchange,
		Segment:         inst.Segment,
		StartTime:       startTime,
		EndTime:         endTime,
		IntervalMinutes: intervalMinutes,
		Candles:         candles,
		TotalCandles:    len(candles),
	}
	s.cachePut(ctx, key, data, ttlHistorical)

	s.logger.Info("historical data retrieved", "symbol", inst.Symbol, "candles", len(candles))
	return data, nil
}

// GetMarketOverview aggregates the major indices through the regular quote
// path. A failing index is logged and skipped; sectors and top movers stay
// empty until a real data source is wired in.
func (s *Service) GetMarketOverview(ctx context.Context) (*types.MarketOverview, error) {
	var cached types.MarketOverview
	if s.cacheGet(ctx, overviewCacheKey, &cached) {
		return &cached, nil
	}

	now := s.now()
	overview := &types.MarketOverview{
		Indices: s.fetchMajorIndices(ctx),
		Sectors: []types.SectorData{},
		TopMovers: types.TopMovers{
			Gainers:    []types.MarketQuote{},
			Losers:     []types.MarketQuote{},
			MostActive: []types.MarketQuote{},
			Timestamp:  now,
		},
		MarketStatus: marketStatusAt(now),
		Timestamp:    now,
	}
	s.cachePut(ctx, overviewCacheKey, overview, ttlOverview)
	return overview, nil
}

// fetchMajorIndices walks the index list sequentially with a small delay
// between upstream calls. Each fetch goes through the full quote path, so it
// gets its own cache/rate-limit/session treatment.
func (s *Service) fetchMajorIndices(ctx context.Context) []types.IndexData {
	indices := make([]types.IndexData, 0, len(s.indexSymbols))
	for i, symbol := range s.indexSymbols {
		if i > 0 && s.indexDelay > 0 {
			select {
			case <-ctx.Done():
				return indices
			case <-time.After(s.indexDelay):
			}
		}

		quote, err := s.GetMarketQuote(ctx, symbol, string(types.NSE), string(types.SegmentCash))
		if err != nil {
			s.logger.Warn("failed to fetch index", "index", symbol, "error", err)
			continue
		}
		indices = append(indices, types.IndexData{
			Name:          symbol,
			Symbol:        symbol,
			Value:         quote.LTP,
			Change:        quote.Change,
			ChangePercent: quote.ChangePercent,
			High:          quote.HighPrice,
			Low:           quote.LowPrice,
			Timestamp:     quote.Timestamp,
		})
	}
	return indices
}

// instrument validates and defaults the caller's symbol coordinates.
func (s *Service) instrument(symbol, exchange, segment string) (types.Instrument, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return types.Instrument{}, &ValidationError{Field: "symbol", Message: "must not be empty"}
	}

	ex := types.Exchange(strings.ToUpper(strings.TrimSpace(exchange)))
	if ex == "" {
		ex = types.NSE
	}
	switch ex {
	case types.NSE, types.BSE:
	default:
		return types.Instrument{}, &ValidationError{Field: "exchange", Message: fmt.Sprintf("unknown exchange %q", exchange)}
	}

	seg := types.Segment(strings.ToUpper(strings.TrimSpace(segment)))
	if seg == "" {
		seg = types.SegmentCash
	}
	switch seg {
	case types.SegmentCash, types.SegmentFNO, types.SegmentCurrency, types.SegmentCommodity:
	default:
		return types.Instrument{}, &ValidationError{Field: "segment", Message: fmt.Sprintf("unknown segment %q", segment)}
	}

	return types.Instrument{Symbol: symbol, Exchange: ex, Segment: seg}, nil
}

// validateRange checks the historical request's time range and interval.
func validateRange(startTime, endTime string, intervalMinutes int) error {
	if startTime == "" {
		return &ValidationError{Field: "start_time", Message: "must not be empty"}
	}
	if endTime == "" {
		return &ValidationError{Field: "end_time", Message: "must not be empty"}
	}
	if intervalMinutes < 1 {
		return &ValidationError{Field: "interval", Message: "must be at least 1 minute"}
	}

	start, errStart := parseTimeArg(startTime)
	end, errEnd := parseTimeArg(endTime)
	if errStart != nil {
		return &ValidationError{Field: "start_time", Message: errStart.Error()}
	}
	if errEnd != nil {
		return &ValidationError{Field: "end_time", Message: errEnd.Error()}
	}
	if end.Before(start) {
		return &ValidationError{Field: "end_time", Message: "must not be before start_time"}
	}
	return nil
}

// parseTimeArg accepts the upstream's date forms: YYYY-MM-DD, a full
// datetime, or an epoch value (seconds or millis).
func parseTimeArg(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
		// Heuristic: values this large must be milliseconds.
		if epoch > 1e12 {
			return time.Unix(epoch/1000, 0), nil
		}
		return time.Unix(epoch, 0), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q (want YYYY-MM-DD or epoch)", s)
}

// normalizeQuote maps the raw upstream payload to the served shape. Zero
// bid/ask values mean "not present" upstream and collapse to absent fields.
func normalizeQuote(inst types.Instrument, p types.QuotePayload, now time.Time) *types.MarketQuote {
	return &types.MarketQuote{
		Symbol:        inst.Symbol,
		Exchange:      inst.Exchange,
		Segment:       inst.Segment,
		LTP:           p.LTP,
		OpenPrice:     p.Open,
		HighPrice:     p.High,
		LowPrice:      p.Low,
		ClosePrice:    p.Close,
		Volume:        p.Volume,
		Change:        p.DayChange,
		ChangePercent: p.DayChangePerc,
		BidPrice:      optFloat(p.BidPrice),
		AskPrice:      optFloat(p.AskPrice),
		BidQuantity:   optInt(p.BidQuantity),
		AskQuantity:   optInt(p.AskQuantity),
		Timestamp:     now,
	}
}

// normalizeCandles converts raw fixed-position records to candles. Records
// shorter than six fields are dropped; epoch millis become seconds.
func normalizeCandles(raw []types.RawCandle) []types.Candle {
	candles := make([]types.Candle, 0, len(raw))
	for _, r := range raw {
		if len(r) < 6 {
			continue
		}
		candles = append(candles, types.Candle{
			Timestamp:  time.Unix(int64(r[0])/1000, 0).UTC(),
			OpenPrice:  r[1],
			HighPrice:  r[2],
			LowPrice:   r[3],
			ClosePrice: r[4],
			Volume:     int64(r[5]),
		})
	}
	return candles
}

// istZone is UTC+05:30; NSE trading hours are quoted in it.
var istZone = time.FixedZone("IST", 5*3600+30*60)

// marketStatusAt maps an instant to the NSE cash session: Monday through
// Friday, 09:15 to 15:30 IST. Exchange holidays are not modeled.
func marketStatusAt(t time.Time) types.MarketStatus {
	ist := t.In(istZone)
	switch ist.Weekday() {
	case time.Saturday, time.Sunday:
		return types.MarketClosed
	}
	minutes := ist.Hour()*60 + ist.Minute()
	if minutes < 9*60+15 || minutes > 15*60+30 {
		return types.MarketClosed
	}
	return types.MarketOpen
}

func optFloat(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

func optInt(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

// cacheGet decodes a cached entry into out. Undecodable entries count as
// misses; the entry will be overwritten by the next successful fetch.
func (s *Service) cacheGet(ctx context.Context, key string, out any) bool {
	b, ok := s.cache.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, out); err != nil {
		s.logger.Debug("discarding undecodable cache entry", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Service) cachePut(ctx context.Context, key string, value any, ttl time.Duration) {
	b, err := json.Marshal(value)
	if err != nil {
		s.logger.Debug("skipping cache of unmarshalable value", "key", key, "error", err)
		return
	}
	s.cache.Set(ctx, key, b, ttl)
}
