// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the gateway: exchanges and
// segments, upstream payload shapes, and the normalized response objects
// served to callers. It has no dependencies on internal packages, so it can
// be imported by any layer.
package types

import (
	"fmt"
	"time"
)

// Exchange identifies the stock exchange a symbol trades on.
type Exchange string

const (
	NSE Exchange = "NSE"
	BSE Exchange = "BSE"
)

// Segment identifies the market segment for a symbol.
type Segment string

const (
	SegmentCash      Segment = "CASH"
	SegmentFNO       Segment = "FNO"
	SegmentCurrency  Segment = "CURRENCY"
	SegmentCommodity Segment = "COMMODITY"
)

// MarketStatus reports whether the exchange is currently trading.
type MarketStatus string

const (
	MarketOpen   MarketStatus = "OPEN"
	MarketClosed MarketStatus = "CLOSED"
)

// Instrument identifies one tradeable symbol on an exchange segment.
type Instrument struct {
	Symbol   string   `json:"symbol"`
	Exchange Exchange `json:"exchange"`
	Segment  Segment  `json:"segment"`
}

func (i Instrument) String() string {
	return fmt.Sprintf("%s:%s:%s", i.Exchange, i.Segment, i.Symbol)
}

// QuotePayload is the raw per-symbol quote as the upstream provider returns
// it. Absent numeric fields decode to zero; the gateway's normalization
// decides which zeros mean "not present".
type QuotePayload struct {
	LTP           float64 `json:"ltp"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	Volume        int64   `json:"volume"`
	DayChange     float64 `json:"day_change"`
	DayChangePerc float64 `json:"day_change_percentage"`
	BidPrice      float64 `json:"bid_price"`
	AskPrice      float64 `json:"ask_price"`
	BidQuantity   int64   `json:"bid_quantity"`
	AskQuantity   int64   `json:"ask_quantity"`
}

// LTPPayload is the raw last-traded-price response from the provider.
type LTPPayload struct {
	LTP float64 `json:"ltp"`
}

// RawCandle is one upstream candle record as a fixed-position array:
// [epoch_millis, open, high, low, close, volume]. Records shorter than six
// fields are malformed and dropped during normalization.
type RawCandle []float64

// HistoricalRequest identifies one candle-range fetch. Start and end times
// keep the upstream's string form (YYYY-MM-DD or epoch millis).
type HistoricalRequest struct {
	Instrument      Instrument
	StartTime       string
	EndTime         string
	IntervalMinutes int
}

// MarketQuote is the normalized quote served to callers. Bid/ask fields are
// pointers because the provider reports "no market depth" as zero.
type MarketQuote struct {
	Symbol        string       `json:"symbol"`
	Exchange      Exchange     `json:"exchange"`
	Segment       Segment      `json:"segment"`
	LTP           float64      `json:"ltp"`
	OpenPrice     float64      `json:"open_price"`
	HighPrice     float64      `json:"high_price"`
	LowPrice      float64      `json:"low_price"`
	ClosePrice    float64      `json:"close_price"`
	Volume        int64        `json:"volume"`
	Change        float64      `json:"change"`
	ChangePercent float64      `json:"change_percent"`
	BidPrice      *float64     `json:"bid_price,omitempty"`
	AskPrice      *float64     `json:"ask_price,omitempty"`
	BidQuantity   *int64       `json:"bid_quantity,omitempty"`
	AskQuantity   *int64       `json:"ask_quantity,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

// LTPQuote is the normalized last-traded-price response.
type LTPQuote struct {
	Symbol    string    `json:"symbol"`
	Exchange  Exchange  `json:"exchange"`
	Segment   Segment   `json:"segment"`
	LTP       float64   `json:"ltp"`
	Timestamp time.Time `json:"timestamp"`
}

// Candle is one normalized OHLCV bar.
type Candle struct {
	Timestamp  time.Time `json:"timestamp"`
	OpenPrice  float64   `json:"open_price"`
	HighPrice  float64   `json:"high_price"`
	LowPrice   float64   `json:"low_price"`
	ClosePrice float64   `json:"close_price"`
	Volume     int64     `json:"volume"`
}

// HistoricalData is a normalized candle series for one instrument and range.
type HistoricalData struct {
	Symbol          string   `json:"symbol"`
	Exchange        Exchange `json:"exchange"`
	Segment         Segment  `json:"segment"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time"`
	IntervalMinutes int      `json:"interval_minutes"`
	Candles         []Candle `json:"candles"`
	TotalCandles    int      `json:"total_candles"`
}

// IndexData is one major index entry in the market overview.
type IndexData struct {
	Name          string    `json:"name"`
	Symbol        string    `json:"symbol"`
	Value         float64   `json:"value"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Timestamp     time.Time `json:"timestamp"`
}

// SectorData is one sector entry in the market overview. Populated only when
// a sectoral data source is wired in.
type SectorData struct {
	Name          string  `json:"name"`
	ChangePercent float64 `json:"change_percent"`
}

// TopMovers lists the biggest gainers, losers, and most active symbols.
// Empty until a screener data source is wired in.
type TopMovers struct {
	Gainers    []MarketQuote `json:"gainers"`
	Losers     []MarketQuote `json:"losers"`
	MostActive []MarketQuote `json:"most_active"`
	Timestamp  time.Time     `json:"timestamp"`
}

// MarketOverview aggregates index, sector, and mover data in one response.
type MarketOverview struct {
	Indices      []IndexData  `json:"indices"`
	Sectors      []SectorData `json:"sectors"`
	TopMovers    TopMovers    `json:"top_movers"`
	MarketStatus MarketStatus `json:"market_status"`
	Timestamp    time.Time    `json:"timestamp"`
}

// BulkLTPResult reports per-symbol outcomes of a bulk LTP fetch. Failed
// symbols carry an error message instead of failing the whole batch.
type BulkLTPResult struct {
	Symbols        map[string]BulkLTPEntry `json:"symbols"`
	TotalRequested int                     `json:"total_requested"`
	Successful     int                     `json:"successful"`
}

// BulkLTPEntry is one symbol's slot in a BulkLTPResult.
type BulkLTPEntry struct {
	Quote *LTPQuote `json:"quote,omitempty"`
	Error string    `json:"error,omitempty"`
}
