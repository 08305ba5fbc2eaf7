package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestInstrumentString(t *testing.T) {
	t.Parallel()
	inst := Instrument{Symbol: "RELIANCE", Exchange: NSE, Segment: SegmentCash}
	if got := inst.String(); got != "NSE:CASH:RELIANCE" {
		t.Errorf("String() = %q, want NSE:CASH:RELIANCE", got)
	}
}

func TestMarketQuoteOmitsAbsentDepth(t *testing.T) {
	t.Parallel()
	b, err := json.Marshal(MarketQuote{Symbol: "TCS", Exchange: NSE, Segment: SegmentCash, LTP: 100})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for _, field := range []string{"bid_price", "ask_price", "bid_quantity", "ask_quantity"} {
		if strings.Contains(string(b), field) {
			t.Errorf("serialized quote contains %q for absent depth: %s", field, b)
		}
	}
}

func TestQuotePayloadFieldMapping(t *testing.T) {
	t.Parallel()
	raw := `{"ltp":101.5,"open":100,"day_change_percentage":1.5,"bid_quantity":50}`
	var p QuotePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if p.LTP != 101.5 || p.Open != 100 || p.DayChangePerc != 1.5 || p.BidQuantity != 50 {
		t.Errorf("payload = %+v, want provider field names mapped", p)
	}
}
