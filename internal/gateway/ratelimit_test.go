package gateway

import (
	"sync"
	"testing"
	"time"

	"groww-gateway/internal/config"
)

// testClock is a settable clock shared with the limiter under test.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(cfg config.RateLimitConfig) (*SlidingWindow, *testClock) {
	clock := newTestClock()
	w := NewSlidingWindow(cfg)
	w.now = clock.Now
	return w, clock
}

func TestAdmitSequenceWithinWindow(t *testing.T) {
	t.Parallel()
	w, _ := newTestLimiter(config.RateLimitConfig{
		MarketQuote: config.Limit{Calls: 2, Window: time.Second},
	})

	got := []bool{w.Admit(OpMarketQuote), w.Admit(OpMarketQuote), w.Admit(OpMarketQuote)}
	want := []bool{true, true, false}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Admit() call %d = %v, want %v", i+1, got[i], want[i])
		}
	}
}

func TestAdmitRecoversAfterWindow(t *testing.T) {
	t.Parallel()
	w, clock := newTestLimiter(config.RateLimitConfig{
		MarketQuote: config.Limit{Calls: 1, Window: time.Second},
	})

	if !w.Admit(OpMarketQuote) {
		t.Fatal("first Admit() = false, want true")
	}
	if w.Admit(OpMarketQuote) {
		t.Fatal("second Admit() within window = true, want false")
	}

	clock.Advance(time.Second + time.Millisecond)
	if !w.Admit(OpMarketQuote) {
		t.Error("Admit() after window elapsed = false, want true")
	}
}

func TestRejectionDoesNotConsumeSlot(t *testing.T) {
	t.Parallel()
	w, clock := newTestLimiter(config.RateLimitConfig{
		MarketQuote: config.Limit{Calls: 1, Window: time.Second},
	})

	if !w.Admit(OpMarketQuote) {
		t.Fatal("first Admit() = false, want true")
	}
	for i := 0; i < 10; i++ {
		if w.Admit(OpMarketQuote) {
			t.Fatalf("rejected call %d admitted", i)
		}
	}

	// Only the first (admitted) call holds a slot; once it ages out, the
	// next call goes through regardless of the rejections in between.
	clock.Advance(time.Second + time.Millisecond)
	if !w.Admit(OpMarketQuote) {
		t.Error("Admit() after window = false; rejections consumed slots")
	}
}

func TestAdmitClassesAreIndependent(t *testing.T) {
	t.Parallel()
	w, _ := newTestLimiter(config.RateLimitConfig{
		MarketQuote: config.Limit{Calls: 1, Window: time.Second},
		LTP:         config.Limit{Calls: 1, Window: time.Second},
	})

	if !w.Admit(OpMarketQuote) {
		t.Fatal("quote Admit() = false, want true")
	}
	if w.Admit(OpMarketQuote) {
		t.Fatal("quote budget should be exhausted")
	}
	if !w.Admit(OpLTP) {
		t.Error("ltp Admit() = false; classes are not independent")
	}
}

func TestAdmitFallbackForUnknownClass(t *testing.T) {
	t.Parallel()
	w, _ := newTestLimiter(config.RateLimitConfig{
		Default: config.Limit{Calls: 3, Window: time.Second},
	})

	for i := 0; i < 3; i++ {
		if !w.Admit("portfolio") {
			t.Fatalf("Admit() call %d = false, want true", i+1)
		}
	}
	if w.Admit("portfolio") {
		t.Error("Admit() beyond fallback budget = true, want false")
	}
}

func TestConfigOverridesAndDefaults(t *testing.T) {
	t.Parallel()
	w, _ := newTestLimiter(config.RateLimitConfig{
		Historical: config.Limit{Calls: 2, Window: 10 * time.Second},
	})

	if got := w.Limit(OpHistorical); got.Calls != 2 || got.Window != 10*time.Second {
		t.Errorf("historical limit = %+v, want override {2 10s}", got)
	}
	if got := w.Limit(OpLTP); got.Calls != 15 || got.Window != time.Second {
		t.Errorf("ltp limit = %+v, want default {15 1s}", got)
	}
}

// TestAdmitNeverExceedsBudget drives the limiter with a synthetic clock and
// verifies that no sliding window ever contains more admissions than the
// budget allows.
func TestAdmitNeverExceedsBudget(t *testing.T) {
	t.Parallel()
	const (
		maxCalls = 5
		window   = time.Second
	)
	w, clock := newTestLimiter(config.RateLimitConfig{
		MarketQuote: config.Limit{Calls: maxCalls, Window: window},
	})

	var admitted []time.Time
	steps := []time.Duration{
		0, 50 * time.Millisecond, 0, 110 * time.Millisecond, 30 * time.Millisecond,
		400 * time.Millisecond, 0, 0, 250 * time.Millisecond, 70 * time.Millisecond,
	}
	for i := 0; i < 200; i++ {
		clock.Advance(steps[i%len(steps)])
		if w.Admit(OpMarketQuote) {
			admitted = append(admitted, clock.Now())
		}
	}

	for _, end := range admitted {
		count := 0
		for _, at := range admitted {
			if !at.After(end) && end.Sub(at) < window {
				count++
			}
		}
		if count > maxCalls {
			t.Fatalf("window ending %v holds %d admissions, budget is %d", end, count, maxCalls)
		}
	}
}

func TestConcurrentAdmitNoOverAdmission(t *testing.T) {
	t.Parallel()
	const budget = 50
	w, _ := newTestLimiter(config.RateLimitConfig{
		LTP: config.Limit{Calls: budget, Window: time.Second},
	})

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if w.Admit(OpLTP) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != budget {
		t.Errorf("admitted %d concurrent calls, want exactly %d", allowed, budget)
	}
}
