package indicator

import (
	"math"
	"testing"
	"time"

	"st1ne-assistant/internal/signal"
)

func TestRSINeutralUntilReady(t *testing.T) {
	r := NewRSI(14)
	for i := 0; i < 13; i++ {
		r.Update(100 + float64(i))
	}
	if r.Value() != 50 || r.Ready() {
		t.Fatalf("expected neutral 50 after 13 updates, got %.2f", r.Value())
	}
	r.Update(113)
	if r.Value() != 50 {
		t.Fatalf("expected neutral 50 after 14 closes, got %.2f", r.Value())
	}
	r.Update(114)
	if !r.Ready() || r.Value() != 100 {
		t.Fatalf("expected 100 for a monotonic rise, got %.2f", r.Value())
	}
}

func TestRSIWilder(t *testing.T) {
	r := NewRSI(2)
	r.Update(10)
	r.Update(12) // +2
	r.Update(11) // -1 -> avgGain 1, avgLoss 0.5
	if math.Abs(r.Value()-66.6666) > 0.01 {
		t.Fatalf("expected ~66.67, got %.4f", r.Value())
	}
	r.Update(11) // flat -> avgGain 0.5, avgLoss 0.25
	if math.Abs(r.Value()-66.6666) > 0.01 {
		t.Fatalf("expected ~66.67 after flat bar, got %.4f", r.Value())
	}
	before := r.Value()
	r.Update(math.NaN())
	if r.Value() != before {
		t.Fatalf("malformed close changed rsi")
	}
}

func TestEMASeedsWithSMA(t *testing.T) {
	e := NewEMA(3)
	e.Update(1)
	e.Update(2)
	if e.Ready() || e.Value() != 0 {
		t.Fatalf("expected zero before seed")
	}
	e.Update(3)
	if e.Value() != 2 {
		t.Fatalf("expected SMA seed 2, got %.2f", e.Value())
	}
	e.Update(6)
	if e.Value() != 4 {
		t.Fatalf("expected 4, got %.2f", e.Value())
	}
}

func TestMACDZeroUntilReady(t *testing.T) {
	m := NewMACD(12, 26, 9)
	for i := 0; i < 25; i++ {
		m.Update(100 + float64(i))
	}
	if m.Line != 0 || m.Histogram != 0 {
		t.Fatalf("expected zeros before slow seed, got %+v", m)
	}
	for i := 25; i < 40; i++ {
		m.Update(100 + float64(i))
	}
	if !m.Ready() || m.Line <= 0 {
		t.Fatalf("expected positive macd on uptrend, got %+v", m)
	}
}

func TestCrossoverFiresOnce(t *testing.T) {
	c := NewCrossover(5, 20)
	for i := 0; i < 20; i++ {
		if ev := c.Update(120 - float64(i)); ev != NoCross {
			t.Fatalf("unexpected cross during seed: %s", ev)
		}
	}
	if c.Trend() != -1 {
		t.Fatalf("expected bearish trend after decline, got %d", c.Trend())
	}
	golden := 0
	for i := 0; i < 10; i++ {
		if c.Update(200) == GoldenCross {
			golden++
		}
	}
	if golden != 1 {
		t.Fatalf("expected exactly one golden cross, got %d", golden)
	}
}

func TestHeikinAshiStreak(t *testing.T) {
	var h HeikinAshi
	candles := []signal.Candle{
		{Open: 100, High: 104, Low: 100, Close: 103},
		{Open: 103, High: 107, Low: 103, Close: 106},
		{Open: 106, High: 110, Low: 106, Close: 109},
	}
	for i, c := range candles {
		if got := h.Update(c); got != i+1 {
			t.Fatalf("candle %d: expected streak %d, got %d", i, i+1, got)
		}
	}
	if got := h.Update(signal.Candle{Open: 109, High: 109, Low: 90, Close: 91}); got != -1 {
		t.Fatalf("expected reset to -1, got %d", got)
	}
}

func TestFlowCVDAndDelta(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	f := NewFlow(1000)
	f.AddTrade(signal.Trade{Price: 100, Size: 2, Side: 1, Ts: base.Add(10 * time.Second)})
	f.AddTrade(signal.Trade{Price: 100, Size: 0.5, Side: -1, Ts: base.Add(30 * time.Second)})
	if f.Delta() != 0 {
		t.Fatalf("expected no completed minute yet, got %.2f", f.Delta())
	}
	f.AddTrade(signal.Trade{Price: 100, Size: 1, Side: 1, Ts: base.Add(65 * time.Second)})
	if f.Delta() != 1.5 {
		t.Fatalf("expected delta 1.5 for the first minute, got %.2f", f.Delta())
	}
	m1, m3, m5 := f.CVD()
	if m1 != 2.5 || m3 != 2.5 || m5 != 2.5 {
		t.Fatalf("unexpected cvd %.2f %.2f %.2f", m1, m3, m5)
	}
	if f.AddTrade(signal.Trade{Price: 100, Size: 1, Side: 1, Ts: base}) {
		t.Fatalf("expected out-of-order trade to be dropped")
	}
	if f.AddTrade(signal.Trade{Price: math.Inf(1), Size: 1, Side: 1, Ts: base.Add(70 * time.Second)}) {
		t.Fatalf("expected non-finite trade to be dropped")
	}

	f.Advance(base.Add(3*time.Minute + 30*time.Second))
	m1, m3, _ = f.CVD()
	if m1 != 0 || m3 != 1 {
		t.Fatalf("expected decay after quiet period, got 1m=%.2f 3m=%.2f", m1, m3)
	}
	if f.Delta() != 0 {
		t.Fatalf("expected zero delta after an empty minute, got %.2f", f.Delta())
	}
}

func TestSessionVWAPResetsAtBoundary(t *testing.T) {
	day := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	s := NewSession(time.UTC, 1)
	s.AddTrade(signal.Trade{Price: 100, Size: 1, Ts: day})
	s.AddTrade(signal.Trade{Price: 102, Size: 1, Ts: day.Add(10 * time.Second)})
	if s.VWAP() != 101 {
		t.Fatalf("expected vwap 101, got %.2f", s.VWAP())
	}
	s.AddTrade(signal.Trade{Price: 200, Size: 1, Ts: day.Add(2 * time.Minute)})
	if s.VWAP() != 200 || s.Day() != "2024-01-02" {
		t.Fatalf("expected reset at midnight, vwap=%.2f day=%s", s.VWAP(), s.Day())
	}
}

func TestSessionPOCTieBreak(t *testing.T) {
	ts := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	s := NewSession(time.UTC, 1)
	s.AddTrade(signal.Trade{Price: 100, Size: 2, Ts: ts})
	s.AddTrade(signal.Trade{Price: 103.5, Size: 2, Ts: ts})
	if got := s.POC(103); got != 103.5 {
		t.Fatalf("expected tie resolved toward 103.5, got %.2f", got)
	}
	if got := s.POC(100); got != 100.5 {
		t.Fatalf("expected tie resolved toward 100.5, got %.2f", got)
	}
	s.AddTrade(signal.Trade{Price: 100.2, Size: 1, Ts: ts})
	if got := s.POC(103); got != 100.5 {
		t.Fatalf("expected heaviest bucket 100.5, got %.2f", got)
	}
	if len(s.Profile()) != 2 {
		t.Fatalf("expected two buckets, got %+v", s.Profile())
	}
}
