package indicator

import (
	"testing"
	"time"

	"st1ne-assistant/internal/signal"
)

func testSnapshot(ts time.Time) signal.MarketSnapshot {
	return signal.MarketSnapshot{
		Symbol:  "BTCUSDT",
		Ts:      ts,
		BestBid: 99.95,
		BestAsk: 100.05,
		Bids:    []signal.Level{{Price: 99.95, Size: 8}, {Price: 99.9, Size: 1}},
		Asks:    []signal.Level{{Price: 100.05, Size: 1}},
		Trades:  []signal.Trade{{Price: 100, Size: 1, Side: 1, Ts: ts}},
	}
}

func TestEngineUpdate(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	e := NewEngine("BTCUSDT", "15m", Options{Interval: "1m", OBIBandPct: 1, WallMultiple: 5})

	v, ok := e.Update(testSnapshot(base))
	if !ok {
		t.Fatalf("expected snapshot to apply")
	}
	if v.OBI <= 0.65 {
		t.Fatalf("expected strong bid imbalance, got %.3f", v.OBI)
	}
	if v.CVD1m != 1 || v.VWAP != 100 || v.Price != 100 {
		t.Fatalf("unexpected flow/session values %+v", v)
	}
	if v.RSI != 50 || v.RSIReady {
		t.Fatalf("expected neutral rsi without bars, got %.2f", v.RSI)
	}

	if _, ok := e.Update(testSnapshot(base.Add(-time.Second))); ok {
		t.Fatalf("expected older snapshot to be rejected")
	}
	other := testSnapshot(base.Add(time.Second))
	other.Symbol = "ETHUSDT"
	if _, ok := e.Update(other); ok {
		t.Fatalf("expected foreign symbol to be rejected")
	}
	if e.Last().CVD1m != 1 {
		t.Fatalf("rejected snapshots must not mutate state")
	}
}

func TestEngineRetainsBookOnEmptySnapshot(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	e := NewEngine("BTCUSDT", "15m", Options{Interval: "1m"})
	first, _ := e.Update(testSnapshot(base))
	v, ok := e.Update(signal.MarketSnapshot{Symbol: "BTCUSDT", Ts: base.Add(time.Second)})
	if !ok {
		t.Fatalf("expected empty snapshot to apply")
	}
	if v.OBI != first.OBI || v.Price != first.Price {
		t.Fatalf("expected previous book values retained, got obi=%.3f price=%.2f", v.OBI, v.Price)
	}
}

func TestEngineBarsAndCross(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := NewEngine("BTCUSDT", "15m", Options{Interval: "1m"})

	var seed []signal.Candle
	for i := 0; i < 20; i++ {
		px := 120 - float64(i)
		seed = append(seed, signal.Candle{Interval: "1m", Open: px + 0.5, High: px + 1, Low: px - 1, Close: px, Start: base.Add(time.Duration(i) * time.Minute)})
	}
	if n := e.Bootstrap(seed); n != 20 {
		t.Fatalf("expected 20 candles applied, got %d", n)
	}
	if !e.Last().RSIReady || e.Last().EMATrend != -1 {
		t.Fatalf("expected warmed bars, got %+v", e.Last())
	}
	if e.Bootstrap(seed[:5]) != 0 {
		t.Fatalf("expected replayed candles to be ignored")
	}

	ts := base.Add(20 * time.Minute)
	snap := testSnapshot(ts)
	snap.Candles = []signal.Candle{
		{Interval: "5m", Open: 1, High: 1, Low: 1, Close: 1, Start: ts},
		{Interval: "1m", Open: 101, High: 201, Low: 100, Close: 200, Start: ts},
	}
	v, _ := e.Update(snap)
	if v.Cross != GoldenCross || v.Bars != 20+1 {
		t.Fatalf("expected golden cross on the new bar, got %s bars=%d", v.Cross, v.Bars)
	}
	v, _ = e.Update(testSnapshot(ts.Add(time.Second)))
	if v.Cross != NoCross || v.EMATrend != 1 {
		t.Fatalf("expected cross to fire once, got %s trend=%d", v.Cross, v.EMATrend)
	}
	if v.Heikin <= 0 {
		t.Fatalf("expected green heikin streak after the rally bar, got %d", v.Heikin)
	}
	if _, ok := v.Map()["depth_bid_0.1"]; !ok {
		t.Fatalf("expected depth bands in map: %v", v.Map())
	}
}
