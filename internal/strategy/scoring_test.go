package strategy

import (
	"reflect"
	"testing"
	"time"

	"st1ne-assistant/internal/indicator"
	"st1ne-assistant/internal/signal"
)

func bullishVector() indicator.Vector {
	return indicator.Vector{
		Price:    100,
		OBI:      0.8,
		CVD5m:    12,
		MACDHist: 0.4,
		VWAP:     99,
		EMATrend: 1,
	}
}

func TestScoreNeutralBaseline(t *testing.T) {
	res := NewPolicy(DefaultParams()).Score(indicator.Vector{})
	if res.Score != 5 || res.Label != Neutral || res.Raw != 0 {
		t.Fatalf("expected neutral 5, got %+v", res)
	}
	if len(res.Votes) != len(rules) {
		t.Fatalf("expected a vote per rule, got %d", len(res.Votes))
	}
}

func TestScoreBullishAndBearish(t *testing.T) {
	policy := NewPolicy(DefaultParams())
	res := policy.Score(bullishVector())
	if res.Score != 10 || res.Label != Bullish {
		t.Fatalf("expected bullish 10, got %d %s (%s)", res.Score, res.Label, res.Reason())
	}

	bear := indicator.Vector{Price: 100, OBI: -0.9, CVD5m: -4, MACDHist: -0.1, VWAP: 101}
	res = policy.Score(bear)
	if res.Score != 1 || res.Label != Bearish {
		t.Fatalf("expected bearish 1, got %d %s (%s)", res.Score, res.Label, res.Reason())
	}
}

func TestScoreRoundsWeightedVotes(t *testing.T) {
	v := indicator.Vector{OBI: 0.7, CVD5m: 1, Delta1m: 1}
	res := NewPolicy(DefaultParams()).Score(v)
	if res.Raw != 2.5 || res.Score != 8 || res.Label != Bullish {
		t.Fatalf("expected raw 2.5 rounding to 8, got raw=%.2f score=%d", res.Raw, res.Score)
	}
}

func TestScoreClipsToRange(t *testing.T) {
	p := DefaultParams()
	p.Weights.OBI = 50
	res := NewPolicy(p).Score(indicator.Vector{OBI: -1})
	if res.Score != 0 {
		t.Fatalf("expected clip at 0, got %d", res.Score)
	}
}

func replaySnapshots() []signal.MarketSnapshot {
	base := time.Date(2024, 6, 3, 13, 0, 0, 0, time.UTC)
	out := make([]signal.MarketSnapshot, 0, 90)
	prev := 100.0
	for i := 0; i < 90; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		px := 100 + float64(i%13) - float64(i%5)*0.7 + float64(i)/10
		side := 1
		if i%3 == 0 {
			side = -1
		}
		out = append(out, signal.MarketSnapshot{
			Symbol:  "BTCUSDT",
			Ts:      ts,
			BestBid: px - 0.05,
			BestAsk: px + 0.05,
			Bids:    []signal.Level{{Price: px - 0.05, Size: float64(3 + i%4)}, {Price: px - 0.5, Size: 30}},
			Asks:    []signal.Level{{Price: px + 0.05, Size: float64(2 + i%3)}, {Price: px + 0.5, Size: 4}},
			Trades:  []signal.Trade{{Price: px, Size: 1 + float64(i%2), Side: side, Ts: ts}},
			Candles: []signal.Candle{{
				Interval: "1m",
				Open:     prev,
				High:     max(prev, px) + 0.2,
				Low:      min(prev, px) - 0.2,
				Close:    px,
				Volume:   10,
				Start:    ts.Add(-time.Minute),
			}},
		})
		prev = px
	}
	return out
}

func replay(snaps []signal.MarketSnapshot) []Result {
	eng := indicator.NewEngine("BTCUSDT", "15m", indicator.Options{Interval: "1m", OBIBandPct: 1, WallMultiple: 5})
	policy := NewPolicy(DefaultParams())
	out := make([]Result, 0, len(snaps))
	for _, snap := range snaps {
		v, ok := eng.Update(snap)
		if !ok {
			continue
		}
		out = append(out, policy.Score(v))
	}
	return out
}

func TestScoreDeterministicOverReplay(t *testing.T) {
	snaps := replaySnapshots()
	first := replay(snaps)
	second := replay(snaps)
	if len(first) != len(snaps) {
		t.Fatalf("expected every snapshot applied, got %d of %d", len(first), len(snaps))
	}
	if !first[len(first)-1].Vector.RSIReady {
		t.Fatalf("replay too short to seed the bar indicators")
	}
	if len(second) != len(first) {
		t.Fatalf("replay produced %d results, first run %d", len(second), len(first))
	}
	for i := range first {
		if !reflect.DeepEqual(first[i], second[i]) {
			t.Fatalf("snapshot %d scored differently on replay: %+v vs %+v", i, second[i], first[i])
		}
	}
}

func TestBuildFromConfigWeights(t *testing.T) {
	p := DefaultParams()
	if p.HighThreshold != 8 || p.LowThreshold != 2 || p.Weights.Depth != 0.5 {
		t.Fatalf("unexpected defaults %+v", p)
	}
}
