package signal

import "testing"

func TestSnapshotMid(t *testing.T) {
	snap := MarketSnapshot{BestBid: 99, BestAsk: 101}
	if got := snap.Mid(); got != 100 {
		t.Fatalf("expected mid 100, got %.2f", got)
	}
	snap = MarketSnapshot{Trades: []Trade{{Price: 50}, {Price: 51}}}
	if got := snap.Mid(); got != 51 {
		t.Fatalf("expected last trade fallback 51, got %.2f", got)
	}
}

func TestInstrumentKeys(t *testing.T) {
	inst := Instrument{Coin: "btc", Timeframe: "15m", Outcome: Up}
	if inst.Market() != "BTC-15m" {
		t.Fatalf("unexpected market %s", inst.Market())
	}
	if inst.Key() != "BTC-15m-Up" {
		t.Fatalf("unexpected key %s", inst.Key())
	}
}

func TestQuoteMid(t *testing.T) {
	if got := (ContractQuote{Bid: 0.3, Ask: 0.4}).Mid(); got < 0.349 || got > 0.351 {
		t.Fatalf("expected 0.35, got %.3f", got)
	}
	if got := (ContractQuote{Ask: 0.4}).Mid(); got != 0.4 {
		t.Fatalf("expected ask fallback, got %.3f", got)
	}
}
