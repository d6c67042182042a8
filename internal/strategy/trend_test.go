package strategy

import (
	"testing"

	"st1ne-assistant/internal/indicator"
)

func TestRSIVoteAbstainsUntilReady(t *testing.T) {
	p := DefaultParams()
	if got := rsiVote(p, indicator.Vector{RSI: 10}); got != 0 {
		t.Fatalf("expected abstain before warm-up, got %.0f", got)
	}
	if got := rsiVote(p, indicator.Vector{RSI: 10, RSIReady: true}); got != 1 {
		t.Fatalf("expected oversold vote, got %.0f", got)
	}
	if got := rsiVote(p, indicator.Vector{RSI: 85, RSIReady: true}); got != -1 {
		t.Fatalf("expected overbought vote, got %.0f", got)
	}
}

func TestHeikinVoteNeedsStreak(t *testing.T) {
	p := DefaultParams()
	if heikinVote(p, indicator.Vector{Heikin: 2}) != 0 {
		t.Fatalf("expected no vote below streak")
	}
	if heikinVote(p, indicator.Vector{Heikin: 3}) != 1 || heikinVote(p, indicator.Vector{Heikin: -4}) != -1 {
		t.Fatalf("expected streak votes")
	}
}

func TestTrendVotes(t *testing.T) {
	p := DefaultParams()
	v := indicator.Vector{Price: 100, VWAP: 99, MACDHist: -0.2, EMATrend: 1, Cross: indicator.DeathCross}
	if vwapVote(p, v) != 1 || macdVote(p, v) != -1 || emaTrendVote(p, v) != 1 || emaCrossVote(p, v) != -1 {
		t.Fatalf("unexpected trend votes for %+v", v)
	}
	if vwapVote(p, indicator.Vector{Price: 100}) != 0 {
		t.Fatalf("expected vwap to abstain before first trade")
	}
}
