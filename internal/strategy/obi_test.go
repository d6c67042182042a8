package strategy

import (
	"testing"

	"st1ne-assistant/internal/indicator"
)

func TestOBIVoteThreshold(t *testing.T) {
	p := DefaultParams()
	cases := map[float64]float64{0.8: 1, 0.65: 0, 0: 0, -0.64: 0, -0.9: -1}
	for obi, want := range cases {
		if got := obiVote(p, indicator.Vector{OBI: obi}); got != want {
			t.Fatalf("obi %.2f: expected %.0f, got %.0f", obi, want, got)
		}
	}
}

func TestWallVoteCapped(t *testing.T) {
	p := DefaultParams()
	v := indicator.Vector{
		BidWalls: make([]indicator.Wall, 5),
		AskWalls: make([]indicator.Wall, 1),
	}
	if got := wallVote(p, v); got != 1 {
		t.Fatalf("expected capped net of 1, got %.0f", got)
	}
	v.AskWalls = nil
	if got := wallVote(p, v); got != 2 {
		t.Fatalf("expected cap of 2, got %.0f", got)
	}
}

func TestFlowVotes(t *testing.T) {
	p := DefaultParams()
	v := indicator.Vector{CVD5m: -3, Delta1m: 2, Price: 100, POC: 101}
	if cvdVote(p, v) != -1 || deltaVote(p, v) != 1 || pocVote(p, v) != -1 {
		t.Fatalf("unexpected flow votes for %+v", v)
	}
	if pocVote(p, indicator.Vector{Price: 100}) != 0 {
		t.Fatalf("expected poc to abstain without a profile")
	}
	v.Depth[2] = indicator.Depth{Pct: 1, Bid: 10, Ask: 2}
	if depthVote(p, v) != 1 {
		t.Fatalf("expected bid-heavy depth vote")
	}
}
