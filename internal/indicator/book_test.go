package indicator

import (
	"math"
	"testing"

	"st1ne-assistant/internal/signal"
)

func TestOBI(t *testing.T) {
	bids := []signal.Level{{Price: 99.9, Size: 3}, {Price: 90, Size: 100}}
	asks := []signal.Level{{Price: 100.1, Size: 1}}
	if got := OBI(bids, asks, 100, 1); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected 0.5 ignoring out-of-band level, got %.4f", got)
	}
	if got := OBI(nil, nil, 100, 1); got != 0 {
		t.Fatalf("expected 0 for empty book, got %.4f", got)
	}
	if got := OBI(bids, asks, 0, 1); got != 0 {
		t.Fatalf("expected 0 without a mid, got %.4f", got)
	}
}

func TestOBIStaysInRange(t *testing.T) {
	for i := 0; i < 50; i++ {
		bids := []signal.Level{{Price: 99.95, Size: float64(i)}, {Price: 99.9, Size: math.NaN()}}
		asks := []signal.Level{{Price: 100.05, Size: float64(50 - i)}, {Price: 100.1, Size: -4}}
		got := OBI(bids, asks, 100, 1)
		if got < -1 || got > 1 || math.IsNaN(got) {
			t.Fatalf("obi out of range at %d: %.4f", i, got)
		}
	}
	if got := OBI([]signal.Level{{Price: 99.9, Size: 5}}, nil, 100, 1); got != 1 {
		t.Fatalf("expected +1 for bid-only book, got %.4f", got)
	}
}

func TestWalls(t *testing.T) {
	bids := []signal.Level{{Price: 99.9, Size: 1}, {Price: 99.8, Size: 1}, {Price: 99.7, Size: 1}, {Price: 99.6, Size: 20}}
	asks := []signal.Level{{Price: 100.1, Size: 2}, {Price: 100.2, Size: 2}}
	bidWalls, askWalls := Walls(bids, asks, 100, 1, 3)
	if len(bidWalls) != 1 || bidWalls[0].Price != 99.6 {
		t.Fatalf("expected one bid wall at 99.6, got %+v", bidWalls)
	}
	if len(askWalls) != 0 {
		t.Fatalf("expected no ask walls, got %+v", askWalls)
	}
}

func TestDepthProfile(t *testing.T) {
	bids := []signal.Level{{Price: 99.95, Size: 1}, {Price: 99.6, Size: 2}, {Price: 99.2, Size: 4}}
	asks := []signal.Level{{Price: 100.05, Size: 1}, {Price: 100.4, Size: 1}}
	depth := DepthProfile(bids, asks, 100)
	if depth[0].Bid != 1 || depth[0].Ask != 1 {
		t.Fatalf("unexpected 0.1%% band: %+v", depth[0])
	}
	if depth[1].Bid != 3 || depth[1].Ask != 2 {
		t.Fatalf("unexpected 0.5%% band: %+v", depth[1])
	}
	if depth[2].Bid != 7 {
		t.Fatalf("unexpected 1%% band: %+v", depth[2])
	}
	if imb := depth[2].Imbalance(); imb <= 0 {
		t.Fatalf("expected bid-heavy imbalance, got %.3f", imb)
	}
}
