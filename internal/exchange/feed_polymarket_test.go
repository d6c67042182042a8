package exchange

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"st1ne-assistant/internal/signal"
)

func testRegistry() *Registry {
	reg := NewRegistry()
	reg.Set("BTC-15m", []signal.Instrument{
		{Coin: "BTC", Timeframe: "15m", Outcome: signal.Up, TokenID: "up"},
		{Coin: "BTC", Timeframe: "15m", Outcome: signal.Down, TokenID: "dn"},
	})
	return reg
}

func TestPolymarketHandleBookArray(t *testing.T) {
	src := NewPolymarketSource("", testRegistry(), zerolog.Nop())
	books := make(map[string]topOfBook)
	msg := `[{"event_type":"book","asset_id":"up","timestamp":"1717423650000",
		"bids":[{"price":"0.33","size":"10"},{"price":"0.34","size":"5"}],
		"asks":[{"price":"0.36","size":"10"},{"price":"0.35","size":"0"},{"price":"0.355","size":"3"}]},
		{"event_type":"book","asset_id":"unknown","bids":[{"price":"0.5","size":"1"}],"asks":[]}]`

	evs := src.handle([]byte(msg), books)
	if len(evs) != 1 {
		t.Fatalf("expected one quote for the known token, got %d", len(evs))
	}
	q := evs[0].Quote
	if evs[0].Key != "BTC-15m-Up" || q.Bid != 0.34 || q.Ask != 0.355 {
		t.Fatalf("unexpected quote %+v", q)
	}
	if !q.Ts.Equal(time.UnixMilli(1717423650000)) {
		t.Fatalf("expected exchange timestamp, got %s", q.Ts)
	}
}

func TestPolymarketHandlePriceChange(t *testing.T) {
	src := NewPolymarketSource("", testRegistry(), zerolog.Nop())
	books := map[string]topOfBook{"dn": {bid: 0.6, ask: 0.62}}
	msg := `{"event_type":"price_change","timestamp":"1717423651000","price_changes":[{"asset_id":"dn","best_bid":"","best_ask":"0.63"}]}`

	evs := src.handle([]byte(msg), books)
	if len(evs) != 1 {
		t.Fatalf("expected one quote, got %d", len(evs))
	}
	if q := evs[0].Quote; q.Bid != 0.6 || q.Ask != 0.63 || q.Instrument.Outcome != signal.Down {
		t.Fatalf("expected ask update to keep prior bid, got %+v", q)
	}
}

func TestPolymarketHandleIgnoresControlAndGarbage(t *testing.T) {
	src := NewPolymarketSource("", testRegistry(), zerolog.Nop())
	books := make(map[string]topOfBook)
	for _, msg := range []string{"PONG", "", `{"event_type":"book"`, `[{"event_type":"book","asset_id":"up","bids":[],"asks":[]}]`} {
		if evs := src.handle([]byte(msg), books); len(evs) != 0 {
			t.Fatalf("expected no quotes for %q, got %+v", msg, evs)
		}
	}
}

func TestRegistrySetReportsChanges(t *testing.T) {
	reg := testRegistry()
	changed := reg.Changed()
	legs := reg.Instruments()
	if reg.Set("BTC-15m", legs) {
		t.Fatalf("identical legs should not count as a change")
	}
	select {
	case <-changed:
		t.Fatalf("change channel closed without a change")
	default:
	}
	legs[0].TokenID = "dn2"
	if !reg.Set("BTC-15m", legs) {
		t.Fatalf("expected change")
	}
	select {
	case <-changed:
	default:
		t.Fatalf("expected change notification")
	}
	if _, ok := reg.Lookup("dn"); ok {
		t.Fatalf("previous period tokens should be removed")
	}
	if inst, ok := reg.Leg("BTC-15m", legs[0].Outcome); !ok || inst.TokenID != "dn2" {
		t.Fatalf("unexpected leg %+v", inst)
	}
}
