package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"st1ne-assistant/internal/config"
	"st1ne-assistant/internal/execution"
	"st1ne-assistant/internal/risk"
	"st1ne-assistant/internal/signal"
	"st1ne-assistant/internal/strategy"
)

func testBoard() *Board {
	now := time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)
	state := risk.NewState(config.ModeDryRun, risk.Limits{MaxNotionalPerTrade: 10, MaxPosition: 10, MaxDailyLoss: 30, Cooldown: time.Minute}, time.UTC, now)
	board := NewBoard(state)
	board.WithClock(func() time.Time { return now })
	return board
}

func TestBoardSnapshot(t *testing.T) {
	board := testBoard()
	board.UpdateResult("ETH-15m", strategy.Result{Score: 5, Label: strategy.Neutral})
	board.UpdateResult("BTC-15m", strategy.Result{Score: 9, Label: strategy.Bullish})
	board.UpdateDecision(execution.Decision{Market: "BTC-15m", State: execution.Blocked, Outcome: execution.OutcomeFailed, Reason: "order_failed", Err: errors.New("boom")})
	board.UpdateQuote(signal.ContractQuote{Instrument: signal.Instrument{Coin: "BTC", Timeframe: "15m", Outcome: signal.Up}, Bid: 0.34, Ask: 0.35})
	board.SetStale("ETH-15m", true)

	view := board.Snapshot()
	if len(view.Markets) != 2 || view.Markets[0].Market != "BTC-15m" {
		t.Fatalf("expected markets sorted, got %+v", view.Markets)
	}
	btc := view.Markets[0]
	if btc.Result.Score != 9 || btc.Decision == nil || btc.Decision.State != "BLOCKED" || btc.Decision.Error != "boom" {
		t.Fatalf("unexpected btc view %+v", btc)
	}
	if q := btc.Quotes["Up"]; q.Ask != 0.35 {
		t.Fatalf("unexpected quote %+v", q)
	}
	if !view.Markets[1].Stale {
		t.Fatalf("expected ETH market stale")
	}
	if view.Risk.Mode != config.ModeDryRun {
		t.Fatalf("expected risk snapshot, got %+v", view.Risk)
	}

	btc.Quotes["Up"] = QuoteView{}
	if board.Snapshot().Markets[0].Quotes["Up"].Ask != 0.35 {
		t.Fatalf("snapshot must not alias board state")
	}
}

func TestBoardHandler(t *testing.T) {
	board := testBoard()
	board.UpdateResult("BTC-15m", strategy.Result{Score: 8, Label: strategy.Bullish})

	rec := httptest.NewRecorder()
	board.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/state", nil))
	if rec.Code != 200 || !strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	var view View
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(view.Markets) != 1 || view.Markets[0].Result.Label != strategy.Bullish {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestHubPushesSnapshots(t *testing.T) {
	board := testBoard()
	board.UpdateResult("BTC-15m", strategy.Result{Score: 7})
	hub := NewHub(zerolog.Nop(), board)
	server := httptest.NewServer(hub)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx, 10*time.Millisecond)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	for i := 0; i < 2; i++ {
		var view View
		if err := conn.ReadJSON(&view); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if len(view.Markets) != 1 || view.Markets[0].Result.Score != 7 {
			t.Fatalf("unexpected pushed view %+v", view)
		}
	}
	if hub.Clients() != 1 {
		t.Fatalf("expected one client, got %d", hub.Clients())
	}
}
