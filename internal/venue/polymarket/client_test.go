package polymarket

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"st1ne-assistant/internal/execution"
	"st1ne-assistant/internal/signal"
)

func testIntent() execution.TradeIntent {
	return execution.TradeIntent{
		Market:     "BTC-15m",
		Instrument: signal.Instrument{Coin: "BTC", Timeframe: "15m", Outcome: signal.Up, TokenID: "111"},
		Side:       execution.BuyYes,
		Shares:     28.5714,
		LimitPrice: 0.347,
		Notional:   10,
	}
}

func TestRoundPrice(t *testing.T) {
	client := NewClient("http://gw", Credentials{}, 0.01, time.Second)
	if got := client.RoundPrice(0.347, true).String(); got != "0.35" {
		t.Fatalf("expected buy rounded up to 0.35, got %s", got)
	}
	if got := client.RoundPrice(0.347, false).String(); got != "0.34" {
		t.Fatalf("expected sell rounded down to 0.34, got %s", got)
	}
}

func TestPlaceSendsSignedOrder(t *testing.T) {
	var got orderRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/order" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("POLY_API_KEY") != "key" || r.Header.Get("POLY_SIGNATURE") == "" {
			t.Errorf("missing auth headers")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(orderResponse{Success: true, OrderID: "0xabc", Status: "matched", MakingAmount: "9.975", TakingAmount: "28.5"})
	}))
	defer server.Close()

	client := NewClient(server.URL, Credentials{Key: "key", Secret: "c2VjcmV0", Passphrase: "pp"}, 0.01, time.Second)
	client.Http = server.Client()

	fill, err := client.Place(context.Background(), testIntent())
	if err != nil {
		t.Fatalf("Place returned error: %v", err)
	}
	if got.Side != "BUY" || got.Price != "0.35" || got.Size != "28.57" || got.Type != "FOK" || got.TokenID != "111" {
		t.Fatalf("unexpected order payload %+v", got)
	}
	if fill.OrderID != "0xabc" || fill.Shares != 28.5 || math.Abs(fill.Notional-9.975) > 1e-9 {
		t.Fatalf("unexpected fill %+v", fill)
	}
	if math.Abs(fill.Price-0.35) > 1e-9 {
		t.Fatalf("unexpected fill price %.4f", fill.Price)
	}
}

func TestPlaceRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(orderResponse{Success: false, ErrorMsg: "not enough balance"})
	}))
	defer server.Close()

	client := NewClient(server.URL, Credentials{}, 0.01, time.Second)
	client.Http = server.Client()
	if _, err := client.Place(context.Background(), testIntent()); err == nil {
		t.Fatalf("expected rejection error")
	}
}

func TestPlaceHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, Credentials{}, 0.01, time.Second)
	client.Http = server.Client()
	if _, err := client.Place(context.Background(), testIntent()); err == nil {
		t.Fatalf("expected status error")
	}
}

func TestCloseSells(t *testing.T) {
	var got orderRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(orderResponse{Success: true, OrderID: "0xdef"})
	}))
	defer server.Close()

	client := NewClient(server.URL, Credentials{}, 0.01, time.Second)
	client.Http = server.Client()
	exit := execution.ExitIntent{Market: "BTC-15m", Instrument: testIntent().Instrument, Side: execution.BuyYes, Shares: 10, LimitPrice: 0.509}
	fill, err := client.Close(context.Background(), exit)
	if err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if got.Side != "SELL" || got.Price != "0.5" {
		t.Fatalf("unexpected sell payload %+v", got)
	}
	if fill.Shares != 10 || math.Abs(fill.Notional-5) > 1e-9 {
		t.Fatalf("unexpected fill %+v", fill)
	}
}

func TestBook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/book" || r.URL.Query().Get("token_id") != "111" {
			t.Errorf("unexpected request %s", r.URL)
		}
		_, _ = w.Write([]byte(`{"asset_id":"111","bids":[{"price":"0.33","size":"10"},{"price":"0.34","size":"5"}],"asks":[{"price":"0.37","size":"4"},{"price":"0.35","size":"9"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, Credentials{}, 0.01, time.Second)
	client.Http = server.Client()
	book, err := client.Book(context.Background(), "111")
	if err != nil {
		t.Fatalf("Book returned error: %v", err)
	}
	if book.Bid != 0.34 || book.Ask != 0.35 {
		t.Fatalf("unexpected book %+v", book)
	}
}

func TestLoadCredentialsFromEnv(t *testing.T) {
	t.Setenv("POLY_API_KEY", "k")
	t.Setenv("POLY_API_SECRET", "s")
	t.Setenv("POLY_PASSPHRASE", "p")
	creds, err := LoadCredentialsFromEnv()
	if err != nil {
		t.Fatalf("expected credentials, got %v", err)
	}
	if creds.Key != "k" || creds.Passphrase != "p" {
		t.Fatalf("unexpected credentials %+v", creds)
	}
}

func TestLoadCredentialsFromEnvMissing(t *testing.T) {
	os.Unsetenv("POLY_API_KEY")
	os.Unsetenv("POLY_API_SECRET")
	if _, err := LoadCredentialsFromEnv(); err == nil {
		t.Fatalf("expected error when env missing")
	}
}
