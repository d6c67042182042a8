package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	path := filepath.Join("testdata", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "st1ne-test" {
		t.Fatalf("unexpected App.Name: %s", cfg.App.Name)
	}
	if cfg.Feeds.Provider != "stub" {
		t.Fatalf("unexpected provider: %s", cfg.Feeds.Provider)
	}
	if cfg.Feeds.StaleAfterDuration() != 5*time.Second {
		t.Fatalf("unexpected stale threshold: %s", cfg.Feeds.StaleAfterDuration())
	}
	if cfg.Feeds.QueueSize != 256 {
		t.Fatalf("expected default queue size, got %d", cfg.Feeds.QueueSize)
	}
	if cfg.Feeds.Binance.BootstrapCandles != 50 {
		t.Fatalf("unexpected bootstrap candles: %d", cfg.Feeds.Binance.BootstrapCandles)
	}
	if cfg.Feeds.Binance.WSURL == "" {
		t.Fatalf("expected default binance ws url to survive partial override")
	}
	if len(cfg.Markets.Coins) != 2 {
		t.Fatalf("expected 2 coins, got %+v", cfg.Markets.Coins)
	}
	if cfg.Markets.Coins[1].Symbol != "ETHUSDT" {
		t.Fatalf("expected derived ETHUSDT symbol, got %s", cfg.Markets.Coins[1].Symbol)
	}
	if cfg.Markets.Coins[1].LongSlug != "ethereum" || cfg.Markets.Coins[1].Slug != "eth" {
		t.Fatalf("expected derived eth slugs, got %+v", cfg.Markets.Coins[1])
	}
	if cfg.Markets.Timeframes[1].Kline != "5m" {
		t.Fatalf("expected 1h timeframe to default to 5m klines, got %s", cfg.Markets.Timeframes[1].Kline)
	}
	if cfg.Strategy.Params.HighThreshold != 7 {
		t.Fatalf("unexpected high threshold: %d", cfg.Strategy.Params.HighThreshold)
	}
	if cfg.Strategy.Params.LowThreshold != 2 {
		t.Fatalf("expected default low threshold, got %d", cfg.Strategy.Params.LowThreshold)
	}
	if cfg.Strategy.Params.Weights.OBI != 2 || cfg.Strategy.Params.Weights.MACD != 1 {
		t.Fatalf("unexpected weights: %+v", cfg.Strategy.Params.Weights)
	}
	if cfg.Strategy.Entry.PriceMin != 0.25 || cfg.Strategy.Entry.PriceMax != 0.55 {
		t.Fatalf("unexpected price band: %+v", cfg.Strategy.Entry)
	}
	if cfg.Strategy.EvalInterval() != 2*time.Second {
		t.Fatalf("expected default eval interval, got %s", cfg.Strategy.EvalInterval())
	}
	if cfg.Risk.Mode != ModeLive {
		t.Fatalf("expected mode normalized to live, got %s", cfg.Risk.Mode)
	}
	if cfg.Risk.Cooldown() != 2*time.Minute {
		t.Fatalf("unexpected cooldown: %s", cfg.Risk.Cooldown())
	}
	if cfg.Risk.MaxPosition != 15 {
		t.Fatalf("unexpected max position: %.2f", cfg.Risk.MaxPosition)
	}
	if cfg.Risk.TakeProfit != 0.15 {
		t.Fatalf("expected default take profit, got %.2f", cfg.Risk.TakeProfit)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cases := map[string]func(*Config){
		"risk.max_position":            func(c *Config) { c.Risk.MaxPosition = 0 },
		"risk.cooldown_secs":           func(c *Config) { c.Risk.CooldownSecs = -1 },
		"risk.max_daily_loss":          func(c *Config) { c.Risk.MaxDailyLoss = -5 },
		"risk.mode":                    func(c *Config) { c.Risk.Mode = "yolo" },
		"strategy.entry.price_band":    func(c *Config) { c.Strategy.Entry.PriceMin = 0.7 },
		"strategy.params.thresholds":   func(c *Config) { c.Strategy.Params.LowThreshold = 9 },
		"execution.gateway_url":        func(c *Config) { c.Execution.Venue = "polymarket" },
		"markets.coins":                func(c *Config) { c.Markets.Coins = nil },
		"markets.timeframes.15m":       func(c *Config) { c.Markets.Timeframes[0].Kline = "soon" },
		"risk.max_notional_per_trade":  func(c *Config) { c.Risk.MaxNotionalPerTrade = 0 },
		"strategy.entry.obi_threshold": func(c *Config) { c.Strategy.Entry.OBIThreshold = 1.5 },
	}
	for field, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected validation error", field)
		}
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("%s: expected ConfigurationError, got %T", field, err)
		}
		if cfgErr.Field != field {
			t.Fatalf("%s: unexpected field %s", field, cfgErr.Field)
		}
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Risk.CooldownSecs = 42
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.Risk.CooldownSecs != 42 {
		t.Fatalf("expected cooldown 42, got %d", loaded.Risk.CooldownSecs)
	}
}

func TestParseInterval(t *testing.T) {
	cases := map[string]time.Duration{"1m": time.Minute, "15m": 15 * time.Minute, "4h": 4 * time.Hour, "1d": 24 * time.Hour}
	for iv, want := range cases {
		got, err := ParseInterval(iv)
		if err != nil || got != want {
			t.Fatalf("%s: expected %s got %s (%v)", iv, want, got, err)
		}
	}
	if _, err := ParseInterval("x"); err == nil {
		t.Fatalf("expected error for bad interval")
	}
}
