// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Execution modes.
const (
	ModeDryRun = "dry-run"
	ModeLive   = "live"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

// Binance configures the spot exchange websocket and REST endpoints.
type Binance struct {
	WSURL            string `yaml:"ws_url"`
	RESTURL          string `yaml:"rest_url"`
	BootstrapCandles int    `yaml:"bootstrap_candles"`
}

// Polymarket configures the contract price feed and market discovery.
type Polymarket struct {
	WSURL           string `yaml:"ws_url"`
	GammaURL        string `yaml:"gamma_url"`
	RefreshInterval int    `yaml:"refresh_interval_ms"`
}

// Feeds groups the two upstream sources and synchronizer tuning.
type Feeds struct {
	Provider   string     `yaml:"provider"` // live | stub
	StaleAfter int        `yaml:"stale_after_ms"`
	QueueSize  int        `yaml:"queue_size"`
	Binance    Binance    `yaml:"binance"`
	Polymarket Polymarket `yaml:"polymarket"`
}

// Coin maps a prediction-market coin to its spot symbol.
type Coin struct {
	Name     string `yaml:"name"`      // BTC
	Symbol   string `yaml:"symbol"`    // BTCUSDT
	Slug     string `yaml:"slug"`      // btc, used by epoch slugs
	LongSlug string `yaml:"long_slug"` // bitcoin, used by ET calendar slugs
}

// Timeframe maps a contract timeframe to the kline interval that drives bar-based indicators.
type Timeframe struct {
	Name  string `yaml:"name"`  // 15m
	Kline string `yaml:"kline"` // 1m
}

// Markets lists the tracked coins and contract timeframes.
type Markets struct {
	Coins      []Coin      `yaml:"coins"`
	Timeframes []Timeframe `yaml:"timeframes"`
}

// Indicators tunes book bands and session handling for the indicator engine.
type Indicators struct {
	OBIBandPct       float64 `yaml:"obi_band_pct"`
	WallMultiple     float64 `yaml:"wall_multiple"`
	ProfileBucketPct float64 `yaml:"profile_bucket_pct"`
	SessionTZ        string  `yaml:"session_tz"`
	MaxTrades        int     `yaml:"max_trades"`
}

// Weights assigns a vote weight to each indicator rule.
type Weights struct {
	OBI      float64 `yaml:"obi"`
	Walls    float64 `yaml:"walls"`
	Depth    float64 `yaml:"depth"`
	CVD      float64 `yaml:"cvd"`
	Delta    float64 `yaml:"delta"`
	POC      float64 `yaml:"poc"`
	RSI      float64 `yaml:"rsi"`
	MACD     float64 `yaml:"macd"`
	VWAP     float64 `yaml:"vwap"`
	EMATrend float64 `yaml:"ema_trend"`
	EMACross float64 `yaml:"ema_cross"`
	Heikin   float64 `yaml:"heikin_ashi"`
}

// Entry is the filter a score must pass before a trade is attempted.
type Entry struct {
	MinScore     int     `yaml:"min_score"`
	OBIThreshold float64 `yaml:"obi_threshold"`
	PriceMin     float64 `yaml:"price_min"`
	PriceMax     float64 `yaml:"price_max"`
}

// StrategyParams groups tunable knobs for the scoring policy.
type StrategyParams struct {
	Baseline       float64 `yaml:"baseline"`
	HighThreshold  int     `yaml:"high_threshold"`
	LowThreshold   int     `yaml:"low_threshold"`
	OBIThreshold   float64 `yaml:"obi_threshold"`
	RSIOversold    float64 `yaml:"rsi_oversold"`
	RSIOverbought  float64 `yaml:"rsi_overbought"`
	WallCap        int     `yaml:"wall_cap"`
	HeikinStreak   int     `yaml:"heikin_streak"`
	DepthImbalance float64 `yaml:"depth_imbalance"`
	Weights        Weights `yaml:"weights"`
}

// Strategy specifies the scoring policy and the entry filter.
type Strategy struct {
	Params         StrategyParams `yaml:"params"`
	Entry          Entry          `yaml:"entry"`
	EvalIntervalMs int            `yaml:"eval_interval_ms"`
}

// EvalInterval is the minimum spacing between evaluations of one market.
func (s Strategy) EvalInterval() time.Duration {
	return time.Duration(s.EvalIntervalMs) * time.Millisecond
}

// Risk encodes guard-rails for how much size the executor may take on.
type Risk struct {
	Mode                string  `yaml:"mode"`
	MaxNotionalPerTrade float64 `yaml:"max_notional_per_trade"`
	MaxPosition         float64 `yaml:"max_position"`
	MaxDailyLoss        float64 `yaml:"max_daily_loss"`
	CooldownSecs        int     `yaml:"cooldown_secs"`
	DayBoundaryTZ       string  `yaml:"day_boundary_tz"`
	QuoteStaleMs        int     `yaml:"quote_stale_ms"`
	TakeProfit          float64 `yaml:"take_profit"`
	StopLoss            float64 `yaml:"stop_loss"`
	DeadlineLeadSecs    int     `yaml:"deadline_lead_secs"`
}

// Execution configures the venue that receives live orders.
type Execution struct {
	Venue          string  `yaml:"venue"` // paper | polymarket
	GatewayURL     string  `yaml:"gateway_url"`
	OrderTimeoutMs int     `yaml:"order_timeout_ms"`
	TickSize       float64 `yaml:"tick_size"`
}

// Paper captures simulated venue settings.
type Paper struct {
	StartingCash float64 `yaml:"starting_cash"`
	SlippageBps  float64 `yaml:"slippage_bps"`
}

// Recorder selects trade log sinks.
type Recorder struct {
	JSONLDir   string `yaml:"jsonl_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App        App        `yaml:"app"`
	Feeds      Feeds      `yaml:"feeds"`
	Markets    Markets    `yaml:"markets"`
	Indicators Indicators `yaml:"indicators"`
	Strategy   Strategy   `yaml:"strategy"`
	Risk       Risk       `yaml:"risk"`
	Execution  Execution  `yaml:"execution"`
	Paper      Paper      `yaml:"paper"`
	Recorder   Recorder   `yaml:"recorder"`
}

// Load reads a YAML file from disk, fills defaults, and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	config.applyDefaults()
	return config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Default returns the documented default policy.
func Default() *Config {
	return &Config{
		App: App{Name: "st1ne-assistant", Env: "dev", MetricsAddr: ":9102", LogLevel: "info", LogFormat: "json"},
		Feeds: Feeds{
			Provider:   "live",
			StaleAfter: 10_000,
			QueueSize:  256,
			Binance: Binance{
				WSURL:            "wss://stream.binance.com:9443/stream",
				RESTURL:          "https://api.binance.com/api/v3",
				BootstrapCandles: 100,
			},
			Polymarket: Polymarket{
				WSURL:           "wss://ws-subscriptions-clob.polymarket.com/ws/market",
				GammaURL:        "https://gamma-api.polymarket.com/events",
				RefreshInterval: 30_000,
			},
		},
		Markets: Markets{
			Coins:      []Coin{{Name: "BTC", Symbol: "BTCUSDT", Slug: "btc", LongSlug: "bitcoin"}},
			Timeframes: []Timeframe{{Name: "15m", Kline: "1m"}},
		},
		Indicators: Indicators{
			OBIBandPct:       1.0,
			WallMultiple:     5,
			ProfileBucketPct: 0.05,
			SessionTZ:        "UTC",
			MaxTrades:        50_000,
		},
		Strategy: Strategy{
			Params: StrategyParams{
				Baseline:       5,
				HighThreshold:  8,
				LowThreshold:   2,
				OBIThreshold:   0.65,
				RSIOversold:    30,
				RSIOverbought:  70,
				WallCap:        2,
				HeikinStreak:   3,
				DepthImbalance: 0.2,
				Weights: Weights{
					OBI: 1, Walls: 1, Depth: 0.5, CVD: 1, Delta: 0.5, POC: 0.5,
					RSI: 1, MACD: 1, VWAP: 1, EMATrend: 1, EMACross: 1, Heikin: 1,
				},
			},
			Entry:          Entry{MinScore: 8, OBIThreshold: 0.65, PriceMin: 0.20, PriceMax: 0.58},
			EvalIntervalMs: 2_000,
		},
		Risk: Risk{
			Mode:                ModeDryRun,
			MaxNotionalPerTrade: 10,
			MaxPosition:         10,
			MaxDailyLoss:        30,
			CooldownSecs:        300,
			DayBoundaryTZ:       "UTC",
			QuoteStaleMs:        15_000,
			TakeProfit:          0.15,
			StopLoss:            0.05,
			DeadlineLeadSecs:    60,
		},
		Execution: Execution{Venue: "paper", OrderTimeoutMs: 8_000, TickSize: 0.01},
		Paper:     Paper{StartingCash: 1000},
		Recorder:  Recorder{JSONLDir: "logs"},
	}
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Feeds.StaleAfter <= 0 {
		c.Feeds.StaleAfter = def.Feeds.StaleAfter
	}
	if c.Feeds.QueueSize <= 0 {
		c.Feeds.QueueSize = def.Feeds.QueueSize
	}
	for i, tf := range c.Markets.Timeframes {
		if tf.Kline == "" {
			c.Markets.Timeframes[i].Kline = defaultKline(tf.Name)
		}
	}
	for i, coin := range c.Markets.Coins {
		if coin.Symbol == "" {
			c.Markets.Coins[i].Symbol = strings.ToUpper(coin.Name) + "USDT"
		}
		if coin.Slug == "" {
			c.Markets.Coins[i].Slug = strings.ToLower(coin.Name)
		}
		if coin.LongSlug == "" {
			c.Markets.Coins[i].LongSlug = longSlug(coin.Name)
		}
	}
	if c.Strategy.EvalIntervalMs <= 0 {
		c.Strategy.EvalIntervalMs = def.Strategy.EvalIntervalMs
	}
	if c.Indicators.MaxTrades <= 0 {
		c.Indicators.MaxTrades = def.Indicators.MaxTrades
	}
	if c.Execution.OrderTimeoutMs <= 0 {
		c.Execution.OrderTimeoutMs = def.Execution.OrderTimeoutMs
	}
	if c.Execution.TickSize <= 0 {
		c.Execution.TickSize = def.Execution.TickSize
	}
	c.Risk.Mode = strings.ToLower(strings.TrimSpace(c.Risk.Mode))
}

var longSlugs = map[string]string{
	"BTC": "bitcoin",
	"ETH": "ethereum",
	"SOL": "solana",
	"XRP": "xrp",
}

func longSlug(coin string) string {
	if slug, ok := longSlugs[strings.ToUpper(coin)]; ok {
		return slug
	}
	return strings.ToLower(coin)
}

func defaultKline(timeframe string) string {
	switch timeframe {
	case "1h":
		return "5m"
	case "4h":
		return "15m"
	case "daily":
		return "1h"
	default:
		return "1m"
	}
}

// ConfigurationError reports an invalid option; the bot refuses to start when any are present.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// Validate checks every trading threshold and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field, reason string) {
		errs = append(errs, &ConfigurationError{Field: field, Reason: reason})
	}

	if len(c.Markets.Coins) == 0 {
		bad("markets.coins", "at least one coin required")
	}
	if len(c.Markets.Timeframes) == 0 {
		bad("markets.timeframes", "at least one timeframe required")
	}
	for _, tf := range c.Markets.Timeframes {
		if _, err := ParseInterval(tf.Kline); err != nil {
			bad("markets.timeframes."+tf.Name, err.Error())
		}
	}

	r := c.Risk
	if r.Mode != ModeDryRun && r.Mode != ModeLive {
		bad("risk.mode", fmt.Sprintf("unknown mode %q", r.Mode))
	}
	if r.MaxNotionalPerTrade <= 0 {
		bad("risk.max_notional_per_trade", "must be positive")
	}
	if r.MaxPosition <= 0 {
		bad("risk.max_position", "must be positive")
	}
	if r.MaxDailyLoss <= 0 {
		bad("risk.max_daily_loss", "must be positive")
	}
	if r.CooldownSecs < 0 {
		bad("risk.cooldown_secs", "must not be negative")
	}
	if _, err := time.LoadLocation(r.DayBoundaryTZ); err != nil {
		bad("risk.day_boundary_tz", err.Error())
	}
	if r.TakeProfit < 0 || r.StopLoss < 0 {
		bad("risk.take_profit/stop_loss", "must not be negative")
	}

	e := c.Strategy.Entry
	if e.PriceMin <= 0 || e.PriceMax >= 1 || e.PriceMin >= e.PriceMax {
		bad("strategy.entry.price_band", fmt.Sprintf("invalid band [%.2f, %.2f]", e.PriceMin, e.PriceMax))
	}
	if e.MinScore < 0 || e.MinScore > 10 {
		bad("strategy.entry.min_score", "must be within [0,10]")
	}
	if e.OBIThreshold < 0 || e.OBIThreshold > 1 {
		bad("strategy.entry.obi_threshold", "must be within [0,1]")
	}

	p := c.Strategy.Params
	if p.LowThreshold < 0 || p.HighThreshold > 10 || p.LowThreshold >= p.HighThreshold {
		bad("strategy.params.thresholds", fmt.Sprintf("need 0 <= low < high <= 10, got %d/%d", p.LowThreshold, p.HighThreshold))
	}
	if p.RSIOversold >= p.RSIOverbought {
		bad("strategy.params.rsi", "oversold must be below overbought")
	}

	if c.Indicators.OBIBandPct <= 0 {
		bad("indicators.obi_band_pct", "must be positive")
	}
	if c.Indicators.WallMultiple <= 1 {
		bad("indicators.wall_multiple", "must exceed 1")
	}
	if _, err := time.LoadLocation(c.Indicators.SessionTZ); err != nil {
		bad("indicators.session_tz", err.Error())
	}

	switch c.Execution.Venue {
	case "paper":
	case "polymarket":
		if c.Execution.GatewayURL == "" {
			bad("execution.gateway_url", "required for polymarket venue")
		}
	default:
		bad("execution.venue", fmt.Sprintf("unknown venue %q", c.Execution.Venue))
	}
	return errors.Join(errs...)
}

// Cooldown returns the configured cooldown as a duration.
func (r Risk) Cooldown() time.Duration { return time.Duration(r.CooldownSecs) * time.Second }

// StaleAfterDuration returns the feed staleness threshold.
func (f Feeds) StaleAfterDuration() time.Duration {
	return time.Duration(f.StaleAfter) * time.Millisecond
}

// ParseInterval converts a Binance kline interval ("1m", "4h", "1d") into a duration.
func ParseInterval(iv string) (time.Duration, error) {
	if len(iv) < 2 {
		return 0, fmt.Errorf("invalid interval %q", iv)
	}
	var n int
	if _, err := fmt.Sscanf(iv[:len(iv)-1], "%d", &n); err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid interval %q", iv)
	}
	switch iv[len(iv)-1] {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("invalid interval %q", iv)
}
