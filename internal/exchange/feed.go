// Package exchange hosts the upstream feed sources and the synchronizer that merges them.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"st1ne-assistant/internal/config"
	"st1ne-assistant/internal/metrics"
	"st1ne-assistant/internal/signal"
)

const (
	// ProviderStub emits deterministic synthetic snapshots and quotes (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderLive streams Binance spot data and Polymarket contract quotes.
	ProviderLive = "live"
)

// ErrFeedDisconnect marks a dropped upstream connection. Sources recover on their own.
var ErrFeedDisconnect = errors.New("feed disconnected")

// Source is one upstream market-data stream.
// Run blocks until ctx is done, reconnecting internally. When a connection drops
// the source emits an EventStale with an empty Key so every key of the source is
// marked stale.
type Source interface {
	Name() signal.Source
	Run(ctx context.Context, out chan<- signal.Event) error
}

// NewSources builds the spot and contract sources for the configured provider.
func NewSources(cfg *config.Config, registry *Registry, log zerolog.Logger) (spot, contract Source, err error) {
	var symbols, intervals []string
	for _, c := range cfg.Markets.Coins {
		symbols = append(symbols, c.Symbol)
	}
	for _, tf := range cfg.Markets.Timeframes {
		intervals = append(intervals, tf.Kline)
	}
	switch strings.ToLower(cfg.Feeds.Provider) {
	case ProviderStub:
		return NewStubSpot(symbols, intervals, 0), NewStubContract(StubInstruments(cfg.Markets), 0), nil
	case ProviderLive, "":
		binance := NewBinanceSource(cfg.Feeds.Binance.WSURL, cfg.Feeds.Binance.RESTURL, symbols, intervals, log.With().Str("source", "binance").Logger())
		poly := NewPolymarketSource(cfg.Feeds.Polymarket.WSURL, registry, log.With().Str("source", "polymarket").Logger())
		return binance, poly, nil
	default:
		return nil, nil, fmt.Errorf("unknown feed provider %q", cfg.Feeds.Provider)
	}
}

// StubInstruments invents an Up/Down pair per configured market. They never expire.
func StubInstruments(markets config.Markets) []signal.Instrument {
	var out []signal.Instrument
	for _, c := range markets.Coins {
		for _, tf := range markets.Timeframes {
			for _, o := range []signal.Outcome{signal.Up, signal.Down} {
				inst := signal.Instrument{Coin: strings.ToUpper(c.Name), Timeframe: tf.Name, Outcome: o}
				inst.TokenID = "stub-" + strings.ToLower(inst.Key())
				out = append(out, inst)
			}
		}
	}
	return out
}

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// reconnectLoop runs session until ctx is done, sleeping with capped exponential
// backoff between attempts. session reports whether it managed to connect so the
// backoff resets after a healthy connection.
func reconnectLoop(ctx context.Context, log zerolog.Logger, src signal.Source, out chan<- signal.Event, session func(ctx context.Context) (bool, error)) error {
	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		connected, err := session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = initialBackoff
		}
		metrics.Reconnects.WithLabelValues(string(src)).Inc()
		log.Warn().Err(errors.Join(ErrFeedDisconnect, err)).Str("source", string(src)).Dur("backoff", backoff).Msg("feed disconnected, retrying")
		disconnect := signal.Event{Kind: signal.EventStale, Source: src, Ts: time.Now(), Reason: "disconnect"}
		select {
		case out <- disconnect:
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
	}
}

func uniqueSorted(values []string) []string {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// StubSource emits a synthetic spot snapshot per symbol and a quote pair per
// instrument on every tick. Prices follow a fixed zig-zag so runs are repeatable.
type StubSource struct {
	source      signal.Source
	symbols     []string
	instruments []signal.Instrument
	interval    time.Duration
	klines      []string
	barEvery    int
}

// NewStubSpot constructs a stub spot source that closes a bar on every kline
// interval at once.
func NewStubSpot(symbols, klines []string, interval time.Duration) *StubSource {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &StubSource{source: signal.SourceSpot, symbols: uniqueSorted(symbols), interval: interval, klines: uniqueSorted(klines), barEvery: 4}
}

// NewStubContract constructs a stub contract source.
func NewStubContract(instruments []signal.Instrument, interval time.Duration) *StubSource {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &StubSource{source: signal.SourceContract, instruments: instruments, interval: interval}
}

// Name reports which feed the stub stands in for.
func (s *StubSource) Name() signal.Source { return s.source }

// Run pushes synthetic events onto out until the context is canceled.
func (s *StubSource) Run(ctx context.Context, out chan<- signal.Event) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	step := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			step++
			for _, ev := range s.events(step, ts) {
				select {
				case out <- ev:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

// stubPrice walks up 8 steps then down 4, so the trend is mildly bullish.
func stubPrice(step int) float64 {
	phase := step % 12
	if phase < 8 {
		return 100 + float64(step/12)*4 + float64(phase)
	}
	return 100 + float64(step/12)*4 + float64(16-phase)
}

func (s *StubSource) events(step int, ts time.Time) []signal.Event {
	var out []signal.Event
	px := stubPrice(step)
	for _, sym := range s.symbols {
		snap := &signal.MarketSnapshot{
			Symbol:  sym,
			Ts:      ts,
			BestBid: px - 0.05,
			BestAsk: px + 0.05,
			Bids:    []signal.Level{{Price: px - 0.05, Size: 6}, {Price: px - 0.15, Size: 4}, {Price: px - 0.25, Size: 3}},
			Asks:    []signal.Level{{Price: px + 0.05, Size: 2}, {Price: px + 0.15, Size: 2}, {Price: px + 0.25, Size: 1}},
			Trades:  []signal.Trade{{Price: px, Size: 1, Side: 1, Ts: ts}},
		}
		if s.barEvery > 0 && step%s.barEvery == 0 {
			prev := stubPrice(step - s.barEvery)
			for _, kline := range s.klines {
				snap.Candles = append(snap.Candles, signal.Candle{
					Interval: kline,
					Open:     prev,
					High:     max(prev, px) + 0.1,
					Low:      min(prev, px) - 0.1,
					Close:    px,
					Volume:   float64(s.barEvery),
					Start:    ts.Add(-time.Duration(s.barEvery) * s.interval),
				})
			}
		}
		out = append(out, signal.Event{Kind: signal.EventSnapshot, Source: s.source, Key: sym, Ts: ts, Snapshot: snap})
	}
	for _, inst := range s.instruments {
		ask := 0.40
		if inst.Outcome == signal.Down {
			ask = 0.62
		}
		q := &signal.ContractQuote{Instrument: inst, Bid: ask - 0.01, Ask: ask, Ts: ts}
		out = append(out, signal.Event{Kind: signal.EventQuote, Source: s.source, Key: inst.Key(), Ts: ts, Quote: q})
	}
	return out
}
