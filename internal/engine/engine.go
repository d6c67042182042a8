// Package engine wires synchronized feed events through indicators, scoring
// and the execution controller.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"st1ne-assistant/internal/config"
	"st1ne-assistant/internal/execution"
	"st1ne-assistant/internal/indicator"
	"st1ne-assistant/internal/metrics"
	"st1ne-assistant/internal/monitor"
	"st1ne-assistant/internal/signal"
	"st1ne-assistant/internal/strategy"
)

// CandleFetcher loads closed klines to warm bar indicators before streaming.
type CandleFetcher interface {
	Bootstrap(ctx context.Context, symbol, interval string, limit int) ([]signal.Candle, error)
}

// pipeline is everything owned by one market's consumer goroutine.
type pipeline struct {
	market    string
	symbol    string
	timeframe string
	interval  string
	ind       *indicator.Engine
	queue     chan signal.Event

	spotStale     bool
	contractStale map[signal.Outcome]bool
	lastEval      time.Time
}

func (p *pipeline) stale() bool {
	if p.spotStale {
		return true
	}
	for _, s := range p.contractStale {
		if s {
			return true
		}
	}
	return false
}

// Engine fans events out to one bounded queue per market.
type Engine struct {
	log          zerolog.Logger
	policy       strategy.Policy
	ctl          *execution.Controller
	quotes       *execution.Quotes
	board        *monitor.Board
	evalInterval time.Duration
	bootstrapN   int
	now          func() time.Time

	pipelines []*pipeline
	bySymbol  map[string][]*pipeline
	byMarket  map[string]*pipeline
}

// New builds one pipeline per configured (coin, timeframe).
func New(log zerolog.Logger, cfg *config.Config, ctl *execution.Controller, quotes *execution.Quotes, board *monitor.Board) (*Engine, error) {
	loc, err := time.LoadLocation(cfg.Indicators.SessionTZ)
	if err != nil {
		return nil, fmt.Errorf("session tz: %w", err)
	}
	e := &Engine{
		log:          log,
		policy:       strategy.Build(cfg),
		ctl:          ctl,
		quotes:       quotes,
		board:        board,
		evalInterval: cfg.Strategy.EvalInterval(),
		bootstrapN:   cfg.Feeds.Binance.BootstrapCandles,
		now:          time.Now,
		bySymbol:     make(map[string][]*pipeline),
		byMarket:     make(map[string]*pipeline),
	}
	queueSize := max(cfg.Feeds.QueueSize, 1)
	for _, coin := range cfg.Markets.Coins {
		for _, tf := range cfg.Markets.Timeframes {
			symbol := strings.ToUpper(coin.Symbol)
			p := &pipeline{
				market:    signal.MarketKey(coin.Name, tf.Name),
				symbol:    symbol,
				timeframe: tf.Name,
				interval:  tf.Kline,
				ind: indicator.NewEngine(symbol, tf.Name, indicator.Options{
					Interval:         tf.Kline,
					OBIBandPct:       cfg.Indicators.OBIBandPct,
					WallMultiple:     cfg.Indicators.WallMultiple,
					ProfileBucketPct: cfg.Indicators.ProfileBucketPct,
					SessionLoc:       loc,
					MaxTrades:        cfg.Indicators.MaxTrades,
				}),
				queue:         make(chan signal.Event, queueSize),
				contractStale: make(map[signal.Outcome]bool),
			}
			e.pipelines = append(e.pipelines, p)
			e.bySymbol[symbol] = append(e.bySymbol[symbol], p)
			e.byMarket[p.market] = p
		}
	}
	if len(e.pipelines) == 0 {
		return nil, fmt.Errorf("no markets configured")
	}
	return e, nil
}

// Markets lists the configured market keys.
func (e *Engine) Markets() []string {
	out := make([]string, len(e.pipelines))
	for i, p := range e.pipelines {
		out[i] = p.market
	}
	return out
}

// Bootstrap warms every pipeline's bar indicators. Failures are logged and
// the pipeline starts cold.
func (e *Engine) Bootstrap(ctx context.Context, fetcher CandleFetcher) {
	if fetcher == nil || e.bootstrapN <= 0 {
		return
	}
	for _, p := range e.pipelines {
		candles, err := fetcher.Bootstrap(ctx, p.symbol, p.interval, e.bootstrapN)
		if err != nil {
			e.log.Warn().Err(err).Str("market", p.market).Str("interval", p.interval).Msg("kline bootstrap failed")
			continue
		}
		n := p.ind.Bootstrap(candles)
		e.log.Info().Str("market", p.market).Str("interval", p.interval).Int("candles", n).Msg("loaded historical candles")
	}
}

// Run consumes events until the channel closes or ctx is done. When the
// channel closes, queued events are drained; on cancellation consumers stop
// at the next event boundary.
func (e *Engine) Run(ctx context.Context, events <-chan signal.Event) error {
	var wg sync.WaitGroup
	for _, p := range e.pipelines {
		wg.Add(1)
		go func(p *pipeline) {
			defer wg.Done()
			e.consume(ctx, p)
		}(p)
	}
	defer func() {
		for _, p := range e.pipelines {
			close(p.queue)
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			e.dispatch(ev)
		}
	}
}

func (e *Engine) targets(ev signal.Event) []*pipeline {
	switch ev.Source {
	case signal.SourceSpot:
		return e.bySymbol[strings.ToUpper(ev.Key)]
	case signal.SourceContract:
		market := ev.Key
		if ev.Quote != nil {
			market = ev.Quote.Instrument.Market()
		} else if i := strings.LastIndex(market, "-"); i > 0 {
			market = market[:i]
		}
		if p := e.byMarket[market]; p != nil {
			return []*pipeline{p}
		}
	}
	return nil
}

func (e *Engine) dispatch(ev signal.Event) {
	for _, p := range e.targets(ev) {
		select {
		case p.queue <- ev:
		default:
			metrics.DroppedTotal.WithLabelValues(string(ev.Source), "queue_full").Inc()
			e.log.Warn().Str("market", p.market).Str("kind", ev.Kind.String()).Msg("pipeline queue full, dropping event")
		}
	}
}

func (e *Engine) consume(ctx context.Context, p *pipeline) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-p.queue:
			if !ok {
				return
			}
			e.handle(ctx, p, ev)
		}
	}
}

func (e *Engine) handle(ctx context.Context, p *pipeline, ev signal.Event) {
	switch ev.Kind {
	case signal.EventSnapshot:
		if ev.Snapshot == nil {
			return
		}
		vec, ok := p.ind.Update(*ev.Snapshot)
		if !ok {
			return
		}
		res := e.policy.Score(vec)
		if e.board != nil {
			e.board.UpdateResult(p.market, res)
		}
		now := e.now()
		if p.stale() || now.Sub(p.lastEval) < e.evalInterval {
			return
		}
		p.lastEval = now
		d := e.ctl.Evaluate(ctx, p.market, res, now)
		e.report(d)

	case signal.EventQuote:
		if ev.Quote == nil {
			return
		}
		if !e.quotes.Update(*ev.Quote) {
			return
		}
		if e.board != nil {
			e.board.UpdateQuote(*ev.Quote)
		}
		if d, ok := e.ctl.OnQuote(ctx, *ev.Quote, e.now()); ok {
			e.report(d)
		}

	case signal.EventStale, signal.EventFresh:
		stale := ev.Kind == signal.EventStale
		if ev.Source == signal.SourceSpot {
			p.spotStale = stale
		} else {
			p.contractStale[outcomeOf(ev.Key)] = stale
		}
		if e.board != nil {
			e.board.SetStale(p.market, p.stale())
		}
	}
}

func (e *Engine) report(d execution.Decision) {
	if e.board != nil {
		e.board.UpdateDecision(d)
	}
}

// Report publishes decisions produced outside the pipelines, such as scheduled exit sweeps.
func (e *Engine) Report(d execution.Decision) { e.report(d) }

func outcomeOf(key string) signal.Outcome {
	if strings.HasSuffix(key, "-"+string(signal.Down)) {
		return signal.Down
	}
	return signal.Up
}
