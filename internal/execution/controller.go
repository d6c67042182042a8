package execution

import (
	"context"
	"math"
	"sync"
	"time"

	"st1ne-assistant/internal/config"
	"st1ne-assistant/internal/metrics"
	"st1ne-assistant/internal/recorder"
	"st1ne-assistant/internal/risk"
	"st1ne-assistant/internal/strategy"

	"github.com/rs/zerolog"
)

// State is the controller's per-market state.
type State int

const (
	Idle State = iota
	Evaluating
	Executing
	Skipped
	Blocked
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Evaluating:
		return "EVALUATING"
	case Executing:
		return "EXECUTING"
	case Skipped:
		return "SKIPPED"
	case Blocked:
		return "BLOCKED"
	default:
		return "UNKNOWN"
	}
}

// Outcome refines the terminal state of an evaluation.
type Outcome string

const (
	OutcomeExecuted Outcome = "executed"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeBlocked  Outcome = "blocked"
	OutcomeDryRun   Outcome = "dry_run"
	OutcomeFailed   Outcome = "failed"
)

// Skip and block reasons produced by the controller itself; risk limits use
// the reasons defined in package risk.
const (
	ReasonLabel     = "label"
	ReasonScore     = "score"
	ReasonOBI       = "obi"
	ReasonPriceBand = "price_band"
	ReasonNoQuote   = "no_quote"
	ReasonStale     = "stale_quote"
	ReasonPeriodEnd = "period_end"
	ReasonDryRun    = "dry_run"
	ReasonOrder     = "order_failed"
)

// Decision is the full record of one evaluation cycle.
type Decision struct {
	Market  string          `json:"market"`
	Ts      time.Time       `json:"ts"`
	State   State           `json:"-"`
	Outcome Outcome         `json:"outcome"`
	Reason  string          `json:"reason,omitempty"`
	Result  strategy.Result `json:"result"`
	Intent  *TradeIntent    `json:"-"`
	Fill    *Fill           `json:"fill,omitempty"`
	Err     error           `json:"-"`
}

// Options carries the entry filter and order timing.
type Options struct {
	MinScore     int
	OBIThreshold float64
	PriceMin     float64
	PriceMax     float64
	QuoteStale   time.Duration
	OrderTimeout time.Duration
	TakeProfit   float64
	StopLoss     float64
	DeadlineLead time.Duration
	ExitRetry    time.Duration
}

// OptionsFromConfig maps the entry filter, risk exits and execution timing.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MinScore:     cfg.Strategy.Entry.MinScore,
		OBIThreshold: cfg.Strategy.Entry.OBIThreshold,
		PriceMin:     cfg.Strategy.Entry.PriceMin,
		PriceMax:     cfg.Strategy.Entry.PriceMax,
		QuoteStale:   time.Duration(cfg.Risk.QuoteStaleMs) * time.Millisecond,
		OrderTimeout: time.Duration(cfg.Execution.OrderTimeoutMs) * time.Millisecond,
		TakeProfit:   cfg.Risk.TakeProfit,
		StopLoss:     cfg.Risk.StopLoss,
		DeadlineLead: time.Duration(cfg.Risk.DeadlineLeadSecs) * time.Second,
		ExitRetry:    5 * time.Second,
	}
}

type marketStatus struct {
	state      State
	last       Decision
	lastReason string
	exitTried  time.Time
	markToken  string  // token the mark was observed on
	mark       float64 // last bid seen for the open position's own token
}

// Controller is the risk-gated execution state machine. Evaluations for one
// market are serialized through the risk state's market lock; different
// markets proceed independently.
type Controller struct {
	log    zerolog.Logger
	risk   *risk.State
	venue  Venue
	sink   recorder.Sink
	quotes *Quotes
	opts   Options

	mu     sync.Mutex
	status map[string]*marketStatus
}

// NewController wires the controller to its collaborators.
func NewController(log zerolog.Logger, state *risk.State, venue Venue, sink recorder.Sink, quotes *Quotes, opts Options) *Controller {
	if sink == nil {
		sink = recorder.Discard{}
	}
	if opts.OrderTimeout <= 0 {
		opts.OrderTimeout = 8 * time.Second
	}
	if opts.ExitRetry <= 0 {
		opts.ExitRetry = 5 * time.Second
	}
	return &Controller{
		log:    log.With().Str("component", "controller").Logger(),
		risk:   state,
		venue:  venue,
		sink:   sink,
		quotes: quotes,
		opts:   opts,
		status: make(map[string]*marketStatus),
	}
}

// State returns the current state of a market (EVALUATING while a cycle runs).
func (c *Controller) State(market string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st := c.status[market]; st != nil {
		return st.state
	}
	return Idle
}

// LastDecision returns the most recent completed decision for a market.
func (c *Controller) LastDecision(market string) (Decision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.status[market]
	if st == nil || st.last.Ts.IsZero() {
		return Decision{}, false
	}
	return st.last, true
}

func (c *Controller) statusLocked(market string) *marketStatus {
	st := c.status[market]
	if st == nil {
		st = &marketStatus{}
		c.status[market] = st
	}
	return st
}

func (c *Controller) setState(market string, s State) {
	c.mu.Lock()
	c.statusLocked(market).state = s
	c.mu.Unlock()
}

// Evaluate runs one IDLE→EVALUATING→terminal→IDLE cycle for a score result.
// Once an order is sent the cycle runs to its commit boundary even if ctx is
// cancelled.
func (c *Controller) Evaluate(ctx context.Context, market string, res strategy.Result, now time.Time) Decision {
	c.setState(market, Evaluating)
	metrics.Score.WithLabelValues(market).Set(float64(res.Score))

	var d Decision
	c.risk.WithMarket(market, func(m *risk.MarketState) {
		d = c.evaluateLocked(ctx, m, res, now)
	})

	c.finish(d)
	return d
}

func (c *Controller) evaluateLocked(ctx context.Context, m *risk.MarketState, res strategy.Result, now time.Time) Decision {
	market := m.Market()
	d := Decision{Market: market, Ts: now, Result: res}
	blocked := func(reason string) Decision {
		d.State, d.Outcome, d.Reason = Blocked, OutcomeBlocked, reason
		return d
	}
	skipped := func(reason string) Decision {
		d.State, d.Outcome, d.Reason = Skipped, OutcomeSkipped, reason
		return d
	}

	if reason := c.risk.Check(m, now); reason != "" {
		return blocked(reason)
	}

	var (
		side       Side
		conviction int
		obiOK      bool
	)
	switch res.Label {
	case strategy.Bullish:
		side, conviction = BuyYes, res.Score
		obiOK = res.Vector.OBI > c.opts.OBIThreshold
	case strategy.Bearish:
		side, conviction = BuyNo, 10-res.Score
		obiOK = res.Vector.OBI < -c.opts.OBIThreshold
	default:
		return skipped(ReasonLabel)
	}

	if c.quotes == nil {
		return blocked(ReasonNoQuote)
	}
	quote, ok := c.quotes.Get(market, side.Outcome())
	if !ok || quote.Ask <= 0 {
		return blocked(ReasonNoQuote)
	}
	if c.opts.QuoteStale > 0 && now.Sub(quote.Ts) > c.opts.QuoteStale {
		return blocked(ReasonStale)
	}
	if end := quote.Instrument.PeriodEnd; !end.IsZero() && !now.Before(end.Add(-c.opts.DeadlineLead)) {
		return blocked(ReasonPeriodEnd)
	}

	if conviction < c.opts.MinScore {
		return skipped(ReasonScore)
	}
	if !obiOK {
		return skipped(ReasonOBI)
	}
	price := quote.Ask
	if price < c.opts.PriceMin || price > c.opts.PriceMax {
		return skipped(ReasonPriceBand)
	}

	limits := c.risk.Limits()
	notional := limits.Size(m.OpenNotional())
	shares := math.Floor(notional/price*100) / 100
	// headroom too small for a single share-cent rounds to an empty order
	if !limits.Allow(shares * price) {
		return blocked(risk.ReasonPositionCap)
	}
	intent := TradeIntent{
		Market:     market,
		Instrument: quote.Instrument,
		Side:       side,
		Notional:   notional,
		LimitPrice: price,
		Shares:     shares,
		Result:     res,
		Ts:         now,
	}
	d.Intent = &intent

	if c.risk.DryRun() {
		d.State, d.Outcome, d.Reason = Skipped, OutcomeDryRun, ReasonDryRun
		c.record(intentRecord(intent, recorder.KindDryRun, c.risk.Mode(), ReasonDryRun))
		return d
	}

	c.setState(market, Executing)
	octx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.OrderTimeout)
	defer cancel()
	fill, err := c.venue.Place(octx, intent)
	if err != nil {
		d.State, d.Outcome, d.Reason, d.Err = Blocked, OutcomeFailed, ReasonOrder, err
		rec := intentRecord(intent, recorder.KindFailed, c.risk.Mode(), err.Error())
		c.record(rec)
		return d
	}

	m.CommitEntry(now, risk.Position{
		Instrument: intent.Instrument,
		Side:       string(side),
		Shares:     fill.Shares,
		Notional:   fill.Notional,
		EntryPrice: fill.Price,
		OpenedAt:   now,
	})
	metrics.OpenNotional.WithLabelValues(market).Set(m.OpenNotional())
	rec := intentRecord(intent, recorder.KindEntry, c.risk.Mode(), "")
	rec.OrderID, rec.Shares, rec.Price, rec.Notional = fill.OrderID, fill.Shares, fill.Price, fill.Notional
	c.record(rec)

	d.State, d.Outcome, d.Fill = Executing, OutcomeExecuted, &fill
	return d
}

func intentRecord(intent TradeIntent, kind recorder.Kind, mode, reason string) recorder.TradeRecord {
	rec := recorder.New(intent.Ts, intent.Market, kind)
	rec.Mode = mode
	rec.Side = string(intent.Side)
	rec.Outcome = string(intent.Instrument.Outcome)
	rec.TokenID = intent.Instrument.TokenID
	rec.PeriodEnd = intent.Instrument.PeriodEnd
	rec.Notional = intent.Notional
	rec.Shares = intent.Shares
	rec.Price = intent.LimitPrice
	rec.Score = intent.Result.Score
	rec.Label = string(intent.Result.Label)
	rec.Indicators = intent.Result.Vector.Map()
	rec.Reason = reason
	return rec
}

func (c *Controller) record(rec recorder.TradeRecord) {
	if err := c.sink.Record(rec); err != nil {
		c.log.Error().Err(err).Str("market", rec.Market).Str("kind", string(rec.Kind)).Msg("persist trade")
	}
}

// finish logs the decision, updates metrics and returns the market to IDLE.
func (c *Controller) finish(d Decision) {
	c.mu.Lock()
	st := c.statusLocked(d.Market)
	repeated := d.Outcome == OutcomeBlocked && st.lastReason == d.Reason
	st.lastReason = ""
	if d.Outcome == OutcomeBlocked {
		st.lastReason = d.Reason
	}
	st.last = d
	st.state = Idle
	c.mu.Unlock()

	metrics.DecisionsTotal.WithLabelValues(d.Market, string(d.Outcome), d.Reason).Inc()

	var ev *zerolog.Event
	switch {
	case d.Outcome == OutcomeFailed:
		ev = c.log.Error().Err(d.Err)
	case d.Outcome == OutcomeExecuted, d.Outcome == OutcomeDryRun:
		ev = c.log.Info()
	case d.Outcome == OutcomeBlocked && !repeated:
		ev = c.log.Info()
	default:
		ev = c.log.Debug()
	}
	ev = ev.
		Str("market", d.Market).
		Time("ts", d.Ts).
		Str("state", d.State.String()).
		Str("outcome", string(d.Outcome)).
		Str("reason", d.Reason).
		Int("score", d.Result.Score).
		Str("label", string(d.Result.Label)).
		Str("votes", d.Result.Reason()).
		Interface("vector", d.Result.Vector.Map())
	if d.Intent != nil {
		ev = ev.Str("side", string(d.Intent.Side)).Float64("notional", d.Intent.Notional).Float64("px", d.Intent.LimitPrice)
	}
	ev.Msg("decision")
}
