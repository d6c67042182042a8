package indicator

import (
	"time"

	"st1ne-assistant/internal/signal"
)

// Options tunes book bands and session handling.
type Options struct {
	Interval         string // kline interval feeding the bar indicators
	OBIBandPct       float64
	WallMultiple     float64
	ProfileBucketPct float64
	SessionLoc       *time.Location
	MaxTrades        int
}

// Engine owns every indicator window for one (symbol, timeframe). It is not
// safe for concurrent use; the pipeline gives each key a single consumer.
type Engine struct {
	symbol    string
	timeframe string
	opts      Options

	flow    *Flow
	session *Session
	rsi     *RSI
	macd    *MACD
	cross   *Crossover
	heikin  HeikinAshi

	lastTs    time.Time
	lastBar   time.Time
	lastCross Cross
	bars      int
	last      Vector
}

// NewEngine builds an engine with freshly seeded windows.
func NewEngine(symbol, timeframe string, opts Options) *Engine {
	if opts.OBIBandPct <= 0 {
		opts.OBIBandPct = 1
	}
	if opts.WallMultiple <= 1 {
		opts.WallMultiple = 5
	}
	e := &Engine{
		symbol:    symbol,
		timeframe: timeframe,
		opts:      opts,
		flow:      NewFlow(opts.MaxTrades),
		session:   NewSession(opts.SessionLoc, opts.ProfileBucketPct),
		rsi:       NewRSI(14),
		macd:      NewMACD(12, 26, 9),
		cross:     NewCrossover(5, 20),
	}
	e.last = Vector{Symbol: symbol, Timeframe: timeframe, RSI: 50}
	return e
}

// Bootstrap warms the bar indicators with historical closed candles.
func (e *Engine) Bootstrap(candles []signal.Candle) int {
	applied := 0
	for _, c := range candles {
		if e.addCandle(c) {
			applied++
		}
	}
	e.fillBars(&e.last)
	return applied
}

// Update folds a snapshot into the windows and returns the new vector. It
// returns false, leaving state untouched, when the snapshot belongs to another
// symbol or is older than the last one applied.
func (e *Engine) Update(snap signal.MarketSnapshot) (Vector, bool) {
	if snap.Symbol != e.symbol || snap.Ts.Before(e.lastTs) {
		return e.last, false
	}
	e.lastTs = snap.Ts

	for _, tr := range snap.Trades {
		if e.flow.AddTrade(tr) {
			e.session.AddTrade(tr)
		}
	}
	e.flow.Advance(snap.Ts)

	cross := NoCross
	for _, c := range snap.Candles {
		if !e.addCandle(c) {
			continue
		}
		if ev := e.lastCross; ev != NoCross {
			cross = ev
		}
	}

	v := e.last
	v.Ts = snap.Ts
	v.Cross = cross

	mid := snap.Mid()
	if finitePositive(mid) {
		v.Price = mid
		if len(snap.Bids) > 0 || len(snap.Asks) > 0 {
			v.OBI = OBI(snap.Bids, snap.Asks, mid, e.opts.OBIBandPct)
			v.BidWalls, v.AskWalls = Walls(snap.Bids, snap.Asks, mid, e.opts.OBIBandPct, e.opts.WallMultiple)
			v.Depth = DepthProfile(snap.Bids, snap.Asks, mid)
		}
	}
	v.CVD1m, v.CVD3m, v.CVD5m = e.flow.CVD()
	v.Delta1m = e.flow.Delta()
	v.VWAP = e.session.VWAP()
	v.POC = e.session.POC(v.Price)
	e.fillBars(&v)

	e.last = v
	return v, true
}

func (e *Engine) addCandle(c signal.Candle) bool {
	if e.opts.Interval != "" && c.Interval != "" && c.Interval != e.opts.Interval {
		return false
	}
	if !c.Start.After(e.lastBar) && !e.lastBar.IsZero() {
		return false
	}
	if !finitePositive(c.Close) {
		return false
	}
	e.lastBar = c.Start
	e.bars++
	e.rsi.Update(c.Close)
	e.macd.Update(c.Close)
	e.lastCross = e.cross.Update(c.Close)
	e.heikin.Update(c)
	return true
}

func (e *Engine) fillBars(v *Vector) {
	v.Symbol, v.Timeframe = e.symbol, e.timeframe
	v.RSI = e.rsi.Value()
	v.RSIReady = e.rsi.Ready()
	v.MACD, v.MACDSignal, v.MACDHist = e.macd.Line, e.macd.Signal, e.macd.Histogram
	v.EMAShort, v.EMALong = e.cross.Short(), e.cross.Long()
	v.EMATrend = e.cross.Trend()
	v.Heikin = e.heikin.Streak()
	v.Bars = e.bars
}

// Last returns the most recent vector without mutating state.
func (e *Engine) Last() Vector { return e.last }
