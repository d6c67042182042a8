// Package signal standardizes payloads shared between data ingestion, indicators, and execution.
package signal

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies which upstream feed produced an event.
type Source string

const (
	// SourceSpot is the spot exchange trade/orderbook feed.
	SourceSpot Source = "spot"
	// SourceContract is the prediction-market contract price feed.
	SourceContract Source = "contract"
)

// Trade is a single print from the spot exchange.
type Trade struct {
	Price float64
	Size  float64
	Side  int // +1 buy aggressor, -1 sell aggressor
	Ts    time.Time
}

// Level is one resting price level of an order book.
type Level struct {
	Price float64
	Size  float64
}

// Candle is a closed OHLCV bar for a kline interval.
type Candle struct {
	Interval string
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Start    time.Time
}

// MarketSnapshot is the normalized view of one spot symbol at a point in time.
// Trades and Candles only carry what arrived since the previous snapshot.
type MarketSnapshot struct {
	Symbol  string
	Ts      time.Time
	BestBid float64
	BestAsk float64
	Bids    []Level
	Asks    []Level
	Trades  []Trade
	Candles []Candle
}

// Mid returns the midpoint of the top of book, or the last trade when the book is one-sided.
func (s MarketSnapshot) Mid() float64 {
	if s.BestBid > 0 && s.BestAsk > 0 {
		return (s.BestBid + s.BestAsk) / 2
	}
	if n := len(s.Trades); n > 0 {
		return s.Trades[n-1].Price
	}
	if s.BestBid > 0 {
		return s.BestBid
	}
	return s.BestAsk
}

// Outcome is the side of a binary Up/Down contract.
type Outcome string

const (
	Up   Outcome = "Up"
	Down Outcome = "Down"
)

// Instrument identifies a prediction-market contract leg.
type Instrument struct {
	Coin      string
	Timeframe string
	Outcome   Outcome
	TokenID   string
	Slug      string
	PeriodEnd time.Time
}

// Market returns the execution market key shared by both legs, e.g. "BTC-15m".
func (i Instrument) Market() string { return MarketKey(i.Coin, i.Timeframe) }

// Key returns a per-leg identifier, e.g. "BTC-15m-Up".
func (i Instrument) Key() string { return fmt.Sprintf("%s-%s", i.Market(), i.Outcome) }

// MarketKey composes the execution market identifier for a coin and timeframe.
func MarketKey(coin, timeframe string) string {
	return strings.ToUpper(coin) + "-" + timeframe
}

// ContractQuote is a top-of-book update for one contract leg.
type ContractQuote struct {
	Instrument Instrument
	Bid        float64
	Ask        float64
	Ts         time.Time
}

// Mid returns the bid/ask midpoint, falling back to whichever side is present.
func (q ContractQuote) Mid() float64 {
	switch {
	case q.Bid > 0 && q.Ask > 0:
		return (q.Bid + q.Ask) / 2
	case q.Ask > 0:
		return q.Ask
	default:
		return q.Bid
	}
}

// EventKind tags what an Event carries.
type EventKind int

const (
	EventSnapshot EventKind = iota
	EventQuote
	EventStale
	EventFresh
)

func (k EventKind) String() string {
	switch k {
	case EventSnapshot:
		return "snapshot"
	case EventQuote:
		return "quote"
	case EventStale:
		return "stale"
	case EventFresh:
		return "fresh"
	default:
		return "unknown"
	}
}

// Event is the unit delivered by the feed synchronizer.
// Key is the spot symbol for SourceSpot and the instrument key for SourceContract.
type Event struct {
	Kind     EventKind
	Source   Source
	Key      string
	Ts       time.Time
	Snapshot *MarketSnapshot
	Quote    *ContractQuote
	Reason   string
}
