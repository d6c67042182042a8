// Package execution handles order lifecycle and interaction with venues.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"st1ne-assistant/internal/metrics"
	"st1ne-assistant/internal/signal"
	"st1ne-assistant/internal/strategy"

	"github.com/rs/zerolog"
)

// Side enumerates the two ways to express a view on a binary market.
type Side string

const (
	// BuyYes buys the Up outcome.
	BuyYes Side = "buy-yes"
	// BuyNo buys the Down outcome.
	BuyNo Side = "buy-no"
)

// Outcome returns the contract leg the side buys.
func (s Side) Outcome() signal.Outcome {
	if s == BuyNo {
		return signal.Down
	}
	return signal.Up
}

// ErrOrderPlacement wraps every venue failure surfaced by the executor.
var ErrOrderPlacement = errors.New("order placement failed")

// TradeIntent is the gated decision to open exposure.
type TradeIntent struct {
	Market     string
	Instrument signal.Instrument
	Side       Side
	Notional   float64
	LimitPrice float64
	Shares     float64
	Result     strategy.Result
	Ts         time.Time
}

// ExitIntent asks the venue to flatten an open position.
type ExitIntent struct {
	Market     string
	Instrument signal.Instrument
	Side       Side
	Shares     float64
	LimitPrice float64
	Reason     string
	Ts         time.Time
}

// Fill is the venue acknowledgement of an order.
type Fill struct {
	OrderID  string    `json:"order_id"`
	Market   string    `json:"market"`
	TokenID  string    `json:"token_id"`
	Side     Side      `json:"side"`
	Shares   float64   `json:"shares"`
	Price    float64   `json:"price"`
	Notional float64   `json:"notional"`
	Ts       time.Time `json:"ts"`
}

// Venue is the place_order capability.
type Venue interface {
	Place(ctx context.Context, intent TradeIntent) (Fill, error)
	Close(ctx context.Context, exit ExitIntent) (Fill, error)
}

// Settler is implemented by venues that book a resolved contract themselves.
// Other venues leave redemption to the resolution process.
type Settler interface {
	Settle(ctx context.Context, exit ExitIntent) (Fill, error)
}

// Executor decorates a Venue with logging, metrics and error wrapping.
type Executor struct {
	log   zerolog.Logger
	venue Venue
}

// NewExecutor wraps venue with the given logger.
func NewExecutor(log zerolog.Logger, venue Venue) *Executor {
	return &Executor{log: log.With().Str("component", "executor").Logger(), venue: venue}
}

// Place submits an entry order.
func (executor *Executor) Place(ctx context.Context, intent TradeIntent) (Fill, error) {
	metrics.OrdersTotal.WithLabelValues(intent.Market, string(intent.Side)).Inc()
	executor.log.Info().
		Str("market", intent.Market).
		Str("side", string(intent.Side)).
		Str("token", intent.Instrument.TokenID).
		Float64("notional", intent.Notional).
		Float64("px", intent.LimitPrice).
		Float64("shares", intent.Shares).
		Msg("submit order")
	fill, err := executor.venue.Place(ctx, intent)
	if err != nil {
		metrics.OrderFailures.WithLabelValues(intent.Market).Inc()
		return Fill{}, fmt.Errorf("%w: %s: %w", ErrOrderPlacement, intent.Market, err)
	}
	executor.log.Info().Str("market", intent.Market).Str("order_id", fill.OrderID).Float64("shares", fill.Shares).Float64("px", fill.Price).Msg("order filled")
	return fill, nil
}

// Close submits an exit order.
func (executor *Executor) Close(ctx context.Context, exit ExitIntent) (Fill, error) {
	metrics.OrdersTotal.WithLabelValues(exit.Market, "sell").Inc()
	executor.log.Info().
		Str("market", exit.Market).
		Str("reason", exit.Reason).
		Float64("shares", exit.Shares).
		Float64("px", exit.LimitPrice).
		Msg("submit exit")
	fill, err := executor.venue.Close(ctx, exit)
	if err != nil {
		metrics.OrderFailures.WithLabelValues(exit.Market).Inc()
		return Fill{}, fmt.Errorf("%w: %s exit: %w", ErrOrderPlacement, exit.Market, err)
	}
	return fill, nil
}

// Settle books a resolved position at exit.LimitPrice (1 or 0). Venues that
// are not Settlers get a synthetic fill since no order can be sent.
func (executor *Executor) Settle(ctx context.Context, exit ExitIntent) (Fill, error) {
	executor.log.Info().
		Str("market", exit.Market).
		Str("token", exit.Instrument.TokenID).
		Float64("shares", exit.Shares).
		Float64("px", exit.LimitPrice).
		Msg("settle position")
	if s, ok := executor.venue.(Settler); ok {
		return s.Settle(ctx, exit)
	}
	return settlementFill(exit), nil
}

func settlementFill(exit ExitIntent) Fill {
	return Fill{
		Market:   exit.Market,
		TokenID:  exit.Instrument.TokenID,
		Side:     exit.Side,
		Shares:   exit.Shares,
		Price:    exit.LimitPrice,
		Notional: exit.Shares * exit.LimitPrice,
		Ts:       exit.Ts,
	}
}
