// Package paper simulates a venue against virtual cash so the full gating
// pipeline can run end to end without real orders.
package paper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"st1ne-assistant/internal/execution"
)

const epsilon = 1e-9

type positionState struct {
	Qty     float64
	AvgCost float64
}

// Account tracks virtual cash, realized PnL, and per-token positions.
type Account struct {
	mu           sync.Mutex
	startingCash float64
	cash         float64
	realizedPnL  float64
	slippage     float64
	positions    map[string]positionState
	seq          atomic.Int64
	now          func() time.Time
}

// PositionSnapshot exposes a read-only view of a single token position.
type PositionSnapshot struct {
	Qty         float64
	AvgCost     float64
	MarketValue float64
	Unrealized  float64
}

// Snapshot represents a thread-safe view of the account state, optionally marked to market using provided prices.
type Snapshot struct {
	Cash        float64
	RealizedPnL float64
	Equity      float64
	Positions   map[string]PositionSnapshot
}

// NewAccount constructs an account with starting cash and a slippage in basis points applied to every fill.
func NewAccount(startingCash, slippageBps float64) *Account {
	return &Account{
		startingCash: startingCash,
		cash:         startingCash,
		slippage:     slippageBps / 10_000,
		positions:    make(map[string]positionState),
		now:          time.Now,
	}
}

// StartingCash returns the initial bankroll used to compute drawdown.
func (a *Account) StartingCash() float64 { return a.startingCash }

func positionKey(market, token string) string {
	if token != "" {
		return token
	}
	return market
}

// Place buys intent.Shares of the intent's contract at the limit price plus slippage.
func (a *Account) Place(ctx context.Context, intent execution.TradeIntent) (execution.Fill, error) {
	if err := ctx.Err(); err != nil {
		return execution.Fill{}, err
	}
	price := min(intent.LimitPrice*(1+a.slippage), 0.99)
	key := positionKey(intent.Market, intent.Instrument.TokenID)
	if err := a.fill(key, true, intent.Shares, price); err != nil {
		return execution.Fill{}, err
	}
	return execution.Fill{
		OrderID:  a.nextID(),
		Market:   intent.Market,
		TokenID:  intent.Instrument.TokenID,
		Side:     intent.Side,
		Shares:   intent.Shares,
		Price:    price,
		Notional: intent.Shares * price,
		Ts:       a.now(),
	}, nil
}

// Close sells the exit's shares at the limit price minus slippage.
func (a *Account) Close(ctx context.Context, exit execution.ExitIntent) (execution.Fill, error) {
	if err := ctx.Err(); err != nil {
		return execution.Fill{}, err
	}
	price := max(exit.LimitPrice*(1-a.slippage), 0.01)
	key := positionKey(exit.Market, exit.Instrument.TokenID)
	if err := a.fill(key, false, exit.Shares, price); err != nil {
		return execution.Fill{}, err
	}
	return execution.Fill{
		OrderID:  a.nextID(),
		Market:   exit.Market,
		TokenID:  exit.Instrument.TokenID,
		Side:     exit.Side,
		Shares:   exit.Shares,
		Price:    price,
		Notional: exit.Shares * price,
		Ts:       a.now(),
	}, nil
}

// Settle redeems a resolved position at exactly exit.LimitPrice (1 or 0);
// no slippage applies to resolution.
func (a *Account) Settle(ctx context.Context, exit execution.ExitIntent) (execution.Fill, error) {
	if err := ctx.Err(); err != nil {
		return execution.Fill{}, err
	}
	key := positionKey(exit.Market, exit.Instrument.TokenID)
	price := min(max(exit.LimitPrice, 0), 1)

	a.mu.Lock()
	state, ok := a.positions[key]
	if !ok || state.Qty <= 0 {
		a.mu.Unlock()
		return execution.Fill{}, errors.New("no position to settle")
	}
	a.realizedPnL += (price - state.AvgCost) * state.Qty
	a.cash += state.Qty * price
	delete(a.positions, key)
	a.mu.Unlock()

	return execution.Fill{
		OrderID:  a.nextID(),
		Market:   exit.Market,
		TokenID:  exit.Instrument.TokenID,
		Side:     exit.Side,
		Shares:   state.Qty,
		Price:    price,
		Notional: state.Qty * price,
		Ts:       a.now(),
	}, nil
}

func (a *Account) nextID() string {
	return fmt.Sprintf("paper-%d", a.seq.Add(1))
}

// fill mutates balances for a buy or sell of qty at price.
func (a *Account) fill(key string, buy bool, qty, price float64) error {
	if qty <= 0 {
		return errors.New("quantity must be positive")
	}
	if price <= 0 {
		return errors.New("price must be positive")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	state := a.positions[key]
	notional := qty * price

	if buy {
		if notional > a.cash+epsilon {
			return errors.New("insufficient cash for buy")
		}
		newQty := state.Qty + qty
		a.cash -= notional
		a.positions[key] = positionState{Qty: newQty, AvgCost: ((state.AvgCost * state.Qty) + notional) / newQty}
		return nil
	}

	if state.Qty <= 0 || state.Qty+epsilon < qty {
		return errors.New("insufficient position to sell")
	}
	a.realizedPnL += (price - state.AvgCost) * qty
	a.cash += notional
	if newQty := state.Qty - qty; newQty <= epsilon {
		delete(a.positions, key)
	} else {
		a.positions[key] = positionState{Qty: newQty, AvgCost: state.AvgCost}
	}
	return nil
}

// Snapshot returns a copy of balances, optionally marked using the supplied prices map.
func (a *Account) Snapshot(prices map[string]float64) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	positions := make(map[string]PositionSnapshot, len(a.positions))
	equity := a.cash
	for key, pos := range a.positions {
		mark := prices[key]
		marketValue := pos.Qty * mark
		unrealized := (mark - pos.AvgCost) * pos.Qty
		if mark == 0 {
			marketValue = 0
			unrealized = 0
		}
		positions[key] = PositionSnapshot{
			Qty:         pos.Qty,
			AvgCost:     pos.AvgCost,
			MarketValue: marketValue,
			Unrealized:  unrealized,
		}
		equity += marketValue
	}

	return Snapshot{
		Cash:        a.cash,
		RealizedPnL: a.realizedPnL,
		Equity:      equity,
		Positions:   positions,
	}
}

// AvailableCash reports free cash that can be deployed.
func (a *Account) AvailableCash() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash
}

// Position returns the current share count for a token.
func (a *Account) Position(token string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positions[token].Qty
}

// RealizedPnL returns total closed-trade profit and loss.
func (a *Account) RealizedPnL() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.realizedPnL
}
