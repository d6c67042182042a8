// Package monitor exposes a read-only view of indicators, scores and risk state.
package monitor

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"st1ne-assistant/internal/execution"
	"st1ne-assistant/internal/risk"
	"st1ne-assistant/internal/signal"
	"st1ne-assistant/internal/strategy"
)

// DecisionView is the last controller decision for a market.
type DecisionView struct {
	Ts      time.Time `json:"ts"`
	State   string    `json:"state"`
	Outcome string    `json:"outcome"`
	Reason  string    `json:"reason,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// QuoteView is the last contract quote for one leg.
type QuoteView struct {
	Bid float64   `json:"bid"`
	Ask float64   `json:"ask"`
	Ts  time.Time `json:"ts"`
}

// MarketView is everything the dashboard shows for one market.
type MarketView struct {
	Market    string               `json:"market"`
	Result    strategy.Result      `json:"result"`
	Decision  *DecisionView        `json:"decision,omitempty"`
	Quotes    map[string]QuoteView `json:"quotes,omitempty"`
	Stale     bool                 `json:"stale"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// View is the full dashboard payload.
type View struct {
	Ts      time.Time     `json:"ts"`
	Risk    risk.Snapshot `json:"risk"`
	Markets []MarketView  `json:"markets"`
}

// Board collects the latest state per market. Writers are the engine
// consumers; readers are the HTTP and websocket handlers.
type Board struct {
	mu      sync.RWMutex
	risk    *risk.State
	markets map[string]*MarketView
	now     func() time.Time
}

// NewBoard constructs a board reporting the given risk state.
func NewBoard(state *risk.State) *Board {
	return &Board{risk: state, markets: make(map[string]*MarketView), now: time.Now}
}

// WithClock replaces the wall clock used to stamp views.
func (b *Board) WithClock(now func() time.Time) *Board {
	b.now = now
	return b
}

func (b *Board) view(market string) *MarketView {
	mv := b.markets[market]
	if mv == nil {
		mv = &MarketView{Market: market, Quotes: make(map[string]QuoteView)}
		b.markets[market] = mv
	}
	return mv
}

// UpdateResult records the latest score and indicator vector.
func (b *Board) UpdateResult(market string, res strategy.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	mv := b.view(market)
	mv.Result = res
	mv.UpdatedAt = b.now()
}

// UpdateDecision records the latest controller decision.
func (b *Board) UpdateDecision(d execution.Decision) {
	b.mu.Lock()
	defer b.mu.Unlock()
	dv := &DecisionView{Ts: d.Ts, State: d.State.String(), Outcome: string(d.Outcome), Reason: d.Reason}
	if d.Err != nil {
		dv.Error = d.Err.Error()
	}
	mv := b.view(d.Market)
	mv.Decision = dv
	mv.UpdatedAt = b.now()
}

// UpdateQuote records a contract quote under its market.
func (b *Board) UpdateQuote(q signal.ContractQuote) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.view(q.Instrument.Market()).Quotes[string(q.Instrument.Outcome)] = QuoteView{Bid: q.Bid, Ask: q.Ask, Ts: q.Ts}
}

// SetStale flags a market whose inputs stopped updating.
func (b *Board) SetStale(market string, stale bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.view(market).Stale = stale
}

// Snapshot returns a deep copy ordered by market.
func (b *Board) Snapshot() View {
	now := b.now()
	b.mu.RLock()
	markets := make([]MarketView, 0, len(b.markets))
	for _, mv := range b.markets {
		cp := *mv
		cp.Quotes = make(map[string]QuoteView, len(mv.Quotes))
		for k, v := range mv.Quotes {
			cp.Quotes[k] = v
		}
		if mv.Decision != nil {
			d := *mv.Decision
			cp.Decision = &d
		}
		markets = append(markets, cp)
	}
	b.mu.RUnlock()
	sort.Slice(markets, func(i, j int) bool { return markets[i].Market < markets[j].Market })

	v := View{Ts: now, Markets: markets}
	if b.risk != nil {
		v.Risk = b.risk.Snapshot(now)
	}
	return v
}

// Handler serves the snapshot as JSON.
func (b *Board) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(b.Snapshot()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
