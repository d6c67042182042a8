package execution

import (
	"sync"

	"st1ne-assistant/internal/signal"
)

// Quotes caches the latest contract quote per instrument key; the feed
// consumer writes and the controller reads.
type Quotes struct {
	mu     sync.RWMutex
	quotes map[string]signal.ContractQuote
}

// NewQuotes builds an empty cache.
func NewQuotes() *Quotes {
	return &Quotes{quotes: make(map[string]signal.ContractQuote)}
}

// Update stores q unless a newer quote for the same leg is already cached.
func (q *Quotes) Update(quote signal.ContractQuote) bool {
	key := quote.Instrument.Key()
	q.mu.Lock()
	defer q.mu.Unlock()
	if prev, ok := q.quotes[key]; ok && quote.Ts.Before(prev.Ts) {
		return false
	}
	q.quotes[key] = quote
	return true
}

// Get returns the latest quote for a market leg.
func (q *Quotes) Get(market string, outcome signal.Outcome) (signal.ContractQuote, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	quote, ok := q.quotes[market+"-"+string(outcome)]
	return quote, ok
}

// Forget drops both legs of a market, used when a period rolls over.
func (q *Quotes) Forget(market string) {
	q.mu.Lock()
	delete(q.quotes, market+"-"+string(signal.Up))
	delete(q.quotes, market+"-"+string(signal.Down))
	q.mu.Unlock()
}

// All returns a copy of every cached quote.
func (q *Quotes) All() []signal.ContractQuote {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]signal.ContractQuote, 0, len(q.quotes))
	for _, quote := range q.quotes {
		out = append(out, quote)
	}
	return out
}
