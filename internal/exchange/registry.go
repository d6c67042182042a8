package exchange

import (
	"sort"
	"sync"

	"st1ne-assistant/internal/signal"
)

// Registry holds the contract legs currently subscribed, keyed by token id.
// Discovery writes it; the Polymarket source and the engine read it.
type Registry struct {
	mu      sync.RWMutex
	byToken map[string]signal.Instrument
	changed chan struct{}
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{byToken: make(map[string]signal.Instrument), changed: make(chan struct{})}
}

// Set replaces the legs for one market and reports whether the token set changed.
func (r *Registry) Set(market string, legs []signal.Instrument) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	same := true
	current := 0
	for _, inst := range r.byToken {
		if inst.Market() == market {
			current++
		}
	}
	if current != len(legs) {
		same = false
	}
	for _, leg := range legs {
		if prev, ok := r.byToken[leg.TokenID]; !ok || prev != leg {
			same = false
		}
	}
	if same {
		return false
	}
	for token, inst := range r.byToken {
		if inst.Market() == market {
			delete(r.byToken, token)
		}
	}
	for _, leg := range legs {
		if leg.TokenID != "" {
			r.byToken[leg.TokenID] = leg
		}
	}
	close(r.changed)
	r.changed = make(chan struct{})
	return true
}

// Lookup resolves a token id to its instrument.
func (r *Registry) Lookup(token string) (signal.Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.byToken[token]
	return inst, ok
}

// Leg returns the instrument for a market and outcome.
func (r *Registry) Leg(market string, outcome signal.Outcome) (signal.Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, inst := range r.byToken {
		if inst.Market() == market && inst.Outcome == outcome {
			return inst, true
		}
	}
	return signal.Instrument{}, false
}

// Tokens returns the sorted token ids to subscribe to.
func (r *Registry) Tokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byToken))
	for token := range r.byToken {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

// Instruments returns every registered leg ordered by key.
func (r *Registry) Instruments() []signal.Instrument {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]signal.Instrument, 0, len(r.byToken))
	for _, inst := range r.byToken {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Changed returns a channel closed on the next token-set change.
func (r *Registry) Changed() <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.changed
}
