package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"st1ne-assistant/internal/metrics"
	"st1ne-assistant/internal/signal"
)

// errResubscribe ends a session so the next one subscribes to the new token set.
var errResubscribe = errors.New("token set changed")

// PolymarketSource streams top-of-book quotes for every registered contract leg.
type PolymarketSource struct {
	wsURL    string
	registry *Registry
	log      zerolog.Logger
	now      func() time.Time
}

type pmLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type pmMessage struct {
	EventType    string          `json:"event_type"`
	AssetID      string          `json:"asset_id"`
	Timestamp    string          `json:"timestamp"`
	Bids         []pmLevel       `json:"bids"`
	Asks         []pmLevel       `json:"asks"`
	PriceChanges []pmPriceChange `json:"price_changes"`
}

type pmPriceChange struct {
	AssetID string `json:"asset_id"`
	BestBid string `json:"best_bid"`
	BestAsk string `json:"best_ask"`
}

type topOfBook struct {
	bid, ask float64
}

// NewPolymarketSource builds a contract source over the registry's tokens.
func NewPolymarketSource(wsURL string, registry *Registry, log zerolog.Logger) *PolymarketSource {
	return &PolymarketSource{wsURL: wsURL, registry: registry, log: log, now: time.Now}
}

// Name implements Source.
func (p *PolymarketSource) Name() signal.Source { return signal.SourceContract }

// Run implements Source. It idles until discovery registers at least one token.
func (p *PolymarketSource) Run(ctx context.Context, out chan<- signal.Event) error {
	for len(p.registry.Tokens()) == 0 {
		select {
		case <-p.registry.Changed():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return reconnectLoop(ctx, p.log, signal.SourceContract, out, func(ctx context.Context) (bool, error) {
		return p.consume(ctx, out)
	})
}

func (p *PolymarketSource) consume(ctx context.Context, out chan<- signal.Event) (bool, error) {
	changed := p.registry.Changed()
	tokens := p.registry.Tokens()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, p.wsURL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	sub, _ := json.Marshal(map[string]any{"assets_ids": tokens, "type": "market"})
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return false, err
	}
	p.log.Info().Str("source", string(signal.SourceContract)).Strs("tokens", tokens).Msg("connected contract feed")
	stopPing := keepAlive(ctx, conn, p.log)
	defer stopPing()

	// Close the connection when the token set rolls so ReadMessage returns.
	rolled := make(chan struct{})
	go func() {
		select {
		case <-changed:
			close(rolled)
			_ = conn.SetReadDeadline(time.Now())
		case <-ctx.Done():
		}
	}()

	books := make(map[string]topOfBook, len(tokens))
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-rolled:
				return true, errResubscribe
			default:
			}
			return true, err
		}
		for _, ev := range p.handle(message, books) {
			select {
			case out <- ev:
			case <-ctx.Done():
				return true, ctx.Err()
			}
		}
	}
}

// handle decodes book snapshots (array or single object) and price_change
// events into quote events for known tokens.
func (p *PolymarketSource) handle(message []byte, books map[string]topOfBook) []signal.Event {
	message = bytes.TrimSpace(message)
	if len(message) == 0 || message[0] != '[' && message[0] != '{' {
		// PONG and other control text.
		return nil
	}
	var msgs []pmMessage
	if message[0] == '[' {
		if err := json.Unmarshal(message, &msgs); err != nil {
			p.drop(err)
			return nil
		}
	} else {
		var m pmMessage
		if err := json.Unmarshal(message, &m); err != nil {
			p.drop(err)
			return nil
		}
		msgs = []pmMessage{m}
	}

	var out []signal.Event
	for _, m := range msgs {
		ts := p.stamp(m.Timestamp)
		switch {
		case m.EventType == "price_change":
			for _, ch := range m.PriceChanges {
				tob := books[ch.AssetID]
				if v, err := strconv.ParseFloat(ch.BestBid, 64); err == nil {
					tob.bid = v
				}
				if v, err := strconv.ParseFloat(ch.BestAsk, 64); err == nil {
					tob.ask = v
				}
				if ev, ok := p.quote(ch.AssetID, tob, ts, books); ok {
					out = append(out, ev)
				}
			}
		case m.EventType == "book" || (m.EventType == "" && m.AssetID != ""):
			tob := topOfBook{bid: bestLevel(m.Bids, true), ask: bestLevel(m.Asks, false)}
			if ev, ok := p.quote(m.AssetID, tob, ts, books); ok {
				out = append(out, ev)
			}
		}
	}
	return out
}

func (p *PolymarketSource) quote(asset string, tob topOfBook, ts time.Time, books map[string]topOfBook) (signal.Event, bool) {
	inst, ok := p.registry.Lookup(asset)
	if !ok {
		return signal.Event{}, false
	}
	if tob.bid <= 0 && tob.ask <= 0 || tob.bid > 1 || tob.ask > 1 {
		metrics.DroppedTotal.WithLabelValues(string(signal.SourceContract), "malformed").Inc()
		return signal.Event{}, false
	}
	books[asset] = tob
	q := &signal.ContractQuote{Instrument: inst, Bid: tob.bid, Ask: tob.ask, Ts: ts}
	return signal.Event{Kind: signal.EventQuote, Source: signal.SourceContract, Key: inst.Key(), Ts: ts, Quote: q}, true
}

func (p *PolymarketSource) stamp(raw string) time.Time {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms)
	}
	return p.now()
}

func (p *PolymarketSource) drop(err error) {
	metrics.DroppedTotal.WithLabelValues(string(signal.SourceContract), "malformed").Inc()
	p.log.Warn().Err(err).Msg("dropping malformed contract message")
}

// bestLevel returns the highest bid or lowest ask; levels arrive unordered.
func bestLevel(levels []pmLevel, bids bool) float64 {
	best := 0.0
	for _, lvl := range levels {
		px, err := strconv.ParseFloat(lvl.Price, 64)
		if err != nil || px <= 0 {
			continue
		}
		if size, err := strconv.ParseFloat(lvl.Size, 64); err == nil && size <= 0 {
			continue
		}
		if best == 0 || bids && px > best || !bids && px < best {
			best = px
		}
	}
	return best
}
