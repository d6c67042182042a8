package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"st1ne-assistant/internal/metrics"
	"st1ne-assistant/internal/signal"
)

// BinanceSource streams trades, the top-20 book and klines over the combined stream.
type BinanceSource struct {
	wsURL     string
	restURL   string
	symbols   []string
	intervals []string
	log       zerolog.Logger
	client    *http.Client
	now       func() time.Time
}

type binanceEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type binanceTrade struct {
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

type binanceDepth struct {
	Bids [][2]string `json:"bids"`
	Asks [][2]string `json:"asks"`
}

type binanceKline struct {
	Kline struct {
		Start    int64  `json:"t"`
		Interval string `json:"i"`
		Open     string `json:"o"`
		High     string `json:"h"`
		Low      string `json:"l"`
		Close    string `json:"c"`
		Volume   string `json:"v"`
		Closed   bool   `json:"x"`
	} `json:"k"`
}

// pending accumulates what arrived for a symbol since its last snapshot.
type pending struct {
	trades  []signal.Trade
	candles []signal.Candle
}

// NewBinanceSource builds a source for symbols with one kline stream per interval.
func NewBinanceSource(wsURL, restURL string, symbols, intervals []string, log zerolog.Logger) *BinanceSource {
	return &BinanceSource{
		wsURL:     strings.TrimSuffix(wsURL, "/"),
		restURL:   strings.TrimSuffix(restURL, "/"),
		symbols:   uniqueSorted(symbols),
		intervals: uniqueSorted(intervals),
		log:       log,
		client:    &http.Client{Timeout: 10 * time.Second},
		now:       time.Now,
	}
}

// Name implements Source.
func (b *BinanceSource) Name() signal.Source { return signal.SourceSpot }

// StreamURL returns the combined-stream endpoint for the configured symbols.
func (b *BinanceSource) StreamURL() string {
	streams := make([]string, 0, len(b.symbols)*(2+len(b.intervals)))
	for _, sym := range b.symbols {
		s := strings.ToLower(sym)
		streams = append(streams, s+"@trade", s+"@depth20@100ms")
		for _, iv := range b.intervals {
			streams = append(streams, s+"@kline_"+iv)
		}
	}
	return fmt.Sprintf("%s?streams=%s", b.wsURL, strings.Join(streams, "/"))
}

// Run implements Source.
func (b *BinanceSource) Run(ctx context.Context, out chan<- signal.Event) error {
	if len(b.symbols) == 0 {
		return fmt.Errorf("binance feed requires at least one symbol")
	}
	endpoint := b.StreamURL()
	return reconnectLoop(ctx, b.log, signal.SourceSpot, out, func(ctx context.Context) (bool, error) {
		return b.consume(ctx, endpoint, out)
	})
}

func (b *BinanceSource) consume(ctx context.Context, endpoint string, out chan<- signal.Event) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	b.log.Info().Str("source", string(signal.SourceSpot)).Strs("symbols", b.symbols).Strs("intervals", b.intervals).Msg("connected market data feed")
	stopPing := keepAlive(ctx, conn, b.log)
	defer stopPing()

	buf := make(map[string]*pending, len(b.symbols))
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		ev, ok := b.handle(message, buf)
		if !ok {
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
}

// handle folds one combined-stream message into buf and returns a snapshot
// event when the message was a depth update.
func (b *BinanceSource) handle(message []byte, buf map[string]*pending) (signal.Event, bool) {
	var env binanceEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		b.drop("decode", err)
		return signal.Event{}, false
	}
	symbol := parseBinanceSymbol(env.Stream)
	p := buf[symbol]
	if p == nil {
		p = &pending{}
		buf[symbol] = p
	}

	switch {
	case strings.Contains(env.Stream, "@trade"):
		trade, err := decodeBinanceTrade(env.Data)
		if err != nil {
			b.drop("trade", err)
			return signal.Event{}, false
		}
		p.trades = append(p.trades, trade)
	case strings.Contains(env.Stream, "@kline"):
		candle, closed, err := decodeBinanceKline(env.Data)
		if err != nil {
			b.drop("kline", err)
			return signal.Event{}, false
		}
		if closed {
			p.candles = append(p.candles, candle)
		}
	case strings.Contains(env.Stream, "@depth"):
		var depth binanceDepth
		if err := json.Unmarshal(env.Data, &depth); err != nil {
			b.drop("depth", err)
			return signal.Event{}, false
		}
		snap := &signal.MarketSnapshot{
			Symbol:  symbol,
			Ts:      b.now(),
			Bids:    parseLevels(depth.Bids),
			Asks:    parseLevels(depth.Asks),
			Trades:  p.trades,
			Candles: p.candles,
		}
		if len(snap.Bids) > 0 {
			snap.BestBid = snap.Bids[0].Price
		}
		if len(snap.Asks) > 0 {
			snap.BestAsk = snap.Asks[0].Price
		}
		if n := len(p.trades); n > 0 && p.trades[n-1].Ts.After(snap.Ts) {
			snap.Ts = p.trades[n-1].Ts
		}
		buf[symbol] = &pending{}
		return signal.Event{Kind: signal.EventSnapshot, Source: signal.SourceSpot, Key: symbol, Ts: snap.Ts, Snapshot: snap}, true
	}
	return signal.Event{}, false
}

func (b *BinanceSource) drop(reason string, err error) {
	metrics.DroppedTotal.WithLabelValues(string(signal.SourceSpot), "malformed").Inc()
	b.log.Warn().Err(err).Str("payload", reason).Msg("dropping malformed binance message")
}

// Bootstrap fetches the last limit closed klines so bar indicators start warm.
func (b *BinanceSource) Bootstrap(ctx context.Context, symbol, interval string, limit int) ([]signal.Candle, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.restURL+"/klines?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance klines status %d", resp.StatusCode)
	}
	var rows [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	now := b.now()
	candles := make([]signal.Candle, 0, len(rows))
	for _, row := range rows {
		c, closeTime, err := decodeKlineRow(row, interval)
		if err != nil {
			b.drop("kline_row", err)
			continue
		}
		// The REST endpoint includes the still-forming bar.
		if closeTime.After(now) {
			continue
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func decodeKlineRow(row []json.RawMessage, interval string) (signal.Candle, time.Time, error) {
	if len(row) < 7 {
		return signal.Candle{}, time.Time{}, fmt.Errorf("short kline row (%d fields)", len(row))
	}
	var start, closeMs int64
	if err := json.Unmarshal(row[0], &start); err != nil {
		return signal.Candle{}, time.Time{}, err
	}
	if err := json.Unmarshal(row[6], &closeMs); err != nil {
		return signal.Candle{}, time.Time{}, err
	}
	var fields [5]float64
	for i := range fields {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return signal.Candle{}, time.Time{}, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return signal.Candle{}, time.Time{}, err
		}
		fields[i] = v
	}
	return signal.Candle{
		Interval: interval,
		Open:     fields[0],
		High:     fields[1],
		Low:      fields[2],
		Close:    fields[3],
		Volume:   fields[4],
		Start:    time.UnixMilli(start),
	}, time.UnixMilli(closeMs), nil
}

func decodeBinanceTrade(raw json.RawMessage) (signal.Trade, error) {
	var t binanceTrade
	if err := json.Unmarshal(raw, &t); err != nil {
		return signal.Trade{}, err
	}
	px, err := strconv.ParseFloat(t.Price, 64)
	if err != nil {
		return signal.Trade{}, fmt.Errorf("invalid price: %w", err)
	}
	qty, err := strconv.ParseFloat(t.Quantity, 64)
	if err != nil {
		return signal.Trade{}, fmt.Errorf("invalid quantity: %w", err)
	}
	side := 1
	if t.IsBuyerMaker {
		side = -1
	}
	return signal.Trade{Price: px, Size: qty, Side: side, Ts: time.UnixMilli(t.TradeTime)}, nil
}

func decodeBinanceKline(raw json.RawMessage) (signal.Candle, bool, error) {
	var k binanceKline
	if err := json.Unmarshal(raw, &k); err != nil {
		return signal.Candle{}, false, err
	}
	vals := [5]string{k.Kline.Open, k.Kline.High, k.Kline.Low, k.Kline.Close, k.Kline.Volume}
	var fields [5]float64
	for i, s := range vals {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return signal.Candle{}, false, err
		}
		fields[i] = v
	}
	return signal.Candle{
		Interval: k.Kline.Interval,
		Open:     fields[0],
		High:     fields[1],
		Low:      fields[2],
		Close:    fields[3],
		Volume:   fields[4],
		Start:    time.UnixMilli(k.Kline.Start),
	}, k.Kline.Closed, nil
}

// parseLevels keeps only well-formed levels; malformed entries are skipped.
func parseLevels(raw [][2]string) []signal.Level {
	out := make([]signal.Level, 0, len(raw))
	for _, lvl := range raw {
		px, err1 := strconv.ParseFloat(lvl[0], 64)
		qty, err2 := strconv.ParseFloat(lvl[1], 64)
		if err1 != nil || err2 != nil || px <= 0 || qty < 0 {
			continue
		}
		out = append(out, signal.Level{Price: px, Size: qty})
	}
	return out
}

func parseBinanceSymbol(stream string) string {
	parts := strings.Split(stream, "@")
	if len(parts) == 0 || parts[0] == "" {
		return strings.ToUpper(stream)
	}
	return strings.ToUpper(parts[0])
}

// keepAlive pings conn every 15s and extends the read deadline on every pong.
func keepAlive(ctx context.Context, conn *websocket.Conn, log zerolog.Logger) func() {
	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					log.Warn().Err(err).Msg("websocket ping failed")
					return
				}
			case <-pingCtx.Done():
				// Unblock ReadMessage so the session returns promptly.
				_ = conn.SetReadDeadline(time.Now())
				return
			}
		}
	}()
	return cancel
}
