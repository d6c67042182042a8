package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"

	"st1ne-assistant/internal/config"
	"st1ne-assistant/internal/signal"
)

var months = [...]string{"", "january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december"}

// Discovery resolves the active Up/Down contract for every (coin, timeframe)
// through the Gamma API and keeps the registry pointed at the current period.
type Discovery struct {
	log        zerolog.Logger
	registry   *Registry
	client     *http.Client
	baseURL    string
	coins      []config.Coin
	timeframes []config.Timeframe
	interval   time.Duration
	et         *time.Location
	now        func() time.Time
	onRoll     []func(market string)
}

type gammaEvent struct {
	Ticker  string        `json:"ticker"`
	Slug    string        `json:"slug"`
	EndDate string        `json:"endDate"`
	Markets []gammaMarket `json:"markets"`
}

type gammaMarket struct {
	ClobTokenIDs string `json:"clobTokenIds"`
	Outcomes     string `json:"outcomes"`
	EndDate      string `json:"endDate"`
}

// NewDiscovery constructs a discovery service over the configured markets.
func NewDiscovery(log zerolog.Logger, registry *Registry, cfg config.Polymarket, markets config.Markets) *Discovery {
	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		et = time.UTC
	}
	interval := time.Duration(cfg.RefreshInterval) * time.Millisecond
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Discovery{
		log:        log,
		registry:   registry,
		client:     &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimSuffix(cfg.GammaURL, "/"),
		coins:      markets.Coins,
		timeframes: markets.Timeframes,
		interval:   interval,
		et:         et,
		now:        time.Now,
	}
}

// OnRoll registers fn to run after a market's legs move to a new period.
// Call it before Start.
func (d *Discovery) OnRoll(fn func(market string)) {
	d.onRoll = append(d.onRoll, fn)
}

// Start launches the refresh loop in a goroutine.
func (d *Discovery) Start(ctx context.Context) {
	if d == nil {
		return
	}
	go d.loop(ctx)
}

func (d *Discovery) loop(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Refresh(ctx); err != nil {
				d.log.Warn().Err(err).Msg("market discovery refresh failed")
			}
		}
	}
}

// Refresh resolves every market once. Markets without an active contract keep
// their previous legs; the error reports the last failure.
func (d *Discovery) Refresh(ctx context.Context) error {
	now := d.now()
	var lastErr error
	for _, coin := range d.coins {
		for _, tf := range d.timeframes {
			slug, end, ok := d.Slug(coin, tf.Name, now)
			if !ok {
				continue
			}
			legs, err := d.resolve(ctx, coin.Name, tf.Name, slug, end)
			if err != nil {
				lastErr = err
				d.log.Debug().Err(err).Str("slug", slug).Msg("contract lookup failed")
				continue
			}
			market := signal.MarketKey(coin.Name, tf.Name)
			if d.registry.Set(market, legs) {
				d.log.Info().
					Str("market", market).
					Str("slug", slug).
					Time("period_end", end).
					Str("up", legs[0].TokenID).
					Str("down", legs[1].TokenID).
					Msg("contract period rolled")
				for _, fn := range d.onRoll {
					fn(market)
				}
			}
		}
	}
	return lastErr
}

// Slug builds the Polymarket event slug for the period containing now and the
// time the period resolves.
func (d *Discovery) Slug(coin config.Coin, timeframe string, now time.Time) (string, time.Time, bool) {
	ts := now.Unix()
	switch timeframe {
	case "15m":
		start := ts / 900 * 900
		return fmt.Sprintf("%s-updown-15m-%d", coin.Slug, start), time.Unix(start+900, 0).UTC(), true
	case "4h":
		start := (ts-3600)/14400*14400 + 3600
		return fmt.Sprintf("%s-updown-4h-%d", coin.Slug, start), time.Unix(start+14400, 0).UTC(), true
	case "1h":
		et := now.In(d.et)
		start := time.Date(et.Year(), et.Month(), et.Day(), et.Hour(), 0, 0, 0, d.et)
		return fmt.Sprintf("%s-up-or-down-%s-%d-%s-et", coin.LongSlug, months[et.Month()], et.Day(), hour12(et.Hour())),
			start.Add(time.Hour).UTC(), true
	case "daily":
		et := now.In(d.et)
		target := time.Date(et.Year(), et.Month(), et.Day(), 12, 0, 0, 0, d.et)
		if !et.Before(target) {
			target = target.AddDate(0, 0, 1)
		}
		return fmt.Sprintf("%s-up-or-down-on-%s-%d", coin.LongSlug, months[target.Month()], target.Day()), target.UTC(), true
	default:
		return "", time.Time{}, false
	}
}

func hour12(h int) string {
	switch {
	case h == 0:
		return "12am"
	case h < 12:
		return fmt.Sprintf("%dam", h)
	case h == 12:
		return "12pm"
	default:
		return fmt.Sprintf("%dpm", h-12)
	}
}

func (d *Discovery) resolve(ctx context.Context, coin, timeframe, slug string, end time.Time) ([]signal.Instrument, error) {
	q := url.Values{}
	q.Set("slug", slug)
	q.Set("limit", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "st1ne-assistant/1.0 (discovery)")
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var events []gammaEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, err
	}
	if len(events) == 0 || (events[0].Ticker != slug && events[0].Slug != slug) || len(events[0].Markets) == 0 {
		return nil, fmt.Errorf("no active market for slug %s", slug)
	}
	event := events[0]
	market := event.Markets[0]

	var tokens []string
	if err := json.Unmarshal([]byte(market.ClobTokenIDs), &tokens); err != nil {
		return nil, fmt.Errorf("decode clobTokenIds: %w", err)
	}
	if len(tokens) < 2 {
		return nil, fmt.Errorf("expected two outcome tokens, got %d", len(tokens))
	}
	upIdx, downIdx := 0, 1
	var outcomes []string
	if err := json.Unmarshal([]byte(market.Outcomes), &outcomes); err == nil && len(outcomes) >= 2 &&
		strings.EqualFold(outcomes[0], string(signal.Down)) {
		upIdx, downIdx = 1, 0
	}
	for _, raw := range []string{market.EndDate, event.EndDate} {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			end = parsed.UTC()
			break
		}
	}

	base := signal.Instrument{Coin: strings.ToUpper(coin), Timeframe: timeframe, Slug: slug, PeriodEnd: end}
	up, down := base, base
	up.Outcome, up.TokenID = signal.Up, tokens[upIdx]
	down.Outcome, down.TokenID = signal.Down, tokens[downIdx]
	return []signal.Instrument{up, down}, nil
}
