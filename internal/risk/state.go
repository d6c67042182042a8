package risk

import (
	"sort"
	"sync"
	"time"

	"st1ne-assistant/internal/config"
	"st1ne-assistant/internal/signal"
)

// Position is the open exposure on one market.
type Position struct {
	Instrument signal.Instrument `json:"instrument"`
	Side       string            `json:"side"`
	Shares     float64           `json:"shares"`
	Notional   float64           `json:"notional"`
	EntryPrice float64           `json:"entry_price"`
	OpenedAt   time.Time         `json:"opened_at"`
}

// MarketState is one market's partition of the risk state. Its fields are
// only touched through State.WithMarket, which serializes access.
type MarketState struct {
	mu        sync.Mutex
	market    string
	lastTrade time.Time
	position  *Position
}

// Market returns the partition key.
func (m *MarketState) Market() string { return m.market }

// LastTrade returns when the last entry was committed.
func (m *MarketState) LastTrade() time.Time { return m.lastTrade }

// Position returns a copy of the open position, if any.
func (m *MarketState) Position() (Position, bool) {
	if m.position == nil {
		return Position{}, false
	}
	return *m.position, true
}

// OpenNotional returns the notional currently at risk.
func (m *MarketState) OpenNotional() float64 {
	if m.position == nil {
		return 0
	}
	return m.position.Notional
}

// CooldownRemaining returns how long until a new entry is allowed.
func (m *MarketState) CooldownRemaining(now time.Time, cooldown time.Duration) time.Duration {
	if m.lastTrade.IsZero() || cooldown <= 0 {
		return 0
	}
	if left := cooldown - now.Sub(m.lastTrade); left > 0 {
		return left
	}
	return 0
}

// CommitEntry records an acknowledged entry: the cooldown clock and the
// position move together.
func (m *MarketState) CommitEntry(now time.Time, pos Position) {
	m.lastTrade = now
	if m.position == nil {
		m.position = &pos
		return
	}
	total := m.position.Shares + pos.Shares
	if total > 0 {
		m.position.EntryPrice = (m.position.EntryPrice*m.position.Shares + pos.EntryPrice*pos.Shares) / total
	}
	m.position.Shares = total
	m.position.Notional += pos.Notional
}

// CommitExit clears the open position.
func (m *MarketState) CommitExit() {
	m.position = nil
}

// State is the process-wide risk state: a mode flag, static limits, the day
// ledger, and per-market partitions.
type State struct {
	mode   string
	limits Limits
	day    *DayLedger

	mu      sync.Mutex
	markets map[string]*MarketState
}

// NewState builds an empty risk state anchored at now.
func NewState(mode string, limits Limits, loc *time.Location, now time.Time) *State {
	return &State{
		mode:    mode,
		limits:  limits,
		day:     NewDayLedger(loc, now),
		markets: make(map[string]*MarketState),
	}
}

// FromConfig builds a State from the risk configuration block.
func FromConfig(r config.Risk, now time.Time) (*State, error) {
	loc, err := time.LoadLocation(r.DayBoundaryTZ)
	if err != nil {
		return nil, err
	}
	return NewState(r.Mode, LimitsFromConfig(r), loc, now), nil
}

// Mode returns dry-run or live.
func (s *State) Mode() string { return s.mode }

// DryRun reports whether real orders are disabled.
func (s *State) DryRun() bool { return s.mode != config.ModeLive }

// Limits returns the static thresholds.
func (s *State) Limits() Limits { return s.limits }

// Day returns the shared day ledger.
func (s *State) Day() *DayLedger { return s.day }

func (s *State) market(key string) *MarketState {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.markets[key]
	if m == nil {
		m = &MarketState{market: key}
		s.markets[key] = m
	}
	return m
}

// WithMarket runs fn while holding the market's lock, so every read and write
// for that market inside fn happens as one unit.
func (s *State) WithMarket(key string, fn func(*MarketState)) {
	m := s.market(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

// Check applies the limits in order and returns the first block reason, or
// "" when an entry may proceed. The caller must hold the market via WithMarket.
func (s *State) Check(m *MarketState, now time.Time) string {
	if s.day.CapReached(now, s.limits.MaxDailyLoss) {
		return ReasonDailyLoss
	}
	if m.CooldownRemaining(now, s.limits.Cooldown) > 0 {
		return ReasonCooldown
	}
	if m.OpenNotional() >= s.limits.MaxPosition {
		return ReasonPositionCap
	}
	return ""
}

// MarketSummary is the dashboard view of one partition.
type MarketSummary struct {
	Market            string        `json:"market"`
	LastTrade         time.Time     `json:"last_trade,omitempty"`
	CooldownRemaining time.Duration `json:"cooldown_remaining"`
	Position          *Position     `json:"position,omitempty"`
}

// Snapshot is a read-only copy of the whole risk state.
type Snapshot struct {
	Mode    string          `json:"mode"`
	Day     DaySummary      `json:"day"`
	Markets []MarketSummary `json:"markets"`
}

// Snapshot copies every partition under its own lock.
func (s *State) Snapshot(now time.Time) Snapshot {
	s.mu.Lock()
	keys := make([]string, 0, len(s.markets))
	for k := range s.markets {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	sort.Strings(keys)

	out := Snapshot{Mode: s.mode, Day: s.day.Summary(now), Markets: make([]MarketSummary, 0, len(keys))}
	for _, k := range keys {
		s.WithMarket(k, func(m *MarketState) {
			sum := MarketSummary{Market: k, LastTrade: m.lastTrade, CooldownRemaining: m.CooldownRemaining(now, s.limits.Cooldown)}
			if pos, ok := m.Position(); ok {
				sum.Position = &pos
			}
			out.Markets = append(out.Markets, sum)
		})
	}
	return out
}
