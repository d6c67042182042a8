package risk

import (
	"sort"
	"time"

	"st1ne-assistant/internal/signal"
)

// Trade kinds understood by Restore.
const (
	KindEntry = "entry"
	KindExit  = "exit"
)

// Trade is a persisted fill replayed into the state at startup.
type Trade struct {
	Ts         time.Time
	Market     string
	Kind       string
	Side       string
	Instrument signal.Instrument
	Shares     float64
	Notional   float64
	Price      float64
	PnL        float64
}

// Restore replays today's persisted fills so limits survive a restart: exits
// feed the day ledger, the last entry per market restarts its cooldown, and
// entries without a later exit become open positions unless their period has
// already ended. Fills from before the current day do not touch the ledger.
func (s *State) Restore(now time.Time, trades []Trade) int {
	sorted := append([]Trade(nil), trades...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Ts.Before(sorted[j].Ts) })

	today := dayKey(now, s.day.Location())
	applied := 0
	for _, tr := range sorted {
		if tr.Ts.After(now) {
			continue
		}
		sameDay := dayKey(tr.Ts, s.day.Location()) == today
		switch tr.Kind {
		case KindEntry:
			s.WithMarket(tr.Market, func(m *MarketState) {
				m.CommitEntry(tr.Ts, Position{
					Instrument: tr.Instrument,
					Side:       tr.Side,
					Shares:     tr.Shares,
					Notional:   tr.Notional,
					EntryPrice: tr.Price,
					OpenedAt:   tr.Ts,
				})
				if end := tr.Instrument.PeriodEnd; !end.IsZero() && !end.After(now) {
					// resolved contract, nothing left to manage
					m.CommitExit()
				}
			})
		case KindExit:
			s.WithMarket(tr.Market, func(m *MarketState) { m.CommitExit() })
			if sameDay {
				s.day.Realize(tr.Ts, tr.PnL)
			}
		default:
			continue
		}
		applied++
	}
	return applied
}
