package risk

import (
	"sync"
	"time"
)

// DaySummary is a point-in-time copy of the day ledger.
type DaySummary struct {
	Day      string  `json:"day"`
	Realized float64 `json:"realized"`
	Loss     float64 `json:"loss"`
	Trades   int     `json:"trades"`
}

// DayLedger is the single authoritative accumulator of realized P&L for the
// current calendar day. Loss sums only losing closes, so within a day it never
// increases; both counters reset only when the day changes in loc.
type DayLedger struct {
	mu       sync.Mutex
	loc      *time.Location
	day      string
	realized float64
	loss     float64
	trades   int
}

// NewDayLedger starts a ledger for the day containing now.
func NewDayLedger(loc *time.Location, now time.Time) *DayLedger {
	if loc == nil {
		loc = time.UTC
	}
	return &DayLedger{loc: loc, day: dayKey(now, loc)}
}

func dayKey(ts time.Time, loc *time.Location) string {
	return ts.In(loc).Format(time.DateOnly)
}

// Location returns the timezone of the day boundary.
func (d *DayLedger) Location() *time.Location { return d.loc }

// Realize books a closed trade's P&L at ts.
func (d *DayLedger) Realize(ts time.Time, pnl float64) DaySummary {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rollLocked(ts)
	d.realized += pnl
	if pnl < 0 {
		d.loss += pnl
	}
	d.trades++
	return d.summaryLocked()
}

// Rollover resets the counters when now falls on a later day. It reports
// whether a reset happened and the summary of the day that was closed.
func (d *DayLedger) Rollover(now time.Time) (DaySummary, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	prev := d.summaryLocked()
	return prev, d.rollLocked(now)
}

func (d *DayLedger) rollLocked(now time.Time) bool {
	day := dayKey(now, d.loc)
	if day <= d.day {
		return false
	}
	d.day = day
	d.realized, d.loss, d.trades = 0, 0, 0
	return true
}

// Summary returns the counters for the day containing now. It never commits a
// reset: a later day reads as empty until Realize or Rollover moves the ledger.
func (d *DayLedger) Summary(now time.Time) DaySummary {
	d.mu.Lock()
	defer d.mu.Unlock()
	if day := dayKey(now, d.loc); day > d.day {
		return DaySummary{Day: day}
	}
	return d.summaryLocked()
}

func (d *DayLedger) summaryLocked() DaySummary {
	return DaySummary{Day: d.day, Realized: d.realized, Loss: d.loss, Trades: d.trades}
}

// CapReached reports whether today's losses reached maxLoss (a positive amount).
func (d *DayLedger) CapReached(now time.Time, maxLoss float64) bool {
	s := d.Summary(now)
	return maxLoss > 0 && s.Loss <= -maxLoss
}
