package indicator

import (
	"time"

	"st1ne-assistant/internal/signal"
)

// Flow tracks cumulative volume delta over trailing windows and the signed
// volume of the last completed minute.
type Flow struct {
	cvd1m *TimeWindow
	cvd3m *TimeWindow
	cvd5m *TimeWindow

	bucket     time.Time
	bucketNet  float64
	lastDelta  float64
	lastTradeT time.Time
}

// NewFlow builds the three CVD windows with a shared count cap.
func NewFlow(maxTrades int) *Flow {
	return &Flow{
		cvd1m: NewTimeWindow(time.Minute, maxTrades),
		cvd3m: NewTimeWindow(3*time.Minute, maxTrades),
		cvd5m: NewTimeWindow(5*time.Minute, maxTrades),
	}
}

// AddTrade folds one print into every window. Malformed prints and prints
// older than the newest seen are dropped.
func (f *Flow) AddTrade(tr signal.Trade) bool {
	if !finitePositive(tr.Price) || !finitePositive(tr.Size) || tr.Side == 0 {
		return false
	}
	if tr.Ts.Before(f.lastTradeT) {
		return false
	}
	f.lastTradeT = tr.Ts
	signed := tr.Size
	if tr.Side < 0 {
		signed = -signed
	}
	f.cvd1m.Add(tr.Ts, signed)
	f.cvd3m.Add(tr.Ts, signed)
	f.cvd5m.Add(tr.Ts, signed)

	minute := tr.Ts.Truncate(time.Minute)
	if !minute.Equal(f.bucket) {
		f.roll(minute)
	}
	f.bucketNet += signed
	return true
}

// Advance evicts expired samples so quiet periods decay to zero.
func (f *Flow) Advance(now time.Time) {
	f.cvd1m.Evict(now)
	f.cvd3m.Evict(now)
	f.cvd5m.Evict(now)
	if minute := now.Truncate(time.Minute); minute.After(f.bucket) {
		f.roll(minute)
	}
}

func (f *Flow) roll(minute time.Time) {
	if f.bucket.IsZero() {
		f.bucket = minute
		return
	}
	if minute.Sub(f.bucket) == time.Minute {
		f.lastDelta = f.bucketNet
	} else {
		// a skipped minute had no prints
		f.lastDelta = 0
	}
	f.bucket = minute
	f.bucketNet = 0
}

// CVD returns the 1m, 3m and 5m cumulative volume delta.
func (f *Flow) CVD() (m1, m3, m5 float64) {
	return f.cvd1m.Sum(), f.cvd3m.Sum(), f.cvd5m.Sum()
}

// Delta returns the net signed volume of the last completed minute.
func (f *Flow) Delta() float64 { return f.lastDelta }
