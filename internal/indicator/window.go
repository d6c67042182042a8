// Package indicator derives technical and microstructure indicators from market snapshots.
package indicator

import "time"

type sample struct {
	ts time.Time
	v  float64
}

// TimeWindow keeps timestamped values no older than horizon behind the newest
// sample, bounded by a hard count so a burst cannot grow it without limit.
type TimeWindow struct {
	horizon time.Duration
	max     int
	samples []sample
	sum     float64
}

// NewTimeWindow builds a window spanning horizon with at most maxLen samples.
func NewTimeWindow(horizon time.Duration, maxLen int) *TimeWindow {
	if maxLen <= 0 {
		maxLen = 10_000
	}
	return &TimeWindow{horizon: horizon, max: maxLen}
}

// Add appends a sample and evicts everything that fell out of the horizon.
func (w *TimeWindow) Add(ts time.Time, v float64) {
	w.samples = append(w.samples, sample{ts: ts, v: v})
	w.sum += v
	w.Evict(ts)
	if over := len(w.samples) - w.max; over > 0 {
		w.drop(over)
	}
}

// Evict removes samples at or before now-horizon.
func (w *TimeWindow) Evict(now time.Time) {
	cutoff := now.Add(-w.horizon)
	idx := 0
	for idx < len(w.samples) && !w.samples[idx].ts.After(cutoff) {
		idx++
	}
	w.drop(idx)
}

func (w *TimeWindow) drop(n int) {
	if n <= 0 {
		return
	}
	for _, s := range w.samples[:n] {
		w.sum -= s.v
	}
	w.samples = append(w.samples[:0], w.samples[n:]...)
	if len(w.samples) == 0 {
		w.sum = 0
	}
}

// Sum returns the total of the retained values.
func (w *TimeWindow) Sum() float64 { return w.sum }

// Len returns the number of retained samples.
func (w *TimeWindow) Len() int { return len(w.samples) }

// Oldest returns the timestamp of the oldest retained sample.
func (w *TimeWindow) Oldest() (time.Time, bool) {
	if len(w.samples) == 0 {
		return time.Time{}, false
	}
	return w.samples[0].ts, true
}
