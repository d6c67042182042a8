package indicator

// RSI is an incremental Wilder-smoothed relative strength index over closed bars.
// It reports the neutral 50 until period changes (period+1 closes) have been seen.
type RSI struct {
	period  int
	prev    float64
	seeded  bool
	changes int
	avgGain float64
	avgLoss float64
	value   float64
}

// NewRSI builds an RSI with the given look-back, defaulting to 14.
func NewRSI(period int) *RSI {
	if period <= 0 {
		period = 14
	}
	return &RSI{period: period, value: 50}
}

// Update folds one close and returns the current RSI.
func (r *RSI) Update(close float64) float64 {
	if !finitePositive(close) {
		return r.value
	}
	if !r.seeded {
		r.prev, r.seeded = close, true
		return r.value
	}
	change := close - r.prev
	r.prev = close
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}
	r.changes++
	p := float64(r.period)
	switch {
	case r.changes < r.period:
		r.avgGain += gain
		r.avgLoss += loss
		return r.value
	case r.changes == r.period:
		r.avgGain = (r.avgGain + gain) / p
		r.avgLoss = (r.avgLoss + loss) / p
	default:
		r.avgGain = (r.avgGain*(p-1) + gain) / p
		r.avgLoss = (r.avgLoss*(p-1) + loss) / p
	}
	switch {
	case r.avgLoss == 0 && r.avgGain == 0:
		r.value = 50
	case r.avgLoss == 0:
		r.value = 100
	default:
		r.value = 100 - 100/(1+r.avgGain/r.avgLoss)
	}
	return r.value
}

// Value returns the last computed RSI.
func (r *RSI) Value() float64 { return r.value }

// Ready reports whether enough closes were seen for a non-default value.
func (r *RSI) Ready() bool { return r.changes >= r.period }
