package indicator

// EMA is an exponential moving average seeded with the simple average of its
// first period inputs.
type EMA struct {
	period int
	k      float64
	n      int
	sum    float64
	value  float64
}

// NewEMA builds an EMA over period samples.
func NewEMA(period int) *EMA {
	if period <= 0 {
		period = 1
	}
	return &EMA{period: period, k: 2 / float64(period+1)}
}

// Update folds v and returns the average, zero until ready.
func (e *EMA) Update(v float64) float64 {
	if e.n < e.period {
		e.sum += v
		e.n++
		if e.n == e.period {
			e.value = e.sum / float64(e.period)
		}
		return e.value
	}
	e.value = v*e.k + e.value*(1-e.k)
	return e.value
}

// Value returns the current average.
func (e *EMA) Value() float64 { return e.value }

// Ready reports whether the seed window is complete.
func (e *EMA) Ready() bool { return e.n >= e.period }

// MACD tracks the 12/26 EMA spread and its 9-period signal line.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA

	Line      float64
	Signal    float64
	Histogram float64
}

// NewMACD builds a MACD with the usual 12/26/9 when any period is non-positive.
func NewMACD(fast, slow, signal int) *MACD {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		fast, slow, signal = 12, 26, 9
	}
	return &MACD{fast: NewEMA(fast), slow: NewEMA(slow), signal: NewEMA(signal)}
}

// Update folds one close. Outputs stay zero until the slow EMA is seeded; the
// histogram stays zero until the signal line is seeded too.
func (m *MACD) Update(close float64) {
	if !finitePositive(close) {
		return
	}
	f := m.fast.Update(close)
	s := m.slow.Update(close)
	if !m.slow.Ready() {
		return
	}
	m.Line = f - s
	m.Signal = m.signal.Update(m.Line)
	if m.signal.Ready() {
		m.Histogram = m.Line - m.Signal
	}
}

// Ready reports whether the histogram is meaningful.
func (m *MACD) Ready() bool { return m.signal.Ready() }
