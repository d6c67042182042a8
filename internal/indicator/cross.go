package indicator

// Cross is a moving-average crossover event.
type Cross int

const (
	NoCross     Cross = 0
	GoldenCross Cross = 1
	DeathCross  Cross = -1
)

func (c Cross) String() string {
	switch c {
	case GoldenCross:
		return "golden"
	case DeathCross:
		return "death"
	default:
		return "none"
	}
}

// Crossover watches a short and long EMA and fires exactly once per transition.
type Crossover struct {
	short *EMA
	long  *EMA
	state int
}

// NewCrossover builds a short/long EMA crossover detector.
func NewCrossover(short, long int) *Crossover {
	return &Crossover{short: NewEMA(short), long: NewEMA(long)}
}

// Update folds a close and returns the crossover event it caused, if any.
func (c *Crossover) Update(close float64) Cross {
	if !finitePositive(close) {
		return NoCross
	}
	s := c.short.Update(close)
	l := c.long.Update(close)
	if !c.long.Ready() {
		return NoCross
	}
	next := c.state
	switch {
	case s > l:
		next = 1
	case s < l:
		next = -1
	}
	prev := c.state
	c.state = next
	if prev == 0 || prev == next {
		return NoCross
	}
	return Cross(next)
}

// Short returns the short EMA.
func (c *Crossover) Short() float64 { return c.short.Value() }

// Long returns the long EMA.
func (c *Crossover) Long() float64 { return c.long.Value() }

// Trend returns +1 when the short EMA is above the long one, -1 below, 0 before ready or when equal.
func (c *Crossover) Trend() int { return c.state }

// Ready reports whether both EMAs are seeded.
func (c *Crossover) Ready() bool { return c.long.Ready() }
