package indicator

import "st1ne-assistant/internal/signal"

// HeikinAshi converts closed candles into smoothed bars and counts the
// consecutive run of same-coloured bars.
type HeikinAshi struct {
	open   float64
	close  float64
	seeded bool
	streak int
}

// Update folds one candle and returns the signed streak: positive for green
// runs, negative for red runs, zero after a doji.
func (h *HeikinAshi) Update(c signal.Candle) int {
	if !finitePositive(c.Open) || !finitePositive(c.High) || !finitePositive(c.Low) || !finitePositive(c.Close) {
		return h.streak
	}
	haClose := (c.Open + c.High + c.Low + c.Close) / 4
	haOpen := (c.Open + c.Close) / 2
	if h.seeded {
		haOpen = (h.open + h.close) / 2
	}
	h.open, h.close, h.seeded = haOpen, haClose, true

	dir := 0
	switch {
	case haClose > haOpen:
		dir = 1
	case haClose < haOpen:
		dir = -1
	}
	switch {
	case dir == 0:
		h.streak = 0
	case h.streak*dir > 0:
		h.streak += dir
	default:
		h.streak = dir
	}
	return h.streak
}

// Streak returns the current signed run length.
func (h *HeikinAshi) Streak() int { return h.streak }
