package indicator

import (
	"math"

	"st1ne-assistant/internal/signal"
)

// DepthBands are the percent distances from mid at which cumulative depth is reported.
var DepthBands = [3]float64{0.1, 0.5, 1.0}

// Wall is a resting level whose size dwarfs its neighbours.
type Wall struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Depth is cumulative resting volume on each side within a band.
type Depth struct {
	Pct float64 `json:"pct"`
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
}

// Imbalance returns (bid-ask)/(bid+ask), zero for an empty band.
func (d Depth) Imbalance() float64 {
	total := d.Bid + d.Ask
	if total <= 0 {
		return 0
	}
	return (d.Bid - d.Ask) / total
}

func inBand(price, mid, bandPct float64) bool {
	if mid <= 0 || price <= 0 {
		return false
	}
	return math.Abs(price-mid)/mid*100 <= bandPct
}

func bandVolume(levels []signal.Level, mid, bandPct float64) float64 {
	var vol float64
	for _, lv := range levels {
		if validLevel(lv) && inBand(lv.Price, mid, bandPct) {
			vol += lv.Size
		}
	}
	return vol
}

func validLevel(lv signal.Level) bool {
	return lv.Price > 0 && lv.Size > 0 && !math.IsInf(lv.Price, 0) && !math.IsNaN(lv.Size) && !math.IsInf(lv.Size, 0)
}

// OBI returns the order book imbalance within bandPct percent of mid, in [-1, 1].
// Both sides empty yields 0.
func OBI(bids, asks []signal.Level, mid, bandPct float64) float64 {
	bidVol := bandVolume(bids, mid, bandPct)
	askVol := bandVolume(asks, mid, bandPct)
	total := bidVol + askVol
	if total <= 0 {
		return 0
	}
	return clamp((bidVol-askVol)/total, -1, 1)
}

// Walls returns levels within the band whose size exceeds multiple times the
// average level size of that side.
func Walls(bids, asks []signal.Level, mid, bandPct, multiple float64) (bidWalls, askWalls []Wall) {
	return sideWalls(bids, mid, bandPct, multiple), sideWalls(asks, mid, bandPct, multiple)
}

func sideWalls(levels []signal.Level, mid, bandPct, multiple float64) []Wall {
	var (
		sum   float64
		count int
	)
	for _, lv := range levels {
		if validLevel(lv) && inBand(lv.Price, mid, bandPct) {
			sum += lv.Size
			count++
		}
	}
	if count < 2 {
		return nil
	}
	avg := sum / float64(count)
	var walls []Wall
	for _, lv := range levels {
		if validLevel(lv) && inBand(lv.Price, mid, bandPct) && lv.Size > multiple*avg {
			walls = append(walls, Wall{Price: lv.Price, Size: lv.Size})
		}
	}
	return walls
}

// DepthProfile returns cumulative depth for each of DepthBands.
func DepthProfile(bids, asks []signal.Level, mid float64) [3]Depth {
	var out [3]Depth
	for i, pct := range DepthBands {
		out[i] = Depth{Pct: pct, Bid: bandVolume(bids, mid, pct), Ask: bandVolume(asks, mid, pct)}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
