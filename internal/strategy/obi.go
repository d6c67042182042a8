package strategy

import "st1ne-assistant/internal/indicator"

// Order book and order flow rules.

func obiVote(p Params, v indicator.Vector) float64 {
	switch {
	case v.OBI > p.OBIThreshold:
		return 1
	case v.OBI < -p.OBIThreshold:
		return -1
	default:
		return 0
	}
}

// wallVote nets bid walls against ask walls, each side capped.
func wallVote(p Params, v indicator.Vector) float64 {
	return float64(min(len(v.BidWalls), p.WallCap) - min(len(v.AskWalls), p.WallCap))
}

// depthVote reads the widest depth band.
func depthVote(p Params, v indicator.Vector) float64 {
	imb := v.Depth[len(v.Depth)-1].Imbalance()
	switch {
	case imb > p.DepthImbalance:
		return 1
	case imb < -p.DepthImbalance:
		return -1
	default:
		return 0
	}
}

func cvdVote(_ Params, v indicator.Vector) float64 { return sign(v.CVD5m) }

func deltaVote(_ Params, v indicator.Vector) float64 { return sign(v.Delta1m) }

func pocVote(_ Params, v indicator.Vector) float64 {
	if v.POC <= 0 || v.Price <= 0 {
		return 0
	}
	return sign(v.Price - v.POC)
}
