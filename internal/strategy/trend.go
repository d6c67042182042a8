package strategy

import "st1ne-assistant/internal/indicator"

// Bar-based trend rules. Each abstains until its indicator has warmed up.

func rsiVote(p Params, v indicator.Vector) float64 {
	if !v.RSIReady {
		return 0
	}
	switch {
	case v.RSI < p.RSIOversold:
		return 1
	case v.RSI > p.RSIOverbought:
		return -1
	default:
		return 0
	}
}

func macdVote(_ Params, v indicator.Vector) float64 { return sign(v.MACDHist) }

func vwapVote(_ Params, v indicator.Vector) float64 {
	if v.VWAP <= 0 || v.Price <= 0 {
		return 0
	}
	return sign(v.Price - v.VWAP)
}

func emaTrendVote(_ Params, v indicator.Vector) float64 { return float64(v.EMATrend) }

func emaCrossVote(_ Params, v indicator.Vector) float64 { return float64(v.Cross) }

func heikinVote(p Params, v indicator.Vector) float64 {
	if p.HeikinStreak <= 0 {
		return 0
	}
	switch {
	case v.Heikin >= p.HeikinStreak:
		return 1
	case v.Heikin <= -p.HeikinStreak:
		return -1
	default:
		return 0
	}
}
