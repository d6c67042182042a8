package strategy

import "st1ne-assistant/internal/config"

// Weights assigns a multiplier to every rule vote.
type Weights struct {
	OBI      float64
	Walls    float64
	Depth    float64
	CVD      float64
	Delta    float64
	POC      float64
	RSI      float64
	MACD     float64
	VWAP     float64
	EMATrend float64
	EMACross float64
	Heikin   float64
}

// Params expresses tunable knobs for the scoring policy.
type Params struct {
	Baseline       float64
	HighThreshold  int
	LowThreshold   int
	OBIThreshold   float64
	RSIOversold    float64
	RSIOverbought  float64
	WallCap        int
	HeikinStreak   int
	DepthImbalance float64
	Weights        Weights
}

// DefaultParams mirrors the shipped configuration defaults.
func DefaultParams() Params {
	return ParamsFromConfig(config.Default().Strategy.Params)
}

// ParamsFromConfig copies the YAML strategy block into scoring params.
func ParamsFromConfig(c config.StrategyParams) Params {
	w := c.Weights
	return Params{
		Baseline:       c.Baseline,
		HighThreshold:  c.HighThreshold,
		LowThreshold:   c.LowThreshold,
		OBIThreshold:   c.OBIThreshold,
		RSIOversold:    c.RSIOversold,
		RSIOverbought:  c.RSIOverbought,
		WallCap:        c.WallCap,
		HeikinStreak:   c.HeikinStreak,
		DepthImbalance: c.DepthImbalance,
		Weights: Weights{
			OBI: w.OBI, Walls: w.Walls, Depth: w.Depth, CVD: w.CVD, Delta: w.Delta, POC: w.POC,
			RSI: w.RSI, MACD: w.MACD, VWAP: w.VWAP, EMATrend: w.EMATrend, EMACross: w.EMACross, Heikin: w.Heikin,
		},
	}
}

// Build returns the scoring policy for a loaded configuration.
func Build(cfg *config.Config) Policy {
	return NewPolicy(ParamsFromConfig(cfg.Strategy.Params))
}
