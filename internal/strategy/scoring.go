// Package strategy fuses an indicator vector into a bounded conviction score.
package strategy

import (
	"fmt"
	"math"
	"strings"

	"st1ne-assistant/internal/indicator"
)

// Label is the directional call attached to a score.
type Label string

const (
	Bullish Label = "BULLISH"
	Bearish Label = "BEARISH"
	Neutral Label = "NEUTRAL"
)

// Vote is one rule's contribution before weighting.
type Vote struct {
	Rule   string  `json:"rule"`
	Vote   float64 `json:"vote"`
	Weight float64 `json:"weight"`
}

// Result is the scoring output for one vector.
type Result struct {
	Score  int              `json:"score"`
	Label  Label            `json:"label"`
	Raw    float64          `json:"raw"`
	Votes  []Vote           `json:"votes"`
	Vector indicator.Vector `json:"vector"`
}

// Reason renders the non-zero votes compactly for logs.
func (r Result) Reason() string {
	parts := make([]string, 0, len(r.Votes))
	for _, v := range r.Votes {
		if v.Vote == 0 || v.Weight == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%+.1f", v.Rule, v.Vote*v.Weight))
	}
	return strings.Join(parts, " ")
}

type rule struct {
	name   string
	weight func(Weights) float64
	vote   func(Params, indicator.Vector) float64
}

// rules is evaluated in this fixed order so Votes are stable across runs.
var rules = []rule{
	{"obi", func(w Weights) float64 { return w.OBI }, obiVote},
	{"walls", func(w Weights) float64 { return w.Walls }, wallVote},
	{"depth", func(w Weights) float64 { return w.Depth }, depthVote},
	{"cvd", func(w Weights) float64 { return w.CVD }, cvdVote},
	{"delta", func(w Weights) float64 { return w.Delta }, deltaVote},
	{"poc", func(w Weights) float64 { return w.POC }, pocVote},
	{"rsi", func(w Weights) float64 { return w.RSI }, rsiVote},
	{"macd", func(w Weights) float64 { return w.MACD }, macdVote},
	{"vwap", func(w Weights) float64 { return w.VWAP }, vwapVote},
	{"ema_trend", func(w Weights) float64 { return w.EMATrend }, emaTrendVote},
	{"ema_cross", func(w Weights) float64 { return w.EMACross }, emaCrossVote},
	{"heikin_ashi", func(w Weights) float64 { return w.Heikin }, heikinVote},
}

// Policy scores vectors with a fixed rule table. It is a value type with no
// internal state, so Score is pure.
type Policy struct {
	params Params
}

// NewPolicy builds a Policy from params.
func NewPolicy(params Params) Policy { return Policy{params: params} }

// Params returns the knobs the policy was built with.
func (p Policy) Params() Params { return p.params }

// Score maps a vector to an integer score in [0,10] and a label.
func (p Policy) Score(v indicator.Vector) Result {
	res := Result{Vector: v, Votes: make([]Vote, 0, len(rules))}
	for _, r := range rules {
		vote := r.vote(p.params, v)
		w := r.weight(p.params.Weights)
		res.Votes = append(res.Votes, Vote{Rule: r.name, Vote: vote, Weight: w})
		res.Raw += vote * w
	}
	res.Score = int(math.Round(clamp(p.params.Baseline+res.Raw, 0, 10)))
	switch {
	case res.Score >= p.params.HighThreshold:
		res.Label = Bullish
	case res.Score <= p.params.LowThreshold:
		res.Label = Bearish
	default:
		res.Label = Neutral
	}
	return res
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
