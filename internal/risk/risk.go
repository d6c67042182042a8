// Package risk holds the guard-rails and the mutable risk state consulted before any order.
package risk

import (
	"time"

	"st1ne-assistant/internal/config"
)

// Block reasons reported when a limit stops an evaluation.
const (
	ReasonDailyLoss   = "daily_loss_cap"
	ReasonCooldown    = "cooldown"
	ReasonPositionCap = "position_cap"
)

// Limits are the static thresholds from configuration.
type Limits struct {
	MaxNotionalPerTrade float64
	MaxPosition         float64
	MaxDailyLoss        float64
	Cooldown            time.Duration
}

// LimitsFromConfig copies the risk block into Limits.
func LimitsFromConfig(r config.Risk) Limits {
	return Limits{
		MaxNotionalPerTrade: r.MaxNotionalPerTrade,
		MaxPosition:         r.MaxPosition,
		MaxDailyLoss:        r.MaxDailyLoss,
		Cooldown:            r.Cooldown(),
	}
}

// Allow reports whether a single order of notional fits the per-trade cap.
// Shares times price may overshoot the cap by float error only.
func (l Limits) Allow(notional float64) bool {
	return notional > 0 && notional <= l.MaxNotionalPerTrade+1e-9
}

// Size returns the notional for a new entry given what is already open: the
// per-trade cap, shrunk to the remaining position headroom.
func (l Limits) Size(open float64) float64 {
	headroom := l.MaxPosition - open
	if headroom <= 0 {
		return 0
	}
	return min(l.MaxNotionalPerTrade, headroom)
}
