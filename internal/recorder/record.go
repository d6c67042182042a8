// Package recorder persists every trade decision that reached the order stage.
package recorder

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a trade record.
type Kind string

const (
	KindEntry  Kind = "entry"
	KindExit   Kind = "exit"
	KindDryRun Kind = "dry_run"
	KindFailed Kind = "failed"
	// KindSettlement closes a position held through resolution at 1 or 0.
	KindSettlement Kind = "settlement"
)

// TradeRecord is one append-only line of the trade log.
type TradeRecord struct {
	ID         string             `json:"id"`
	Ts         time.Time          `json:"ts"`
	Market     string             `json:"market"`
	Kind       Kind               `json:"kind"`
	Mode       string             `json:"mode"`
	Side       string             `json:"side,omitempty"`
	Outcome    string             `json:"outcome,omitempty"`
	TokenID    string             `json:"token_id,omitempty"`
	PeriodEnd  time.Time          `json:"period_end,omitempty"`
	Notional   float64            `json:"notional"`
	Shares     float64            `json:"shares"`
	Price      float64            `json:"price"`
	OrderID    string             `json:"order_id,omitempty"`
	Score      int                `json:"score"`
	Label      string             `json:"label,omitempty"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	PnL        float64            `json:"pnl,omitempty"`
}

// New stamps a record with a fresh id.
func New(ts time.Time, market string, kind Kind) TradeRecord {
	return TradeRecord{ID: uuid.NewString(), Ts: ts, Market: market, Kind: kind}
}

// Sink is the persist_trade capability.
type Sink interface {
	Record(TradeRecord) error
}

// Multi fans a record out to every sink and joins their errors.
type Multi []Sink

// Record writes rec to each sink; one failing sink does not stop the others.
func (m Multi) Record(rec TradeRecord) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every record.
type Discard struct{}

// Record implements Sink.
func (Discard) Record(TradeRecord) error { return nil }
