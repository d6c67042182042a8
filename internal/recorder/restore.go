package recorder

import (
	"strings"

	"st1ne-assistant/internal/risk"
	"st1ne-assistant/internal/signal"
)

// RiskTrades converts persisted entry, exit and settlement records into the
// fills risk state replays at startup. Dry-run and failed records are skipped.
func RiskTrades(recs []TradeRecord) []risk.Trade {
	out := make([]risk.Trade, 0, len(recs))
	for _, rec := range recs {
		kind := string(rec.Kind)
		switch rec.Kind {
		case KindEntry:
		case KindExit, KindSettlement:
			kind = risk.KindExit
		default:
			continue
		}
		coin, timeframe := rec.Market, ""
		if i := strings.LastIndex(rec.Market, "-"); i > 0 {
			coin, timeframe = rec.Market[:i], rec.Market[i+1:]
		}
		out = append(out, risk.Trade{
			Ts:     rec.Ts,
			Market: rec.Market,
			Kind:   kind,
			Side:   rec.Side,
			Instrument: signal.Instrument{
				Coin:      coin,
				Timeframe: timeframe,
				Outcome:   signal.Outcome(rec.Outcome),
				TokenID:   rec.TokenID,
				PeriodEnd: rec.PeriodEnd,
			},
			Shares:   rec.Shares,
			Notional: rec.Notional,
			Price:    rec.Price,
			PnL:      rec.PnL,
		})
	}
	return out
}
