package execution

import (
	"context"
	"time"

	"st1ne-assistant/internal/metrics"
	"st1ne-assistant/internal/recorder"
	"st1ne-assistant/internal/risk"
	"st1ne-assistant/internal/signal"
)

// Exit reasons.
const (
	ExitTakeProfit = "take_profit"
	ExitStopLoss   = "stop_loss"
	ExitDeadline   = "deadline"
	ExitSettlement = "settlement"
)

func (c *Controller) exitReason(pos risk.Position, price float64, now time.Time) string {
	switch {
	case c.opts.TakeProfit > 0 && price >= pos.EntryPrice+c.opts.TakeProfit:
		return ExitTakeProfit
	case c.opts.StopLoss > 0 && price <= pos.EntryPrice-c.opts.StopLoss:
		return ExitStopLoss
	case !pos.Instrument.PeriodEnd.IsZero() && !now.Before(pos.Instrument.PeriodEnd.Add(-c.opts.DeadlineLead)):
		return ExitDeadline
	default:
		return ""
	}
}

// OnQuote runs the exit monitor for the market a fresh quote belongs to.
func (c *Controller) OnQuote(ctx context.Context, q signal.ContractQuote, now time.Time) (Decision, bool) {
	return c.checkExit(ctx, q.Instrument.Market(), now)
}

// Sweep checks every open position so deadline exits fire even when quotes
// for a market go quiet.
func (c *Controller) Sweep(ctx context.Context, now time.Time) []Decision {
	var out []Decision
	for _, m := range c.risk.Snapshot(now).Markets {
		if m.Position == nil {
			continue
		}
		if d, ok := c.checkExit(ctx, m.Market, now); ok {
			out = append(out, d)
		}
	}
	return out
}

func (c *Controller) checkExit(ctx context.Context, market string, now time.Time) (Decision, bool) {
	var (
		d     Decision
		acted bool
	)
	c.risk.WithMarket(market, func(m *risk.MarketState) {
		pos, ok := m.Position()
		if !ok {
			return
		}
		if end := pos.Instrument.PeriodEnd; !end.IsZero() && !now.Before(end) {
			d, acted = c.settleLocked(ctx, m, pos, now), true
			return
		}
		if c.quotes == nil {
			return
		}
		// the cached leg belongs to the next period once the market rolls
		quote, ok := c.quotes.Get(market, pos.Instrument.Outcome)
		if !ok || quote.Instrument.TokenID != pos.Instrument.TokenID {
			return
		}
		price := quote.Bid
		if price <= 0 {
			price = quote.Mid()
		}
		if price <= 0 {
			return
		}

		c.mu.Lock()
		st := c.statusLocked(market)
		st.markToken, st.mark = pos.Instrument.TokenID, price
		reason := c.exitReason(pos, price, now)
		if reason == "" || (!st.exitTried.IsZero() && now.Sub(st.exitTried) < c.opts.ExitRetry) {
			c.mu.Unlock()
			return
		}
		st.exitTried = now
		c.mu.Unlock()

		acted = true
		d = Decision{Market: market, Ts: now, Reason: reason}
		exit := ExitIntent{
			Market:     market,
			Instrument: pos.Instrument,
			Side:       Side(pos.Side),
			Shares:     pos.Shares,
			LimitPrice: price,
			Reason:     reason,
			Ts:         now,
		}
		octx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.OrderTimeout)
		defer cancel()
		fill, err := c.venue.Close(octx, exit)
		rec := recorder.New(now, market, recorder.KindExit)
		rec.Mode = c.risk.Mode()
		rec.Side = pos.Side
		rec.Outcome = string(pos.Instrument.Outcome)
		rec.TokenID = pos.Instrument.TokenID
		rec.PeriodEnd = pos.Instrument.PeriodEnd
		rec.Shares = pos.Shares
		rec.Price = price
		rec.Reason = reason
		if err != nil {
			d.State, d.Outcome, d.Err = Blocked, OutcomeFailed, err
			rec.Kind = recorder.KindFailed
			rec.Reason = reason + ": " + err.Error()
			c.record(rec)
			return
		}

		pnl := fill.Notional - pos.Notional
		day := c.risk.Day().Realize(now, pnl)
		m.CommitExit()
		metrics.DailyPnL.Set(day.Realized)
		metrics.OpenNotional.WithLabelValues(market).Set(0)

		rec.OrderID, rec.Shares, rec.Price, rec.Notional, rec.PnL = fill.OrderID, fill.Shares, fill.Price, fill.Notional, pnl
		c.record(rec)
		d.State, d.Outcome, d.Fill = Executing, OutcomeExecuted, &fill
	})
	if !acted {
		return Decision{}, false
	}

	c.mu.Lock()
	st := c.statusLocked(market)
	if d.Outcome == OutcomeExecuted {
		st.exitTried = time.Time{}
	}
	c.mu.Unlock()

	ev := c.log.Info()
	if d.Err != nil {
		ev = c.log.Error().Err(d.Err)
	}
	ev = ev.Str("market", market).Time("ts", now).Str("reason", d.Reason).Str("outcome", string(d.Outcome))
	if d.Fill != nil {
		ev = ev.Float64("px", d.Fill.Price).Float64("shares", d.Fill.Shares)
	}
	ev.Msg("exit")
	return d, true
}

// settleLocked closes a position whose period has ended. The contract resolves
// to 1 when the last bid seen on its token was at least 0.5 and to 0 otherwise;
// without any observed bid the entry price stands in. Resolution happens
// whether or not the venue books it, so risk state always clears.
func (c *Controller) settleLocked(ctx context.Context, m *risk.MarketState, pos risk.Position, now time.Time) Decision {
	market := m.Market()
	mark := pos.EntryPrice
	c.mu.Lock()
	st := c.statusLocked(market)
	if st.markToken == pos.Instrument.TokenID {
		mark = st.mark
	}
	st.markToken, st.mark, st.exitTried = "", 0, time.Time{}
	c.mu.Unlock()

	price := 0.0
	if mark >= 0.5 {
		price = 1
	}
	exit := ExitIntent{
		Market:     market,
		Instrument: pos.Instrument,
		Side:       Side(pos.Side),
		Shares:     pos.Shares,
		LimitPrice: price,
		Reason:     ExitSettlement,
		Ts:         now,
	}
	fill := settlementFill(exit)
	if s, ok := c.venue.(Settler); ok {
		octx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.OrderTimeout)
		booked, err := s.Settle(octx, exit)
		cancel()
		if err != nil {
			c.log.Warn().Err(err).Str("market", market).Str("token", pos.Instrument.TokenID).Msg("venue did not book settlement")
		} else {
			fill = booked
		}
	}

	pnl := fill.Notional - pos.Notional
	day := c.risk.Day().Realize(now, pnl)
	m.CommitExit()
	metrics.DailyPnL.Set(day.Realized)
	metrics.OpenNotional.WithLabelValues(market).Set(0)

	rec := recorder.New(now, market, recorder.KindSettlement)
	rec.Mode = c.risk.Mode()
	rec.Side = pos.Side
	rec.Outcome = string(pos.Instrument.Outcome)
	rec.TokenID = pos.Instrument.TokenID
	rec.PeriodEnd = pos.Instrument.PeriodEnd
	rec.OrderID, rec.Shares, rec.Price, rec.Notional, rec.PnL = fill.OrderID, fill.Shares, fill.Price, fill.Notional, pnl
	rec.Reason = ExitSettlement
	c.record(rec)

	return Decision{Market: market, Ts: now, State: Executing, Outcome: OutcomeExecuted, Reason: ExitSettlement, Fill: &fill}
}
