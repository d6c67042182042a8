package scheduler

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"st1ne-assistant/internal/config"
	"st1ne-assistant/internal/execution"
	"st1ne-assistant/internal/risk"
)

type fakeSweeper struct {
	calls int
}

func (f *fakeSweeper) Sweep(ctx context.Context, now time.Time) []execution.Decision {
	f.calls++
	return []execution.Decision{{Market: "BTC-15m", Reason: "take_profit"}}
}

func newTestState(now time.Time) *risk.State {
	ny, _ := time.LoadLocation("America/New_York")
	return risk.NewState(config.ModeLive, risk.Limits{MaxNotionalPerTrade: 10, MaxPosition: 10, MaxDailyLoss: 30, Cooldown: time.Minute}, ny, now)
}

func TestRolloverResetsAtLocalMidnight(t *testing.T) {
	start := time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC) // 10:00 New York
	state := newTestState(start)
	state.Day().Realize(start, -12)

	var buf bytes.Buffer
	s := New(context.Background(), zerolog.New(&buf), state, nil, nil)

	s.now = func() time.Time { return time.Date(2024, 6, 4, 3, 59, 0, 0, time.UTC) } // 23:59 New York
	s.RunRollover()
	if state.Day().Summary(s.now()).Loss != -12 {
		t.Fatalf("loss should persist until local midnight")
	}

	s.now = func() time.Time { return time.Date(2024, 6, 4, 4, 0, 1, 0, time.UTC) }
	s.RunRollover()
	if sum := state.Day().Summary(s.now()); sum.Loss != 0 || sum.Day != "2024-06-04" {
		t.Fatalf("expected reset ledger, got %+v", sum)
	}
	if !strings.Contains(buf.String(), "daily loss counter reset") || !strings.Contains(buf.String(), `"day":"2024-06-03"`) {
		t.Fatalf("expected rollover log, got %s", buf.String())
	}
}

func TestSummaryLogsRiskState(t *testing.T) {
	now := time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)
	state := newTestState(now)
	var buf bytes.Buffer
	s := New(context.Background(), zerolog.New(&buf), state, nil, nil)
	s.now = func() time.Time { return now }
	s.RunSummary()
	if !strings.Contains(buf.String(), `"message":"risk summary"`) || !strings.Contains(buf.String(), `"mode":"live"`) {
		t.Fatalf("unexpected summary log %s", buf.String())
	}
}

func TestSweepForwardsDecisions(t *testing.T) {
	now := time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)
	sweeper := &fakeSweeper{}
	var got []execution.Decision
	s := New(context.Background(), zerolog.Nop(), newTestState(now), sweeper, func(d execution.Decision) { got = append(got, d) })
	s.RunSweep()
	if sweeper.calls != 1 || len(got) != 1 || got[0].Reason != "take_profit" {
		t.Fatalf("unexpected sweep result calls=%d got=%+v", sweeper.calls, got)
	}
}

func TestRegisterAll(t *testing.T) {
	now := time.Now()
	s := New(context.Background(), zerolog.Nop(), newTestState(now), &fakeSweeper{}, nil)
	if err := s.RegisterAll(RolloverSpec, SummarySpec, SweepSpec); err != nil {
		t.Fatalf("RegisterAll returned error: %v", err)
	}
	if len(s.Cron.Entries()) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(s.Cron.Entries()))
	}
	if err := s.RegisterAll("bogus", SummarySpec, SweepSpec); err == nil {
		t.Fatalf("expected error for invalid spec")
	}
}
