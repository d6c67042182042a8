// Package scheduler runs the wall-clock jobs around the trading loop.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"st1ne-assistant/internal/execution"
	"st1ne-assistant/internal/metrics"
	"st1ne-assistant/internal/risk"
)

// Default schedules (with seconds field).
const (
	RolloverSpec = "0 0 0 * * *"
	SummarySpec  = "0 */5 * * * *"
	SweepSpec    = "*/5 * * * * *"
)

// Sweeper closes positions whose exit conditions are met.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) []execution.Decision
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron       *cron.Cron
	log        zerolog.Logger
	state      *risk.State
	sweeper    Sweeper
	onDecision func(execution.Decision)
	ctx        context.Context
	now        func() time.Time
}

// New creates a scheduler whose calendar follows the risk day boundary.
func New(ctx context.Context, log zerolog.Logger, state *risk.State, sweeper Sweeper, onDecision func(execution.Decision)) *Scheduler {
	return &Scheduler{
		Cron:       cron.New(cron.WithSeconds(), cron.WithLocation(state.Day().Location())),
		log:        log,
		state:      state,
		sweeper:    sweeper,
		onDecision: onDecision,
		ctx:        ctx,
		now:        time.Now,
	}
}

// RegisterAll registers the day rollover, the risk summary and the exit sweep.
func (s *Scheduler) RegisterAll(rolloverCron, summaryCron, sweepCron string) error {
	if _, err := s.Cron.AddFunc(rolloverCron, s.RunRollover); err != nil {
		return fmt.Errorf("register rollover task: %w", err)
	}
	if _, err := s.Cron.AddFunc(summaryCron, s.RunSummary); err != nil {
		return fmt.Errorf("register summary task: %w", err)
	}
	if s.sweeper != nil {
		if _, err := s.Cron.AddFunc(sweepCron, s.RunSweep); err != nil {
			return fmt.Errorf("register sweep task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunRollover resets the daily loss counter when the day boundary has passed.
// The ledger also rolls lazily on use; this job makes the reset visible.
func (s *Scheduler) RunRollover() {
	prev, rolled := s.state.Day().Rollover(s.now())
	if !rolled {
		return
	}
	metrics.DailyPnL.Set(0)
	s.log.Info().
		Str("day", prev.Day).
		Float64("realized", prev.Realized).
		Float64("loss", prev.Loss).
		Int("trades", prev.Trades).
		Msg("daily loss counter reset")
}

// RunSummary logs the current risk state.
func (s *Scheduler) RunSummary() {
	snap := s.state.Snapshot(s.now())
	open := 0
	for _, m := range snap.Markets {
		if m.Position != nil {
			open++
		}
	}
	s.log.Info().
		Str("mode", snap.Mode).
		Str("day", snap.Day.Day).
		Float64("realized", snap.Day.Realized).
		Float64("loss", snap.Day.Loss).
		Int("trades", snap.Day.Trades).
		Int("open_positions", open).
		Msg("risk summary")
}

// RunSweep checks every open position against its exit conditions.
func (s *Scheduler) RunSweep() {
	for _, d := range s.sweeper.Sweep(s.ctx, s.now()) {
		if s.onDecision != nil {
			s.onDecision(d)
		}
	}
}
