package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"st1ne-assistant/internal/metrics"
	"st1ne-assistant/internal/signal"
)

type keyState struct {
	lastTs   time.Time // event timestamp, for ordering
	lastSeen time.Time // wall clock, for staleness
	stale    bool
}

// Synchronizer merges every source into one stream with per-key ordering and
// stale/fresh transitions.
type Synchronizer struct {
	log        zerolog.Logger
	sources    []Source
	staleAfter time.Duration
	buffer     int
	now        func() time.Time

	keys map[signal.Source]map[string]*keyState
}

// NewSynchronizer constructs a synchronizer over sources.
func NewSynchronizer(log zerolog.Logger, staleAfter time.Duration, buffer int, sources ...Source) *Synchronizer {
	if staleAfter <= 0 {
		staleAfter = 10 * time.Second
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &Synchronizer{
		log:        log,
		sources:    sources,
		staleAfter: staleAfter,
		buffer:     buffer,
		now:        time.Now,
		keys:       make(map[signal.Source]map[string]*keyState),
	}
}

// Run starts every source and forwards filtered events to out until ctx is
// done or a source fails permanently. out is closed on return.
func (s *Synchronizer) Run(ctx context.Context, out chan<- signal.Event) error {
	defer close(out)
	g, gctx := errgroup.WithContext(ctx)
	in := make(chan signal.Event, s.buffer)

	for _, src := range s.sources {
		g.Go(func() error {
			err := src.Run(gctx, in)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error().Err(err).Str("source", string(src.Name())).Msg("feed source stopped")
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		return s.forward(gctx, in, out)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Synchronizer) forward(ctx context.Context, in <-chan signal.Event, out chan<- signal.Event) error {
	interval := max(s.staleAfter/4, 10*time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	emit := func(ev signal.Event) error {
		metrics.EventsTotal.WithLabelValues(string(ev.Source), ev.Kind.String()).Inc()
		select {
		case out <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, ev := range s.Expire(s.now()) {
				if err := emit(ev); err != nil {
					return err
				}
			}
		case ev := <-in:
			for _, ev := range s.Accept(ev, s.now()) {
				if err := emit(ev); err != nil {
					return err
				}
			}
		}
	}
}

// Accept applies ordering and freshness rules to a raw source event and returns
// the events to deliver, in order. It is not safe for concurrent use.
func (s *Synchronizer) Accept(ev signal.Event, now time.Time) []signal.Event {
	keys := s.keys[ev.Source]
	if keys == nil {
		keys = make(map[string]*keyState)
		s.keys[ev.Source] = keys
	}

	if ev.Kind == signal.EventStale {
		if ev.Key != "" {
			return s.markStale(ev.Source, ev.Key, keys[ev.Key], now, ev.Reason)
		}
		var out []signal.Event
		for key, st := range keys {
			out = append(out, s.markStale(ev.Source, key, st, now, ev.Reason)...)
		}
		return out
	}

	st := keys[ev.Key]
	if st == nil {
		st = &keyState{}
		keys[ev.Key] = st
	}
	if ev.Ts.Before(st.lastTs) {
		metrics.DroppedTotal.WithLabelValues(string(ev.Source), "out_of_order").Inc()
		s.log.Debug().Str("source", string(ev.Source)).Str("key", ev.Key).Time("ts", ev.Ts).Time("last", st.lastTs).Msg("dropping out-of-order event")
		return nil
	}
	st.lastTs = ev.Ts
	st.lastSeen = now

	var out []signal.Event
	if st.stale {
		st.stale = false
		metrics.StaleTransitions.WithLabelValues(string(ev.Source), "fresh").Inc()
		s.log.Info().Str("source", string(ev.Source)).Str("key", ev.Key).Msg("feed fresh")
		out = append(out, signal.Event{Kind: signal.EventFresh, Source: ev.Source, Key: ev.Key, Ts: ev.Ts})
	}
	return append(out, ev)
}

// Expire marks every key silent for longer than staleAfter as stale.
func (s *Synchronizer) Expire(now time.Time) []signal.Event {
	var out []signal.Event
	for src, keys := range s.keys {
		for key, st := range keys {
			if now.Sub(st.lastSeen) > s.staleAfter {
				out = append(out, s.markStale(src, key, st, now, "timeout")...)
			}
		}
	}
	return out
}

func (s *Synchronizer) markStale(src signal.Source, key string, st *keyState, now time.Time, reason string) []signal.Event {
	if st == nil || st.stale {
		return nil
	}
	st.stale = true
	metrics.StaleTransitions.WithLabelValues(string(src), "stale").Inc()
	s.log.Warn().Str("source", string(src)).Str("key", key).Str("reason", reason).Msg("feed stale")
	return []signal.Event{{Kind: signal.EventStale, Source: src, Key: key, Ts: now, Reason: reason}}
}
