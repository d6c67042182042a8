package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"st1ne-assistant/internal/config"
	"st1ne-assistant/internal/engine"
	"st1ne-assistant/internal/exchange"
	"st1ne-assistant/internal/execution"
	"st1ne-assistant/internal/metrics"
	"st1ne-assistant/internal/monitor"
	"st1ne-assistant/internal/paper"
	"st1ne-assistant/internal/recorder"
	"st1ne-assistant/internal/risk"
	"st1ne-assistant/internal/scheduler"
	sig "st1ne-assistant/internal/signal"
	"st1ne-assistant/internal/util"
	"st1ne-assistant/internal/venue/polymarket"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	_ = godotenv.Load() // best-effort

	path := defaultConfigPath
	if v := os.Getenv("BOT_CONFIG"); v != "" {
		path = v
	}
	cfg, err := config.Load(path)
	if err != nil {
		boot := util.NewLogger("info", "json")
		boot.Fatal().Err(err).Str("path", path).Msg("load config")
	}
	if mode := strings.TrimSpace(os.Getenv("BOT_MODE")); mode != "" {
		cfg.Risk.Mode = mode
	}
	log := util.NewLogger(cfg.App.LogLevel, cfg.App.LogFormat).With().Str("app", cfg.App.Name).Logger()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	now := time.Now()
	state, err := risk.FromConfig(cfg.Risk, now)
	if err != nil {
		log.Fatal().Err(err).Msg("risk state")
	}

	sink, closeSinks := openSinks(cfg, state, now, log)
	defer closeSinks()

	venue, err := openVenue(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("venue")
	}

	quotes := execution.NewQuotes()
	ctl := execution.NewController(log, state, venue, sink, quotes, execution.OptionsFromConfig(cfg))
	board := monitor.NewBoard(state)
	eng, err := engine.New(log.With().Str("component", "engine").Logger(), cfg, ctl, quotes, board)
	if err != nil {
		log.Fatal().Err(err).Msg("engine")
	}

	registry := exchange.NewRegistry()
	spot, contract, err := exchange.NewSources(cfg, registry, log)
	if err != nil {
		log.Fatal().Err(err).Msg("feeds")
	}
	if strings.EqualFold(cfg.Feeds.Provider, exchange.ProviderLive) {
		discovery := exchange.NewDiscovery(log.With().Str("component", "discovery").Logger(), registry, cfg.Feeds.Polymarket, cfg.Markets)
		discovery.OnRoll(quotes.Forget)
		if err := discovery.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("initial market discovery incomplete")
		}
		discovery.Start(ctx)
	}
	if fetcher, ok := spot.(engine.CandleFetcher); ok {
		eng.Bootstrap(ctx, fetcher)
	}

	sched := scheduler.New(ctx, log.With().Str("component", "scheduler").Logger(), state, ctl, eng.Report)
	if err := sched.RegisterAll(scheduler.RolloverSpec, scheduler.SummarySpec, scheduler.SweepSpec); err != nil {
		log.Fatal().Err(err).Msg("scheduler")
	}
	sched.Start()
	defer sched.Stop()

	hub := monitor.NewHub(log.With().Str("component", "monitor").Logger(), board)
	go hub.Run(ctx, time.Second)
	srv := metrics.Serve(cfg.App.MetricsAddr, map[string]http.Handler{"/state": board.Handler(), "/ws": hub})
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	syncer := exchange.NewSynchronizer(log.With().Str("component", "sync").Logger(), cfg.Feeds.StaleAfterDuration(), cfg.Feeds.QueueSize, spot, contract)
	events := make(chan sig.Event, cfg.Feeds.QueueSize)
	syncErr := make(chan error, 1)
	go func() { syncErr <- syncer.Run(ctx, events) }()

	log.Info().
		Str("mode", state.Mode()).
		Str("venue", cfg.Execution.Venue).
		Str("provider", cfg.Feeds.Provider).
		Strs("markets", eng.Markets()).
		Msg("bot started")

	if err := eng.Run(ctx, events); err != nil {
		log.Error().Err(err).Msg("engine stopped")
	}
	cancel()
	if err := <-syncErr; err != nil {
		log.Error().Err(err).Msg("feeds stopped")
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn().Err(err).Msg("metrics shutdown")
	}
	log.Info().Msg("shutting down")
}

// openSinks wires the JSONL and SQLite trade logs and replays today's fills
// from SQLite into the risk state.
func openSinks(cfg *config.Config, state *risk.State, now time.Time, log zerolog.Logger) (recorder.Sink, func()) {
	var (
		sinks   recorder.Multi
		closers []func() error
	)
	if dir := cfg.Recorder.JSONLDir; dir != "" {
		jsonl, err := recorder.NewJSONLRecorder(dir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("jsonl recorder")
		}
		sinks = append(sinks, jsonl)
		closers = append(closers, jsonl.Close)
	}
	if path := cfg.Recorder.SQLitePath; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			log.Fatal().Err(err).Msg("sqlite dir")
		}
		db, err := recorder.NewSQLiteRecorder(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("sqlite recorder")
		}
		sinks = append(sinks, db)
		closers = append(closers, db.Close)

		loc := state.Day().Location()
		y, m, d := now.In(loc).Date()
		recs, err := db.Since(time.Date(y, m, d, 0, 0, 0, 0, loc))
		if err != nil {
			log.Warn().Err(err).Msg("restore trades")
		} else {
			n := state.Restore(now, recorder.RiskTrades(recs))
			log.Info().Int("fills", n).Interface("day", state.Day().Summary(now)).Msg("risk state restored")
		}
	}
	return sinks, func() {
		for _, c := range closers {
			_ = c()
		}
	}
}

func openVenue(cfg *config.Config, log zerolog.Logger) (execution.Venue, error) {
	var venue execution.Venue
	switch strings.ToLower(cfg.Execution.Venue) {
	case "polymarket":
		creds, err := polymarket.LoadCredentialsFromEnv()
		if err != nil {
			return nil, err
		}
		timeout := time.Duration(cfg.Execution.OrderTimeoutMs) * time.Millisecond
		venue = polymarket.NewClient(cfg.Execution.GatewayURL, creds, cfg.Execution.TickSize, timeout)
	default:
		venue = paper.NewAccount(cfg.Paper.StartingCash, cfg.Paper.SlippageBps)
	}
	return execution.NewExecutor(log, venue), nil
}
