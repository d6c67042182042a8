// Binary smoke checks connectivity to every upstream without placing orders.
package main

import (
	"context"
	"os"
	"time"

	"st1ne-assistant/internal/config"
	"st1ne-assistant/internal/exchange"
	"st1ne-assistant/internal/util"
	"st1ne-assistant/internal/venue/polymarket"
)

func main() {
	log := util.NewLogger("info", "console")

	cfg, err := config.Load(getEnv("BOT_CONFIG", "internal/config/config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	binance := exchange.NewBinanceSource(cfg.Feeds.Binance.WSURL, cfg.Feeds.Binance.RESTURL, nil, nil, log)
	for _, coin := range cfg.Markets.Coins {
		for _, tf := range cfg.Markets.Timeframes {
			candles, err := binance.Bootstrap(ctx, coin.Symbol, tf.Kline, 5)
			if err != nil {
				log.Error().Err(err).Str("symbol", coin.Symbol).Str("interval", tf.Kline).Msg("binance klines")
				continue
			}
			ev := log.Info().Str("symbol", coin.Symbol).Str("interval", tf.Kline).Int("candles", len(candles))
			if n := len(candles); n > 0 {
				ev = ev.Float64("close", candles[n-1].Close).Time("start", candles[n-1].Start)
			}
			ev.Msg("binance klines")
		}
	}

	registry := exchange.NewRegistry()
	discovery := exchange.NewDiscovery(log, registry, cfg.Feeds.Polymarket, cfg.Markets)
	if err := discovery.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("discovery incomplete")
	}

	// Book reads are unauthenticated; credentials are only checked for presence.
	creds, err := polymarket.LoadCredentialsFromEnv()
	if err != nil {
		log.Warn().Err(err).Msg("gateway credentials missing, live orders would fail")
	}
	gateway := cfg.Execution.GatewayURL
	if gateway == "" {
		log.Warn().Msg("execution.gateway_url not set, skipping book checks")
	}
	client := polymarket.NewClient(gateway, creds, cfg.Execution.TickSize, 10*time.Second)
	for _, inst := range registry.Instruments() {
		ev := log.Info().Str("key", inst.Key()).Str("token", inst.TokenID).Time("period_end", inst.PeriodEnd)
		if gateway != "" {
			book, err := client.Book(ctx, inst.TokenID)
			if err != nil {
				log.Error().Err(err).Str("key", inst.Key()).Msg("gateway book")
				continue
			}
			ev = ev.Float64("bid", book.Bid).Float64("ask", book.Ask)
		}
		ev.Msg("contract leg")
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
