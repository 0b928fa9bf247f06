package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"spike-overlay/internal/config"
	"spike-overlay/internal/feed"
	"spike-overlay/internal/observability"
	"spike-overlay/internal/relay"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	binary := flag.Bool("binary", false, "send MessagePack binary frames instead of JSON")
	seed := flag.Int64("seed", 0, "random seed (0 uses the clock)")
	flag.Parse()

	_ = godotenv.Load(".env")
	appConfig := config.Load()
	observability.InitLogger(appConfig.LogLevel)

	feedCfg := appConfig.Feed
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	log.Info().Msgf("🎲 Feed generator -> %s every %s (binary=%v)", feedCfg.RelayURL, feedCfg.Interval, *binary)

	client := relay.NewClient(feedCfg.RelayURL, feedCfg.ReconnectDelay)
	client.Start()
	defer client.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gen := feed.NewGenerator(*seed, *binary)
	if err := gen.Run(ctx, client, feedCfg.Interval); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("❌ Feed stopped")
	}
	log.Info().Msg("👋 Goodbye!")
}
