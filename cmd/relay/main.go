package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spike-overlay/internal/api"
	"spike-overlay/internal/config"
	"spike-overlay/internal/observability"
	"spike-overlay/internal/relay"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	envErr := godotenv.Load(".env")

	appConfig := config.Load()
	observability.InitLogger(appConfig.LogLevel)
	if envErr != nil {
		log.Info().Msg("💡 No .env file found, using environment variables only")
	}

	relayCfg := appConfig.Relay
	log.Info().Msg("📡 ================================")
	log.Info().Msg("📡  STATE-FEED RELAY")
	log.Info().Msg("📡 ================================")
	log.Info().Msgf("🛡️ Limits: %d peers, %s write timeout, %.0f msg/s per peer",
		relayCfg.MaxPeers, relayCfg.WriteTimeout, relayCfg.PeerRate)

	if err := observability.StartDebugServer(config.DebugFromEnv("127.0.0.1:6061")); err != nil {
		log.Warn().Err(err).Msg("⚠️ Debug server disabled")
	}

	hub := relay.NewHub(relayCfg)
	server := api.NewRelayServer(relayCfg.ListenAddr, hub)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("❌ Relay server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Msgf("✅ Relay ready on ws://%s/ Press Ctrl+C to stop.", relayCfg.ListenAddr)
	<-quit

	log.Info().Msg("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("⚠️ Shutdown incomplete")
	}
	hub.Close()
	log.Info().Msg("👋 Goodbye!")
}
