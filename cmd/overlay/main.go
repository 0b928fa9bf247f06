package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"spike-overlay/internal/api"
	"spike-overlay/internal/assets"
	"spike-overlay/internal/config"
	"spike-overlay/internal/match"
	"spike-overlay/internal/observability"
	"spike-overlay/internal/overlay"
	"spike-overlay/internal/relay"
	"spike-overlay/internal/render"
	"spike-overlay/internal/ui"

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

	overlayCfg := appConfig.Overlay
	log.Info().Msg("🎯 ================================")
	log.Info().Msg("🎯  SPECTATOR OVERLAY")
	log.Info().Msg("🎯 ================================")
	log.Info().Msgf("🎯 Relay: %s, canvas %dpx, map %s", overlayCfg.RelayURL, overlayCfg.CanvasSize, overlayCfg.DefaultMap)

	if err := observability.StartDebugServer(config.DebugFromEnv("127.0.0.1:6060")); err != nil {
		log.Warn().Err(err).Msg("⚠️ Debug server disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Missing assets are reported per draw, so a partial table is not fatal
	table := assets.NewTable()
	preloadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	loaded, err := assets.Preload(preloadCtx, overlayCfg.AssetBaseURL, table)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msgf("⚠️ Asset preload interrupted after %d images", loaded)
	}
	if missing := table.Missing(); len(missing) > 0 {
		log.Warn().Msgf("⚠️ %d assets unresolved", len(missing))
	}

	pipeline, err := render.NewPipeline(table, render.Options{CanvasSize: overlayCfg.CanvasSize})
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Render pipeline init failed")
	}

	controls := ui.NewControls(overlayCfg.DefaultMap)
	viewer := overlay.NewViewer(match.NewStore(match.DefaultPrevailCount), controls, ui.NewQueue(ui.DefaultQueueSize), pipeline)

	client := relay.NewClient(overlayCfg.RelayURL, overlayCfg.ReconnectDelay)
	client.OnMessage(viewer.Deliver)
	client.OnDisconnect(func() {
		log.Warn().Msg("🔌 Relay connection lost, keeping last frame")
	})

	server := api.NewOverlayServer(overlayCfg.HTTPAddr, viewer)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("❌ Overlay server failed")
		}
	}()

	client.Start()
	log.Info().Msgf("✅ Overlay ready: http://localhost%s/frame.png Press Ctrl+C to stop.", overlayCfg.HTTPAddr)

	if err := viewer.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("❌ Overlay loop failed")
	}

	log.Info().Msg("🛑 Shutting down...")
	client.Stop()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("⚠️ Shutdown incomplete")
	}
	log.Info().Msg("👋 Goodbye!")
}
