package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/beaconcast/beacon/internal/config"
	"github.com/beaconcast/beacon/internal/events"
	"github.com/beaconcast/beacon/internal/logging"
	"github.com/beaconcast/beacon/internal/server"
	"github.com/beaconcast/beacon/internal/signaling"
	"github.com/beaconcast/beacon/internal/version"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := logging.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(cfg.Log)
	logger := logging.L()
	gin.SetMode(cfg.Server.Mode)

	logger.Info().
		Str("version", version.Version).
		Str("addr", cfg.Server.Addr()).
		Msg("starting beacon relay")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Lifecycle feed, optional
	dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
	publisher := events.New(dialCtx, cfg.Events, logger)
	dialCancel()
	defer publisher.Close()

	// 3. Create the hub and run its event lane
	hub := signaling.NewHub(
		signaling.WithGracePeriod(cfg.Relay.GracePeriod),
		signaling.WithPublisher(publisher),
		signaling.WithLogger(logger),
	)
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	// 4. Serve HTTP
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           server.NewRouter(hub, cfg.WebSocket, logger),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		ev := logger.Info().Str("addr", srv.Addr).Str("local", cfg.Server.LocalURL())
		if network := cfg.Server.NetworkURL(); network != "" {
			ev = ev.Str("network", network)
		}
		ev.Msg("relay listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// 5. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down beacon relay")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	// Stopping the hub closes every websocket with a close frame.
	cancel()
	<-hubDone

	logger.Info().Msg("beacon relay stopped")
}
