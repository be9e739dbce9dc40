// Package main implements the CarData Bridge entry point.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cardata-bridge/cdb/internal/api"
	"github.com/cardata-bridge/cdb/internal/auth"
	"github.com/cardata-bridge/cdb/internal/config"
	"github.com/cardata-bridge/cdb/internal/coordinator"
	"github.com/cardata-bridge/cdb/internal/dispatcher"
	"github.com/cardata-bridge/cdb/internal/logging"
	"github.com/cardata-bridge/cdb/internal/platform"
	"github.com/cardata-bridge/cdb/internal/source"
	"github.com/cardata-bridge/cdb/internal/telemetry"
	"github.com/cardata-bridge/cdb/internal/tracker"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load("")
	if err != nil {
		slog.Error("failed to load configuration", logging.Err(err))
		os.Exit(1)
	}

	logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		slog.Error("failed to set up logging", logging.Err(err))
		os.Exit(1)
	}
	defer func() { _ = logCloser.Close() }()

	slog.Info("starting CarData bridge", slog.String("version", version))

	disp := dispatcher.New()
	coord := coordinator.New(disp)
	hub := telemetry.NewHub(cfg.Telemetry)
	registry := platform.NewRegistry(hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// With the simulated source, seed one tick before setup so the
	// vehicle enumeration finds coordinate data.
	var sim *source.SimSource
	if cfg.Source.Mode == "sim" {
		sim = source.NewSim(coord, cfg.Source)
		sim.Tick()
	}

	if err := tracker.Setup(coord, registry); err != nil {
		slog.Error("tracker setup failed", logging.Err(err))
		os.Exit(1)
	}
	slog.Info("tracker platform ready", slog.Int("vehicles", registry.Count()))

	if sim != nil {
		go sim.Run(ctx)
	}

	var authMW *auth.Middleware
	if cfg.Auth.Enabled {
		verifier, err := auth.NewVerifier(cfg.Auth)
		if err != nil {
			slog.Error("failed to create token verifier", logging.Err(err))
			os.Exit(1)
		}
		authMW = auth.NewMiddleware(verifier)
		slog.Info("API authentication enabled", slog.String("algorithm", cfg.Auth.Algorithm))
	}

	server := api.NewServer(hub, registry, authMW, cfg.Network)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", slog.String("addr", cfg.Network.Addr))
		if err := server.Start(); err != nil {
			serverErr <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		slog.Error("HTTP server failed", logging.Err(err))
	}

	cancel()
	hub.Stop()
	slog.Info("telemetry hub stopped")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		slog.Error("error stopping HTTP server", logging.Err(err))
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("CarData bridge shutdown complete")
}
