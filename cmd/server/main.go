// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/meshguard/internal/config"
	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/supervisor"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load("")
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.Logging.ToLogging())

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("auth_mode", string(cfg.Auth.Mode)).
		Bool("mqtt", cfg.MQTT.Enabled).
		Bool("nats", cfg.NATS.Enabled).
		Bool("spool", cfg.Spool.Enabled).
		Msg("Starting Meshguard")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Meshguard stopped with error")
	}
	logging.Info().Msg("Meshguard stopped gracefully")
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if path := config.FindConfigFile(); path != "" {
		reloader := newZoneReloader(path, a.zones)
		if err := config.WatchConfigFile(path, reloader.reload); err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Config file watch unavailable, zones are static")
		}
	}

	// Bridges zerolog to slog for sutureslog.
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), cfg.Supervisor)
	if err != nil {
		return err
	}
	a.addServices(tree)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// The channel receives exactly one value and is never closed.
	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}

	var runErr error
	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		runErr = treeErr
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return runErr
}
