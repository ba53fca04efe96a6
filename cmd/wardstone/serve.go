// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wardstone/wardstone/internal/config"
	"github.com/wardstone/wardstone/internal/event"
	"github.com/wardstone/wardstone/internal/logging"
	"github.com/wardstone/wardstone/internal/observability"
	"github.com/wardstone/wardstone/internal/proxy"
)

const shutdownTimeout = 5 * time.Second

// Default values for serve command flags.
const (
	defaultBind        = ":25565"
	defaultMetricsAddr = "127.0.0.1:9100"
	defaultLogFormat   = "json"
)

// newServeCmd creates the serve subcommand with all flags configured.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the proxy",
		Long: `Start the proxy: listen for game connections, complete logins
and route players to backend servers.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd)
		},
	}

	// Flag defaults mirror the configuration defaults; an unchanged flag
	// never overrides a value from the config file.
	cmd.Flags().String("bind", defaultBind, "game listen address")
	cmd.Flags().String("metrics-addr", defaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log-format", defaultLogFormat, "log format (json or text)")

	return cmd
}

// loadConfig builds the configuration from the global --config flag and
// the command's own flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(configFile, cmd.Flags())
}

// runServe starts the proxy process.
func runServe(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logging.SetDefault("wardstone", version, cfg.LogFormat)
	logger := slog.Default()

	logger.Info("starting proxy",
		"bind", cfg.Bind,
		"online_mode", cfg.OnlineMode,
		"forwarding", string(cfg.Forwarding),
		"servers", len(cfg.Servers),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := event.NewManager(logger)

	var (
		obsServer *observability.Server
		metrics   *observability.Metrics
		ready     atomic.Bool
	)
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr, ready.Load)
		if _, err := obsServer.Start(); err != nil {
			return err
		}
		metrics = obsServer.Metrics()
	}

	srv, err := proxy.New(cfg, logger, events, metrics)
	if err != nil {
		if obsServer != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			_ = obsServer.Stop(shutdownCtx)
		}
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run(ctx) }()

	// Readiness flips once the listener is accepting.
	go func() {
		for srv.Addr() == "" {
			select {
			case <-ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
		}
		ready.Store(true)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
		<-runErr
	case err = <-runErr:
		if err != nil {
			logger.Error("proxy stopped with error", "error", err)
		}
	case <-ctx.Done():
		<-runErr
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if obsServer != nil {
		if stopErr := obsServer.Stop(shutdownCtx); stopErr != nil {
			logger.Warn("error stopping observability server", "error", stopErr)
		}
	}

	logger.Info("shutdown complete")
	return err
}
