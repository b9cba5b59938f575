// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FleetPass Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/fleetpass/fleetpass/internal/auth"
	authpg "github.com/fleetpass/fleetpass/internal/auth/postgres"
	"github.com/fleetpass/fleetpass/internal/config"
	"github.com/fleetpass/fleetpass/internal/logging"
	"github.com/fleetpass/fleetpass/internal/observability"
	"github.com/fleetpass/fleetpass/internal/store"
	"github.com/fleetpass/fleetpass/internal/web"
)

// shutdownTimeout bounds graceful shutdown of the HTTP servers.
const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication service",
		Long: `Start the FleetPass authentication service: the JSON API, the
observability endpoints, and the background session sweeper.`,
		RunE: runServe,
	}

	// Flag names double as config file keys, and flag defaults mirror the
	// config defaults so an unset flag never masks a file value. The signing
	// secret deliberately has no flag so it never shows up in process listings.
	def := config.Default()
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL")
	cmd.Flags().String("listen-addr", def.ListenAddr, "API listen address")
	cmd.Flags().String("observability-addr", def.ObservabilityAddr, "metrics/health listen address")
	cmd.Flags().Duration("session-ttl", def.SessionTTL, "session lifetime")
	cmd.Flags().Int("bcrypt-cost", def.BcryptCost, "bcrypt hashing cost")
	cmd.Flags().Duration("sweep-interval", def.SweepInterval, "expired session sweep interval")
	cmd.Flags().String("log-format", def.LogFormat, "log format (json or text)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.SetDefault("fleetpass", version, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Schema is applied at startup so a fresh database just works.
	migrator, err := store.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil {
		return err
	}
	if err := migrator.Close(); err != nil {
		slog.Warn("failed to close migrator", "error", err)
	}

	users := authpg.NewUserRepository(pool)
	sessions := authpg.NewSessionRepository(pool)
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	codec, err := auth.NewTokenCodec([]byte(cfg.SigningSecret))
	if err != nil {
		return err
	}

	authSvc, err := auth.NewService(users, sessions, hasher, codec)
	if err != nil {
		return err
	}
	authSvc.SetSessionTTL(cfg.SessionTTL)

	accounts, err := auth.NewAccountService(users, hasher,
		auth.NewPasswordGenerator(cfg.ResetPasswordLength, cfg.ResetPasswordCharset))
	if err != nil {
		return err
	}

	obsServer := observability.NewServer(cfg.ObservabilityAddr, func() bool {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pool.Ping(pingCtx) == nil
	})
	obsErrCh, err := obsServer.Start()
	if err != nil {
		return err
	}

	metrics := obsServer.Metrics()
	sweeper, err := auth.NewSweeper(sessions, cfg.SweepInterval, slog.Default(), func(count int64) {
		metrics.SessionsSwept.Add(float64(count))
	})
	if err != nil {
		return err
	}
	go sweeper.Run(ctx)

	apiServer, err := web.NewServer(cfg.ListenAddr, authSvc, accounts, metrics)
	if err != nil {
		return err
	}
	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopServer(obsServer.Stop)
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-apiErrCh:
		if err != nil {
			runErr = oops.With("component", "api").Wrap(err)
		}
	case err := <-obsErrCh:
		if err != nil {
			runErr = oops.With("component", "observability").Wrap(err)
		}
	}

	stopServer(apiServer.Stop)
	stopServer(obsServer.Stop)

	return runErr
}

// stopServer runs a Stop func with a bounded shutdown context.
func stopServer(stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
