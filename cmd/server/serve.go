package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mcpauth/internal/platform/config"
	"mcpauth/internal/platform/httpserver"
	"mcpauth/internal/platform/logger"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Minute
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the authorization broker",
		Long: `Run the HTTP server. Settings come from the environment; --config overlays
non-secret settings from a YAML file. Secrets are only read from the
environment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", os.Getenv("MCPAUTH_CONFIG"), "path to a YAML config file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg := config.FromEnv()
	if err := config.LoadFile(configPath, &cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		log.ErrorContext(ctx, "startup failed", "error", err)
		return err
	}
	defer a.close()

	srv := httpserver.New(cfg.Addr, a.router)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.InfoContext(gctx, "starting mcpauth", "addr", cfg.Addr, "public_url", cfg.PublicURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.InfoContext(shutdownCtx, "shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	for _, e := range a.expirers {
		g.Go(func() error {
			runSweeper(gctx, e, sweepInterval, log)
			return nil
		})
	}

	return g.Wait()
}
