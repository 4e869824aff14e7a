// Package main provides the catalog engine API server entrypoint.
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

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/yokharian/catalog-engine/internal/config"
	"github.com/yokharian/catalog-engine/internal/observability"
	"github.com/yokharian/catalog-engine/pkg/catalog"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	engine, err := catalog.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	logger := engine.Logger()
	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Driver).
		Str("cache", cfg.Cache.Driver).
		Msg("Starting catalog API")

	router := NewRouter(logger, engine, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		return warmUniverses(groupCtx, logger, engine, cfg.Search.UniverseCacheTTL)
	})

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Graceful shutdown failed")
			return srv.Close()
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error().Err(err).Msg("Server error")
		os.Exit(1)
	}

	logger.Info().Msg("Server stopped")
}

// warmUniverses re-reads the make and model universes on an interval so the
// first search after an ingest does not pay the store round trip.
func warmUniverses(ctx context.Context, logger *observability.Logger, engine *catalog.Engine, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := engine.Makes(ctx); err != nil {
				logger.Warn().Err(err).Msg("Universe warmup failed")
				continue
			}
			if _, err := engine.Models(ctx, ""); err != nil {
				logger.Warn().Err(err).Msg("Universe warmup failed")
			}
		}
	}
}
