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

	"github.com/eternalApril/moonkv/internal/config"
	"github.com/eternalApril/moonkv/internal/engine"
	"github.com/eternalApril/moonkv/internal/logger"
	"github.com/eternalApril/moonkv/internal/metrics"
	"github.com/eternalApril/moonkv/internal/storage"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func main() {
	app := &cli.App{
		Name:  "moonkv",
		Usage: "in-memory keyspace engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "directory containing config.yaml",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override log.level (debug, info, warn, error)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	log.Info("moonkv starting",
		zap.Uint("shards", cfg.Storage.Shards),
		zap.Bool("metrics", cfg.Metrics.Enabled),
	)

	db, err := storage.NewShardedMapStorage(cfg.Storage.Shards)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}

	var opts []engine.Option
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(db)
		opts = append(opts, engine.WithObserver(m))
	}

	eng, err := engine.NewEngine(db, cfg, log, opts...)
	if err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if m != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		go func() {
			log.Info("metrics listening", zap.String("address", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", zap.Error(err))
				stop()
			}
		}()
	}

	<-ctx.Done()

	log.Info("Shutting down...")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics shutdown timed out, forcing exit", zap.Duration("timeout", shutdownTimeout))
		}
	}

	eng.Shutdown()

	log.Info("moonkv stopped")
	return nil
}
