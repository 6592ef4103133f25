// Package main is the entry point for the visit counter API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/skushagra-sst/visit-counter/internal/config"
	"github.com/skushagra-sst/visit-counter/internal/counter"
	"github.com/skushagra-sst/visit-counter/internal/server"
	"github.com/skushagra-sst/visit-counter/internal/shard"
	"github.com/skushagra-sst/visit-counter/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stdout, cfg.App.LogLevel)
	log = log.With("service", "visit-counter", "env", cfg.App.Env)

	log.Info("connecting to counter shards",
		"shards", len(cfg.Shards.URLs),
		"virtual_nodes", cfg.Shards.VirtualNodes,
	)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ReadTimeout)
	pool, err := shard.NewPool(ctx, cfg.Shards.URLs, cfg.Shards.VirtualNodes, cfg.Shards.Timeout, log)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to initialize shard pool: %w", err)
	}
	defer func() {
		if err := pool.Close(); err != nil {
			log.Error("failed to close shard pool", "error", err.Error())
		}
	}()
	log.Info("shard pool ready", "reachable_shards", pool.ShardCount())

	engine := counter.NewEngine(counter.Config{
		FlushInterval: cfg.Counter.FlushInterval,
		CacheTTL:      cfg.Counter.CacheTTL,
	}, pool, log)
	engine.Start()
	log.Info("started background buffer flusher",
		"flush_interval", cfg.Counter.FlushInterval.String(),
		"cache_ttl", cfg.Counter.CacheTTL.String(),
	)

	srv := server.New(cfg, engine, log)
	srv.HealthHandler().AddCheck("shards", func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Shards.Timeout)
		defer cancel()
		return pool.Ping(ctx) == nil
	})

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		engine.Stop()
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			engine.Stop()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		// Final flush after the listener is closed so every accepted visit
		// reaches its shard.
		engine.Stop()
		log.Info("server stopped gracefully")
	}

	return nil
}
