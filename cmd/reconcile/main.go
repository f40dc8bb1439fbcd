package main

import (
	"context"
	"fmt"
	"os"

	"github.com/lomami/reconcile/internal/cache"
	"github.com/lomami/reconcile/internal/config"
	"github.com/lomami/reconcile/internal/csvio"
	"github.com/lomami/reconcile/internal/engine"
	"github.com/lomami/reconcile/internal/logging"
	"github.com/lomami/reconcile/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: reconcile <input.csv>")
		os.Exit(2)
	}
	inputPath := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()

	disputes, err := cache.New(cfg.DisputeCacheSize)
	if err != nil {
		logger.Error("build dispute cache", "error", err)
		os.Exit(1)
	}

	input, err := os.Open(inputPath)
	if err != nil {
		logger.Error("open input", "path", inputPath, "error", err)
		os.Exit(1)
	}
	defer input.Close()

	eng := engine.New(st, disputes, engine.Options{
		RejectLockedDisputes: cfg.RejectLockedDisputes(),
	}, logger)

	if _, err := eng.Run(ctx, csvio.NewReader(input)); err != nil {
		logger.Error("run aborted", "error", err)
		os.Exit(1)
	}

	if err := csvio.NewWriter(os.Stdout).WriteAccounts(eng.Accounts()); err != nil {
		logger.Error("write report", "error", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return store.NewMemory(), nil
	case config.StoreBolt:
		return store.NewBolt(cfg.StorePath)
	case config.StoreRedis:
		return store.NewRedis(ctx, cfg.RedisURL)
	case config.StorePostgres:
		return store.NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
