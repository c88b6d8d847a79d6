package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"chainExplorer/internal/config"
	"chainExplorer/internal/lock"
	"chainExplorer/internal/metrics"
	"chainExplorer/internal/storage"
	"chainExplorer/internal/storage/boltdb"
	"chainExplorer/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "explorer",
		Short:        "EVM chain explorer: ingestion, decoding and queries",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("store", config.StorePostgres, "storage backend (postgres, bolt)")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.String("bolt-path", "./data/explorer.db", "bbolt database path")
	flags.Bool("dry-run", false, "log storage writes instead of performing them")

	root.AddCommand(
		newIngestCmd(),
		newDecodeCmd(),
		newConfigCmd(),
		newPopBlocksCmd(),
		newBlockCmd(),
		newVerifyBlocksCmd(),
		newTokenTxsCmd(),
		newListContractUsersCmd(),
		newListSwapsCmd(),
		newResetDetailsCmd(),
		newContractInfoCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// openStore opens the configured backend, wrapped for dry runs.
func openStore(ctx context.Context, cfg config.Common, logger *zap.Logger) (storage.Store, error) {
	var store storage.Store
	switch cfg.Store {
	case config.StorePostgres:
		pg, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		store = pg
	case config.StoreBolt:
		db, err := boltdb.Open(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("open bolt: %w", err)
		}
		store = db
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	if cfg.DryRun {
		logger.Warn("dry run: storage writes are skipped")
		return storage.NewDryRun(store, logger), nil
	}
	return store, nil
}

func newPrometheusRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runEngine runs an engine loop next to the optional metrics server. With a
// Redis address the loop only runs while this process holds the lease named
// name. A stop signal is a clean exit.
func runEngine(ctx context.Context, cfg config.Common, name string, gatherer prometheus.Gatherer, status metrics.StatusFunc, run func(context.Context) error, logger *zap.Logger) error {
	group, groupCtx := errgroup.WithContext(ctx)
	engineCtx, cancel := context.WithCancel(groupCtx)
	defer cancel()

	if cfg.MetricsAddr != "" {
		server := metrics.NewServer(cfg.MetricsAddr, gatherer, status, logger)
		group.Go(func() error { return server.Run(engineCtx) })
	}

	group.Go(func() error {
		defer cancel()
		if cfg.RedisAddr == "" {
			return run(engineCtx)
		}
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		lease := lock.NewLease(client, name, cfg.LockTTL, logger)
		return lease.Hold(engineCtx, run)
	})

	err := group.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		logger.Info("shutdown", zap.String("engine", name))
		return nil
	}
	return err
}
