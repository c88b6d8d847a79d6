package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chainExplorer/internal/config"
	"chainExplorer/internal/decoder"
	"chainExplorer/internal/enrich"
	"chainExplorer/internal/metrics"
)

func newDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode stored transactions sent to registered contracts",
		RunE:  runDecode,
	}

	flags := cmd.Flags()
	flags.Int("batch-size", 1000, "transactions per cycle")
	flags.Duration("poll-interval", 10*time.Second, "wait after a partial batch")
	flags.Duration("retry-after", 5*time.Minute, "cooldown of a transaction that failed to decode")
	flags.StringSlice("skip-txs", nil, "transaction hashes that are never decoded")
	flags.Bool("once", false, "stop when a cycle finds nothing to decode")
	flags.String("metrics-addr", "", "serve /metrics, /healthz and /status on this address")
	flags.String("redis-addr", "", "Redis address of the single-writer lease")
	flags.Duration("lock-ttl", 30*time.Second, "lease expiry")

	return cmd
}

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	skipTxs, err := cfg.Denylist()
	if err != nil {
		return err
	}
	contracts, err := cfg.Registry()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Common, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	promReg := newPrometheusRegistry()
	engine := enrich.NewEngine(enrich.Config{
		Contracts:    contracts.Addresses(),
		BatchSize:    cfg.BatchSize,
		PollInterval: cfg.PollInterval,
		RetryAfter:   cfg.RetryAfter,
		SkipTxs:      skipTxs,
		Once:         cfg.Once,
	}, store, decoder.New(contracts), metrics.NewDecode(promReg), logger)

	logger.Info("decode start",
		zap.String("store", cfg.Store),
		zap.Int("contracts", contracts.Len()),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Duration("retry_after", cfg.RetryAfter),
		zap.Int("skip_txs", skipTxs.Len()),
		zap.Bool("once", cfg.Once),
		zap.Bool("dry_run", cfg.DryRun),
	)

	return runEngine(ctx, cfg.Common, "decode", promReg, func() any { return engine.Status() }, engine.Run, logger)
}
