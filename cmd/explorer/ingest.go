package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chainExplorer/internal/chain"
	"chainExplorer/internal/config"
	"chainExplorer/internal/indexer"
	"chainExplorer/internal/metrics"
	"chainExplorer/internal/notify"
)

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Follow the chain and store blocks, transactions and logs",
		RunE:  runIngest,
	}

	flags := cmd.Flags()
	flags.String("rpc", "", "node RPC URL")
	flags.Uint64("start-height", 0, "height to resume from instead of the stored height")
	flags.Duration("poll-interval", time.Second, "wait at the chain tip")
	flags.Duration("retry-initial", time.Second, "delay after the first failure")
	flags.Duration("retry-max", 30*time.Second, "maximum delay between retries")
	flags.Float64("retry-multiplier", 1, "delay growth per consecutive failure (1 keeps it fixed)")
	flags.Int("receipt-concurrency", 0, "parallel receipt fetches per block (0 means one per transaction)")
	flags.Uint64("min-reorg-height", 0, "lowest height a reorg may roll back to")
	flags.StringSlice("skip-blocks", nil, "block hashes whose receipts are never fetched")
	flags.StringSlice("skip-txs", nil, "transaction hashes whose receipts are never fetched")
	flags.String("metrics-addr", "", "serve /metrics, /healthz and /status on this address")
	flags.String("redis-addr", "", "Redis address of the single-writer lease")
	flags.Duration("lock-ttl", 30*time.Second, "lease expiry")
	flags.StringSlice("kafka-brokers", nil, "Kafka brokers receiving reorg events")
	flags.String("kafka-topic", notify.DefaultTopic, "Kafka topic of reorg events")
	flags.String("reorg-log", "", "append reorg events to this JSONL file")

	return cmd
}

func runIngest(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	skipBlocks, skipTxs, err := cfg.Denylists()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	store, err := openStore(ctx, cfg.Common, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	promReg := newPrometheusRegistry()
	opts := []indexer.Option{indexer.WithMetrics(metrics.NewIngest(promReg))}
	var notifiers notify.Multi
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := notify.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			return err
		}
		defer kafka.Close()
		notifiers = append(notifiers, kafka)
	}
	if cfg.ReorgLog != "" {
		notifiers = append(notifiers, notify.NewJSONL(cfg.ReorgLog))
	}
	if len(notifiers) > 0 {
		opts = append(opts, indexer.WithNotifier(notifiers))
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		StartHeight:        cfg.StartHeight,
		HasStartHeight:     cfg.HasStartHeight,
		PollInterval:       cfg.PollInterval,
		Backoff:            cfg.Backoff(),
		ReceiptConcurrency: cfg.ReceiptConcurrency,
		MinReorgHeight:     cfg.MinReorgHeight,
		SkipBlocks:         skipBlocks,
		SkipTxs:            skipTxs,
	}, chainClient, store, logger, opts...)

	logger.Info("ingest start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("store", cfg.Store),
		zap.Bool("start_override", cfg.HasStartHeight),
		zap.Uint64("start_height", cfg.StartHeight),
		zap.Uint64("min_reorg_height", cfg.MinReorgHeight),
		zap.Int("skip_blocks", skipBlocks.Len()),
		zap.Int("skip_txs", skipTxs.Len()),
		zap.Bool("dry_run", cfg.DryRun),
	)

	return runEngine(ctx, cfg.Common, "ingest", promReg, func() any { return runner.Status() }, runner.Run, logger)
}
