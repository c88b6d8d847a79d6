package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chainExplorer/internal/denylist"
	"chainExplorer/internal/metrics"
	"chainExplorer/internal/model"
	"chainExplorer/internal/retry"
	"chainExplorer/internal/storage"
)

// NodeClient is the part of the node API the ingestion engine needs.
// BlockByNumber returns ethereum.NotFound past the chain tip.
type NodeClient interface {
	BlockByNumber(ctx context.Context, number uint64) (*model.FetchedBlock, error)
	TransactionReceipt(ctx context.Context, hash string) (*model.Receipt, error)
}

// Notifier receives every resolved reorganization.
type Notifier interface {
	NotifyReorg(ctx context.Context, event model.ReorgEvent) error
}

// RunConfig holds runtime settings for the ingestion engine.
type RunConfig struct {
	// StartHeight overrides the stored height when HasStartHeight is set.
	StartHeight    uint64
	HasStartHeight bool
	PollInterval   time.Duration
	Backoff        retry.Backoff
	// ReceiptConcurrency bounds receipt fetches per block; 0 means the
	// block's transaction count.
	ReceiptConcurrency int
	// MinReorgHeight is the lowest height a reorg walk-back may reach.
	MinReorgHeight uint64
	SkipBlocks     denylist.Set
	SkipTxs        denylist.Set
}

// StepResult tells the loop what a single iteration did.
type StepResult int

const (
	StepAdvanced StepResult = iota
	StepAtTip
	StepReorged
)

func (s StepResult) String() string {
	switch s {
	case StepAdvanced:
		return "advanced"
	case StepAtTip:
		return "at_tip"
	case StepReorged:
		return "reorged"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the engine, served on /status.
type Status struct {
	Height        uint64            `json:"height"`
	LastHash      string            `json:"last_hash,omitempty"`
	AtTip         bool              `json:"at_tip"`
	Failures      int               `json:"consecutive_failures"`
	LastError     string            `json:"last_error,omitempty"`
	LastReorg     *model.ReorgEvent `json:"last_reorg,omitempty"`
	BlocksWritten uint64            `json:"blocks_written"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Runner follows the node's canonical chain and mirrors it into storage,
// rolling back stored blocks whenever the node reorganizes.
type Runner struct {
	cfg      RunConfig
	node     NodeClient
	store    storage.ChainStore
	notifier Notifier
	metrics  *metrics.Ingest
	logger   *zap.Logger

	height uint64
	last   *model.Block

	mu     sync.Mutex
	status Status
}

// Option customizes a Runner.
type Option func(*Runner)

// WithNotifier sets the reorg notifier.
func WithNotifier(n Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Ingest) Option {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, node NodeClient, store storage.ChainStore, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		cfg:    cfg,
		node:   node,
		store:  store,
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Height returns the next height the engine will fetch.
func (r *Runner) Height() uint64 {
	return r.height
}

// Status returns a copy of the current status.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := r.status
	if status.LastReorg != nil {
		event := *status.LastReorg
		status.LastReorg = &event
	}
	return status
}

// Run initializes the cursor and ingests blocks until ctx is done.
// Failures never move the cursor; the same height is retried after a backoff.
func (r *Runner) Run(ctx context.Context) error {
	if r.node == nil {
		return fmt.Errorf("node client is nil")
	}
	if r.store == nil {
		return fmt.Errorf("storage is nil")
	}

	attempt := 0
	err := retry.Do(ctx, r.cfg.Backoff, -1, func(ctx context.Context) error {
		err := r.Init(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.Error("init failed", zap.Error(err), zap.Int("attempt", attempt), zap.Duration("backoff", r.cfg.Backoff.Delay(attempt)))
			attempt++
		}
		return err
	})
	if err != nil {
		return err
	}

	attempt = 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := r.Step(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			delay := r.cfg.Backoff.Delay(attempt)
			r.logger.Error("ingest failed",
				zap.Error(err),
				zap.Uint64("height", r.height),
				zap.String("block_hash", r.lastHash()),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
			)
			r.recordFailure(err)
			attempt++
			if err := retry.Sleep(ctx, delay); err != nil {
				return err
			}
			continue
		}
		attempt = 0

		if result == StepAtTip {
			if err := retry.Sleep(ctx, r.cfg.PollInterval); err != nil {
				return err
			}
		}
	}
}

// Init positions the cursor. The most recently stored block is rolled back
// because a crash may have interrupted its writes.
func (r *Runner) Init(ctx context.Context) error {
	height := r.cfg.StartHeight
	if !r.cfg.HasStartHeight {
		stored, err := r.store.Height(ctx)
		if err != nil {
			return fmt.Errorf("get height: %w", err)
		}
		height = stored
	}

	if height > 0 {
		height--
		if _, err := r.store.PopBlocks(ctx, height); err != nil {
			return fmt.Errorf("pop blocks above %d: %w", height, err)
		}
	}

	var last *model.Block
	if height > 0 {
		block, err := r.store.BlockByNumber(ctx, height-1)
		switch {
		case err == nil:
			last = block
		case errors.Is(err, storage.ErrNotFound):
		default:
			return fmt.Errorf("get block %d: %w", height-1, err)
		}
	}

	r.height = height
	r.last = last
	r.metrics.SetHeight(height)
	r.updateStatus(func(s *Status) {
		s.Height = height
		s.LastHash = r.lastHash()
	})
	r.logger.Info("ingest start", zap.Uint64("height", height), zap.String("parent_hash", r.lastHash()))
	return nil
}

// Step processes the block at the cursor once.
func (r *Runner) Step(ctx context.Context) (StepResult, error) {
	height := r.height
	block, err := r.node.BlockByNumber(ctx, height)
	if errors.Is(err, ethereum.NotFound) {
		r.updateStatus(func(s *Status) { s.AtTip = true })
		return StepAtTip, nil
	}
	if err != nil {
		return StepAdvanced, fmt.Errorf("fetch block %d: %w", height, err)
	}

	if height > 0 && r.last != nil && !sameHash(r.last.Hash, block.ParentHash) {
		divergence := &DivergenceError{Height: height, ExpectedParent: block.ParentHash, StoredHash: r.last.Hash}
		if err := r.resolve(ctx, divergence, block); err != nil {
			return StepReorged, err
		}
		return StepReorged, nil
	}

	started := time.Now()
	txs, logs, skipped, err := r.fetchReceipts(ctx, block)
	if err != nil {
		return StepAdvanced, err
	}
	header := block.Header()
	if err := r.write(ctx, txs, logs, header); err != nil {
		return StepAdvanced, err
	}

	r.height = height + 1
	r.last = &header
	r.metrics.ObserveBlock(len(txs), len(logs), skipped, time.Since(started))
	r.metrics.SetHeight(r.height)
	r.updateStatus(func(s *Status) {
		s.Height = r.height
		s.LastHash = header.Hash
		s.AtTip = false
		s.Failures = 0
		s.LastError = ""
		s.BlocksWritten++
	})
	r.logger.Debug("block stored",
		zap.Uint64("height", height),
		zap.String("block_hash", header.Hash),
		zap.Int("transactions", len(txs)),
		zap.Int("logs", len(logs)),
	)
	return StepAdvanced, nil
}

// fetchReceipts stamps every transaction with the block time and its receipt.
// Receipts are fetched concurrently and joined before anything is written.
func (r *Runner) fetchReceipts(ctx context.Context, block *model.FetchedBlock) ([]model.Transaction, []model.Log, int, error) {
	txs := make([]model.Transaction, len(block.Transactions))
	skipBlock := r.cfg.SkipBlocks.Contains(block.Hash)

	group, groupCtx := errgroup.WithContext(ctx)
	limit := r.cfg.ReceiptConcurrency
	if limit <= 0 || limit > len(txs) {
		limit = len(txs)
	}
	if limit > 0 {
		group.SetLimit(limit)
	}

	skipped := 0
	for i := range block.Transactions {
		txs[i] = block.Transactions[i]
		txs[i].ConfirmedAt = block.Timestamp
		if skipBlock || r.cfg.SkipTxs.Contains(txs[i].Hash) {
			skipped++
			r.logger.Warn("skip receipt",
				zap.Uint64("height", block.Number),
				zap.String("block_hash", block.Hash),
				zap.String("tx_hash", txs[i].Hash),
			)
			continue
		}
		i := i
		group.Go(func() error {
			receipt, err := r.node.TransactionReceipt(groupCtx, txs[i].Hash)
			if err != nil {
				return fmt.Errorf("fetch receipt %s: %w", txs[i].Hash, err)
			}
			txs[i].Receipt = receipt
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, 0, err
	}

	var logs []model.Log
	for _, tx := range txs {
		if tx.Receipt != nil {
			logs = append(logs, tx.Receipt.Logs...)
		}
	}
	return txs, logs, skipped, nil
}

// write persists transactions, then logs, then the block. Storage is not
// transactional across the three; Init rolls back a partially written tip.
func (r *Runner) write(ctx context.Context, txs []model.Transaction, logs []model.Log, header model.Block) error {
	if len(txs) > 0 {
		if err := r.store.StoreTransactions(ctx, txs); err != nil {
			return fmt.Errorf("store transactions of block %d: %w", header.Number, err)
		}
	}
	if len(logs) > 0 {
		if err := r.store.StoreLogs(ctx, logs); err != nil {
			return fmt.Errorf("store logs of block %d: %w", header.Number, err)
		}
	}
	if err := r.store.StoreBlocks(ctx, []model.Block{header}); err != nil {
		return fmt.Errorf("store block %d: %w", header.Number, err)
	}
	return nil
}

func (r *Runner) lastHash() string {
	if r.last == nil {
		return ""
	}
	return r.last.Hash
}

func (r *Runner) recordFailure(err error) {
	r.metrics.ObserveFailure()
	r.updateStatus(func(s *Status) {
		s.Failures++
		s.LastError = err.Error()
	})
}

func (r *Runner) updateStatus(update func(*Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	update(&r.status)
	r.status.UpdatedAt = time.Now().UTC()
}

func sameHash(a, b string) bool {
	return strings.EqualFold(a, b)
}
