// Package enrich runs the decoding loop: it selects undecoded transactions
// sent to registered contracts, decodes them and writes their details.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"chainExplorer/internal/decoder"
	"chainExplorer/internal/denylist"
	"chainExplorer/internal/metrics"
	"chainExplorer/internal/model"
	"chainExplorer/internal/retry"
	"chainExplorer/internal/storage"
)

// Result labels used for metrics.
const (
	resultDecoded   = "decoded"
	resultFailed    = "failed"
	resultSkipped   = "skipped"
	resultUnwritten = "unwritten"
)

// Decoder turns a transaction into its details.
type Decoder interface {
	Details(tx *model.Transaction) (*model.TransactionDetails, error)
}

// Config holds runtime settings for the decoding loop.
type Config struct {
	// Contracts are the recipient addresses worth decoding.
	Contracts    []string
	BatchSize    int
	PollInterval time.Duration
	// RetryAfter keeps a failed transaction out of selection for a while so
	// newer work is not starved by permanent failures.
	RetryAfter time.Duration
	SkipTxs    denylist.Set
	// Once stops the loop after the first cycle that selects nothing.
	Once bool
}

// CycleResult counts what one cycle did.
type CycleResult struct {
	Selected  int `json:"selected"`
	Decoded   int `json:"decoded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Unwritten int `json:"unwritten"`
}

// Status is a snapshot of the engine, served on /status.
type Status struct {
	Cycles      uint64      `json:"cycles"`
	Decoded     uint64      `json:"decoded"`
	Failed      uint64      `json:"failed"`
	CoolingDown int         `json:"cooling_down"`
	LastCycle   CycleResult `json:"last_cycle"`
	LastError   string      `json:"last_error,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Engine is the decoding loop.
type Engine struct {
	cfg     Config
	store   storage.DetailsStore
	decoder Decoder
	logger  *zap.Logger
	metrics *metrics.Decode
	now     func() time.Time

	// cooldown maps a failed transaction hash to the time it may be retried.
	cooldown map[string]time.Time

	mu     sync.Mutex
	status Status
}

// NewEngine builds an Engine. m may be nil.
func NewEngine(cfg Config, store storage.DetailsStore, dec Decoder, m *metrics.Decode, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	return &Engine{
		cfg:      cfg,
		store:    store,
		decoder:  dec,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		cooldown: make(map[string]time.Time),
	}
}

// Status returns a copy of the current status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Run repeats cycles until ctx is done. A full batch is followed by an
// immediate requery; a partial one waits for the poll interval.
func (e *Engine) Run(ctx context.Context) error {
	if e.store == nil {
		return fmt.Errorf("storage is nil")
	}
	if e.decoder == nil {
		return fmt.Errorf("decoder is nil")
	}
	if len(e.cfg.Contracts) == 0 {
		return fmt.Errorf("at least one contract is required")
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := e.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Error("decode cycle failed", zap.Error(err), zap.Duration("backoff", e.cfg.PollInterval))
			if err := retry.Sleep(ctx, e.cfg.PollInterval); err != nil {
				return err
			}
			continue
		}

		switch {
		case result.Selected == 0 && e.cfg.Once:
			e.logger.Info("nothing left to decode")
			return nil
		case result.Selected >= e.cfg.BatchSize, e.cfg.Once:
			continue
		}
		if err := retry.Sleep(ctx, e.cfg.PollInterval); err != nil {
			return err
		}
	}
}

// RunOnce selects one batch and decodes it. Decode failures stay local to
// their transaction; a storage failure aborts the cycle.
func (e *Engine) RunOnce(ctx context.Context) (CycleResult, error) {
	started := e.now()
	exclude := e.excluded(started)

	txs, err := e.store.PendingTransactions(ctx, storage.PendingQuery{
		Contracts: e.cfg.Contracts,
		Exclude:   exclude,
		Limit:     e.cfg.BatchSize,
	})
	if err != nil {
		e.recordError(err)
		return CycleResult{}, fmt.Errorf("select pending transactions: %w", err)
	}

	result := CycleResult{Selected: len(txs)}
	for i := range txs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		tx := &txs[i]
		if e.cfg.SkipTxs.Contains(tx.Hash) {
			result.Skipped++
			e.metrics.ObserveResult(resultSkipped)
			continue
		}

		details, err := e.decoder.Details(tx)
		if err != nil {
			result.Failed++
			e.metrics.ObserveResult(resultFailed)
			e.coolDown(tx.Hash, started)
			e.logFailure(tx, err)
			continue
		}

		written, err := e.store.SetDetails(ctx, tx.Hash, details)
		if err != nil {
			e.recordError(err)
			return result, fmt.Errorf("set details %s: %w", tx.Hash, err)
		}
		if !written {
			result.Unwritten++
			e.metrics.ObserveResult(resultUnwritten)
			e.coolDown(tx.Hash, started)
			continue
		}
		result.Decoded++
		e.metrics.ObserveResult(resultDecoded)
	}

	e.metrics.ObserveCycle(result.Selected, len(e.cooldown), e.now().Sub(started))
	e.mu.Lock()
	e.status.Cycles++
	e.status.Decoded += uint64(result.Decoded)
	e.status.Failed += uint64(result.Failed)
	e.status.CoolingDown = len(e.cooldown)
	e.status.LastCycle = result
	e.status.LastError = ""
	e.status.UpdatedAt = e.now().UTC()
	e.mu.Unlock()

	if result.Selected > 0 {
		e.logger.Info("decode cycle",
			zap.Int("selected", result.Selected),
			zap.Int("decoded", result.Decoded),
			zap.Int("failed", result.Failed),
			zap.Int("unwritten", result.Unwritten),
			zap.Int("cooling_down", len(e.cooldown)),
		)
	}
	return result, nil
}

// excluded prunes expired cooldowns and returns the hashes to leave out.
func (e *Engine) excluded(now time.Time) []string {
	exclude := e.cfg.SkipTxs.Strings()
	for hash, until := range e.cooldown {
		if !now.Before(until) {
			delete(e.cooldown, hash)
			continue
		}
		exclude = append(exclude, hash)
	}
	return exclude
}

func (e *Engine) coolDown(hash string, now time.Time) {
	e.cooldown[hash] = now.Add(e.cfg.RetryAfter)
}

func (e *Engine) logFailure(tx *model.Transaction, err error) {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("tx_hash", tx.Hash),
		zap.String("contract", tx.To),
		zap.Uint64("height", tx.BlockNumber),
	}
	if errors.Is(err, decoder.ErrUnknownContract) {
		e.logger.Warn("contract not registered", fields...)
		return
	}
	e.logger.Warn("decode failed", fields...)
}

func (e *Engine) recordError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.LastError = err.Error()
	e.status.UpdatedAt = e.now().UTC()
}
