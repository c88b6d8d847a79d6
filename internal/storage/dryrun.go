package storage

import (
	"context"

	"go.uber.org/zap"

	"chainExplorer/internal/model"
)

// DryRun serves reads from the wrapped store and logs writes instead of
// applying them.
type DryRun struct {
	Store
	logger *zap.Logger
}

// NewDryRun wraps store.
func NewDryRun(store Store, logger *zap.Logger) *DryRun {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DryRun{Store: store, logger: logger.With(zap.Bool("dry_run", true))}
}

func (d *DryRun) StoreBlocks(_ context.Context, blocks []model.Block) error {
	for _, block := range blocks {
		d.logger.Info("skip block write", zap.Uint64("height", block.Number), zap.String("block_hash", block.Hash))
	}
	return nil
}

func (d *DryRun) StoreTransactions(_ context.Context, txs []model.Transaction) error {
	d.logger.Info("skip transaction write", zap.Int("count", len(txs)))
	return nil
}

func (d *DryRun) StoreLogs(_ context.Context, logs []model.Log) error {
	d.logger.Info("skip log write", zap.Int("count", len(logs)))
	return nil
}

func (d *DryRun) PopBlocks(_ context.Context, target uint64) (uint64, error) {
	d.logger.Info("skip pop blocks", zap.Uint64("target", target))
	return target, nil
}

func (d *DryRun) SetDetails(_ context.Context, hash string, details *model.TransactionDetails) (bool, error) {
	fields := []zap.Field{zap.String("tx_hash", hash)}
	if details != nil {
		fields = append(fields, zap.String("type", details.Type), zap.Int("logs", len(details.Logs)))
		if details.Call != nil {
			fields = append(fields, zap.String("call", details.Call.Name))
		}
	}
	d.logger.Info("skip details write", fields...)
	return false, nil
}

func (d *DryRun) ResetDetails(_ context.Context, hash string) error {
	d.logger.Info("skip details reset", zap.String("tx_hash", hash))
	return nil
}
