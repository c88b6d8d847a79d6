package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chainExplorer/internal/model"
	"chainExplorer/internal/storage"
)

// DivergenceError reports that the node's block at Height does not extend
// the stored chain. It triggers reorg resolution rather than a retry.
type DivergenceError struct {
	Height         uint64
	ExpectedParent string
	StoredHash     string
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("chain diverged at height %d: node parent %s, stored %s", e.Height, e.ExpectedParent, e.StoredHash)
}

// ErrReorgTooDeep is returned when no common ancestor exists above the
// configured minimum reorg height.
var ErrReorgTooDeep = errors.New("reorg deeper than minimum reorg height")

// resolve walks back from the divergence until the stored block at t-1 is
// the parent of the node's block at t, then drops every stored block above
// t-1 and moves the cursor to t.
func (r *Runner) resolve(ctx context.Context, divergence *DivergenceError, block *model.FetchedBlock) error {
	floor := r.cfg.MinReorgHeight
	target := divergence.Height
	parent := r.last
	node := block

	r.logger.Warn("chain divergence",
		zap.Uint64("height", divergence.Height),
		zap.String("parent_hash", divergence.ExpectedParent),
		zap.String("stored_hash", divergence.StoredHash),
	)

	for target > floor && parent != nil && !sameHash(parent.Hash, node.ParentHash) {
		target--
		var err error
		node, err = r.node.BlockByNumber(ctx, target)
		if err != nil {
			return fmt.Errorf("%w: fetch node block %d: %w", divergence, target, err)
		}
		if target == 0 {
			parent = nil
			break
		}
		parent, err = r.store.BlockByNumber(ctx, target-1)
		if errors.Is(err, storage.ErrNotFound) {
			parent = nil
			break
		}
		if err != nil {
			return fmt.Errorf("%w: get stored block %d: %w", divergence, target-1, err)
		}
	}

	if parent != nil && !sameHash(parent.Hash, node.ParentHash) {
		return fmt.Errorf("%w: %w (floor %d)", divergence, ErrReorgTooDeep, floor)
	}

	var ancestor uint64
	if target > 0 {
		ancestor = target - 1
		if _, err := r.store.PopBlocks(ctx, ancestor); err != nil {
			return fmt.Errorf("pop blocks above %d: %w", ancestor, err)
		}
	}

	depth := divergence.Height - target
	event := model.ReorgEvent{
		DetectedHeight: divergence.Height,
		AncestorHeight: ancestor,
		OldHash:        divergence.StoredHash,
		NewParentHash:  divergence.ExpectedParent,
		Depth:          depth,
		Severity:       model.ReorgSeverity(depth),
		DetectedAt:     time.Now().UTC(),
	}

	r.height = target
	r.last = parent
	r.metrics.ObserveReorg(event)
	r.metrics.SetHeight(target)
	r.updateStatus(func(s *Status) {
		s.Height = target
		s.LastHash = r.lastHash()
		s.LastReorg = &event
		s.Failures = 0
		s.LastError = ""
	})
	r.logger.Warn("reorg resolved",
		zap.Uint64("height", divergence.Height),
		zap.Uint64("ancestor_height", ancestor),
		zap.Uint64("depth", depth),
		zap.String("severity", event.Severity),
	)

	if r.notifier != nil {
		if err := r.notifier.NotifyReorg(ctx, event); err != nil {
			r.logger.Error("reorg notification failed", zap.Error(err), zap.Uint64("ancestor_height", ancestor))
		}
	}
	return nil
}
