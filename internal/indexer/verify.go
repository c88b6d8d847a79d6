package indexer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"chainExplorer/internal/model"
)

// BlockReader pages stored blocks in ascending order.
type BlockReader interface {
	BlocksInRange(ctx context.Context, from, to uint64) ([]model.Block, error)
}

// Problem kinds reported by Verify.
const (
	ProblemMissing  = "missing"
	ProblemParent   = "parent_mismatch"
	ProblemGenesis  = "genesis_parent"
	ProblemOrdering = "out_of_range"
)

// Problem is one contiguity violation.
type Problem struct {
	Height uint64 `json:"height"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// VerifyReport summarizes a contiguity check.
type VerifyReport struct {
	From     uint64    `json:"from"`
	To       uint64    `json:"to"`
	Checked  uint64    `json:"checked"`
	Problems []Problem `json:"problems"`
}

// OK reports whether no problem was found.
func (r VerifyReport) OK() bool {
	return len(r.Problems) == 0
}

// Verify checks that every stored block in [from, to] links to the stored
// block below it and that block 0 has the zero parent hash.
func Verify(ctx context.Context, reader BlockReader, from, to, batchSize uint64, logger *zap.Logger) (VerifyReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	report := VerifyReport{From: from, To: to, Problems: []Problem{}}
	ranges, err := pages(from, to, batchSize)
	if err != nil {
		return report, err
	}

	var prev *model.Block
	if from > 0 {
		blocks, err := reader.BlocksInRange(ctx, from-1, from-1)
		if err != nil {
			return report, fmt.Errorf("load block %d: %w", from-1, err)
		}
		if len(blocks) == 1 {
			prev = &blocks[0]
		}
	}

	expected := from
	for _, page := range ranges {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		blocks, err := reader.BlocksInRange(ctx, page.from, page.to)
		if err != nil {
			return report, fmt.Errorf("load blocks %d-%d: %w", page.from, page.to, err)
		}

		for i := range blocks {
			block := blocks[i]
			if block.Number < expected || block.Number > page.to {
				report.add(Problem{Height: block.Number, Kind: ProblemOrdering, Detail: fmt.Sprintf("expected height %d", expected)})
				continue
			}
			for ; expected < block.Number; expected++ {
				report.add(Problem{Height: expected, Kind: ProblemMissing, Detail: "block not stored"})
				prev = nil
			}

			switch {
			case block.Number == 0:
				if !sameHash(block.ParentHash, model.ZeroHash) {
					report.add(Problem{Height: 0, Kind: ProblemGenesis, Detail: fmt.Sprintf("parent %s", block.ParentHash)})
				}
			case prev != nil && !sameHash(prev.Hash, block.ParentHash):
				report.add(Problem{
					Height: block.Number,
					Kind:   ProblemParent,
					Detail: fmt.Sprintf("parent %s, stored %d is %s", block.ParentHash, prev.Number, prev.Hash),
				})
			}

			report.Checked++
			prev = &block
			expected = block.Number + 1
		}

		for ; expected <= page.to; expected++ {
			report.add(Problem{Height: expected, Kind: ProblemMissing, Detail: "block not stored"})
			prev = nil
		}
		logger.Debug("verified page", zap.Uint64("from", page.from), zap.Uint64("to", page.to), zap.Int("problems", len(report.Problems)))
	}

	logger.Info("verify complete", zap.Uint64("checked", report.Checked), zap.Int("problems", len(report.Problems)))
	return report, nil
}

// heightRange is one inclusive page of heights loaded by Verify.
type heightRange struct {
	from, to uint64
}

// pages cuts [from, to] into pages of at most size heights.
func pages(from, to, size uint64) ([]heightRange, error) {
	if size == 0 {
		return nil, fmt.Errorf("verify batch size must be positive")
	}
	if to < from {
		return nil, fmt.Errorf("verify range %d-%d is empty", from, to)
	}

	out := make([]heightRange, 0, (to-from)/size+1)
	for start := from; ; start += size {
		if to-start < size {
			return append(out, heightRange{from: start, to: to}), nil
		}
		out = append(out, heightRange{from: start, to: start + size - 1})
	}
}

func (r *VerifyReport) add(problem Problem) {
	r.Problems = append(r.Problems, problem)
}
