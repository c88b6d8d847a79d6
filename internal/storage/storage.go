package storage

import (
	"context"
	"errors"
	"fmt"

	"chainExplorer/internal/model"
)

// ErrNotFound is returned by point lookups that match nothing.
var ErrNotFound = errors.New("not found")

// Error wraps a backend failure with the operation that failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns nil for a nil err, err itself for ErrNotFound, and an *Error otherwise.
func Wrap(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var storageErr *Error
	if errors.As(err, &storageErr) {
		return err
	}
	return &Error{Op: op, Err: err}
}

// ChainStore holds the ingested chain. All Store* calls are idempotent upserts
// keyed by the entity's unique identifier.
type ChainStore interface {
	StoreBlocks(ctx context.Context, blocks []model.Block) error
	// StoreTransactions never clears details already written for a transaction.
	StoreTransactions(ctx context.Context, txs []model.Transaction) error
	StoreLogs(ctx context.Context, logs []model.Log) error
	// Height returns the highest stored block number, 0 when empty.
	Height(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64) (*model.Block, error)
	BlockByHash(ctx context.Context, hash string) (*model.Block, error)
	// PopBlocks deletes every block, transaction and log numbered above
	// target and returns target. It is a no-op when target is 0.
	PopBlocks(ctx context.Context, target uint64) (uint64, error)
}

// PendingQuery selects transactions waiting to be decoded.
type PendingQuery struct {
	// Contracts restricts the recipient address.
	Contracts []string
	// Exclude lists transaction hashes to skip.
	Exclude []string
	Limit   int
}

// DetailsStore is the decoding side of the store.
type DetailsStore interface {
	PendingTransactions(ctx context.Context, query PendingQuery) ([]model.Transaction, error)
	// SetDetails writes details only when none are present. It reports
	// whether a write happened.
	SetDetails(ctx context.Context, hash string, details *model.TransactionDetails) (bool, error)
	ResetDetails(ctx context.Context, hash string) error
}

// QueryStore serves the read-only reporting commands.
type QueryStore interface {
	BlocksInRange(ctx context.Context, from, to uint64) ([]model.Block, error)
	TransactionByHash(ctx context.Context, hash string) (*model.Transaction, error)
	TokenTransfers(ctx context.Context, limit int) ([]model.Transaction, error)
	ContractCallers(ctx context.Context, contract string, limit int) ([]string, error)
	// DecodedCalls returns decoded transactions to contract whose call name is in names.
	DecodedCalls(ctx context.Context, contract string, names []string, limit int) ([]model.Transaction, error)
}

// Store is a complete backend.
type Store interface {
	ChainStore
	DetailsStore
	QueryStore
	Close() error
}
