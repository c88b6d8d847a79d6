package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"chainExplorer/internal/model"
	"chainExplorer/internal/storage"
)

// Store provides Postgres persistence for the explorer.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// NewStore connects, pings and migrates.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pg dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := Migrate(cfg.ConnConfig); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// StoreBlocks upserts block headers keyed by number.
func (s *Store) StoreBlocks(ctx context.Context, blocks []model.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, block := range blocks {
		txHashes, err := json.Marshal(nonNil(block.TxHashes))
		if err != nil {
			return fmt.Errorf("marshal block %d transactions: %w", block.Number, err)
		}
		batch.Queue(`
			INSERT INTO blocks (number, hash, parent_hash, timestamp, size, gas_used, miner, transactions)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (number)
			DO UPDATE SET
				hash = EXCLUDED.hash,
				parent_hash = EXCLUDED.parent_hash,
				timestamp = EXCLUDED.timestamp,
				size = EXCLUDED.size,
				gas_used = EXCLUDED.gas_used,
				miner = EXCLUDED.miner,
				transactions = EXCLUDED.transactions
		`,
			int64(block.Number),
			block.Hash,
			block.ParentHash,
			int64(block.Timestamp),
			int64(block.Size),
			int64(block.GasUsed),
			block.Miner,
			txHashes,
		)
	}
	return s.sendBatch(ctx, "store blocks", batch)
}

// StoreTransactions upserts transactions keyed by hash. details is never touched.
func (s *Store) StoreTransactions(ctx context.Context, txs []model.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, tx := range txs {
		var receipt []byte
		if tx.Receipt != nil {
			encoded, err := json.Marshal(tx.Receipt)
			if err != nil {
				return fmt.Errorf("marshal receipt %s: %w", tx.Hash, err)
			}
			receipt = encoded
		}
		batch.Queue(`
			INSERT INTO transactions (
				hash, block_hash, block_number, transaction_index, from_address, to_address, creates,
				value, gas, gas_price, nonce, input, type, receipt, confirmed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (hash)
			DO UPDATE SET
				block_hash = EXCLUDED.block_hash,
				block_number = EXCLUDED.block_number,
				transaction_index = EXCLUDED.transaction_index,
				from_address = EXCLUDED.from_address,
				to_address = EXCLUDED.to_address,
				creates = EXCLUDED.creates,
				value = EXCLUDED.value,
				gas = EXCLUDED.gas,
				gas_price = EXCLUDED.gas_price,
				nonce = EXCLUDED.nonce,
				input = EXCLUDED.input,
				type = EXCLUDED.type,
				receipt = EXCLUDED.receipt,
				confirmed_at = EXCLUDED.confirmed_at
		`,
			tx.Hash,
			tx.BlockHash,
			int64(tx.BlockNumber),
			int64(tx.TransactionIndex),
			tx.From,
			nullable(tx.To),
			nullable(tx.Creates),
			numeric(tx.Value),
			int64(tx.Gas),
			numeric(tx.GasPrice),
			int64(tx.Nonce),
			tx.Input,
			int64(tx.Type),
			receipt,
			int64(tx.ConfirmedAt),
		)
	}
	return s.sendBatch(ctx, "store transactions", batch)
}

// StoreLogs upserts logs keyed by (transaction hash, log index).
func (s *Store) StoreLogs(ctx context.Context, logs []model.Log) error {
	if len(logs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, log := range logs {
		topics, err := json.Marshal(nonNil(log.Topics))
		if err != nil {
			return fmt.Errorf("marshal log topics: %w", err)
		}
		batch.Queue(`
			INSERT INTO logs (
				transaction_hash, log_index, address, topics, data, transaction_index, block_number, block_hash, removed
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (transaction_hash, log_index)
			DO UPDATE SET
				address = EXCLUDED.address,
				topics = EXCLUDED.topics,
				data = EXCLUDED.data,
				transaction_index = EXCLUDED.transaction_index,
				block_number = EXCLUDED.block_number,
				block_hash = EXCLUDED.block_hash,
				removed = EXCLUDED.removed
		`,
			log.TransactionHash,
			int64(log.LogIndex),
			log.Address,
			topics,
			log.Data,
			int64(log.TransactionIndex),
			int64(log.BlockNumber),
			log.BlockHash,
			log.Removed,
		)
	}
	return s.sendBatch(ctx, "store logs", batch)
}

func (s *Store) Height(ctx context.Context) (uint64, error) {
	var height int64
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(number), 0) FROM blocks`).Scan(&height); err != nil {
		return 0, storage.Wrap("height", err)
	}
	return uint64(height), nil
}

const blockColumns = `number, hash, parent_hash, timestamp, size, gas_used, miner, transactions`

func (s *Store) BlockByNumber(ctx context.Context, number uint64) (*model.Block, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+blockColumns+` FROM blocks WHERE number = $1`, int64(number))
	block, err := scanBlock(row)
	if err != nil {
		return nil, storage.Wrap("block by number", err)
	}
	return &block, nil
}

func (s *Store) BlockByHash(ctx context.Context, hash string) (*model.Block, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+blockColumns+` FROM blocks WHERE hash = $1`, normalizeHash(hash))
	block, err := scanBlock(row)
	if err != nil {
		return nil, storage.Wrap("block by hash", err)
	}
	return &block, nil
}

// PopBlocks deletes everything above target in one transaction.
func (s *Store) PopBlocks(ctx context.Context, target uint64) (uint64, error) {
	if target == 0 {
		return target, nil
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM logs WHERE block_number > $1`,
			`DELETE FROM transactions WHERE block_number > $1`,
			`DELETE FROM blocks WHERE number > $1`,
		} {
			if _, err := tx.Exec(ctx, stmt, int64(target)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return target, storage.Wrap("pop blocks", err)
	}
	return target, nil
}

const txColumns = `hash, block_hash, block_number, transaction_index, from_address, to_address, creates,
	value, gas, gas_price, nonce, input, type, receipt, confirmed_at, details`

func (s *Store) PendingTransactions(ctx context.Context, query storage.PendingQuery) ([]model.Transaction, error) {
	contracts := make([]string, 0, len(query.Contracts))
	for _, contract := range query.Contracts {
		contracts = append(contracts, normalizeAddress(contract))
	}
	exclude := make([]string, 0, len(query.Exclude))
	for _, hash := range query.Exclude {
		exclude = append(exclude, normalizeHash(hash))
	}
	return s.queryTransactions(ctx, "pending transactions", `
		SELECT `+txColumns+` FROM transactions
		WHERE details IS NULL AND to_address = ANY($1) AND NOT (hash = ANY($2))
		ORDER BY block_number, transaction_index
		LIMIT $3
	`, contracts, exclude, limitArg(query.Limit))
}

func (s *Store) SetDetails(ctx context.Context, hash string, details *model.TransactionDetails) (bool, error) {
	if details == nil {
		return false, fmt.Errorf("details for %s are nil", hash)
	}
	encoded, err := json.Marshal(details)
	if err != nil {
		return false, fmt.Errorf("marshal details %s: %w", hash, err)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE transactions SET details = $2 WHERE hash = $1 AND details IS NULL`, normalizeHash(hash), encoded)
	if err != nil {
		return false, storage.Wrap("set details", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ResetDetails(ctx context.Context, hash string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE transactions SET details = NULL WHERE hash = $1`, normalizeHash(hash))
	if err != nil {
		return storage.Wrap("reset details", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) BlocksInRange(ctx context.Context, from, to uint64) ([]model.Block, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+blockColumns+` FROM blocks WHERE number BETWEEN $1 AND $2 ORDER BY number`, int64(from), int64(to))
	if err != nil {
		return nil, storage.Wrap("blocks in range", err)
	}
	defer rows.Close()

	var blocks []model.Block
	for rows.Next() {
		block, err := scanBlock(rows)
		if err != nil {
			return nil, storage.Wrap("blocks in range", err)
		}
		blocks = append(blocks, block)
	}
	return blocks, storage.Wrap("blocks in range", rows.Err())
}

func (s *Store) TransactionByHash(ctx context.Context, hash string) (*model.Transaction, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE hash = $1`, normalizeHash(hash))
	tx, err := scanTransaction(row)
	if err != nil {
		return nil, storage.Wrap("transaction by hash", err)
	}
	return &tx, nil
}

func (s *Store) TokenTransfers(ctx context.Context, limit int) ([]model.Transaction, error) {
	return s.queryTransactions(ctx, "token transfers", `
		SELECT `+txColumns+` FROM transactions
		WHERE details->>'type' = $1
		ORDER BY block_number DESC, transaction_index DESC
		LIMIT $2
	`, model.TypeTokenTransfer, limitArg(limit))
}

func (s *Store) ContractCallers(ctx context.Context, contract string, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT from_address FROM transactions
		WHERE to_address = $1
		ORDER BY from_address
		LIMIT $2
	`, normalizeAddress(contract), limitArg(limit))
	if err != nil {
		return nil, storage.Wrap("contract callers", err)
	}
	callers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return callers, storage.Wrap("contract callers", err)
}

func (s *Store) DecodedCalls(ctx context.Context, contract string, names []string, limit int) ([]model.Transaction, error) {
	return s.queryTransactions(ctx, "decoded calls", `
		SELECT `+txColumns+` FROM transactions
		WHERE to_address = $1 AND details->'call'->>'name' = ANY($2)
		ORDER BY block_number, transaction_index
		LIMIT $3
	`, normalizeAddress(contract), nonNil(names), limitArg(limit))
}

func (s *Store) queryTransactions(ctx context.Context, op, sql string, args ...interface{}) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storage.Wrap(op, err)
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, storage.Wrap(op, err)
		}
		txs = append(txs, tx)
	}
	return txs, storage.Wrap(op, rows.Err())
}

func (s *Store) sendBatch(ctx context.Context, op string, batch *pgx.Batch) error {
	br := s.pool.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return storage.Wrap(op, err)
		}
	}
	return storage.Wrap(op, br.Close())
}

func scanBlock(row pgx.Row) (model.Block, error) {
	var block model.Block
	var number, timestamp, size, gasUsed int64
	var txHashes []byte
	if err := row.Scan(&number, &block.Hash, &block.ParentHash, &timestamp, &size, &gasUsed, &block.Miner, &txHashes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Block{}, storage.ErrNotFound
		}
		return model.Block{}, err
	}
	block.Number = uint64(number)
	block.Timestamp = uint64(timestamp)
	block.Size = uint64(size)
	block.GasUsed = uint64(gasUsed)
	if err := json.Unmarshal(txHashes, &block.TxHashes); err != nil {
		return model.Block{}, fmt.Errorf("decode block %d transactions: %w", number, err)
	}
	return block, nil
}

func scanTransaction(row pgx.Row) (model.Transaction, error) {
	var tx model.Transaction
	var blockNumber, txIndex, gas, nonce, txType, confirmed int64
	var to, creates *string
	var value, gasPrice pgtype.Numeric
	var receipt, details []byte
	err := row.Scan(
		&tx.Hash, &tx.BlockHash, &blockNumber, &txIndex, &tx.From, &to, &creates,
		&value, &gas, &gasPrice, &nonce, &tx.Input, &txType, &receipt, &confirmed, &details,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Transaction{}, storage.ErrNotFound
		}
		return model.Transaction{}, err
	}

	tx.BlockNumber = uint64(blockNumber)
	tx.TransactionIndex = uint64(txIndex)
	tx.Gas = uint64(gas)
	tx.Nonce = uint64(nonce)
	tx.Type = uint64(txType)
	tx.ConfirmedAt = uint64(confirmed)
	if to != nil {
		tx.To = *to
	}
	if creates != nil {
		tx.Creates = *creates
	}
	tx.Value = model.NewBigInt(numericInt(value))
	tx.GasPrice = model.NewBigInt(numericInt(gasPrice))

	if len(receipt) > 0 {
		tx.Receipt = &model.Receipt{}
		if err := json.Unmarshal(receipt, tx.Receipt); err != nil {
			return model.Transaction{}, fmt.Errorf("decode receipt %s: %w", tx.Hash, err)
		}
	}
	if len(details) > 0 {
		tx.Details = &model.TransactionDetails{}
		if err := json.Unmarshal(details, tx.Details); err != nil {
			return model.Transaction{}, fmt.Errorf("decode details %s: %w", tx.Hash, err)
		}
	}
	return tx, nil
}

func numeric(value model.BigInt) pgtype.Numeric {
	if !value.IsSet() {
		return pgtype.Numeric{Int: new(big.Int), Valid: true}
	}
	return pgtype.Numeric{Int: new(big.Int).Set(value.Int), Valid: true}
}

// numericInt converts an integral NUMERIC, which pgx may return with a
// positive exponent, back into a big.Int.
func numericInt(n pgtype.Numeric) *big.Int {
	if !n.Valid || n.Int == nil {
		return new(big.Int)
	}
	out := new(big.Int).Set(n.Int)
	if n.Exp == 0 {
		return out
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(absInt32(n.Exp))), nil)
	if n.Exp > 0 {
		return out.Mul(out, scale)
	}
	return out.Quo(out, scale)
}

func absInt32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func limitArg(limit int) interface{} {
	if limit <= 0 {
		return nil
	}
	return int64(limit)
}

func normalizeHash(hash string) string {
	return common.HexToHash(hash).Hex()
}

func normalizeAddress(address string) string {
	return common.HexToAddress(address).Hex()
}
