package boltdb

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	bolt "go.etcd.io/bbolt"

	"chainExplorer/internal/model"
	"chainExplorer/internal/storage"
)

// Buckets. Numbers are 8-byte big endian so keys sort by height; hashes and
// addresses are fixed-width hex so composite keys can be prefix-scanned.
var (
	blocksBucket      = []byte("blocks")                // number -> block
	blockHashesBucket = []byte("block_hashes")          // hash -> number
	txsBucket         = []byte("transactions")          // hash -> transaction
	txsByBlockBucket  = []byte("transactions_by_block") // number|hash
	txsByToBucket     = []byte("transactions_by_to")    // address|hash
	pendingBucket     = []byte("pending")               // address|hash -> number|index
	logsBucket        = []byte("logs")                  // txhash|index -> log
	logsByBlockBucket = []byte("logs_by_block")         // number|txhash|index
)

var allBuckets = [][]byte{
	blocksBucket, blockHashesBucket, txsBucket, txsByBlockBucket,
	txsByToBucket, pendingBucket, logsBucket, logsByBlockBucket,
}

const (
	addressKeyLength = 2 + 2*common.AddressLength
	openTimeout      = time.Second
)

// Store is an embedded single-file backend.
type Store struct {
	db *bolt.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) StoreBlocks(_ context.Context, blocks []model.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		byNumber := tx.Bucket(blocksBucket)
		byHash := tx.Bucket(blockHashesBucket)
		for _, block := range blocks {
			block.Hash = normalizeHash(block.Hash)
			key := numberKey(block.Number)
			if existing := byNumber.Get(key); existing != nil {
				var old model.Block
				if err := json.Unmarshal(existing, &old); err != nil {
					return err
				}
				if old.Hash != block.Hash {
					if err := byHash.Delete([]byte(old.Hash)); err != nil {
						return err
					}
				}
			}
			if block.TxHashes == nil {
				block.TxHashes = []string{}
			}
			value, err := json.Marshal(block)
			if err != nil {
				return err
			}
			if err := byNumber.Put(key, value); err != nil {
				return err
			}
			if err := byHash.Put([]byte(block.Hash), key); err != nil {
				return err
			}
		}
		return nil
	})
	return storage.Wrap("store blocks", err)
}

// StoreTransactions upserts transactions, keeping any details already written.
func (s *Store) StoreTransactions(_ context.Context, txs []model.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	err := s.db.Update(func(btx *bolt.Tx) error {
		for _, tx := range txs {
			tx.Hash = normalizeHash(tx.Hash)
			old, err := getTransaction(btx, tx.Hash)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			if old != nil {
				tx.Details = old.Details
				if err := unindexTransaction(btx, old); err != nil {
					return err
				}
			}
			if err := putTransaction(btx, &tx); err != nil {
				return err
			}
		}
		return nil
	})
	return storage.Wrap("store transactions", err)
}

func (s *Store) StoreLogs(_ context.Context, logs []model.Log) error {
	if len(logs) == 0 {
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(logsBucket)
		byBlock := tx.Bucket(logsByBlockBucket)
		for _, log := range logs {
			log.TransactionHash = normalizeHash(log.TransactionHash)
			key := logKey(log.TransactionHash, log.LogIndex)
			if existing := bucket.Get(key); existing != nil {
				var old model.Log
				if err := json.Unmarshal(existing, &old); err != nil {
					return err
				}
				if err := byBlock.Delete(append(numberKey(old.BlockNumber), key...)); err != nil {
					return err
				}
			}
			value, err := json.Marshal(log)
			if err != nil {
				return err
			}
			if err := bucket.Put(key, value); err != nil {
				return err
			}
			if err := byBlock.Put(append(numberKey(log.BlockNumber), key...), nil); err != nil {
				return err
			}
		}
		return nil
	})
	return storage.Wrap("store logs", err)
}

func (s *Store) Height(_ context.Context) (uint64, error) {
	var height uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		key, _ := tx.Bucket(blocksBucket).Cursor().Last()
		if key != nil {
			height = binary.BigEndian.Uint64(key)
		}
		return nil
	})
	return height, storage.Wrap("height", err)
}

func (s *Store) BlockByNumber(_ context.Context, number uint64) (*model.Block, error) {
	var block *model.Block
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		block, err = getBlock(tx, numberKey(number))
		return err
	})
	if err != nil {
		return nil, storage.Wrap("block by number", err)
	}
	return block, nil
}

func (s *Store) BlockByHash(_ context.Context, hash string) (*model.Block, error) {
	var block *model.Block
	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(blockHashesBucket).Get([]byte(normalizeHash(hash)))
		if key == nil {
			return storage.ErrNotFound
		}
		var err error
		block, err = getBlock(tx, key)
		return err
	})
	if err != nil {
		return nil, storage.Wrap("block by hash", err)
	}
	return block, nil
}

// PopBlocks deletes every block, transaction and log above target.
func (s *Store) PopBlocks(_ context.Context, target uint64) (uint64, error) {
	if target == 0 {
		return target, nil
	}
	start := numberKey(target + 1)
	err := s.db.Update(func(btx *bolt.Tx) error {
		logKeys := collectFrom(btx.Bucket(logsByBlockBucket), start)
		for _, key := range logKeys {
			if err := btx.Bucket(logsBucket).Delete(key[8:]); err != nil {
				return err
			}
			if err := btx.Bucket(logsByBlockBucket).Delete(key); err != nil {
				return err
			}
		}

		txKeys := collectFrom(btx.Bucket(txsByBlockBucket), start)
		for _, key := range txKeys {
			tx, err := getTransaction(btx, string(key[8:]))
			if errors.Is(err, storage.ErrNotFound) {
				if err := btx.Bucket(txsByBlockBucket).Delete(key); err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}
			if err := unindexTransaction(btx, tx); err != nil {
				return err
			}
			if err := btx.Bucket(txsBucket).Delete([]byte(tx.Hash)); err != nil {
				return err
			}
		}

		blockKeys := collectFrom(btx.Bucket(blocksBucket), start)
		for _, key := range blockKeys {
			block, err := getBlock(btx, key)
			if err != nil {
				return err
			}
			if err := btx.Bucket(blockHashesBucket).Delete([]byte(block.Hash)); err != nil {
				return err
			}
			if err := btx.Bucket(blocksBucket).Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	return target, storage.Wrap("pop blocks", err)
}

func (s *Store) PendingTransactions(_ context.Context, query storage.PendingQuery) ([]model.Transaction, error) {
	exclude := make(map[string]struct{}, len(query.Exclude))
	for _, hash := range query.Exclude {
		exclude[normalizeHash(hash)] = struct{}{}
	}

	type candidate struct {
		hash     string
		position []byte
	}
	var candidates []candidate
	var txs []model.Transaction
	err := s.db.View(func(btx *bolt.Tx) error {
		cursor := btx.Bucket(pendingBucket).Cursor()
		for _, contract := range query.Contracts {
			prefix := []byte(normalizeAddress(contract))
			for key, value := cursor.Seek(prefix); key != nil && bytes.HasPrefix(key, prefix); key, value = cursor.Next() {
				hash := string(key[addressKeyLength:])
				if _, skip := exclude[hash]; skip {
					continue
				}
				candidates = append(candidates, candidate{hash: hash, position: append([]byte(nil), value...)})
			}
		}
		sort.Slice(candidates, func(i, j int) bool {
			return bytes.Compare(candidates[i].position, candidates[j].position) < 0
		})
		if query.Limit > 0 && len(candidates) > query.Limit {
			candidates = candidates[:query.Limit]
		}

		txs = make([]model.Transaction, 0, len(candidates))
		for _, c := range candidates {
			tx, err := getTransaction(btx, c.hash)
			if err != nil {
				return err
			}
			txs = append(txs, *tx)
		}
		return nil
	})
	if err != nil {
		return nil, storage.Wrap("pending transactions", err)
	}
	return txs, nil
}

func (s *Store) SetDetails(_ context.Context, hash string, details *model.TransactionDetails) (bool, error) {
	if details == nil {
		return false, fmt.Errorf("details for %s are nil", hash)
	}
	written := false
	err := s.db.Update(func(btx *bolt.Tx) error {
		tx, err := getTransaction(btx, normalizeHash(hash))
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if tx.Details != nil {
			return nil
		}
		if err := unindexTransaction(btx, tx); err != nil {
			return err
		}
		tx.Details = details
		written = true
		return putTransaction(btx, tx)
	})
	if err != nil {
		return false, storage.Wrap("set details", err)
	}
	return written, nil
}

func (s *Store) ResetDetails(_ context.Context, hash string) error {
	err := s.db.Update(func(btx *bolt.Tx) error {
		tx, err := getTransaction(btx, normalizeHash(hash))
		if err != nil {
			return err
		}
		if err := unindexTransaction(btx, tx); err != nil {
			return err
		}
		tx.Details = nil
		return putTransaction(btx, tx)
	})
	return storage.Wrap("reset details", err)
}

func (s *Store) BlocksInRange(_ context.Context, from, to uint64) ([]model.Block, error) {
	var blocks []model.Block
	err := s.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(blocksBucket).Cursor()
		end := numberKey(to)
		for key, value := cursor.Seek(numberKey(from)); key != nil && bytes.Compare(key, end) <= 0; key, value = cursor.Next() {
			var block model.Block
			if err := json.Unmarshal(value, &block); err != nil {
				return err
			}
			blocks = append(blocks, block)
		}
		return nil
	})
	if err != nil {
		return nil, storage.Wrap("blocks in range", err)
	}
	return blocks, nil
}

func (s *Store) TransactionByHash(_ context.Context, hash string) (*model.Transaction, error) {
	var tx *model.Transaction
	err := s.db.View(func(btx *bolt.Tx) error {
		var err error
		tx, err = getTransaction(btx, normalizeHash(hash))
		return err
	})
	if err != nil {
		return nil, storage.Wrap("transaction by hash", err)
	}
	return tx, nil
}

// TokenTransfers scans the chain newest first for token_transfer details.
func (s *Store) TokenTransfers(_ context.Context, limit int) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := s.db.View(func(btx *bolt.Tx) error {
		cursor := btx.Bucket(txsByBlockBucket).Cursor()
		for key, _ := cursor.Last(); key != nil; key, _ = cursor.Prev() {
			tx, err := getTransaction(btx, string(key[8:]))
			if err != nil {
				return err
			}
			if tx.Details == nil || tx.Details.Type != model.TypeTokenTransfer {
				continue
			}
			txs = append(txs, *tx)
			if limit > 0 && len(txs) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, storage.Wrap("token transfers", err)
	}
	return txs, nil
}

func (s *Store) ContractCallers(_ context.Context, contract string, limit int) ([]string, error) {
	seen := make(map[string]struct{})
	err := s.db.View(func(btx *bolt.Tx) error {
		prefix := []byte(normalizeAddress(contract))
		cursor := btx.Bucket(txsByToBucket).Cursor()
		for key, _ := cursor.Seek(prefix); key != nil && bytes.HasPrefix(key, prefix); key, _ = cursor.Next() {
			tx, err := getTransaction(btx, string(key[addressKeyLength:]))
			if err != nil {
				return err
			}
			seen[tx.From] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, storage.Wrap("contract callers", err)
	}

	callers := make([]string, 0, len(seen))
	for caller := range seen {
		callers = append(callers, caller)
	}
	sort.Strings(callers)
	if limit > 0 && len(callers) > limit {
		callers = callers[:limit]
	}
	return callers, nil
}

func (s *Store) DecodedCalls(_ context.Context, contract string, names []string, limit int) ([]model.Transaction, error) {
	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[name] = struct{}{}
	}

	var txs []model.Transaction
	err := s.db.View(func(btx *bolt.Tx) error {
		prefix := []byte(normalizeAddress(contract))
		cursor := btx.Bucket(txsByToBucket).Cursor()
		for key, _ := cursor.Seek(prefix); key != nil && bytes.HasPrefix(key, prefix); key, _ = cursor.Next() {
			tx, err := getTransaction(btx, string(key[addressKeyLength:]))
			if err != nil {
				return err
			}
			if tx.Details == nil || tx.Details.Call == nil {
				continue
			}
			if _, ok := wanted[tx.Details.Call.Name]; ok {
				txs = append(txs, *tx)
			}
		}
		return nil
	})
	if err != nil {
		return nil, storage.Wrap("decoded calls", err)
	}

	sort.Slice(txs, func(i, j int) bool {
		if txs[i].BlockNumber != txs[j].BlockNumber {
			return txs[i].BlockNumber < txs[j].BlockNumber
		}
		return txs[i].TransactionIndex < txs[j].TransactionIndex
	})
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

func getBlock(tx *bolt.Tx, key []byte) (*model.Block, error) {
	value := tx.Bucket(blocksBucket).Get(key)
	if value == nil {
		return nil, storage.ErrNotFound
	}
	var block model.Block
	if err := json.Unmarshal(value, &block); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}
	return &block, nil
}

func getTransaction(btx *bolt.Tx, hash string) (*model.Transaction, error) {
	value := btx.Bucket(txsBucket).Get([]byte(hash))
	if value == nil {
		return nil, storage.ErrNotFound
	}
	var tx model.Transaction
	if err := json.Unmarshal(value, &tx); err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", hash, err)
	}
	return &tx, nil
}

// putTransaction writes the record and its secondary index entries.
func putTransaction(btx *bolt.Tx, tx *model.Transaction) error {
	value, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	if err := btx.Bucket(txsBucket).Put([]byte(tx.Hash), value); err != nil {
		return err
	}
	if err := btx.Bucket(txsByBlockBucket).Put(txBlockKey(tx), nil); err != nil {
		return err
	}
	if tx.To == "" {
		return nil
	}
	toKey := addressHashKey(tx.To, tx.Hash)
	if err := btx.Bucket(txsByToBucket).Put(toKey, nil); err != nil {
		return err
	}
	if tx.Details == nil {
		position := append(numberKey(tx.BlockNumber), numberKey(tx.TransactionIndex)...)
		return btx.Bucket(pendingBucket).Put(toKey, position)
	}
	return nil
}

// unindexTransaction removes the secondary index entries of a stored record.
func unindexTransaction(btx *bolt.Tx, tx *model.Transaction) error {
	if err := btx.Bucket(txsByBlockBucket).Delete(txBlockKey(tx)); err != nil {
		return err
	}
	if tx.To == "" {
		return nil
	}
	toKey := addressHashKey(tx.To, tx.Hash)
	if err := btx.Bucket(txsByToBucket).Delete(toKey); err != nil {
		return err
	}
	return btx.Bucket(pendingBucket).Delete(toKey)
}

func collectFrom(bucket *bolt.Bucket, start []byte) [][]byte {
	var keys [][]byte
	cursor := bucket.Cursor()
	for key, _ := cursor.Seek(start); key != nil; key, _ = cursor.Next() {
		keys = append(keys, append([]byte(nil), key...))
	}
	return keys
}

func numberKey(number uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, number)
	return key
}

func txBlockKey(tx *model.Transaction) []byte {
	return append(numberKey(tx.BlockNumber), tx.Hash...)
}

func logKey(txHash string, index uint64) []byte {
	return append([]byte(txHash), numberKey(index)...)
}

func addressHashKey(address, hash string) []byte {
	return append([]byte(normalizeAddress(address)), hash...)
}

func normalizeHash(hash string) string {
	return common.HexToHash(hash).Hex()
}

func normalizeAddress(address string) string {
	return common.HexToAddress(address).Hex()
}
