package indexer

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainExplorer/internal/denylist"
	"chainExplorer/internal/model"
	"chainExplorer/internal/retry"
	"chainExplorer/internal/storage"
)

const (
	forkA = 1
	forkB = 2
	token = "0x623761F60D677addBD5A07385e037105A13201EF"
)

func hashAt(fork, n uint64) string {
	return common.BigToHash(new(big.Int).SetUint64(fork<<40 | n)).Hex()
}

func txHashAt(n uint64, i int) string {
	return common.BigToHash(new(big.Int).SetUint64(7<<48 | n<<8 | uint64(i))).Hex()
}

type fakeNode struct {
	mu       sync.Mutex
	blocks   map[uint64]*model.FetchedBlock
	receipts map[string]*model.Receipt
	// blockFailures makes the next n fetches of a height fail.
	blockFailures map[uint64]int
	fetched       []uint64
	receiptCalls  []string
	onTip         func()
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		blocks:        make(map[uint64]*model.FetchedBlock),
		receipts:      make(map[string]*model.Receipt),
		blockFailures: make(map[uint64]int),
	}
}

func (n *fakeNode) BlockByNumber(_ context.Context, number uint64) (*model.FetchedBlock, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fetched = append(n.fetched, number)
	if n.blockFailures[number] > 0 {
		n.blockFailures[number]--
		return nil, errors.New("connection reset")
	}
	block, ok := n.blocks[number]
	if !ok {
		if n.onTip != nil {
			n.onTip()
		}
		return nil, ethereum.NotFound
	}
	copied := *block
	return &copied, nil
}

func (n *fakeNode) TransactionReceipt(_ context.Context, hash string) (*model.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receiptCalls = append(n.receiptCalls, hash)
	receipt, ok := n.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// extend adds node blocks from..to on fork, linking the first one to parent.
func (n *fakeNode) extend(fork, from, to uint64, parent string) {
	for number := from; number <= to; number++ {
		parentHash := parent
		if number > from {
			parentHash = hashAt(fork, number-1)
		}
		n.blocks[number] = &model.FetchedBlock{Block: model.Block{
			Number:     number,
			Hash:       hashAt(fork, number),
			ParentHash: parentHash,
			Timestamp:  1000 + number,
		}}
	}
}

// addTx appends a transaction with a one-log receipt to the node block.
func (n *fakeNode) addTx(number uint64, i int) string {
	block := n.blocks[number]
	hash := txHashAt(number, i)
	block.Transactions = append(block.Transactions, model.Transaction{
		Hash:             hash,
		BlockHash:        block.Hash,
		BlockNumber:      number,
		TransactionIndex: uint64(i),
		From:             "0x00000000000000000000000000000000000000A1",
		To:               token,
		Input:            "0xa9059cbb",
	})
	n.receipts[hash] = &model.Receipt{
		Status:          true,
		TransactionHash: hash,
		BlockHash:       block.Hash,
		BlockNumber:     number,
		Logs: []model.Log{{
			Address:         token,
			Topics:          []string{hashAt(9, 9)},
			Data:            "0x",
			LogIndex:        uint64(i),
			TransactionHash: hash,
			BlockNumber:     number,
			BlockHash:       block.Hash,
		}},
	}
	return hash
}

type memStore struct {
	blocks map[uint64]model.Block
	txs    map[string]model.Transaction
	logs   []model.Log
	pops   []uint64
	writes []string
}

func newMemStore() *memStore {
	return &memStore{blocks: make(map[uint64]model.Block), txs: make(map[string]model.Transaction)}
}

func (s *memStore) StoreBlocks(_ context.Context, blocks []model.Block) error {
	s.writes = append(s.writes, "blocks")
	for _, block := range blocks {
		s.blocks[block.Number] = block
	}
	return nil
}

func (s *memStore) StoreTransactions(_ context.Context, txs []model.Transaction) error {
	s.writes = append(s.writes, "transactions")
	for _, tx := range txs {
		s.txs[tx.Hash] = tx
	}
	return nil
}

func (s *memStore) StoreLogs(_ context.Context, logs []model.Log) error {
	s.writes = append(s.writes, "logs")
	for _, log := range logs {
		replaced := false
		for i := range s.logs {
			if s.logs[i].TransactionHash == log.TransactionHash && s.logs[i].LogIndex == log.LogIndex {
				s.logs[i] = log
				replaced = true
			}
		}
		if !replaced {
			s.logs = append(s.logs, log)
		}
	}
	return nil
}

func (s *memStore) Height(context.Context) (uint64, error) {
	var height uint64
	for number := range s.blocks {
		if number > height {
			height = number
		}
	}
	return height, nil
}

func (s *memStore) BlockByNumber(_ context.Context, number uint64) (*model.Block, error) {
	block, ok := s.blocks[number]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &block, nil
}

func (s *memStore) BlockByHash(_ context.Context, hash string) (*model.Block, error) {
	for _, block := range s.blocks {
		if block.Hash == hash {
			return &block, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *memStore) PopBlocks(_ context.Context, target uint64) (uint64, error) {
	s.pops = append(s.pops, target)
	if target == 0 {
		return target, nil
	}
	for number := range s.blocks {
		if number > target {
			delete(s.blocks, number)
		}
	}
	for hash, tx := range s.txs {
		if tx.BlockNumber > target {
			delete(s.txs, hash)
		}
	}
	kept := s.logs[:0]
	for _, log := range s.logs {
		if log.BlockNumber <= target {
			kept = append(kept, log)
		}
	}
	s.logs = kept
	return target, nil
}

func (s *memStore) BlocksInRange(_ context.Context, from, to uint64) ([]model.Block, error) {
	var out []model.Block
	for number, block := range s.blocks {
		if number >= from && number <= to {
			out = append(out, block)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// storeChain writes blocks from..to of fork as if they had been ingested.
func (s *memStore) storeChain(fork, from, to uint64) {
	for number := from; number <= to; number++ {
		parent := model.ZeroHash
		if number > 0 {
			parent = hashAt(fork, number-1)
		}
		s.blocks[number] = model.Block{Number: number, Hash: hashAt(fork, number), ParentHash: parent, Timestamp: 1000 + number}
	}
}

type recordingNotifier struct {
	events []model.ReorgEvent
}

func (n *recordingNotifier) NotifyReorg(_ context.Context, event model.ReorgEvent) error {
	n.events = append(n.events, event)
	return nil
}

func newTestRunner(cfg RunConfig, node *fakeNode, store *memStore, opts ...Option) *Runner {
	if cfg.Backoff == (retry.Backoff{}) {
		cfg.Backoff = retry.Fixed(time.Millisecond)
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Millisecond
	}
	return NewRunner(cfg, node, store, nil, opts...)
}

func TestStepStoresBlockWithoutReorg(t *testing.T) {
	ctx := context.Background()
	node := newFakeNode()
	store := newMemStore()
	store.storeChain(forkA, 0, 99)
	node.extend(forkA, 100, 100, hashAt(forkA, 99))
	txHash := node.addTx(100, 0)

	runner := newTestRunner(RunConfig{}, node, store)
	runner.height = 100
	runner.last, _ = store.BlockByNumber(ctx, 99)

	result, err := runner.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepAdvanced, result)
	assert.Equal(t, uint64(101), runner.Height())
	assert.Empty(t, store.pops)
	assert.Equal(t, []string{txHash}, node.receiptCalls)
	assert.Equal(t, []string{"transactions", "logs", "blocks"}, store.writes)

	block := store.blocks[100]
	assert.Equal(t, hashAt(forkA, 100), block.Hash)
	assert.Equal(t, []string{txHash}, block.TxHashes)

	tx := store.txs[txHash]
	require.NotNil(t, tx.Receipt)
	assert.Equal(t, uint64(1100), tx.ConfirmedAt)
	require.Len(t, store.logs, 1)
	assert.Equal(t, txHash, store.logs[0].TransactionHash)
}

func TestStepResolvesReorg(t *testing.T) {
	ctx := context.Background()
	node := newFakeNode()
	store := newMemStore()
	store.storeChain(forkA, 0, 99)
	node.extend(forkA, 0, 94, model.ZeroHash)
	node.extend(forkB, 95, 100, hashAt(forkA, 94))
	node.addTx(97, 0)

	notifier := &recordingNotifier{}
	runner := newTestRunner(RunConfig{}, node, store, WithNotifier(notifier))
	runner.height = 100
	runner.last, _ = store.BlockByNumber(ctx, 99)

	result, err := runner.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepReorged, result)
	assert.Equal(t, []uint64{94}, store.pops)
	assert.Equal(t, uint64(95), runner.Height())
	assert.Equal(t, []uint64{100, 99, 98, 97, 96, 95}, node.fetched)

	height, _ := store.Height(ctx)
	assert.Equal(t, uint64(94), height)

	require.Len(t, notifier.events, 1)
	event := notifier.events[0]
	assert.Equal(t, uint64(100), event.DetectedHeight)
	assert.Equal(t, uint64(94), event.AncestorHeight)
	assert.Equal(t, uint64(5), event.Depth)
	assert.Equal(t, "major", event.Severity)
	assert.Equal(t, hashAt(forkA, 99), event.OldHash)
	assert.Equal(t, hashAt(forkB, 99), event.NewParentHash)
	assert.NotNil(t, runner.Status().LastReorg)

	for runner.Height() <= 100 {
		result, err := runner.Step(ctx)
		require.NoError(t, err)
		require.Equal(t, StepAdvanced, result)
	}

	report, err := Verify(ctx, store, 0, 100, 16, nil)
	require.NoError(t, err)
	assert.True(t, report.OK(), "problems: %+v", report.Problems)
	assert.Equal(t, hashAt(forkB, 100), store.blocks[100].Hash)
	assert.Len(t, store.txs, 1)
}

func TestReorgToGenesis(t *testing.T) {
	ctx := context.Background()
	node := newFakeNode()
	store := newMemStore()
	store.storeChain(forkA, 0, 3)
	node.extend(forkB, 0, 4, model.ZeroHash)

	runner := newTestRunner(RunConfig{}, node, store)
	runner.height = 4
	runner.last, _ = store.BlockByNumber(ctx, 3)

	result, err := runner.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepReorged, result)
	assert.Zero(t, runner.Height())
	assert.Empty(t, store.pops, "nothing below genesis to keep")

	for runner.Height() <= 4 {
		_, err := runner.Step(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, hashAt(forkB, 0), store.blocks[0].Hash)
	assert.Equal(t, hashAt(forkB, 3), store.blocks[3].Hash)
}

func TestReorgStopsAtMinimumHeight(t *testing.T) {
	ctx := context.Background()
	node := newFakeNode()
	store := newMemStore()
	store.storeChain(forkA, 0, 99)
	node.extend(forkA, 0, 94, model.ZeroHash)
	node.extend(forkB, 95, 100, hashAt(forkA, 94))

	runner := newTestRunner(RunConfig{MinReorgHeight: 97}, node, store)
	runner.height = 100
	runner.last, _ = store.BlockByNumber(ctx, 99)

	_, err := runner.Step(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReorgTooDeep))
	var divergence *DivergenceError
	require.True(t, errors.As(err, &divergence))
	assert.Equal(t, uint64(100), divergence.Height)
	assert.Equal(t, uint64(100), runner.Height(), "cursor unchanged")
	assert.Empty(t, store.pops)
}

func TestStepAtTip(t *testing.T) {
	node := newFakeNode()
	store := newMemStore()
	runner := newTestRunner(RunConfig{}, node, store)
	runner.height = 5

	result, err := runner.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StepAtTip, result)
	assert.Equal(t, uint64(5), runner.Height())
	assert.True(t, runner.Status().AtTip)
	assert.Empty(t, store.writes)
}

func TestStepSkipsDenylistedReceipts(t *testing.T) {
	ctx := context.Background()
	node := newFakeNode()
	store := newMemStore()
	node.extend(forkA, 0, 1, model.ZeroHash)
	skipped := node.addTx(0, 0)
	kept := node.addTx(0, 1)
	delete(node.receipts, skipped)
	inSkippedBlock := node.addTx(1, 0)
	delete(node.receipts, inSkippedBlock)

	cfg := RunConfig{
		SkipTxs:    denylist.MustParse(skipped),
		SkipBlocks: denylist.MustParse(hashAt(forkA, 1)),
	}
	runner := newTestRunner(cfg, node, store)

	_, err := runner.Step(ctx)
	require.NoError(t, err)
	_, err = runner.Step(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{kept}, node.receiptCalls)
	assert.Nil(t, store.txs[skipped].Receipt)
	assert.Equal(t, uint64(1000), store.txs[skipped].ConfirmedAt)
	assert.NotNil(t, store.txs[kept].Receipt)
	assert.Nil(t, store.txs[inSkippedBlock].Receipt)
	assert.Len(t, store.blocks, 2)
}

func TestStepFailureKeepsHeight(t *testing.T) {
	ctx := context.Background()
	node := newFakeNode()
	store := newMemStore()
	node.extend(forkA, 0, 0, model.ZeroHash)
	hash := node.addTx(0, 0)
	delete(node.receipts, hash)

	runner := newTestRunner(RunConfig{}, node, store)
	_, err := runner.Step(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ethereum.NotFound))
	assert.Zero(t, runner.Height())
	assert.Empty(t, store.writes, "nothing is written before all receipts arrive")
}

func TestInitRollsBackStoredTip(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.storeChain(forkA, 0, 10)

	runner := newTestRunner(RunConfig{}, newFakeNode(), store)
	require.NoError(t, runner.Init(ctx))
	assert.Equal(t, []uint64{9}, store.pops)
	assert.Equal(t, uint64(9), runner.Height())
	assert.Equal(t, hashAt(forkA, 8), runner.lastHash())
	_, ok := store.blocks[10]
	assert.False(t, ok)
}

func TestInitHonoursStartHeight(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.storeChain(forkA, 0, 10)

	runner := newTestRunner(RunConfig{StartHeight: 5, HasStartHeight: true}, newFakeNode(), store)
	require.NoError(t, runner.Init(ctx))
	assert.Equal(t, []uint64{4}, store.pops)
	assert.Equal(t, uint64(4), runner.Height())

	empty := newTestRunner(RunConfig{}, newFakeNode(), newMemStore())
	require.NoError(t, empty.Init(ctx))
	assert.Zero(t, empty.Height())
	assert.Empty(t, empty.lastHash())
}

func TestRunRetriesSameHeight(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	node := newFakeNode()
	store := newMemStore()
	node.extend(forkA, 0, 3, model.ZeroHash)
	node.blockFailures[2] = 2
	node.onTip = cancel

	runner := newTestRunner(RunConfig{}, node, store)
	err := runner.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, []uint64{0, 1, 2, 2, 2, 3, 4}, node.fetched)
	assert.Len(t, store.blocks, 4)
	report, err := Verify(context.Background(), store, 0, 3, 2, nil)
	require.NoError(t, err)
	assert.True(t, report.OK())

	status := runner.Status()
	assert.Equal(t, uint64(4), status.Height)
	assert.Zero(t, status.Failures)
	assert.Equal(t, uint64(4), status.BlocksWritten)
}
