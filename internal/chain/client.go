package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"chainExplorer/internal/model"
)

// NetworkError wraps a failed node request.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Client wraps go-ethereum RPC and provides read-only chain access.
// Blocks and receipts are fetched through raw JSON-RPC so that chains whose
// transaction encodings go-ethereum does not know can still be ingested.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// LatestBlockNumber returns the node's head height.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	head, err := c.ethClient.BlockNumber(ctx)
	if err != nil {
		return 0, &NetworkError{Op: "eth_blockNumber", Err: err}
	}
	return head, nil
}

// BlockByNumber returns the block at height with full transaction bodies.
// It returns ethereum.NotFound when the node does not have the block yet.
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*model.FetchedBlock, error) {
	var raw json.RawMessage
	if err := c.rpcClient.CallContext(ctx, &raw, "eth_getBlockByNumber", hexutil.EncodeUint64(number), true); err != nil {
		return nil, &NetworkError{Op: "eth_getBlockByNumber", Err: err}
	}
	if isNull(raw) {
		return nil, ethereum.NotFound
	}

	var block rpcBlock
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, fmt.Errorf("decode block %d: %w", number, err)
	}
	return buildBlock(&block), nil
}

// TransactionReceipt returns the receipt of a mined transaction.
func (c *Client) TransactionReceipt(ctx context.Context, hash string) (*model.Receipt, error) {
	var raw json.RawMessage
	if err := c.rpcClient.CallContext(ctx, &raw, "eth_getTransactionReceipt", common.HexToHash(hash)); err != nil {
		return nil, &NetworkError{Op: "eth_getTransactionReceipt", Err: err}
	}
	if isNull(raw) {
		return nil, ethereum.NotFound
	}

	var receipt rpcReceipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, fmt.Errorf("decode receipt %s: %w", hash, err)
	}
	return buildReceipt(&receipt), nil
}

// CallContract performs an eth_call at the latest block.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	out, err := c.ethClient.CallContract(ctx, msg, blockNumber)
	if err != nil {
		return nil, &NetworkError{Op: "eth_call", Err: err}
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
