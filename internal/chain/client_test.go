package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	blockJSON = `{
		"number": "0x64",
		"hash": "0x911155ba9f4e91dc3c6c4080a32df4e5caca3b180e8cbb116844a276aa6198dc",
		"parentHash": "0x7221d7eae52d080d5d2a0a298abc3e841d304ac07d84cbfb7216bb0ab0d55b64",
		"timestamp": "0x5f5e100",
		"size": "0x220",
		"gasUsed": "0x5208",
		"miner": "0x0000000000000000000000000000000000000001",
		"transactions": [{
			"hash": "0xa003975aa8ba46c056f0fdb27e5441e421523bdf9b5dd6f575a53470028e5b36",
			"blockHash": "0x911155ba9f4e91dc3c6c4080a32df4e5caca3b180e8cbb116844a276aa6198dc",
			"blockNumber": "0x64",
			"transactionIndex": "0x0",
			"from": "0x00000000000000000000000000000000000000aa",
			"to": "0x623761f60d677addbd5a07385e037105a13201ef",
			"value": "0xde0b6b3a7640000",
			"gas": "0x5208",
			"gasPrice": "0x3b9aca00",
			"nonce": "0x7",
			"input": "0xa9059cbb",
			"type": "0x0"
		}]
	}`

	receiptJSON = `{
		"status": "0x1",
		"transactionHash": "0xa003975aa8ba46c056f0fdb27e5441e421523bdf9b5dd6f575a53470028e5b36",
		"transactionIndex": "0x0",
		"blockHash": "0x911155ba9f4e91dc3c6c4080a32df4e5caca3b180e8cbb116844a276aa6198dc",
		"blockNumber": "0x64",
		"from": "0x00000000000000000000000000000000000000aa",
		"to": "0x623761f60d677addbd5a07385e037105a13201ef",
		"contractAddress": null,
		"cumulativeGasUsed": "0x5208",
		"gasUsed": "0x5208",
		"logs": [{
			"address": "0x623761f60d677addbd5a07385e037105a13201ef",
			"topics": ["0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"],
			"data": "0x01",
			"blockNumber": "0x64",
			"transactionHash": "0xa003975aa8ba46c056f0fdb27e5441e421523bdf9b5dd6f575a53470028e5b36",
			"transactionIndex": "0x0",
			"blockHash": "0x911155ba9f4e91dc3c6c4080a32df4e5caca3b180e8cbb116844a276aa6198dc",
			"logIndex": "0x3",
			"removed": false
		}]
	}`
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func newTestNode(t *testing.T, results map[string]string) *Client {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result, ok := results[req.Method]
		if !ok {
			result = "null"
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + result + `}`))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), server.URL)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestBlockByNumber(t *testing.T) {
	client := newTestNode(t, map[string]string{"eth_getBlockByNumber": blockJSON})

	block, err := client.BlockByNumber(context.Background(), 100)
	require.NoError(t, err)

	assert.Equal(t, uint64(100), block.Number)
	assert.Equal(t, "0x911155ba9f4e91dc3c6c4080a32df4e5caca3b180e8cbb116844a276aa6198dc", block.Hash)
	assert.Equal(t, "0x7221d7eae52d080d5d2a0a298abc3e841d304ac07d84cbfb7216bb0ab0d55b64", block.ParentHash)
	assert.Equal(t, uint64(100000000), block.Timestamp)
	require.Len(t, block.Transactions, 1)
	assert.Equal(t, []string{block.Transactions[0].Hash}, block.TxHashes)

	tx := block.Transactions[0]
	assert.Equal(t, "0x623761F60D677addBD5A07385e037105A13201EF", tx.To)
	assert.Equal(t, "1000000000000000000", tx.Value.String())
	assert.Equal(t, "1000000000", tx.GasPrice.String())
	assert.Equal(t, uint64(7), tx.Nonce)
	assert.Equal(t, "0xa9059cbb", tx.Input)
	assert.Empty(t, tx.Creates)
}

func TestBlockByNumberNotFound(t *testing.T) {
	client := newTestNode(t, map[string]string{})

	_, err := client.BlockByNumber(context.Background(), 1)
	assert.True(t, errors.Is(err, ethereum.NotFound))
}

func TestTransactionReceipt(t *testing.T) {
	client := newTestNode(t, map[string]string{"eth_getTransactionReceipt": receiptJSON})

	receipt, err := client.TransactionReceipt(context.Background(), "0xa003975aa8ba46c056f0fdb27e5441e421523bdf9b5dd6f575a53470028e5b36")
	require.NoError(t, err)

	assert.True(t, receipt.Status)
	assert.Empty(t, receipt.ContractAddress)
	require.Len(t, receipt.Logs, 1)
	log := receipt.Logs[0]
	assert.Equal(t, uint64(3), log.LogIndex)
	assert.Equal(t, "0x01", log.Data)
	assert.Equal(t, uint64(100), log.BlockNumber)
	assert.Equal(t, "0x623761F60D677addBD5A07385e037105A13201EF", log.Address)
}

func TestLatestBlockNumber(t *testing.T) {
	client := newTestNode(t, map[string]string{"eth_blockNumber": `"0x2a"`})

	head, err := client.LatestBlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), head)
}

func TestNetworkErrorWrapsCause(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), server.URL)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.BlockByNumber(context.Background(), 1)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "eth_getBlockByNumber", netErr.Op)
}
