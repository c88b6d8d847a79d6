package chain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"chainExplorer/internal/model"
)

type rpcBlock struct {
	Number       hexutil.Uint64   `json:"number"`
	Hash         common.Hash      `json:"hash"`
	ParentHash   common.Hash      `json:"parentHash"`
	Timestamp    hexutil.Uint64   `json:"timestamp"`
	Size         hexutil.Uint64   `json:"size"`
	GasUsed      hexutil.Uint64   `json:"gasUsed"`
	Miner        common.Address   `json:"miner"`
	Transactions []rpcTransaction `json:"transactions"`
}

type rpcTransaction struct {
	Hash             common.Hash     `json:"hash"`
	BlockHash        common.Hash     `json:"blockHash"`
	BlockNumber      hexutil.Uint64  `json:"blockNumber"`
	TransactionIndex hexutil.Uint64  `json:"transactionIndex"`
	From             common.Address  `json:"from"`
	To               *common.Address `json:"to"`
	Creates          *common.Address `json:"creates"`
	Value            *hexutil.Big    `json:"value"`
	Gas              hexutil.Uint64  `json:"gas"`
	GasPrice         *hexutil.Big    `json:"gasPrice"`
	Nonce            hexutil.Uint64  `json:"nonce"`
	Input            hexutil.Bytes   `json:"input"`
	Type             hexutil.Uint64  `json:"type"`
}

type rpcReceipt struct {
	Status            *hexutil.Uint64 `json:"status"`
	TransactionHash   common.Hash     `json:"transactionHash"`
	TransactionIndex  hexutil.Uint64  `json:"transactionIndex"`
	BlockHash         common.Hash     `json:"blockHash"`
	BlockNumber       hexutil.Uint64  `json:"blockNumber"`
	From              common.Address  `json:"from"`
	To                *common.Address `json:"to"`
	ContractAddress   *common.Address `json:"contractAddress"`
	CumulativeGasUsed hexutil.Uint64  `json:"cumulativeGasUsed"`
	GasUsed           hexutil.Uint64  `json:"gasUsed"`
	Logs              []*types.Log    `json:"logs"`
}

func buildBlock(raw *rpcBlock) *model.FetchedBlock {
	block := &model.FetchedBlock{
		Block: model.Block{
			Number:     uint64(raw.Number),
			Hash:       raw.Hash.Hex(),
			ParentHash: raw.ParentHash.Hex(),
			Timestamp:  uint64(raw.Timestamp),
			Size:       uint64(raw.Size),
			GasUsed:    uint64(raw.GasUsed),
			Miner:      raw.Miner.Hex(),
		},
		Transactions: make([]model.Transaction, 0, len(raw.Transactions)),
	}
	for i := range raw.Transactions {
		block.Transactions = append(block.Transactions, buildTransaction(&raw.Transactions[i]))
	}
	block.Block = block.Header()
	return block
}

func buildTransaction(raw *rpcTransaction) model.Transaction {
	tx := model.Transaction{
		Hash:             raw.Hash.Hex(),
		BlockHash:        raw.BlockHash.Hex(),
		BlockNumber:      uint64(raw.BlockNumber),
		TransactionIndex: uint64(raw.TransactionIndex),
		From:             raw.From.Hex(),
		To:               addressOrEmpty(raw.To),
		Creates:          addressOrEmpty(raw.Creates),
		Gas:              uint64(raw.Gas),
		Nonce:            uint64(raw.Nonce),
		Input:            hexutil.Encode(raw.Input),
		Type:             uint64(raw.Type),
	}
	if raw.Value != nil {
		tx.Value = model.NewBigInt(raw.Value.ToInt())
	}
	if raw.GasPrice != nil {
		tx.GasPrice = model.NewBigInt(raw.GasPrice.ToInt())
	}
	return tx
}

func buildReceipt(raw *rpcReceipt) *model.Receipt {
	receipt := &model.Receipt{
		Status:            raw.Status != nil && *raw.Status == 1,
		TransactionHash:   raw.TransactionHash.Hex(),
		TransactionIndex:  uint64(raw.TransactionIndex),
		BlockHash:         raw.BlockHash.Hex(),
		BlockNumber:       uint64(raw.BlockNumber),
		From:              raw.From.Hex(),
		To:                addressOrEmpty(raw.To),
		ContractAddress:   addressOrEmpty(raw.ContractAddress),
		CumulativeGasUsed: uint64(raw.CumulativeGasUsed),
		GasUsed:           uint64(raw.GasUsed),
		Logs:              make([]model.Log, 0, len(raw.Logs)),
	}
	for _, log := range raw.Logs {
		if log == nil {
			continue
		}
		receipt.Logs = append(receipt.Logs, BuildLog(*log))
	}
	return receipt
}

// BuildLog converts a go-ethereum log into the stored representation.
func BuildLog(log types.Log) model.Log {
	topics := make([]string, 0, len(log.Topics))
	for _, topic := range log.Topics {
		topics = append(topics, topic.Hex())
	}

	return model.Log{
		Address:          log.Address.Hex(),
		Topics:           topics,
		Data:             hexutil.Encode(log.Data),
		LogIndex:         uint64(log.Index),
		TransactionHash:  log.TxHash.Hex(),
		TransactionIndex: uint64(log.TxIndex),
		BlockNumber:      log.BlockNumber,
		BlockHash:        log.BlockHash.Hex(),
		Removed:          log.Removed,
	}
}

func addressOrEmpty(addr *common.Address) string {
	if addr == nil {
		return ""
	}
	return addr.Hex()
}
