package model

// Transaction is a stored transaction with its embedded receipt.
// A nil Details marks it eligible for decoding.
type Transaction struct {
	Hash             string              `json:"hash"`
	BlockHash        string              `json:"blockHash"`
	BlockNumber      uint64              `json:"blockNumber"`
	TransactionIndex uint64              `json:"transactionIndex"`
	From             string              `json:"from"`
	To               string              `json:"to,omitempty"`
	Creates          string              `json:"creates,omitempty"`
	Value            BigInt              `json:"value"`
	Gas              uint64              `json:"gas"`
	GasPrice         BigInt              `json:"gasPrice"`
	Nonce            uint64              `json:"nonce"`
	Input            string              `json:"input"`
	Type             uint64              `json:"type"`
	Receipt          *Receipt            `json:"receipt,omitempty"`
	ConfirmedAt      uint64              `json:"confirmedAt"`
	Details          *TransactionDetails `json:"details,omitempty"`
}

// IsContractCreation reports whether the transaction deploys a contract.
func (t *Transaction) IsContractCreation() bool {
	return t.To == ""
}

// HasInput reports whether the transaction carries call data.
func (t *Transaction) HasInput() bool {
	return t.Input != "" && t.Input != "0x"
}

// Receipt is the execution outcome of a transaction.
type Receipt struct {
	Status            bool   `json:"status"`
	TransactionHash   string `json:"transactionHash"`
	TransactionIndex  uint64 `json:"transactionIndex"`
	BlockHash         string `json:"blockHash"`
	BlockNumber       uint64 `json:"blockNumber"`
	From              string `json:"from"`
	To                string `json:"to,omitempty"`
	ContractAddress   string `json:"contractAddress,omitempty"`
	CumulativeGasUsed uint64 `json:"cumulativeGasUsed"`
	GasUsed           uint64 `json:"gasUsed"`
	Logs              []Log  `json:"logs"`
}
