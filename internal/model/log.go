package model

// Log is an event log emitted during transaction execution.
// (TransactionHash, LogIndex) is unique.
type Log struct {
	Address          string   `json:"address"`
	Topics           []string `json:"topics"`
	Data             string   `json:"data"`
	LogIndex         uint64   `json:"logIndex"`
	TransactionHash  string   `json:"transactionHash"`
	TransactionIndex uint64   `json:"transactionIndex"`
	BlockNumber      uint64   `json:"blockNumber"`
	BlockHash        string   `json:"blockHash"`
	Removed          bool     `json:"removed,omitempty"`
}

// Key returns the unique identifier of the log.
func (l Log) Key() LogKey {
	return LogKey{TransactionHash: l.TransactionHash, LogIndex: l.LogIndex}
}

// LogKey identifies a log by transaction hash and position.
type LogKey struct {
	TransactionHash string
	LogIndex        uint64
}
