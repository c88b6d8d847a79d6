package model

// ZeroHash is the parent hash of the genesis block.
const ZeroHash = "0x0000000000000000000000000000000000000000000000000000000000000000"

// Block is a stored block header. Transactions are reduced to their hashes.
type Block struct {
	Number     uint64   `json:"number"`
	Hash       string   `json:"hash"`
	ParentHash string   `json:"parentHash"`
	Timestamp  uint64   `json:"timestamp"`
	Size       uint64   `json:"size"`
	GasUsed    uint64   `json:"gasUsed"`
	Miner      string   `json:"miner"`
	TxHashes   []string `json:"transactions"`
}

// FetchedBlock is a block as returned by the node, with full transaction bodies.
type FetchedBlock struct {
	Block
	Transactions []Transaction
}

// Header returns the storable block with its transaction list reduced to hashes.
func (b *FetchedBlock) Header() Block {
	out := b.Block
	out.TxHashes = make([]string, 0, len(b.Transactions))
	for _, tx := range b.Transactions {
		out.TxHashes = append(out.TxHashes, tx.Hash)
	}
	return out
}
