package blockchain

import (
	"time"
)

type BlockCreationParams struct {
	Previous     *Block
	Transactions []Transaction
	Proof        uint64
	Timestamp    int64
}

// NewBlock links a new block onto params.Previous. The proof is taken as given;
// callers obtain it from SearchProof.
func NewBlock(params BlockCreationParams) Block {
	ts := params.Timestamp
	if ts == 0 {
		ts = time.Now().Unix()
	}

	prevHash := HashBlock(params.Previous)

	tsxs := make([]Transaction, len(params.Transactions))
	copy(tsxs, params.Transactions)

	return Block{
		Index:        params.Previous.Index + 1,
		Timestamp:    ts,
		Transactions: tsxs,
		Proof:        params.Proof,
		PreviousHash: &prevHash,
	}
}
