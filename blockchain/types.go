package blockchain

import (
	"encoding/hex"
	"fmt"
)

const (
	// DefaultDifficulty is the number of leading zero bytes a proof digest needs.
	DefaultDifficulty = 2

	// GenesisProof is the proof carried by the well-known first block.
	GenesisProof = 100

	// RewardAmount is credited to the node owner for every mined block.
	RewardAmount = 1.0
)

// Hash32 is a SHA-256 digest. It encodes as lowercase hex in JSON.
type Hash32 [32]byte

func (h Hash32) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash32) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash32) UnmarshalText(text []byte) error {
	if len(text) != 64 {
		return fmt.Errorf("hash must be 64 hex characters, got %d", len(text))
	}
	if _, err := hex.Decode(h[:], text); err != nil {
		return fmt.Errorf("invalid hash: %w", err)
	}
	return nil
}

// Short returns the first 8 bytes in hex, for logs.
func (h Hash32) Short() string {
	return hex.EncodeToString(h[:8])
}

// Transaction moves Amount from From to To. A nil From marks a mining reward.
// Field order is part of the hashed encoding.
type Transaction struct {
	From   *string `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

// IsReward reports whether the transaction was minted by a miner.
func (t Transaction) IsReward() bool {
	return t.From == nil
}

// Block is immutable once appended. Its hash is never stored, see HashBlock.
// Field order is part of the hashed encoding.
type Block struct {
	Index        uint64        `json:"index"`
	Timestamp    int64         `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	Proof        uint64        `json:"proof"`
	PreviousHash *Hash32       `json:"previous_hash"`
}

// Clone returns a copy that shares no memory with b.
func (b Block) Clone() Block {
	out := b
	out.Transactions = make([]Transaction, len(b.Transactions))
	for i, tx := range b.Transactions {
		out.Transactions[i] = tx
		if tx.From != nil {
			from := *tx.From
			out.Transactions[i].From = &from
		}
	}
	if b.PreviousHash != nil {
		prev := *b.PreviousHash
		out.PreviousHash = &prev
	}
	return out
}

// Chain is the ordered, hash-linked sequence of blocks starting at genesis.
type Chain []Block

// Clone deep-copies every block.
func (c Chain) Clone() Chain {
	out := make(Chain, len(c))
	for i, b := range c {
		out[i] = b.Clone()
	}
	return out
}

// Tip returns the last block. It panics on an empty chain.
func (c Chain) Tip() Block {
	return c[len(c)-1]
}

// NewReward builds the transaction paying a miner.
func NewReward(owner string) Transaction {
	return Transaction{
		From:   nil,
		To:     owner,
		Amount: RewardAmount,
	}
}

// NewTransfer builds a regular transaction.
func NewTransfer(from, to string, amount float64) Transaction {
	return Transaction{
		From:   &from,
		To:     to,
		Amount: amount,
	}
}
