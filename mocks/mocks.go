package mocks

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"minichain/blockchain"
)

// Accounts is the pool of identities random transactions are drawn from.
var Accounts = []string{"alice", "bob", "carol", "dave", "erin", "frank"}

// GenerateTransaction creates a transfer between two distinct random accounts.
// If amount is negative, a random amount between 1 and 100 is used.
func GenerateTransaction(rng *rand.Rand, amount float64) blockchain.Transaction {
	from := Accounts[rng.Intn(len(Accounts))]
	to := from
	for to == from {
		to = Accounts[rng.Intn(len(Accounts))]
	}

	if amount < 0 {
		amount = float64(rng.Intn(100) + 1)
	}

	return blockchain.NewTransfer(from, to, amount)
}

// GenerateTransactions creates n random transfers.
func GenerateTransactions(rng *rand.Rand, n int) []blockchain.Transaction {
	txs := make([]blockchain.Transaction, 0, n)
	for i := 0; i < n; i++ {
		txs = append(txs, GenerateTransaction(rng, -1))
	}
	return txs
}

// GenerateValidMinedBlock mines a block on top of chain paying miner, the way a
// ledger would: transactions first, reward last.
func GenerateValidMinedBlock(chain blockchain.Chain, miner string, transactions []blockchain.Transaction, difficulty int) (blockchain.Block, error) {
	tip := chain.Tip()
	proof, err := blockchain.SearchProof(context.Background(), tip.Proof, blockchain.ProofParams{Difficulty: difficulty})
	if err != nil {
		return blockchain.Block{}, err
	}

	txs := make([]blockchain.Transaction, 0, len(transactions)+1)
	txs = append(txs, transactions...)
	txs = append(txs, blockchain.NewReward(miner))

	return blockchain.NewBlock(blockchain.BlockCreationParams{
		Previous:     &tip,
		Transactions: txs,
		Proof:        proof,
		Timestamp:    tip.Timestamp + 1,
	}), nil
}

// ExtendChain returns a copy of chain with n more valid blocks mined by miner.
func ExtendChain(chain blockchain.Chain, n int, miner string, difficulty int) (blockchain.Chain, error) {
	out := chain.Clone()
	for i := 0; i < n; i++ {
		tx := blockchain.NewTransfer(miner, fmt.Sprintf("peer-%d", i), float64(i+1))
		block, err := GenerateValidMinedBlock(out, miner, []blockchain.Transaction{tx}, difficulty)
		if err != nil {
			return nil, err
		}
		out = append(out, block)
	}
	return out, nil
}

// BuildChain returns a valid chain of the given length, genesis included.
func BuildChain(length int, miner string, difficulty int) (blockchain.Chain, error) {
	if length < 1 {
		return nil, fmt.Errorf("chain length must be at least 1, got %d", length)
	}
	return ExtendChain(blockchain.NewChain(), length-1, miner, difficulty)
}

// GenerateInvalidBlock creates a block with a wrong previous hash (for testing rejection).
func GenerateInvalidBlock(chain blockchain.Chain) blockchain.Block {
	bad := blockchain.Hash32{0xDE, 0xAD}
	tip := chain.Tip()
	return blockchain.Block{
		Index:        tip.Index + 1,
		Timestamp:    time.Now().Unix(),
		Transactions: []blockchain.Transaction{},
		Proof:        0,
		PreviousHash: &bad,
	}
}
