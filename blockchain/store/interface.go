package store

import (
	"minichain/blockchain"
)

// ChainStore holds the chain and the pending pool behind a single lock.
// Every method is atomic with respect to every other.
type ChainStore interface {

	// Update/Add/Put
	AddTransaction(tx blockchain.Transaction)
	CommitBlock(expectedTip blockchain.Hash32, build BlockBuilder) (blockchain.Block, error)
	ReplaceChain(newChain blockchain.Chain, precondition func(current blockchain.Chain) error) error

	// Getters
	GetBlockByIndex(index uint64) (blockchain.Block, error)
	GetBlockByHash(hash blockchain.Hash32) (blockchain.Block, error)
	GetHeadBlock() (blockchain.Block, error)
	GetChainHeight() (uint64, error)
	GetChain() (blockchain.Chain, error)
	GetPendingTransactions() ([]blockchain.Transaction, error)
}

// BlockBuilder turns the drained pending pool into the block to append.
type BlockBuilder func(tip *blockchain.Block, pending []blockchain.Transaction) blockchain.Block
