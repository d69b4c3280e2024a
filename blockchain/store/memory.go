package store

import (
	"errors"
	"fmt"
	"sync"

	"minichain/blockchain"
)

var (
	// ErrTipMoved is returned by CommitBlock when the chain changed since the caller looked.
	ErrTipMoved = errors.New("chain tip moved")
	// ErrBlockNotFound is returned by block lookups that miss.
	ErrBlockNotFound = errors.New("block not found")
)

type MemoryChainStore struct {
	chain   blockchain.Chain
	pending []blockchain.Transaction
	mu      sync.RWMutex
}

// NewMemoryChainStore returns a store holding only the genesis block.
func NewMemoryChainStore() *MemoryChainStore {
	return &MemoryChainStore{
		chain:   blockchain.NewChain(),
		pending: make([]blockchain.Transaction, 0),
	}
}

func (m *MemoryChainStore) AddTransaction(tx blockchain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = append(m.pending, cloneTransaction(tx))
}

// CommitBlock drains the pending pool into build and appends the result, provided
// the tip still hashes to expectedTip. Pool and chain change together or not at all.
func (m *MemoryChainStore) CommitBlock(expectedTip blockchain.Hash32, build BlockBuilder) (blockchain.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tip := m.chain.Tip()
	if blockchain.HashBlock(&tip) != expectedTip {
		return blockchain.Block{}, ErrTipMoved
	}

	pending := m.pending
	block := build(&tip, pending)

	m.chain = append(m.chain, block.Clone())
	m.pending = make([]blockchain.Transaction, 0)

	return block, nil
}

// ReplaceChain atomically replaces the entire chain - used after validation on copy.
// precondition runs under the lock against the current chain and may veto the swap.
func (m *MemoryChainStore) ReplaceChain(newChain blockchain.Chain, precondition func(current blockchain.Chain) error) error {
	if len(newChain) == 0 {
		return errors.New("cannot replace with empty chain")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if precondition != nil {
		if err := precondition(m.chain); err != nil {
			return err
		}
	}

	m.chain = newChain.Clone()
	return nil
}

func (m *MemoryChainStore) GetHeadBlock() (blockchain.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.chain.Tip().Clone(), nil
}

func (m *MemoryChainStore) GetChain() (blockchain.Chain, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.chain.Clone(), nil
}

func (m *MemoryChainStore) GetChainHeight() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return uint64(len(m.chain)), nil
}

func (m *MemoryChainStore) GetBlockByIndex(index uint64) (blockchain.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if index >= uint64(len(m.chain)) {
		return blockchain.Block{}, fmt.Errorf("%w: index %d, height %d", ErrBlockNotFound, index, len(m.chain))
	}
	return m.chain[index].Clone(), nil
}

func (m *MemoryChainStore) GetBlockByHash(hash blockchain.Hash32) (blockchain.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.chain {
		if blockchain.HashBlock(&m.chain[i]) == hash {
			return m.chain[i].Clone(), nil
		}
	}

	return blockchain.Block{}, fmt.Errorf("%w: hash %s", ErrBlockNotFound, hash.Short())
}

func (m *MemoryChainStore) GetPendingTransactions() ([]blockchain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]blockchain.Transaction, len(m.pending))
	for i, tx := range m.pending {
		out[i] = cloneTransaction(tx)
	}
	return out, nil
}

func cloneTransaction(tx blockchain.Transaction) blockchain.Transaction {
	if tx.From != nil {
		from := *tx.From
		tx.From = &from
	}
	return tx
}
