package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"minichain/blockchain"
	"minichain/blockchain/store"
	"minichain/logx"
	"minichain/monitoring"
)

var (
	// ErrInvalidChain rejects a candidate that fails chain validation.
	ErrInvalidChain = errors.New("candidate chain is invalid")
	// ErrChainNotLonger rejects a valid candidate that is not strictly longer than ours.
	ErrChainNotLonger = errors.New("candidate chain is not longer")
)

// Config holds the ledger's identity and proof-of-work settings.
type Config struct {
	// Owner receives the reward transaction of every block mined here.
	Owner string
	// Proof configures the search and the validation of peer chains. A
	// non-positive Difficulty means blockchain.DefaultDifficulty.
	Proof blockchain.ProofParams
	// MineTimeout bounds a single Mine call. Zero means only ctx bounds it.
	MineTimeout time.Duration
	// OnChainChanged, when set, receives a copy of the chain after every
	// mined or adopted block. It runs outside the ledger lock.
	OnChainChanged func(chain blockchain.Chain)
}

// Ledger owns the chain and the pending pool. Every exported method is atomic
// with respect to the others; no internal storage escapes.
type Ledger struct {
	store  store.ChainStore
	config Config
	now    func() time.Time
}

// New returns a ledger over a fresh in-memory store holding only genesis.
func New(config Config) *Ledger {
	return NewWithStore(config, store.NewMemoryChainStore())
}

// NewWithStore returns a ledger over chainStore. A zero difficulty falls back
// to blockchain.DefaultDifficulty.
func NewWithStore(config Config, chainStore store.ChainStore) *Ledger {
	if config.Proof.Difficulty <= 0 {
		config.Proof.Difficulty = blockchain.DefaultDifficulty
	}
	return &Ledger{
		store:  chainStore,
		config: config,
		now:    time.Now,
	}
}

func (l *Ledger) Owner() string {
	return l.config.Owner
}

func (l *Ledger) Difficulty() int {
	return l.config.Proof.Difficulty
}

// SubmitTransaction appends tx to the pending pool. Amounts and identities are not checked.
func (l *Ledger) SubmitTransaction(tx blockchain.Transaction) {
	l.store.AddTransaction(tx)
	monitoring.IncreaseSubmittedTxCount()
	l.reportPool()

	from := "<reward>"
	if tx.From != nil {
		from = *tx.From
	}
	logx.Debug("LEDGER", fmt.Sprintf("Pending transaction %s -> %s amount=%g", from, tx.To, tx.Amount))
}

// Mine pays the owner, searches a proof on the current tip and appends a block
// holding every pending transaction. The search runs without the lock; if the
// tip changes meanwhile the search starts over on the new tip.
func (l *Ledger) Mine(ctx context.Context) (blockchain.Block, error) {
	if l.config.MineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.config.MineTimeout)
		defer cancel()
	}

	start := l.now()
	for {
		tip, err := l.store.GetHeadBlock()
		if err != nil {
			return blockchain.Block{}, fmt.Errorf("failed to get head block: %w", err)
		}
		tipHash := blockchain.HashBlock(&tip)

		proof, err := blockchain.SearchProof(ctx, tip.Proof, l.config.Proof)
		if err != nil {
			monitoring.IncreaseMiningFailures()
			logx.Warn("MINER", fmt.Sprintf("Proof search on block %d failed: %v", tip.Index, err))
			return blockchain.Block{}, fmt.Errorf("mine on block %d: %w", tip.Index, err)
		}

		block, err := l.store.CommitBlock(tipHash, func(prev *blockchain.Block, pending []blockchain.Transaction) blockchain.Block {
			txs := make([]blockchain.Transaction, 0, len(pending)+1)
			txs = append(txs, pending...)
			txs = append(txs, blockchain.NewReward(l.config.Owner))
			return blockchain.NewBlock(blockchain.BlockCreationParams{
				Previous:     prev,
				Transactions: txs,
				Proof:        proof,
				Timestamp:    l.now().Unix(),
			})
		})
		if errors.Is(err, store.ErrTipMoved) {
			logx.Debug("MINER", fmt.Sprintf("Tip %s moved during proof search, retrying", tipHash.Short()))
			continue
		}
		if err != nil {
			monitoring.IncreaseMiningFailures()
			return blockchain.Block{}, fmt.Errorf("failed to commit block: %w", err)
		}

		hash := blockchain.HashBlock(&block)
		logx.Info("MINER", fmt.Sprintf("Mined block %d hash=%s proof=%d txs=%d", block.Index, hash.Short(), block.Proof, len(block.Transactions)))
		monitoring.RecordBlockMined(l.now().Sub(start))
		l.chainChanged()
		return block, nil
	}
}

// Chain returns a copy of the current chain.
func (l *Ledger) Chain() blockchain.Chain {
	chain, err := l.store.GetChain()
	if err != nil {
		logx.Error("LEDGER", "Failed to read chain: ", err)
		return nil
	}
	return chain
}

// TryAdopt replaces the local chain with candidate when candidate is valid and
// strictly longer. Otherwise it returns an error wrapping ErrInvalidChain or
// ErrChainNotLonger and leaves the ledger untouched.
func (l *Ledger) TryAdopt(candidate blockchain.Chain) error {
	// Validity does not depend on local state, so it is checked before locking.
	own := candidate.Clone()
	if err := blockchain.ValidateChain(own, l.config.Proof.Difficulty); err != nil {
		monitoring.RecordAdoption(monitoring.AdoptionInvalid)
		logx.Info("LEDGER", fmt.Sprintf("Rejected candidate chain of %d blocks: %v", len(own), err))
		return fmt.Errorf("%w: %w", ErrInvalidChain, err)
	}

	err := l.store.ReplaceChain(own, func(current blockchain.Chain) error {
		if len(own) <= len(current) {
			return fmt.Errorf("%w: candidate has %d blocks, local has %d", ErrChainNotLonger, len(own), len(current))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrChainNotLonger) {
			monitoring.RecordAdoption(monitoring.AdoptionNotLonger)
		}
		logx.Info("LEDGER", "Kept local chain: ", err)
		return err
	}

	monitoring.RecordAdoption(monitoring.AdoptionAccepted)
	tip := own.Tip()
	logx.Info("LEDGER", fmt.Sprintf("Adopted chain of %d blocks, tip=%s", len(own), blockchain.HashBlock(&tip).Short()))
	l.chainChanged()
	return nil
}

func (l *Ledger) Height() uint64 {
	height, _ := l.store.GetChainHeight()
	return height
}

func (l *Ledger) Head() blockchain.Block {
	head, _ := l.store.GetHeadBlock()
	return head
}

func (l *Ledger) BlockByIndex(index uint64) (blockchain.Block, error) {
	return l.store.GetBlockByIndex(index)
}

func (l *Ledger) BlockByHash(hash blockchain.Hash32) (blockchain.Block, error) {
	return l.store.GetBlockByHash(hash)
}

func (l *Ledger) PendingTransactions() []blockchain.Transaction {
	pending, _ := l.store.GetPendingTransactions()
	return pending
}

func (l *Ledger) reportPool() {
	pending, err := l.store.GetPendingTransactions()
	if err == nil {
		monitoring.SetPendingPoolSize(len(pending))
	}
}

func (l *Ledger) chainChanged() {
	chain := l.Chain()
	monitoring.SetChainHeight(len(chain))
	l.reportPool()
	if l.config.OnChainChanged != nil && chain != nil {
		l.config.OnChainChanged(chain)
	}
}
