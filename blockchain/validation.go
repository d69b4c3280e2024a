package blockchain

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrEmptyChain   = errors.New("chain has no blocks")
	ErrNotGenesis   = errors.New("first block is not genesis")
	ErrBrokenLink   = errors.New("previous hash does not match")
	ErrInvalidProof = errors.New("proof does not satisfy difficulty")
	ErrBadIndex     = errors.New("index does not follow previous block")
)

// BlockError points at the first block of a chain that failed validation.
type BlockError struct {
	Index int
	Err   error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("block %d: %v", e.Index, e.Err)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}

// IsGenesis reports whether block is structurally identical to the genesis block.
func IsGenesis(block *Block) bool {
	genesis := GenesisBlock()
	if block.Transactions == nil && len(genesis.Transactions) == 0 {
		genesis.Transactions = nil
	}
	return reflect.DeepEqual(*block, genesis)
}

// ValidateLink checks that cur may directly follow prev.
func ValidateLink(prev, cur *Block, difficulty int) error {
	if cur.Index != prev.Index+1 {
		return ErrBadIndex
	}
	if cur.PreviousHash == nil || *cur.PreviousHash != HashBlock(prev) {
		return ErrBrokenLink
	}
	if !ValidProof(prev.Proof, cur.Proof, difficulty) {
		return ErrInvalidProof
	}
	return nil
}

// ValidateChain scans the chain from genesis and returns the first failure.
func ValidateChain(chain Chain, difficulty int) error {
	if len(chain) == 0 {
		return ErrEmptyChain
	}

	if !IsGenesis(&chain[0]) {
		return &BlockError{Index: 0, Err: ErrNotGenesis}
	}

	for i := 1; i < len(chain); i++ {
		if err := ValidateLink(&chain[i-1], &chain[i], difficulty); err != nil {
			return &BlockError{Index: i, Err: err}
		}
	}

	return nil
}

// IsValidChain is ValidateChain as a predicate.
func IsValidChain(chain Chain, difficulty int) bool {
	return ValidateChain(chain, difficulty) == nil
}
