package blockchain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDifficulty = 1

// buildChain mines n blocks on top of genesis at testDifficulty.
func buildChain(t *testing.T, n int) Chain {
	t.Helper()
	chain := NewChain()
	for i := 0; i < n; i++ {
		tip := chain.Tip()
		proof, err := SearchProof(context.Background(), tip.Proof, ProofParams{Difficulty: testDifficulty})
		require.NoError(t, err)
		block := NewBlock(BlockCreationParams{
			Previous:     &tip,
			Transactions: []Transaction{NewTransfer("bob", "carol", float64(i+1)), NewReward("alice")},
			Proof:        proof,
			Timestamp:    int64(1000 + i),
		})
		chain = append(chain, block)
	}
	return chain
}

func TestValidateChain(t *testing.T) {
	t.Run("genesis only chain is valid", func(t *testing.T) {
		assert.NoError(t, ValidateChain(NewChain(), testDifficulty))
	})

	t.Run("mined chain is valid", func(t *testing.T) {
		chain := buildChain(t, 4)
		assert.NoError(t, ValidateChain(chain, testDifficulty))
		assert.True(t, IsValidChain(chain, testDifficulty))
	})

	t.Run("empty chain is invalid", func(t *testing.T) {
		assert.ErrorIs(t, ValidateChain(Chain{}, testDifficulty), ErrEmptyChain)
	})

	t.Run("wrong genesis is invalid", func(t *testing.T) {
		chain := buildChain(t, 1)
		chain[0].Proof = 101
		err := ValidateChain(chain, testDifficulty)
		require.ErrorIs(t, err, ErrNotGenesis)

		var blockErr *BlockError
		require.True(t, errors.As(err, &blockErr))
		assert.Equal(t, 0, blockErr.Index)
	})

	t.Run("genesis with null transactions is still genesis", func(t *testing.T) {
		genesis := GenesisBlock()
		genesis.Transactions = nil
		assert.True(t, IsGenesis(&genesis))
	})
}

func TestValidateChainCorruption(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(c Chain)
		index   int
		wantErr error
	}{
		{
			name: "corrupted previous hash",
			corrupt: func(c Chain) {
				bad := Hash32{0xFF}
				c[2].PreviousHash = &bad
			},
			index:   2,
			wantErr: ErrBrokenLink,
		},
		{
			name:    "missing previous hash",
			corrupt: func(c Chain) { c[1].PreviousHash = nil },
			index:   1,
			wantErr: ErrBrokenLink,
		},
		{
			name:    "tampered transaction breaks successor link",
			corrupt: func(c Chain) { c[1].Transactions[0].Amount = 500 },
			index:   2,
			wantErr: ErrBrokenLink,
		},
		{
			name:    "index jumps ahead",
			corrupt: func(c Chain) { c[1].Index = 999 },
			index:   1,
			wantErr: ErrBadIndex,
		},
		{
			name:    "index repeats predecessor",
			corrupt: func(c Chain) { c[3].Index = c[2].Index },
			index:   3,
			wantErr: ErrBadIndex,
		},
		{
			name: "unsatisfying proof pair",
			corrupt: func(c Chain) {
				// Links stay intact, only the proof predicate fails.
				for p := c[3].Proof + 1; ; p++ {
					if !ValidProof(c[2].Proof, p, testDifficulty) {
						c[3].Proof = p
						break
					}
				}
			},
			index:   3,
			wantErr: ErrInvalidProof,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := buildChain(t, 3)
			tt.corrupt(chain)

			err := ValidateChain(chain, testDifficulty)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var blockErr *BlockError
			require.True(t, errors.As(err, &blockErr))
			assert.Equal(t, tt.index, blockErr.Index)
		})
	}
}

func TestHashMeetsDifficulty(t *testing.T) {
	tests := []struct {
		name       string
		hash       Hash32
		difficulty int
		want       bool
	}{
		{"leading zero meets difficulty 1", Hash32{0x00, 0x40}, 1, true},
		{"leading zero misses difficulty 2", Hash32{0x00, 0x40}, 2, false},
		{"two zero bytes meet difficulty 2", Hash32{0x00, 0x00, 0x01}, 2, true},
		{"no leading zero", Hash32{0xFF}, 1, false},
		{"all zero hash", Hash32{}, 32, true},
		{"difficulty beyond hash size", Hash32{}, 33, false},
		{"zero difficulty always met", Hash32{0xFF}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HashMeetsDifficulty(tt.hash, tt.difficulty))
		})
	}
}
