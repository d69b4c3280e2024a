package blockchain

import (
	"context"
	"errors"
	"fmt"
)

// ErrProofNotFound is returned when the proof search exhausts its attempt budget.
var ErrProofNotFound = errors.New("proof not found")

// cancelCheckInterval is how many candidates are tried between context checks.
const cancelCheckInterval = 4096

// ProofParams bounds the proof-of-work search.
type ProofParams struct {
	// Difficulty is the number of leading zero bytes the proof digest needs.
	Difficulty int
	// MaxAttempts caps the number of candidates tried. Zero means unbounded.
	MaxAttempts uint64
}

func DefaultProofParams() ProofParams {
	return ProofParams{Difficulty: DefaultDifficulty}
}

// HashMeetsDifficulty reports whether the first difficulty bytes of hash are zero.
func HashMeetsDifficulty(hash Hash32, difficulty int) bool {
	if difficulty > len(hash) {
		return false
	}

	for i := 0; i < difficulty; i++ {
		if hash[i] != 0 {
			return false
		}
	}

	return true
}

// ValidProof is the proof-of-work predicate linking two consecutive blocks.
func ValidProof(lastProof, proof uint64, difficulty int) bool {
	return HashMeetsDifficulty(HashProof(lastProof, proof), difficulty)
}

// SearchProof finds the smallest proof satisfying ValidProof for lastProof.
// The search is sequential and stops on ctx cancellation or after MaxAttempts.
func SearchProof(ctx context.Context, lastProof uint64, params ProofParams) (uint64, error) {
	if params.Difficulty < 0 || params.Difficulty > len(Hash32{}) {
		return 0, fmt.Errorf("difficulty %d out of range", params.Difficulty)
	}

	var attempts uint64
	for proof := uint64(0); ; proof++ {
		if params.MaxAttempts > 0 && attempts >= params.MaxAttempts {
			return 0, fmt.Errorf("%w after %d attempts", ErrProofNotFound, attempts)
		}
		if attempts%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		attempts++

		if ValidProof(lastProof, proof, params.Difficulty) {
			return proof, nil
		}

		if proof == ^uint64(0) {
			return 0, fmt.Errorf("%w: proof space exhausted", ErrProofNotFound)
		}
	}
}
