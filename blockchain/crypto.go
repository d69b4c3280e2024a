package blockchain

import (
	"crypto/sha256"
	"fmt"
	"strconv"

	"minichain/jsonx"
)

// EncodeBlock returns the canonical serialized form used for hashing.
func EncodeBlock(block *Block) ([]byte, error) {
	// A nil slice would encode as null and hash differently from an empty one.
	if block.Transactions == nil {
		cp := *block
		cp.Transactions = []Transaction{}
		block = &cp
	}
	return jsonx.Marshal(block)
}

// HashBlock is the deterministic content hash of a block.
func HashBlock(block *Block) Hash32 {
	payload, err := EncodeBlock(block)
	if err != nil {
		// Every field of Block has a total JSON encoding except non-finite floats.
		panic(fmt.Sprintf("blockchain: cannot encode block %d: %v", block.Index, err))
	}
	return sha256.Sum256(payload)
}

// HashProof hashes the decimal concatenation of two proofs.
func HashProof(lastProof, proof uint64) Hash32 {
	h := sha256.New()
	h.Write([]byte(strconv.FormatUint(lastProof, 10)))
	h.Write([]byte(strconv.FormatUint(proof, 10)))
	var hash Hash32
	copy(hash[:], h.Sum(nil))
	return hash
}
