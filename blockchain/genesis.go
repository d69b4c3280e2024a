package blockchain

// GenesisBlock returns the fixed first block every valid chain starts with.
// A fresh value is returned so callers cannot alter the canonical one.
func GenesisBlock() Block {
	return Block{
		Index:        0,
		Timestamp:    0,
		Transactions: []Transaction{},
		Proof:        GenesisProof,
		PreviousHash: nil,
	}
}

// GenesisHash is the hash of GenesisBlock.
var GenesisHash = func() Hash32 {
	genesis := GenesisBlock()
	return HashBlock(&genesis)
}()

// NewChain returns a chain holding only the genesis block.
func NewChain() Chain {
	return Chain{GenesisBlock()}
}
