package handlers

import (
	"context"
	"net/http"

	"minichain/blockchain"
	"minichain/jsonx"
	"minichain/logx"
	"minichain/p2p"
)

// Ledger is what the handlers need from the ledger engine.
type Ledger interface {
	Chain() blockchain.Chain
	Mine(ctx context.Context) (blockchain.Block, error)
	SubmitTransaction(tx blockchain.Transaction)
	Height() uint64
	Head() blockchain.Block
	BlockByIndex(index uint64) (blockchain.Block, error)
	BlockByHash(hash blockchain.Hash32) (blockchain.Block, error)
	PendingTransactions() []blockchain.Transaction
}

// PeerRegistry is what the handlers need from the peer registry.
type PeerRegistry interface {
	AddPeer(address string) error
	ListPeers() []string
	Peers() []p2p.Peer
}

// ResolveTrigger starts a consensus round in the background.
type ResolveTrigger interface {
	Trigger()
}

// emptyObject is the body of operations that return nothing.
var emptyObject = struct{}{}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := jsonx.NewEncoder(w).Encode(v); err != nil {
		logx.Error("API", "Failed to encode response: ", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
