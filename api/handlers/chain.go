package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"minichain/blockchain"
	"minichain/blockchain/store"
)

func HandleChain(w http.ResponseWriter, r *http.Request, ledger Ledger) {
	writeJSON(w, http.StatusOK, ledger.Chain())
}

func HandleChainHeight(w http.ResponseWriter, r *http.Request, ledger Ledger) {
	writeJSON(w, http.StatusOK, map[string]uint64{
		"height": ledger.Height(),
	})
}

func HandleChainHead(w http.ResponseWriter, r *http.Request, ledger Ledger) {
	head := ledger.Head()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"block": head,
		"hash":  blockchain.HashBlock(&head),
	})
}

// HandleBlock serves /blocks/{id}, where id is a block index or a 64 char hex hash.
func HandleBlock(w http.ResponseWriter, r *http.Request, ledger Ledger) {
	id := mux.Vars(r)["id"]

	var (
		block blockchain.Block
		err   error
	)
	if index, parseErr := strconv.ParseUint(id, 10, 64); parseErr == nil && len(id) < 64 {
		block, err = ledger.BlockByIndex(index)
	} else {
		var hash blockchain.Hash32
		if err := hash.UnmarshalText([]byte(id)); err != nil {
			writeError(w, http.StatusBadRequest, "block id must be an index or a 64 character hex hash")
			return
		}
		block, err = ledger.BlockByHash(hash)
	}

	if errors.Is(err, store.ErrBlockNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, block)
}
