package handlers

import (
	"context"
	"errors"
	"net/http"

	"minichain/blockchain"
	"minichain/logx"
)

// HandleMine mines one block and returns it. A search that exhausts its
// attempts or its time budget answers 503 and leaves the ledger unchanged.
func HandleMine(w http.ResponseWriter, r *http.Request, ledger Ledger) {
	block, err := ledger.Mine(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, block)
	case errors.Is(err, blockchain.ErrProofNotFound), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled):
		logx.Warn("API", "Mine request cancelled by client")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
