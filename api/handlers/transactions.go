package handlers

import (
	"net/http"

	"minichain/blockchain"
	"minichain/jsonx"
	"minichain/logx"
)

// transactionRequest mirrors blockchain.Transaction with pointers so missing
// fields can be told apart from zero values.
type transactionRequest struct {
	From   *string  `json:"from"`
	To     *string  `json:"to"`
	Amount *float64 `json:"amount"`
}

func HandleNewTransaction(w http.ResponseWriter, r *http.Request, ledger Ledger) {
	var req transactionRequest
	if err := jsonx.NewDecoder(r.Body).Decode(&req); err != nil {
		logx.Warn("API", "Failed to decode transaction: ", err)
		writeError(w, http.StatusBadRequest, "invalid JSON format")
		return
	}
	if req.To == nil || req.Amount == nil {
		writeError(w, http.StatusBadRequest, "transaction needs both \"to\" and \"amount\"")
		return
	}

	ledger.SubmitTransaction(blockchain.Transaction{
		From:   req.From,
		To:     *req.To,
		Amount: *req.Amount,
	})
	writeJSON(w, http.StatusOK, emptyObject)
}

func HandlePendingTransactions(w http.ResponseWriter, r *http.Request, ledger Ledger) {
	writeJSON(w, http.StatusOK, ledger.PendingTransactions())
}
