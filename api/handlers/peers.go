package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"sort"

	"minichain/jsonx"
	"minichain/logx"
	"minichain/p2p"
)

const maxPeerBodyBytes = 1 << 16

func HandleListPeers(w http.ResponseWriter, r *http.Request, peers PeerRegistry) {
	addresses := peers.ListPeers()
	sort.Strings(addresses)
	writeJSON(w, http.StatusOK, addresses)
}

func HandlePeerStatus(w http.ResponseWriter, r *http.Request, peers PeerRegistry) {
	list := peers.Peers()
	sort.Slice(list, func(i, j int) bool { return list[i].Address < list[j].Address })
	writeJSON(w, http.StatusOK, list)
}

// HandleAddPeer accepts either a bare JSON string or {"address": "..."}.
func HandleAddPeer(w http.ResponseWriter, r *http.Request, peers PeerRegistry) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPeerBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	address, err := decodeAddress(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := peers.AddPeer(address); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, p2p.ErrTooManyPeers) {
			status = http.StatusConflict
		}
		logx.Warn("API", "Rejected peer: ", err)
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, emptyObject)
}

func decodeAddress(body []byte) (string, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return "", errors.New("request has empty body")
	}

	if body[0] == '"' {
		var address string
		if err := jsonx.Unmarshal(body, &address); err != nil {
			return "", errors.New("invalid JSON string")
		}
		return address, nil
	}

	var req struct {
		Address string `json:"address"`
	}
	if err := jsonx.Unmarshal(body, &req); err != nil {
		return "", errors.New("body must be a JSON string or {\"address\": ...}")
	}
	if req.Address == "" {
		return "", errors.New("address is required")
	}
	return req.Address, nil
}

// HandleResolve starts a consensus round and answers without waiting for it.
func HandleResolve(w http.ResponseWriter, r *http.Request, resolver ResolveTrigger) {
	resolver.Trigger()
	writeJSON(w, http.StatusOK, emptyObject)
}
