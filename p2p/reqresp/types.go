package reqresp

import "time"

// Config holds configuration for the peer client
type Config struct {
	// MaxResponseWaitTimeout bounds a single request, connection and body included.
	MaxResponseWaitTimeout time.Duration
	// MaxPendingRequests caps requests in flight at once across all peers.
	MaxPendingRequests int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxResponseWaitTimeout: 5 * time.Second,
		MaxPendingRequests:     100,
	}
}

// AddPeerRequest is the object form accepted by POST /nodes/add.
type AddPeerRequest struct {
	Address string `json:"address"`
}

// HeightResponse is the body of GET /chain/height.
type HeightResponse struct {
	Height uint64 `json:"height"`
}
