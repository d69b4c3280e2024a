package p2p

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"minichain/logx"
	"minichain/monitoring"
)

var (
	// ErrMalformedAddress is returned for peer addresses that are not absolute http(s) URLs.
	ErrMalformedAddress = errors.New("malformed peer address")
	// ErrTooManyPeers is returned when the registry is at its limit.
	ErrTooManyPeers = errors.New("too many peers")
)

type PeerStatus int

const (
	PeerUnknown PeerStatus = iota
	PeerReachable
	PeerFailed
)

func (s PeerStatus) String() string {
	switch s {
	case PeerReachable:
		return "reachable"
	case PeerFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s PeerStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Peer struct {
	Address  string     `json:"address"`
	AddedAt  time.Time  `json:"added_at"`
	LastSeen time.Time  `json:"last_seen"`
	Status   PeerStatus `json:"status"`
	Failures int        `json:"failures"`
}

// PeerRegistry is the set of known peers. It has its own lock, independent of the ledger.
type PeerRegistry struct {
	mu       sync.RWMutex
	peers    map[string]*Peer
	maxPeers int
}

// NewPeerRegistry creates a registry. maxPeers <= 0 means unlimited.
func NewPeerRegistry(maxPeers int) *PeerRegistry {
	return &PeerRegistry{
		peers:    make(map[string]*Peer),
		maxPeers: maxPeers,
	}
}

// ParseAddress validates address and returns its normalised form.
func ParseAddress(address string) (string, error) {
	trimmed := strings.TrimSpace(address)
	u, err := url.ParseRequestURI(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrMalformedAddress, address, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w %q: scheme must be http or https", ErrMalformedAddress, address)
	}
	if u.Host == "" || u.Hostname() == "" {
		return "", fmt.Errorf("%w %q: missing host", ErrMalformedAddress, address)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("%w %q: query and fragment are not allowed", ErrMalformedAddress, address)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String(), nil
}

// AddPeer validates and inserts address. Adding a known peer is a no-op.
func (r *PeerRegistry) AddPeer(address string) error {
	normalised, err := ParseAddress(address)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.peers[normalised]; ok {
		return nil
	}
	if r.maxPeers > 0 && len(r.peers) >= r.maxPeers {
		return fmt.Errorf("%w: limit is %d", ErrTooManyPeers, r.maxPeers)
	}

	r.peers[normalised] = &Peer{
		Address: normalised,
		AddedAt: time.Now(),
		Status:  PeerUnknown,
	}
	monitoring.SetPeerCount(len(r.peers))
	logx.Info("PEERS", "Registered peer ", normalised)
	return nil
}

// ListPeers returns a snapshot of the peer addresses in no particular order.
func (r *PeerRegistry) ListPeers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	addresses := make([]string, 0, len(r.peers))
	for address := range r.peers {
		addresses = append(addresses, address)
	}
	return addresses
}

// Peers returns copies of every peer record.
func (r *PeerRegistry) Peers() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, *p)
	}
	return peers
}

func (r *PeerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// MarkReachable records a successful exchange with address.
func (r *PeerRegistry) MarkReachable(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.peers[address]; ok {
		p.Status = PeerReachable
		p.LastSeen = time.Now()
		p.Failures = 0
	}
}

// MarkFailed records a failed exchange with address.
func (r *PeerRegistry) MarkFailed(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.peers[address]; ok {
		p.Status = PeerFailed
		p.Failures++
	}
}
