package consensus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"minichain/blockchain"
	"minichain/ledger"
	"minichain/logx"
	"minichain/monitoring"
)

// ChainFetcher downloads a peer's full chain.
type ChainFetcher interface {
	FetchChain(ctx context.Context, peer string) (blockchain.Chain, error)
}

// ChainAdopter is the part of the ledger a resolver needs.
type ChainAdopter interface {
	TryAdopt(candidate blockchain.Chain) error
	Height() uint64
}

// PeerSource lists peers and records how each exchange went.
type PeerSource interface {
	ListPeers() []string
	MarkReachable(address string)
	MarkFailed(address string)
}

type OutcomeStatus int

const (
	OutcomeAdopted OutcomeStatus = iota
	OutcomeRejected
	OutcomeFetchFailed
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeAdopted:
		return "adopted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFetchFailed:
		return "fetch_failed"
	default:
		return fmt.Sprintf("OutcomeStatus(%d)", int(s))
	}
}

func (s OutcomeStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// PeerOutcome is what happened with one peer during a round. Length is the
// number of blocks fetched, zero when the fetch failed.
type PeerOutcome struct {
	Peer   string        `json:"peer"`
	Status OutcomeStatus `json:"status"`
	Err    error         `json:"-"`
	Length int           `json:"length"`
}

// Report summarises one consensus round. Outcomes are sorted by peer address.
type Report struct {
	Outcomes []PeerOutcome `json:"outcomes"`
	Replaced bool          `json:"replaced"`
	Height   uint64        `json:"height"`
}

// Adopted returns the peer whose chain replaced ours, if any.
func (r Report) Adopted() (string, bool) {
	for _, o := range r.Outcomes {
		if o.Status == OutcomeAdopted {
			return o.Peer, true
		}
	}
	return "", false
}

type Config struct {
	// FetchTimeout bounds each peer fetch. Zero means only the round context bounds it.
	FetchTimeout time.Duration
	// MaxConcurrentFetches limits fetches in flight. Zero or less means one per peer.
	MaxConcurrentFetches int
}

func DefaultConfig() Config {
	return Config{
		FetchTimeout:         5 * time.Second,
		MaxConcurrentFetches: 16,
	}
}

// Resolver runs longest-valid-chain consensus rounds against registered peers.
type Resolver struct {
	config  Config
	ledger  ChainAdopter
	peers   PeerSource
	fetcher ChainFetcher
}

func NewResolver(config Config, ledger ChainAdopter, peers PeerSource, fetcher ChainFetcher) *Resolver {
	return &Resolver{
		config:  config,
		ledger:  ledger,
		peers:   peers,
		fetcher: fetcher,
	}
}

type candidate struct {
	outcome int
	chain   blockchain.Chain
	tip     blockchain.Hash32
}

// Resolve fetches every peer's chain concurrently, then offers the fetched
// chains to the ledger one at a time. The ledger lock is never held while
// fetching. Candidates go longest first; equal lengths are ordered by
// ascending tip hash, so the same set of peer chains always yields the same
// result.
func (r *Resolver) Resolve(ctx context.Context) Report {
	monitoring.IncreaseResolveRounds()

	peers := r.peers.ListPeers()
	sort.Strings(peers)

	outcomes := make([]PeerOutcome, len(peers))
	chains := make([]blockchain.Chain, len(peers))

	var g errgroup.Group
	if r.config.MaxConcurrentFetches > 0 {
		g.SetLimit(r.config.MaxConcurrentFetches)
	}
	for i, peer := range peers {
		i, peer := i, peer
		g.Go(func() error {
			outcomes[i].Peer = peer
			chain, err := r.fetch(ctx, peer)
			if err != nil {
				outcomes[i].Status = OutcomeFetchFailed
				outcomes[i].Err = err
				return nil
			}
			chains[i] = chain
			outcomes[i].Length = len(chain)
			return nil
		})
	}
	// Fetch failures are recorded per peer and never abort the round.
	_ = g.Wait()

	candidates := make([]candidate, 0, len(peers))
	for i := range peers {
		if outcomes[i].Status == OutcomeFetchFailed {
			monitoring.IncreasePeerFetchFailures()
			r.peers.MarkFailed(peers[i])
			logx.Warn("CONSENSUS", fmt.Sprintf("Fetching chain from %s failed: %v", peers[i], outcomes[i].Err))
			continue
		}
		r.peers.MarkReachable(peers[i])

		c := candidate{outcome: i, chain: chains[i]}
		if len(chains[i]) > 0 {
			tip := chains[i].Tip()
			c.tip = blockchain.HashBlock(&tip)
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if len(candidates[a].chain) != len(candidates[b].chain) {
			return len(candidates[a].chain) > len(candidates[b].chain)
		}
		return bytes.Compare(candidates[a].tip[:], candidates[b].tip[:]) < 0
	})

	report := Report{Outcomes: outcomes}
	for _, c := range candidates {
		outcome := &outcomes[c.outcome]
		if err := r.ledger.TryAdopt(c.chain); err != nil {
			outcome.Status = OutcomeRejected
			outcome.Err = err
			if !errors.Is(err, ledger.ErrChainNotLonger) {
				logx.Info("CONSENSUS", fmt.Sprintf("Rejected chain from %s: %v", outcome.Peer, err))
			}
			continue
		}
		outcome.Status = OutcomeAdopted
		report.Replaced = true
		logx.Info("CONSENSUS", fmt.Sprintf("Adopted chain of %d blocks from %s", len(c.chain), outcome.Peer))
	}

	report.Height = r.ledger.Height()
	logx.Info("CONSENSUS", fmt.Sprintf("Resolve round over %d peers done, replaced=%t height=%d", len(peers), report.Replaced, report.Height))
	return report
}

func (r *Resolver) fetch(ctx context.Context, peer string) (blockchain.Chain, error) {
	if r.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.FetchTimeout)
		defer cancel()
	}
	return r.fetcher.FetchChain(ctx, peer)
}
