package consensus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minichain/blockchain"
	"minichain/jsonx"
	"minichain/ledger"
	"minichain/mocks"
	"minichain/p2p"
	"minichain/p2p/reqresp"
)

const testDifficulty = 1

func newTestLedger(owner string) *ledger.Ledger {
	return ledger.New(ledger.Config{
		Owner: owner,
		Proof: blockchain.ProofParams{Difficulty: testDifficulty},
	})
}

// servePeer exposes l's chain the way a node does at GET /chain.
func servePeer(t *testing.T, l *ledger.Ledger) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chain" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = jsonx.NewEncoder(w).Encode(l.Chain())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func mineN(t *testing.T, l *ledger.Ledger, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := l.Mine(context.Background())
		require.NoError(t, err)
	}
}

func outcomeFor(t *testing.T, report Report, peer string) PeerOutcome {
	t.Helper()
	for _, o := range report.Outcomes {
		if o.Peer == peer {
			return o
		}
	}
	t.Fatalf("no outcome for %s", peer)
	return PeerOutcome{}
}

func newResolver(l *ledger.Ledger, registry *p2p.PeerRegistry) *Resolver {
	return NewResolver(
		Config{FetchTimeout: 2 * time.Second},
		l,
		registry,
		reqresp.NewClient(reqresp.DefaultConfig(), nil),
	)
}

func TestResolveAdoptsLongerPeerChain(t *testing.T) {
	// A holds 3 blocks, B holds 2; B resolves against A.
	nodeA := newTestLedger("alice")
	mineN(t, nodeA, 2)
	nodeB := newTestLedger("bob")
	mineN(t, nodeB, 1)

	srvA := servePeer(t, nodeA)
	registry := p2p.NewPeerRegistry(0)
	require.NoError(t, registry.AddPeer(srvA.URL))

	report := newResolver(nodeB, registry).Resolve(context.Background())

	assert.True(t, report.Replaced)
	assert.Equal(t, uint64(3), report.Height)
	assert.Equal(t, nodeA.Chain(), nodeB.Chain())

	outcome := outcomeFor(t, report, srvA.URL)
	assert.Equal(t, OutcomeAdopted, outcome.Status)
	assert.Equal(t, 3, outcome.Length)
	assert.NoError(t, outcome.Err)

	peer, ok := report.Adopted()
	assert.True(t, ok)
	assert.Equal(t, srvA.URL, peer)

	peers := registry.Peers()
	require.Len(t, peers, 1)
	assert.Equal(t, p2p.PeerReachable, peers[0].Status)
}

func TestResolveKeepsLongerLocalChain(t *testing.T) {
	// The reverse of the scenario above: A resolving against B changes nothing.
	nodeA := newTestLedger("alice")
	mineN(t, nodeA, 2)
	nodeB := newTestLedger("bob")
	mineN(t, nodeB, 1)
	before := nodeA.Chain()

	srvB := servePeer(t, nodeB)
	registry := p2p.NewPeerRegistry(0)
	require.NoError(t, registry.AddPeer(srvB.URL))

	report := newResolver(nodeA, registry).Resolve(context.Background())

	assert.False(t, report.Replaced)
	assert.Equal(t, before, nodeA.Chain())
	outcome := outcomeFor(t, report, srvB.URL)
	assert.Equal(t, OutcomeRejected, outcome.Status)
	assert.ErrorIs(t, outcome.Err, ledger.ErrChainNotLonger)
}

func TestResolveSurvivesFailingPeers(t *testing.T) {
	local := newTestLedger("bob")

	good := newTestLedger("alice")
	mineN(t, good, 3)
	srvGood := servePeer(t, good)

	srvErr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusInternalServerError)
	}))
	defer srvErr.Close()

	srvGarbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>not a chain</html>")
	}))
	defer srvGarbage.Close()

	srvGone := httptest.NewServer(http.NotFoundHandler())
	goneURL := srvGone.URL
	srvGone.Close()

	registry := p2p.NewPeerRegistry(0)
	for _, address := range []string{srvGood.URL, srvErr.URL, srvGarbage.URL, goneURL} {
		require.NoError(t, registry.AddPeer(address))
	}

	report := newResolver(local, registry).Resolve(context.Background())

	require.Len(t, report.Outcomes, 4)
	assert.True(t, report.Replaced)
	assert.Equal(t, uint64(4), local.Height())

	assert.Equal(t, OutcomeAdopted, outcomeFor(t, report, srvGood.URL).Status)
	for _, address := range []string{srvErr.URL, srvGarbage.URL, goneURL} {
		outcome := outcomeFor(t, report, address)
		assert.Equal(t, OutcomeFetchFailed, outcome.Status, address)
		assert.Error(t, outcome.Err, address)
		assert.Zero(t, outcome.Length)
	}

	for _, p := range registry.Peers() {
		if p.Address == srvGood.URL {
			assert.Equal(t, p2p.PeerReachable, p.Status)
		} else {
			assert.Equal(t, p2p.PeerFailed, p.Status, p.Address)
		}
	}
}

func TestResolveRejectsInvalidChain(t *testing.T) {
	local := newTestLedger("bob")

	forged, err := mocks.BuildChain(3, "mallory", testDifficulty)
	require.NoError(t, err)
	forged = append(forged, mocks.GenerateInvalidBlock(forged))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = jsonx.NewEncoder(w).Encode(forged)
	}))
	defer srv.Close()

	registry := p2p.NewPeerRegistry(0)
	require.NoError(t, registry.AddPeer(srv.URL))

	report := newResolver(local, registry).Resolve(context.Background())

	assert.False(t, report.Replaced)
	assert.Equal(t, uint64(1), local.Height())
	outcome := outcomeFor(t, report, srv.URL)
	assert.Equal(t, OutcomeRejected, outcome.Status)
	assert.Equal(t, 4, outcome.Length)
	assert.ErrorIs(t, outcome.Err, ledger.ErrInvalidChain)
}

func TestResolveNoPeers(t *testing.T) {
	local := newTestLedger("bob")
	report := newResolver(local, p2p.NewPeerRegistry(0)).Resolve(context.Background())

	assert.Empty(t, report.Outcomes)
	assert.False(t, report.Replaced)
	assert.Equal(t, uint64(1), report.Height)
}

// staticFetcher serves canned chains or errors keyed by peer address.
type staticFetcher struct {
	chains map[string]blockchain.Chain
	errs   map[string]error
	calls  atomic.Int32
}

func (f *staticFetcher) FetchChain(ctx context.Context, peer string) (blockchain.Chain, error) {
	f.calls.Add(1)
	if err, ok := f.errs[peer]; ok {
		return nil, err
	}
	return f.chains[peer].Clone(), nil
}

func TestResolveTieBreakIsDeterministic(t *testing.T) {
	x, err := mocks.BuildChain(4, "xavier", testDifficulty)
	require.NoError(t, err)
	y, err := mocks.BuildChain(4, "yvonne", testDifficulty)
	require.NoError(t, err)
	shorter, err := mocks.BuildChain(2, "zed", testDifficulty)
	require.NoError(t, err)

	tipX, tipY := x.Tip(), y.Tip()
	hashX, hashY := blockchain.HashBlock(&tipX), blockchain.HashBlock(&tipY)
	want := x
	if hashY.String() < hashX.String() {
		want = y
	}

	fetcher := &staticFetcher{chains: map[string]blockchain.Chain{
		"http://peer-x": x,
		"http://peer-y": y,
		"http://peer-z": shorter,
	}}

	for i := 0; i < 5; i++ {
		local := newTestLedger("bob")
		registry := p2p.NewPeerRegistry(0)
		for address := range fetcher.chains {
			require.NoError(t, registry.AddPeer(address))
		}

		report := NewResolver(Config{MaxConcurrentFetches: 2}, local, registry, fetcher).Resolve(context.Background())

		assert.True(t, report.Replaced)
		assert.Equal(t, want, local.Chain())

		adopted := 0
		for _, o := range report.Outcomes {
			if o.Status == OutcomeAdopted {
				adopted++
			}
		}
		assert.Equal(t, 1, adopted)
		assert.Equal(t, OutcomeRejected, outcomeFor(t, report, "http://peer-z").Status)
	}
	assert.Equal(t, int32(15), fetcher.calls.Load())
}

func TestResolveOutcomesSortedByPeer(t *testing.T) {
	fetcher := &staticFetcher{errs: map[string]error{}}
	registry := p2p.NewPeerRegistry(0)
	for i := 9; i >= 0; i-- {
		address := fmt.Sprintf("http://peer-%d", i)
		fetcher.errs[address] = errors.New("unreachable")
		require.NoError(t, registry.AddPeer(address))
	}

	report := NewResolver(Config{}, newTestLedger("bob"), registry, fetcher).Resolve(context.Background())

	require.Len(t, report.Outcomes, 10)
	for i, o := range report.Outcomes {
		assert.Equal(t, fmt.Sprintf("http://peer-%d", i), o.Peer)
		assert.Equal(t, OutcomeFetchFailed, o.Status)
		assert.Equal(t, "fetch_failed", o.Status.String())
	}
}

// blockingFetcher holds every fetch until the context ends.
type blockingFetcher struct {
	mu      sync.Mutex
	started int
}

func (f *blockingFetcher) FetchChain(ctx context.Context, peer string) (blockchain.Chain, error) {
	f.mu.Lock()
	f.started++
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestResolveFetchTimeout(t *testing.T) {
	registry := p2p.NewPeerRegistry(0)
	require.NoError(t, registry.AddPeer("http://slow-1"))
	require.NoError(t, registry.AddPeer("http://slow-2"))

	fetcher := &blockingFetcher{}
	local := newTestLedger("bob")
	r := NewResolver(Config{FetchTimeout: 30 * time.Millisecond}, local, registry, fetcher)

	start := time.Now()
	report := r.Resolve(context.Background())
	assert.Less(t, time.Since(start), 2*time.Second, "fetches run concurrently and are bounded")

	for _, o := range report.Outcomes {
		assert.Equal(t, OutcomeFetchFailed, o.Status)
		assert.ErrorIs(t, o.Err, context.DeadlineExceeded)
	}
	assert.Equal(t, 2, fetcher.started)
}
