package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minichain/blockchain"
	"minichain/consensus"
	"minichain/jsonx"
	"minichain/ledger"
	"minichain/monitoring"
	"minichain/p2p"
	"minichain/p2p/reqresp"
)

type testNode struct {
	ledger   *ledger.Ledger
	registry *p2p.PeerRegistry
	server   *httptest.Server
	cancel   context.CancelFunc
}

func startTestNode(t *testing.T, owner string) *testNode {
	t.Helper()
	l := ledger.New(ledger.Config{
		Owner: owner,
		Proof: blockchain.ProofParams{Difficulty: 1},
	})
	registry := p2p.NewPeerRegistry(0)
	client := reqresp.NewClient(reqresp.DefaultConfig(), nil)
	scheduler := consensus.NewScheduler(consensus.NewResolver(consensus.DefaultConfig(), l, registry, client), 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go scheduler.Run(ctx)

	srv := httptest.NewServer(NewServer(l, registry, scheduler, "").Handler())
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testNode{ledger: l, registry: registry, server: srv, cancel: cancel}
}

func TestAPIIntegration(t *testing.T) {
	monitoring.InitMetrics()
	node := startTestNode(t, "alice")
	base := node.server.URL

	t.Run("GET /chain/height", func(t *testing.T) {
		resp, err := http.Get(base + "/chain/height")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		var body reqresp.HeightResponse
		require.NoError(t, jsonx.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, uint64(1), body.Height, "genesis only")
	})

	t.Run("GET /chain/head", func(t *testing.T) {
		resp, err := http.Get(base + "/chain/head")
		require.NoError(t, err)
		defer resp.Body.Close()

		var body struct {
			Block blockchain.Block  `json:"block"`
			Hash  blockchain.Hash32 `json:"hash"`
		}
		require.NoError(t, jsonx.NewDecoder(resp.Body).Decode(&body))
		assert.True(t, blockchain.IsGenesis(&body.Block))
		assert.Equal(t, blockchain.GenesisHash, body.Hash)
	})

	t.Run("POST /transactions/new then GET /mine", func(t *testing.T) {
		resp, err := http.Post(base+"/transactions/new", "application/json",
			strings.NewReader(`{"from":"bob","to":"carol","amount":5}`))
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{}`, string(body))

		resp, err = http.Get(base + "/transactions/pending")
		require.NoError(t, err)
		var pending []blockchain.Transaction
		require.NoError(t, jsonx.NewDecoder(resp.Body).Decode(&pending))
		resp.Body.Close()
		assert.Len(t, pending, 1)

		resp, err = http.Get(base + "/mine")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var block blockchain.Block
		require.NoError(t, jsonx.NewDecoder(resp.Body).Decode(&block))
		require.Len(t, block.Transactions, 2)
		assert.Equal(t, "carol", block.Transactions[0].To)
		assert.Equal(t, "alice", block.Transactions[1].To)
		assert.Equal(t, uint64(2), node.ledger.Height())
	})

	t.Run("POST /transactions/new rejects malformed body", func(t *testing.T) {
		resp, err := http.Post(base+"/transactions/new", "application/json", strings.NewReader("{"))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("wrong method", func(t *testing.T) {
		resp, err := http.Get(base + "/transactions/new")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("GET /metrics", func(t *testing.T) {
		resp, err := http.Get(base + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotContains(t, resp.Header.Get("Content-Type"), "application/json")
		assert.Contains(t, string(body), "minichain_chain_height")
	})
}

func TestTwoNodeResolve(t *testing.T) {
	ctx := context.Background()
	client := reqresp.NewClient(reqresp.DefaultConfig(), nil)

	nodeA := startTestNode(t, "alice")
	nodeB := startTestNode(t, "bob")

	// A mines two blocks, B one: A has 3 blocks, B has 2.
	for i := 0; i < 2; i++ {
		_, err := client.Mine(ctx, nodeA.server.URL)
		require.NoError(t, err)
	}
	_, err := client.Mine(ctx, nodeB.server.URL)
	require.NoError(t, err)

	require.NoError(t, client.AddPeer(ctx, nodeB.server.URL, nodeA.server.URL))
	peers, err := client.ListPeers(ctx, nodeB.server.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{nodeA.server.URL}, peers)

	require.NoError(t, client.Resolve(ctx, nodeB.server.URL))

	assert.Eventually(t, func() bool {
		return nodeB.ledger.Height() == 3
	}, 5*time.Second, 10*time.Millisecond)

	chainA, err := client.FetchChain(ctx, nodeA.server.URL)
	require.NoError(t, err)
	chainB, err := client.FetchChain(ctx, nodeB.server.URL)
	require.NoError(t, err)
	assert.Equal(t, chainA, chainB)

	// Resolving A against B changes nothing.
	require.NoError(t, client.AddPeer(ctx, nodeA.server.URL, nodeB.server.URL))
	before := nodeA.ledger.Chain()
	require.NoError(t, client.Resolve(ctx, nodeA.server.URL))
	assert.Eventually(t, func() bool {
		for _, p := range nodeA.registry.Peers() {
			if p.Status != p2p.PeerUnknown {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, before, nodeA.ledger.Chain())
}

func TestAddPeerRejectsMalformed(t *testing.T) {
	node := startTestNode(t, "alice")

	err := reqresp.NewClient(reqresp.DefaultConfig(), nil).AddPeer(context.Background(), node.server.URL, "not a uri")
	var statusErr *reqresp.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Empty(t, node.registry.ListPeers())
}
