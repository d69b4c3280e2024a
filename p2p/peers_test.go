package p2p

import (
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddPeer(t *testing.T) {
	r := NewPeerRegistry(0)

	require.NoError(t, r.AddPeer("http://127.0.0.1:5001"))
	assert.Equal(t, []string{"http://127.0.0.1:5001"}, r.ListPeers())

	peers := r.Peers()
	require.Len(t, peers, 1)
	assert.Equal(t, PeerUnknown, peers[0].Status)
	assert.False(t, peers[0].AddedAt.IsZero())
}

func TestAddPeerIdempotent(t *testing.T) {
	r := NewPeerRegistry(0)

	require.NoError(t, r.AddPeer("http://node-a:5000"))
	require.NoError(t, r.AddPeer("http://node-a:5000"))
	require.NoError(t, r.AddPeer("http://NODE-A:5000/"))

	assert.Equal(t, 1, r.Len())
}

func TestAddPeerMalformed(t *testing.T) {
	r := NewPeerRegistry(0)
	require.NoError(t, r.AddPeer("http://node-a:5000"))

	tests := []string{
		"not a uri",
		"",
		"node-a:5000",
		"ftp://node-a",
		"http://",
		"/chain",
		"http://node-a:5000/?x=1",
	}

	for _, address := range tests {
		t.Run(fmt.Sprintf("%q", address), func(t *testing.T) {
			err := r.AddPeer(address)
			assert.ErrorIs(t, err, ErrMalformedAddress)
			assert.Equal(t, 1, r.Len(), "peer set unchanged")
		})
	}
}

func TestParseAddressNormalises(t *testing.T) {
	tests := map[string]string{
		"http://127.0.0.1:5000":      "http://127.0.0.1:5000",
		"  http://127.0.0.1:5000/  ": "http://127.0.0.1:5000",
		"HTTPS://Example.com/node/":  "https://example.com/node",
		"http://[::1]:5000":          "http://[::1]:5000",
	}

	for in, want := range tests {
		got, err := ParseAddress(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
}

func TestAddPeerMaxLimit(t *testing.T) {
	r := NewPeerRegistry(2)

	require.NoError(t, r.AddPeer("http://127.0.0.1:9001"))
	require.NoError(t, r.AddPeer("http://127.0.0.1:9002"))

	err := r.AddPeer("http://127.0.0.1:9003")
	assert.ErrorIs(t, err, ErrTooManyPeers)
	assert.Equal(t, 2, r.Len())

	// Re-adding a known peer at the limit is still a no-op, not an error.
	assert.NoError(t, r.AddPeer("http://127.0.0.1:9001"))
}

func TestPeerStatus(t *testing.T) {
	r := NewPeerRegistry(0)
	require.NoError(t, r.AddPeer("http://127.0.0.1:9001"))

	r.MarkFailed("http://127.0.0.1:9001")
	r.MarkFailed("http://127.0.0.1:9001")
	peer := r.Peers()[0]
	assert.Equal(t, PeerFailed, peer.Status)
	assert.Equal(t, 2, peer.Failures)

	before := time.Now()
	r.MarkReachable("http://127.0.0.1:9001")
	peer = r.Peers()[0]
	assert.Equal(t, PeerReachable, peer.Status)
	assert.Zero(t, peer.Failures)
	assert.False(t, peer.LastSeen.Before(before))

	// Unknown addresses are ignored.
	r.MarkFailed("http://127.0.0.1:9999")
	assert.Equal(t, 1, r.Len())

	assert.Equal(t, "reachable", PeerReachable.String())
	assert.Equal(t, "failed", PeerFailed.String())
	assert.Equal(t, "unknown", PeerUnknown.String())
}

func TestConcurrentAddPeer(t *testing.T) {
	r := NewPeerRegistry(0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.AddPeer(fmt.Sprintf("http://127.0.0.1:%d", 9000+i%10))
			_ = r.ListPeers()
		}(i)
	}
	wg.Wait()

	peers := r.ListPeers()
	sort.Strings(peers)
	assert.Len(t, peers, 10)
}
