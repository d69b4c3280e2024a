package reqresp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"minichain/blockchain"
	"minichain/jsonx"
	"minichain/logx"
)

// ErrTooManyPending is returned when MaxPendingRequests requests are already in flight.
var ErrTooManyPending = errors.New("too many pending requests")

// maxBodyBytes limits how much of a peer response is read.
const maxBodyBytes = 64 << 20

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Client talks to other nodes over their HTTP API and tracks requests in flight.
type Client struct {
	config          Config
	http            *http.Client
	pendingRequests map[string]string
	pendingMutex    sync.RWMutex
}

// NewClient creates a new peer client. A nil httpClient uses http.DefaultClient's transport.
func NewClient(config Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		config:          config,
		http:            httpClient,
		pendingRequests: make(map[string]string),
	}
}

// register reserves a pending slot and returns its id.
func (c *Client) register(url string) (string, error) {
	c.pendingMutex.Lock()
	defer c.pendingMutex.Unlock()

	if c.config.MaxPendingRequests > 0 && len(c.pendingRequests) >= c.config.MaxPendingRequests {
		return "", ErrTooManyPending
	}
	requestID := uuid.NewString()
	c.pendingRequests[requestID] = url
	return requestID, nil
}

func (c *Client) release(requestID string) {
	c.pendingMutex.Lock()
	delete(c.pendingRequests, requestID)
	c.pendingMutex.Unlock()
}

// GetPendingRequestCount returns the number of currently pending requests
func (c *Client) GetPendingRequestCount() int {
	c.pendingMutex.RLock()
	defer c.pendingMutex.RUnlock()
	return len(c.pendingRequests)
}

// do sends one request to base+path and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, base, path string, in, out interface{}) error {
	url := strings.TrimRight(base, "/") + path

	requestID, err := c.register(url)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, url)
	}
	defer c.release(requestID)

	if c.config.MaxResponseWaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.MaxResponseWaitTimeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		payload, err := jsonx.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request body")
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return errors.Wrapf(err, "build request %s %s", method, url)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)

	logx.Debug("PEERS", "Sending request ", requestID, " ", method, " ", url)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, url)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrapf(err, "read response from %s", url)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if out == nil {
		return nil
	}
	if err := jsonx.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "decode response from %s", url)
	}
	return nil
}

// FetchChain downloads the full chain of the node at peer.
func (c *Client) FetchChain(ctx context.Context, peer string) (blockchain.Chain, error) {
	var chain blockchain.Chain
	if err := c.do(ctx, http.MethodGet, peer, "/chain", nil, &chain); err != nil {
		return nil, err
	}
	if chain == nil {
		return nil, errors.Errorf("%s returned no chain", peer)
	}
	return chain, nil
}

// GetHeight returns the chain length of the node at base.
func (c *Client) GetHeight(ctx context.Context, base string) (uint64, error) {
	var resp HeightResponse
	if err := c.do(ctx, http.MethodGet, base, "/chain/height", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Height, nil
}

// Mine asks the node at base to mine a block and returns it.
func (c *Client) Mine(ctx context.Context, base string) (blockchain.Block, error) {
	var block blockchain.Block
	err := c.do(ctx, http.MethodPost, base, "/mine", nil, &block)
	return block, err
}

// SubmitTransaction posts tx to the pending pool of the node at base.
func (c *Client) SubmitTransaction(ctx context.Context, base string, tx blockchain.Transaction) error {
	return c.do(ctx, http.MethodPost, base, "/transactions/new", tx, nil)
}

// ListPeers returns the peers registered at the node at base.
func (c *Client) ListPeers(ctx context.Context, base string) ([]string, error) {
	var peers []string
	err := c.do(ctx, http.MethodGet, base, "/nodes", nil, &peers)
	return peers, err
}

// AddPeer registers address as a peer of the node at base.
func (c *Client) AddPeer(ctx context.Context, base, address string) error {
	return c.do(ctx, http.MethodPost, base, "/nodes/add", AddPeerRequest{Address: address}, nil)
}

// Resolve triggers a background consensus round at the node at base.
func (c *Client) Resolve(ctx context.Context, base string) error {
	return c.do(ctx, http.MethodPost, base, "/nodes/resolve", nil, nil)
}
