package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"minichain/api"
	"minichain/blockchain"
	"minichain/config"
	"minichain/consensus"
	"minichain/ledger"
	"minichain/logx"
	"minichain/monitoring"
	"minichain/p2p"
	"minichain/p2p/reqresp"
	"minichain/snapshot"
)

// FullNode wires the ledger, the peer registry, consensus and the HTTP API together.
type FullNode struct {
	config *config.Config

	ledger    *ledger.Ledger
	registry  *p2p.PeerRegistry
	resolver  *consensus.Resolver
	scheduler *consensus.Scheduler
	server    *api.Server
	snapshots *snapshot.Store

	// snapMu orders snapshot writes; savedLen is the longest chain written.
	snapMu   sync.Mutex
	savedLen int

	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewFullNode builds every component from cfg. Nothing listens until Start.
func NewFullNode(cfg *config.Config) (*FullNode, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := &FullNode{config: cfg}

	if cfg.Snapshot.Path != "" {
		store, err := snapshot.Open(cfg.Snapshot.Path)
		if err != nil {
			logx.Warn("SNAPSHOT", "Snapshots disabled: ", err)
		} else {
			n.snapshots = store
		}
	}

	n.ledger = ledger.New(ledger.Config{
		Owner:          cfg.Node.Owner,
		Proof:          cfg.ProofParams(),
		MineTimeout:    cfg.MineTimeout(),
		OnChainChanged: n.saveSnapshot,
	})
	n.registry = p2p.NewPeerRegistry(cfg.Consensus.MaxPeers)

	resolverConfig := cfg.ResolverConfig()
	client := reqresp.NewClient(fetchClientConfig(resolverConfig), nil)
	n.resolver = consensus.NewResolver(resolverConfig, n.ledger, n.registry, client)
	n.scheduler = consensus.NewScheduler(n.resolver, cfg.ResolveInterval(), nil)
	n.server = api.NewServer(n.ledger, n.registry, n.scheduler, cfg.Node.Listen)

	return n, nil
}

// Start restores the snapshot, registers seed peers and starts serving. It
// returns once the listener is bound.
func (n *FullNode) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", n.config.Node.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", n.config.Node.Listen, err)
	}
	n.listener = ln

	n.restoreSnapshot()
	monitoring.SetChainHeight(int(n.ledger.Height()))

	for _, peer := range n.config.Peers {
		if err := n.registry.AddPeer(peer); err != nil {
			logx.Warn("NODE", fmt.Sprintf("Skipping seed peer %q: %v", peer, err))
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	n.wg.Add(2)
	go func() {
		defer n.wg.Done()
		n.scheduler.Run(runCtx)
	}()
	go func() {
		defer n.wg.Done()
		if err := n.server.Serve(ln); err != nil {
			logx.Error("NODE", "HTTP server stopped: ", err)
		}
	}()

	if n.registry.Len() > 0 {
		n.scheduler.Trigger()
	}

	logx.Info("NODE", fmt.Sprintf("%s\tFull node started on %s, owner=%s difficulty=%d", n.config.Node.ID, n.Addr(), n.config.Node.Owner, n.ledger.Difficulty()))
	return nil
}

// Stop gracefully shuts down the FullNode
func (n *FullNode) Stop(ctx context.Context) error {
	var err error
	n.stopOnce.Do(func() {
		logx.Info("NODE", n.config.Node.ID, "\tStopping FullNode...")

		if n.listener != nil {
			if shutdownErr := n.server.Shutdown(ctx); shutdownErr != nil {
				err = fmt.Errorf("shutdown http server: %w", shutdownErr)
			}
		}
		if n.cancel != nil {
			n.cancel()
		}
		n.wg.Wait()

		if n.snapshots != nil {
			n.saveSnapshot(n.ledger.Chain())
			if closeErr := n.snapshots.Close(); closeErr != nil {
				logx.Warn("SNAPSHOT", "Failed to close snapshot store: ", closeErr)
			}
		}
		logx.Info("NODE", "FullNode stopped successfully")
	})
	return err
}

// Addr returns the base URL peers use to reach this node.
func (n *FullNode) Addr() string {
	if n.listener == nil {
		return ""
	}
	return "http://" + n.listener.Addr().String()
}

func (n *FullNode) Ledger() *ledger.Ledger {
	return n.ledger
}

func (n *FullNode) Registry() *p2p.PeerRegistry {
	return n.registry
}

// Resolve runs one consensus round and waits for its report.
func (n *FullNode) Resolve(ctx context.Context) consensus.Report {
	return n.resolver.Resolve(ctx)
}

func (n *FullNode) restoreSnapshot() {
	if n.snapshots == nil {
		return
	}
	chain, err := n.snapshots.Load()
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		return
	}
	if err != nil {
		logx.Warn("SNAPSHOT", "Ignoring unreadable snapshot: ", err)
		return
	}
	if err := n.ledger.TryAdopt(chain); err != nil {
		if !errors.Is(err, ledger.ErrChainNotLonger) {
			logx.Warn("SNAPSHOT", "Ignoring snapshot: ", err)
		}
		return
	}
	logx.Info("SNAPSHOT", fmt.Sprintf("Restored chain of %d blocks", len(chain)))
}

// saveSnapshot writes chain unless a longer one was already written.
func (n *FullNode) saveSnapshot(chain blockchain.Chain) {
	if n.snapshots == nil {
		return
	}
	n.snapMu.Lock()
	defer n.snapMu.Unlock()
	if len(chain) < n.savedLen {
		logx.Debug("SNAPSHOT", fmt.Sprintf("Skipping stale chain of %d blocks, saved %d", len(chain), n.savedLen))
		return
	}
	if err := n.snapshots.Save(chain); err != nil {
		logx.Warn("SNAPSHOT", "Failed to save chain: ", err)
		return
	}
	n.savedLen = len(chain)
}

// fetchClientConfig caps the client's pending requests at the resolver's
// fan-out. An unbounded resolver gets an unbounded client.
func fetchClientConfig(resolver consensus.Config) reqresp.Config {
	cfg := reqresp.DefaultConfig()
	cfg.MaxPendingRequests = max(resolver.MaxConcurrentFetches, 0)
	return cfg
}
