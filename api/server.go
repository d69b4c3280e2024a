package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"minichain/api/handlers"
	"minichain/logx"
	"minichain/monitoring"
)

// Server represents the HTTP API server
type Server struct {
	ledger   handlers.Ledger
	peers    handlers.PeerRegistry
	resolver handlers.ResolveTrigger
	listen   string
	router   *mux.Router
	http     *http.Server
}

// NewServer creates a new API server
func NewServer(ledger handlers.Ledger, peers handlers.PeerRegistry, resolver handlers.ResolveTrigger, listen string) *Server {
	server := &Server{
		ledger:   ledger,
		peers:    peers,
		resolver: resolver,
		listen:   listen,
		router:   mux.NewRouter(),
	}

	server.setupRoutes()
	server.http = &http.Server{
		Addr:              listen,
		Handler:           server.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server
}

// setupRoutes configures all HTTP endpoints
func (s *Server) setupRoutes() {
	s.router.Use(loggingMiddleware, jsonContentTypeMiddleware)

	// Chain endpoints
	s.router.HandleFunc("/chain", func(w http.ResponseWriter, r *http.Request) {
		handlers.HandleChain(w, r, s.ledger)
	}).Methods(http.MethodGet)
	s.router.HandleFunc("/chain/height", func(w http.ResponseWriter, r *http.Request) {
		handlers.HandleChainHeight(w, r, s.ledger)
	}).Methods(http.MethodGet)
	s.router.HandleFunc("/chain/head", func(w http.ResponseWriter, r *http.Request) {
		handlers.HandleChainHead(w, r, s.ledger)
	}).Methods(http.MethodGet)
	s.router.HandleFunc("/blocks/{id}", func(w http.ResponseWriter, r *http.Request) {
		handlers.HandleBlock(w, r, s.ledger)
	}).Methods(http.MethodGet)

	// Mining
	s.router.HandleFunc("/mine", func(w http.ResponseWriter, r *http.Request) {
		handlers.HandleMine(w, r, s.ledger)
	}).Methods(http.MethodGet, http.MethodPost)

	// Transaction endpoints
	s.router.HandleFunc("/transactions/new", func(w http.ResponseWriter, r *http.Request) {
		handlers.HandleNewTransaction(w, r, s.ledger)
	}).Methods(http.MethodPost)
	s.router.HandleFunc("/transactions/pending", func(w http.ResponseWriter, r *http.Request) {
		handlers.HandlePendingTransactions(w, r, s.ledger)
	}).Methods(http.MethodGet)

	// Peer endpoints
	s.router.HandleFunc("/nodes", func(w http.ResponseWriter, r *http.Request) {
		handlers.HandleListPeers(w, r, s.peers)
	}).Methods(http.MethodGet)
	s.router.HandleFunc("/nodes/status", func(w http.ResponseWriter, r *http.Request) {
		handlers.HandlePeerStatus(w, r, s.peers)
	}).Methods(http.MethodGet)
	s.router.HandleFunc("/nodes/add", func(w http.ResponseWriter, r *http.Request) {
		handlers.HandleAddPeer(w, r, s.peers)
	}).Methods(http.MethodPost)
	s.router.HandleFunc("/nodes/resolve", func(w http.ResponseWriter, r *http.Request) {
		handlers.HandleResolve(w, r, s.resolver)
	}).Methods(http.MethodGet, http.MethodPost)

	monitoring.RegisterMetrics(s.router)
}

// Handler returns the routed handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on the configured address until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listen, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	logx.Info("API", "Starting HTTP API server on ", ln.Addr().String())
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
