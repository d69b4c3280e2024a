package monitoring

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"minichain/logx"
)

type AdoptionResult string

var (
	AdoptionAccepted  AdoptionResult = "adopted"
	AdoptionInvalid   AdoptionResult = "invalid"
	AdoptionNotLonger AdoptionResult = "not_longer"
)

type nodePromMetrics struct {
	nodeUpUnixSeconds prometheus.Gauge
	chainHeight       prometheus.Gauge
	pendingPoolSize   prometheus.Gauge
	blocksMined       prometheus.Counter
	miningDuration    prometheus.Histogram
	miningFailures    prometheus.Counter
	submittedTxCount  prometheus.Counter
	adoptionCount     *prometheus.CounterVec
	resolveRounds     prometheus.Counter
	peerFetchFailures prometheus.Counter
	peerCount         prometheus.Gauge
}

func newNodePromMetrics(reg prometheus.Registerer) *nodePromMetrics {
	m := &nodePromMetrics{
		nodeUpUnixSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "minichain_node_up_timestamp_unix_seconds",
				Help: "Unix timestamp of the node",
			},
		),
		chainHeight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "minichain_chain_height",
				Help: "Number of blocks in the local chain, genesis included",
			},
		),
		pendingPoolSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "minichain_pending_pool_size",
				Help: "Transactions waiting to be mined",
			},
		),
		blocksMined: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "minichain_blocks_mined_total",
				Help: "Blocks mined by this node",
			},
		),
		miningDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "minichain_mining_duration_seconds",
				Help:    "Wall time of a mine call, proof search included",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		miningFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "minichain_mining_failures_total",
				Help: "Mine calls that ended without a block",
			},
		),
		submittedTxCount: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "minichain_submitted_tx_total",
				Help: "Transactions accepted into the pending pool",
			},
		),
		adoptionCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minichain_chain_adoption_total",
				Help: "Candidate chains offered for adoption, by result",
			},
			[]string{"result"},
		),
		resolveRounds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "minichain_resolve_rounds_total",
				Help: "Consensus rounds run",
			},
		),
		peerFetchFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "minichain_peer_fetch_failures_total",
				Help: "Peer chain fetches that failed",
			},
		),
		peerCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "minichain_peer_count",
				Help: "Registered peers",
			},
		),
	}

	reg.MustRegister(
		m.nodeUpUnixSeconds,
		m.chainHeight,
		m.pendingPoolSize,
		m.blocksMined,
		m.miningDuration,
		m.miningFailures,
		m.submittedTxCount,
		m.adoptionCount,
		m.resolveRounds,
		m.peerFetchFailures,
		m.peerCount,
	)
	return m
}

var (
	current    atomic.Pointer[nodePromMetrics]
	registry   atomic.Pointer[prometheus.Registry]
	initMetric atomic.Bool
)

// InitMetrics creates and registers the node metrics. Until it is called every
// recorder below is a no-op.
func InitMetrics() {
	if !initMetric.CompareAndSwap(false, true) {
		return
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := newNodePromMetrics(reg)
	m.nodeUpUnixSeconds.SetToCurrentTime()
	registry.Store(reg)
	current.Store(m)
}

// RegisterMetrics exposes /metrics on router.
func RegisterMetrics(router *mux.Router) {
	reg := registry.Load()
	if reg == nil {
		return
	}
	logx.Info("METRICS", "Registering prometheus metrics")
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods("GET")
}

func SetChainHeight(height int) {
	nodeMetrics := current.Load()
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.chainHeight.Set(float64(height))
}

func SetPendingPoolSize(size int) {
	nodeMetrics := current.Load()
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.pendingPoolSize.Set(float64(size))
}

func RecordBlockMined(duration time.Duration) {
	nodeMetrics := current.Load()
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.blocksMined.Inc()
	nodeMetrics.miningDuration.Observe(duration.Seconds())
}

func IncreaseMiningFailures() {
	nodeMetrics := current.Load()
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.miningFailures.Inc()
}

func IncreaseSubmittedTxCount() {
	nodeMetrics := current.Load()
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.submittedTxCount.Inc()
}

func RecordAdoption(result AdoptionResult) {
	nodeMetrics := current.Load()
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.adoptionCount.WithLabelValues(string(result)).Inc()
}

func IncreaseResolveRounds() {
	nodeMetrics := current.Load()
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.resolveRounds.Inc()
}

func IncreasePeerFetchFailures() {
	nodeMetrics := current.Load()
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.peerFetchFailures.Inc()
}

func SetPeerCount(count int) {
	nodeMetrics := current.Load()
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.peerCount.Set(float64(count))
}
