// Package metrics holds the Prometheus collectors of both engines and the
// HTTP server that exposes them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"chainExplorer/internal/model"
)

const namespace = "explorer"

// Ingest collects Ingestion Engine metrics. A nil *Ingest discards everything.
type Ingest struct {
	height        prometheus.Gauge
	blocks        prometheus.Counter
	transactions  prometheus.Counter
	logs          prometheus.Counter
	skipped       prometheus.Counter
	failures      prometheus.Counter
	reorgs        *prometheus.CounterVec
	reorgDepth    prometheus.Histogram
	blockDuration prometheus.Histogram
}

// NewIngest registers the ingestion collectors on reg.
func NewIngest(reg prometheus.Registerer) *Ingest {
	factory := promauto.With(reg)
	return &Ingest{
		height: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "height",
			Help:      "Next block height the ingestion engine will fetch.",
		}),
		blocks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "blocks_total",
			Help:      "Blocks written to storage.",
		}),
		transactions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "transactions_total",
			Help:      "Transactions written to storage.",
		}),
		logs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "logs_total",
			Help:      "Logs written to storage.",
		}),
		skipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "receipts_skipped_total",
			Help:      "Receipts not fetched because the transaction or block is denylisted.",
		}),
		failures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "failures_total",
			Help:      "Failed loop iterations, retried at the same height.",
		}),
		reorgs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "reorgs_total",
			Help:      "Resolved chain reorganizations.",
		}, []string{"severity"}),
		reorgDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "reorg_depth_blocks",
			Help:      "Blocks replaced by a reorganization.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 64},
		}),
		blockDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "block_duration_seconds",
			Help:      "Time to fetch receipts and write one block.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// SetHeight records the cursor position.
func (m *Ingest) SetHeight(height uint64) {
	if m == nil {
		return
	}
	m.height.Set(float64(height))
}

// ObserveBlock records one written block.
func (m *Ingest) ObserveBlock(txs, logs, skipped int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.blocks.Inc()
	m.transactions.Add(float64(txs))
	m.logs.Add(float64(logs))
	m.skipped.Add(float64(skipped))
	m.blockDuration.Observe(elapsed.Seconds())
}

// ObserveReorg records a resolved reorganization.
func (m *Ingest) ObserveReorg(event model.ReorgEvent) {
	if m == nil {
		return
	}
	m.reorgs.WithLabelValues(event.Severity).Inc()
	m.reorgDepth.Observe(float64(event.Depth))
}

// ObserveFailure records a failed iteration.
func (m *Ingest) ObserveFailure() {
	if m == nil {
		return
	}
	m.failures.Inc()
}

// Decode collects Decoding Engine metrics. A nil *Decode discards everything.
type Decode struct {
	results       *prometheus.CounterVec
	pending       prometheus.Gauge
	coolingDown   prometheus.Gauge
	cycleDuration prometheus.Histogram
}

// NewDecode registers the decoding collectors on reg.
func NewDecode(reg prometheus.Registerer) *Decode {
	factory := promauto.With(reg)
	return &Decode{
		results: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "transactions_total",
			Help:      "Transactions handled by the decoding engine.",
		}, []string{"result"}), // result: decoded, failed, skipped, unwritten
		pending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "batch_size",
			Help:      "Transactions selected by the last cycle.",
		}),
		coolingDown: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "cooling_down",
			Help:      "Transactions excluded from selection until their retry time.",
		}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "cycle_duration_seconds",
			Help:      "Time to decode and write one batch.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
	}
}

// ObserveResult counts one transaction outcome.
func (m *Decode) ObserveResult(result string) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(result).Inc()
}

// ObserveCycle records one finished cycle.
func (m *Decode) ObserveCycle(selected, coolingDown int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.pending.Set(float64(selected))
	m.coolingDown.Set(float64(coolingDown))
	m.cycleDuration.Observe(elapsed.Seconds())
}
