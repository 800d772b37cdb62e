package prometheus

import (
	"strconv"
	"time"

	"atm-ledger/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements metrics.Collector for Prometheus.
type PrometheusCollector struct {
	namespace string

	// Ledger operations
	operations       *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec

	// Store
	storeReads        *prometheus.CounterVec
	storeRecords      *prometheus.GaugeVec
	storeWrites       *prometheus.CounterVec
	storeReadLatency  *prometheus.HistogramVec
	storeWriteLatency *prometheus.HistogramVec

	// Circuit breaker
	circuitOpens *prometheus.CounterVec
	circuitState *prometheus.GaugeVec

	// Authentication
	authAttempts *prometheus.CounterVec

	// Mirror replication
	replications       *prometheus.CounterVec
	replicationDropped *prometheus.CounterVec
	replicationLatency *prometheus.HistogramVec
	replicationQueue   *prometheus.GaugeVec
}

// NewPrometheusCollector creates a new Prometheus metrics collector.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	pc := &PrometheusCollector{
		namespace: namespace,
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of ledger operations per operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		operationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Ledger operation latency",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15), // 0.1ms to ~3s
			},
			[]string{"operation"},
		),
		storeReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_reads_total",
				Help:      "Total number of document loads per document",
			},
			[]string{"document"},
		),
		storeRecords: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "store_records",
				Help:      "Number of records in the document at its last load",
			},
			[]string{"document"},
		),
		storeWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_writes_total",
				Help:      "Total number of document writes per document and status",
			},
			[]string{"document", "status"},
		),
		storeReadLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_read_duration_seconds",
				Help:      "Document load latency",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15),
			},
			[]string{"document"},
		),
		storeWriteLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_write_duration_seconds",
				Help:      "Document write latency",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15),
			},
			[]string{"document"},
		),
		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Total number of circuit breaker opens per backend",
			},
			[]string{"backend"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Current circuit breaker state per backend (0=closed, 1=open, 2=half-open)",
			},
			[]string{"backend"},
		),
		authAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_attempts_total",
				Help:      "Total number of login attempts per method and result",
			},
			[]string{"method", "success"},
		),
		replications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "replications_total",
				Help:      "Total number of documents copied to a mirror per target and status",
			},
			[]string{"target", "status"},
		),
		replicationDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "replications_dropped_total",
				Help:      "Total number of mirror copies dropped due to a full queue",
			},
			[]string{"target"},
		),
		replicationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "replication_duration_seconds",
				Help:      "Mirror write latency",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15),
			},
			[]string{"target"},
		),
		replicationQueue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "replication_queue_depth",
				Help:      "Pending mirror copies per target",
			},
			[]string{"target"},
		),
	}

	return pc
}

// Register registers all metrics with the given Prometheus registry.
func (pc *PrometheusCollector) Register(registry *prometheus.Registry) error {
	collectors := []prometheus.Collector{
		pc.operations,
		pc.operationLatency,
		pc.storeReads,
		pc.storeRecords,
		pc.storeWrites,
		pc.storeReadLatency,
		pc.storeWriteLatency,
		pc.circuitOpens,
		pc.circuitState,
		pc.authAttempts,
		pc.replications,
		pc.replicationDropped,
		pc.replicationLatency,
		pc.replicationQueue,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}

// RecordOperation records a ledger operation.
func (pc *PrometheusCollector) RecordOperation(operation, outcome string, duration time.Duration) {
	pc.operations.WithLabelValues(operation, outcome).Inc()
	pc.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordStoreRead records a document load.
func (pc *PrometheusCollector) RecordStoreRead(document string, records int, duration time.Duration) {
	pc.storeReads.WithLabelValues(document).Inc()
	pc.storeRecords.WithLabelValues(document).Set(float64(records))
	pc.storeReadLatency.WithLabelValues(document).Observe(duration.Seconds())
}

// RecordStoreWrite records a document write.
func (pc *PrometheusCollector) RecordStoreWrite(document string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	pc.storeWrites.WithLabelValues(document, status).Inc()
	pc.storeWriteLatency.WithLabelValues(document).Observe(duration.Seconds())
}

// RecordCircuitState records the current circuit breaker state.
func (pc *PrometheusCollector) RecordCircuitState(backend string, state metrics.CircuitState) {
	pc.circuitState.WithLabelValues(backend).Set(float64(state))
	if state == metrics.CircuitOpen {
		pc.circuitOpens.WithLabelValues(backend).Inc()
	}
}

// RecordAuthentication records a login attempt.
func (pc *PrometheusCollector) RecordAuthentication(method string, success bool) {
	pc.authAttempts.WithLabelValues(method, strconv.FormatBool(success)).Inc()
}

// RecordReplication records one document copied to a mirror.
func (pc *PrometheusCollector) RecordReplication(target string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	pc.replications.WithLabelValues(target, status).Inc()
	pc.replicationLatency.WithLabelValues(target).Observe(duration.Seconds())
}

// RecordReplicationDropped records a mirror copy dropped due to backpressure.
func (pc *PrometheusCollector) RecordReplicationDropped(target string) {
	pc.replicationDropped.WithLabelValues(target).Inc()
}

// RecordQueueDepth records the current mirror queue depth.
func (pc *PrometheusCollector) RecordQueueDepth(target string, depth int) {
	pc.replicationQueue.WithLabelValues(target).Set(float64(depth))
}
