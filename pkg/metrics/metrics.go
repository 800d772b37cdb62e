package metrics

import (
	"time"
)

// Collector defines the interface for collecting ledger metrics.
// Implementations can export metrics to various backends (Prometheus, in-memory, etc.).
type Collector interface {
	// Ledger operations. outcome is ledger.ClassifyError of the result ("ok" on success).
	RecordOperation(operation, outcome string, duration time.Duration)

	// Store documents
	RecordStoreRead(document string, records int, duration time.Duration)
	RecordStoreWrite(document string, success bool, duration time.Duration)

	// Circuit breaker
	RecordCircuitState(backend string, state CircuitState)

	// Authentication attempts, method is "password" or "card"
	RecordAuthentication(method string, success bool)

	// Asynchronous mirror replication
	RecordReplication(target string, success bool, duration time.Duration)
	RecordReplicationDropped(target string)
	RecordQueueDepth(target string, depth int)
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit breaker is allowing requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit breaker is blocking requests.
	CircuitOpen
	// CircuitHalfOpen means the circuit breaker is testing if the backend has recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector is a no-op implementation of Collector.
// It's used as the default collector when metrics are not needed.
type NoOpCollector struct{}

// RecordOperation does nothing.
func (NoOpCollector) RecordOperation(operation, outcome string, duration time.Duration) {}

// RecordStoreRead does nothing.
func (NoOpCollector) RecordStoreRead(document string, records int, duration time.Duration) {}

// RecordStoreWrite does nothing.
func (NoOpCollector) RecordStoreWrite(document string, success bool, duration time.Duration) {}

// RecordCircuitState does nothing.
func (NoOpCollector) RecordCircuitState(backend string, state CircuitState) {}

// RecordAuthentication does nothing.
func (NoOpCollector) RecordAuthentication(method string, success bool) {}

// RecordReplication does nothing.
func (NoOpCollector) RecordReplication(target string, success bool, duration time.Duration) {}

// RecordReplicationDropped does nothing.
func (NoOpCollector) RecordReplicationDropped(target string) {}

// RecordQueueDepth does nothing.
func (NoOpCollector) RecordQueueDepth(target string, depth int) {}

// OrNoOp returns c, or NoOpCollector when c is nil.
func OrNoOp(c Collector) Collector {
	if c == nil {
		return NoOpCollector{}
	}
	return c
}
