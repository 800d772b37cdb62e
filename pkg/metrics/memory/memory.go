package memory

import (
	"sync"
	"time"

	"atm-ledger/pkg/metrics"
)

// MemoryCollector implements metrics.Collector for in-memory testing.
type MemoryCollector struct {
	mu sync.RWMutex

	// Per-operation metrics
	operations map[string]*OperationMetrics

	// Per-document store metrics
	documents map[string]*DocumentMetrics

	// Per-backend circuit breaker
	circuits map[string]*CircuitMetrics

	// Authentication attempts by method
	authSuccesses map[string]int64
	authFailures  map[string]int64

	// Per-target mirror replication
	replication map[string]*ReplicationMetrics
}

// OperationMetrics holds metrics for a single ledger operation.
type OperationMetrics struct {
	Calls     int64
	Outcomes  map[string]int64
	Latencies []time.Duration
}

// DocumentMetrics holds metrics for a single store document.
type DocumentMetrics struct {
	Reads          int64
	RecordsRead    int64
	Writes         int64
	WriteErrors    int64
	ReadLatencies  []time.Duration
	WriteLatencies []time.Duration
}

// CircuitMetrics holds circuit breaker metrics for a single backend.
type CircuitMetrics struct {
	State metrics.CircuitState
	Opens int64
}

// ReplicationMetrics holds mirror metrics for a single target backend.
type ReplicationMetrics struct {
	Writes     int64
	Failures   int64
	Dropped    int64
	QueueDepth int
	Latencies  []time.Duration
}

// NewMemoryCollector creates a new in-memory metrics collector.
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{
		operations:    make(map[string]*OperationMetrics),
		documents:     make(map[string]*DocumentMetrics),
		circuits:      make(map[string]*CircuitMetrics),
		authSuccesses: make(map[string]int64),
		authFailures:  make(map[string]int64),
		replication:   make(map[string]*ReplicationMetrics),
	}
}

// operation returns the metrics for op, creating them if needed. Caller holds mu.
func (mc *MemoryCollector) operation(op string) *OperationMetrics {
	om, ok := mc.operations[op]
	if !ok {
		om = &OperationMetrics{Outcomes: make(map[string]int64)}
		mc.operations[op] = om
	}
	return om
}

// document returns the metrics for doc, creating them if needed. Caller holds mu.
func (mc *MemoryCollector) document(doc string) *DocumentMetrics {
	dm, ok := mc.documents[doc]
	if !ok {
		dm = &DocumentMetrics{}
		mc.documents[doc] = dm
	}
	return dm
}

// RecordOperation records a ledger operation and its outcome.
func (mc *MemoryCollector) RecordOperation(operation, outcome string, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	om := mc.operation(operation)
	om.Calls++
	om.Outcomes[outcome]++
	om.Latencies = append(om.Latencies, duration)
}

// RecordStoreRead records a document load.
func (mc *MemoryCollector) RecordStoreRead(document string, records int, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	dm := mc.document(document)
	dm.Reads++
	dm.RecordsRead += int64(records)
	dm.ReadLatencies = append(dm.ReadLatencies, duration)
}

// RecordStoreWrite records a document write.
func (mc *MemoryCollector) RecordStoreWrite(document string, success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	dm := mc.document(document)
	dm.Writes++
	if !success {
		dm.WriteErrors++
	}
	dm.WriteLatencies = append(dm.WriteLatencies, duration)
}

// RecordCircuitState records the current circuit breaker state.
func (mc *MemoryCollector) RecordCircuitState(backend string, state metrics.CircuitState) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	cm, ok := mc.circuits[backend]
	if !ok {
		cm = &CircuitMetrics{}
		mc.circuits[backend] = cm
	}

	// Count transitions to open
	if cm.State != metrics.CircuitOpen && state == metrics.CircuitOpen {
		cm.Opens++
	}
	cm.State = state
}

// RecordAuthentication records a login attempt.
func (mc *MemoryCollector) RecordAuthentication(method string, success bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if success {
		mc.authSuccesses[method]++
	} else {
		mc.authFailures[method]++
	}
}

func (mc *MemoryCollector) target(name string) *ReplicationMetrics {
	rm, ok := mc.replication[name]
	if !ok {
		rm = &ReplicationMetrics{}
		mc.replication[name] = rm
	}
	return rm
}

// RecordReplication records one document copied to a mirror.
func (mc *MemoryCollector) RecordReplication(target string, success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	rm := mc.target(target)
	rm.Writes++
	if !success {
		rm.Failures++
	}
	rm.Latencies = append(rm.Latencies, duration)
}

// RecordReplicationDropped records a copy dropped because the queue was full.
func (mc *MemoryCollector) RecordReplicationDropped(target string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.target(target).Dropped++
}

// RecordQueueDepth records the number of pending copies.
func (mc *MemoryCollector) RecordQueueDepth(target string, depth int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.target(target).QueueDepth = depth
}

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	Operations    map[string]OperationMetrics
	Documents     map[string]DocumentMetrics
	Circuits      map[string]CircuitMetrics
	AuthSuccesses map[string]int64
	AuthFailures  map[string]int64
	Replication   map[string]ReplicationMetrics
}

// Snapshot returns a copy of the current metrics state.
func (mc *MemoryCollector) Snapshot() Snapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	snapshot := Snapshot{
		Operations:    make(map[string]OperationMetrics, len(mc.operations)),
		Documents:     make(map[string]DocumentMetrics, len(mc.documents)),
		Circuits:      make(map[string]CircuitMetrics, len(mc.circuits)),
		AuthSuccesses: make(map[string]int64, len(mc.authSuccesses)),
		AuthFailures:  make(map[string]int64, len(mc.authFailures)),
		Replication:   make(map[string]ReplicationMetrics, len(mc.replication)),
	}

	for op, om := range mc.operations {
		snapshot.Operations[op] = copyOperation(om)
	}
	for doc, dm := range mc.documents {
		snapshot.Documents[doc] = *dm
	}
	for backend, cm := range mc.circuits {
		snapshot.Circuits[backend] = *cm
	}
	for method, n := range mc.authSuccesses {
		snapshot.AuthSuccesses[method] = n
	}
	for method, n := range mc.authFailures {
		snapshot.AuthFailures[method] = n
	}
	for target, rm := range mc.replication {
		c := *rm
		c.Latencies = append([]time.Duration(nil), rm.Latencies...)
		snapshot.Replication[target] = c
	}

	return snapshot
}

// Reset clears all collected metrics.
func (mc *MemoryCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.operations = make(map[string]*OperationMetrics)
	mc.documents = make(map[string]*DocumentMetrics)
	mc.circuits = make(map[string]*CircuitMetrics)
	mc.authSuccesses = make(map[string]int64)
	mc.authFailures = make(map[string]int64)
	mc.replication = make(map[string]*ReplicationMetrics)
}

// GetOperationMetrics returns the metrics for a specific operation, or nil.
func (mc *MemoryCollector) GetOperationMetrics(operation string) *OperationMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if om, exists := mc.operations[operation]; exists {
		c := copyOperation(om)
		return &c
	}
	return nil
}

// GetDocumentMetrics returns the metrics for a specific document, or nil.
func (mc *MemoryCollector) GetDocumentMetrics(document string) *DocumentMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if dm, exists := mc.documents[document]; exists {
		c := *dm
		return &c
	}
	return nil
}

func copyOperation(om *OperationMetrics) OperationMetrics {
	c := *om
	c.Outcomes = make(map[string]int64, len(om.Outcomes))
	for k, v := range om.Outcomes {
		c.Outcomes[k] = v
	}
	return c
}
