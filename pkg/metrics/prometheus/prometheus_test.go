package prometheus

import (
	"testing"
	"time"

	"atm-ledger/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCollector_Register(t *testing.T) {
	pc := NewPrometheusCollector("ledger_test")
	registry := prometheus.NewRegistry()

	if err := pc.Register(registry); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// Registering twice must fail on the duplicate collectors
	if err := pc.Register(registry); err == nil {
		t.Error("Expected error on duplicate registration")
	}
}

func TestPrometheusCollector_Operations(t *testing.T) {
	pc := NewPrometheusCollector("ledger_test")

	pc.RecordOperation("transfer", "ok", time.Millisecond)
	pc.RecordOperation("transfer", "ok", time.Millisecond)
	pc.RecordOperation("transfer", "target_not_found", time.Millisecond)

	if got := testutil.ToFloat64(pc.operations.WithLabelValues("transfer", "ok")); got != 2 {
		t.Errorf("Expected 2 successful transfers, got %v", got)
	}
	if got := testutil.ToFloat64(pc.operations.WithLabelValues("transfer", "target_not_found")); got != 1 {
		t.Errorf("Expected 1 failed transfer, got %v", got)
	}
}

func TestPrometheusCollector_Store(t *testing.T) {
	pc := NewPrometheusCollector("ledger_test")

	pc.RecordStoreRead("transaction.json", 7, time.Millisecond)
	pc.RecordStoreWrite("transaction.json", true, time.Millisecond)
	pc.RecordStoreWrite("transaction.json", false, time.Millisecond)

	if got := testutil.ToFloat64(pc.storeRecords.WithLabelValues("transaction.json")); got != 7 {
		t.Errorf("Expected 7 records, got %v", got)
	}
	if got := testutil.ToFloat64(pc.storeWrites.WithLabelValues("transaction.json", "error")); got != 1 {
		t.Errorf("Expected 1 failed write, got %v", got)
	}
	if got := testutil.ToFloat64(pc.storeWrites.WithLabelValues("transaction.json", "success")); got != 1 {
		t.Errorf("Expected 1 successful write, got %v", got)
	}
}

func TestPrometheusCollector_CircuitAndAuth(t *testing.T) {
	pc := NewPrometheusCollector("ledger_test")

	pc.RecordCircuitState("redis", metrics.CircuitOpen)
	pc.RecordCircuitState("redis", metrics.CircuitHalfOpen)

	if got := testutil.ToFloat64(pc.circuitState.WithLabelValues("redis")); got != float64(metrics.CircuitHalfOpen) {
		t.Errorf("Expected half-open state, got %v", got)
	}
	if got := testutil.ToFloat64(pc.circuitOpens.WithLabelValues("redis")); got != 1 {
		t.Errorf("Expected 1 open, got %v", got)
	}

	pc.RecordAuthentication("card", false)
	if got := testutil.ToFloat64(pc.authAttempts.WithLabelValues("card", "false")); got != 1 {
		t.Errorf("Expected 1 failed card login, got %v", got)
	}
}

func TestPrometheusCollector_Replication(t *testing.T) {
	pc := NewPrometheusCollector("ledger_test")

	pc.RecordReplication("postgres", true, time.Millisecond)
	pc.RecordReplication("postgres", false, time.Millisecond)
	pc.RecordReplicationDropped("postgres")
	pc.RecordQueueDepth("postgres", 4)

	if got := testutil.ToFloat64(pc.replications.WithLabelValues("postgres", "error")); got != 1 {
		t.Errorf("Expected 1 failed replication, got %v", got)
	}
	if got := testutil.ToFloat64(pc.replicationDropped.WithLabelValues("postgres")); got != 1 {
		t.Errorf("Expected 1 dropped replication, got %v", got)
	}
	if got := testutil.ToFloat64(pc.replicationQueue.WithLabelValues("postgres")); got != 4 {
		t.Errorf("Expected queue depth 4, got %v", got)
	}
}
