package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"atm-ledger/pkg/ledger"
	"atm-ledger/pkg/logging"
	"atm-ledger/pkg/metrics"
	"atm-ledger/pkg/store"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a call
	ErrCircuitOpen = errors.New("resilience: circuit breaker open")

	// ErrTimeout is returned when a backend call exceeds the configured timeout
	ErrTimeout = errors.New("resilience: operation timeout")
)

// IsCircuitOpen reports whether err came from an open circuit.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// IsTimeout reports whether err came from a backend timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// Backend wraps a store.Backend with circuit breaker and timeout protection.
// Every failure it returns, except an absent document, wraps
// ledger.ErrStorageUnavailable.
type Backend struct {
	backend store.Backend
	cb      *gobreaker.CircuitBreaker
	config  ResilientConfig
	metrics metrics.Collector
	logger  *logging.Logger
}

// NewBackend creates a resilient wrapper around backend.
func NewBackend(backend store.Backend, config ResilientConfig) *Backend {
	return NewBackendWithMetrics(backend, config, metrics.NoOpCollector{})
}

// NewBackendWithMetrics creates a resilient wrapper reporting circuit state to collector.
func NewBackendWithMetrics(backend store.Backend, config ResilientConfig, collector metrics.Collector) *Backend {
	logger := logging.Global().Named("resilience").Named(backend.Name())

	rb := &Backend{
		backend: backend,
		config:  config,
		metrics: metrics.OrNoOp(collector),
		logger:  logger,
	}

	logger.Info("resilient backend initialized",
		zap.String("backend", backend.Name()),
		zap.Duration("timeout", config.Timeout),
		zap.Any("document_timeouts", config.DocumentTimeouts),
		zap.Uint32("trip_after", config.Breaker.TripAfter),
		zap.Duration("open_for", config.Breaker.OpenFor),
	)

	settings := gobreaker.Settings{
		Name:        backend.Name(),
		MaxRequests: config.Breaker.HalfOpenProbes,
		Interval:    config.Breaker.ResetInterval,
		Timeout:     config.Breaker.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return config.Breaker.shouldTrip(Counts{
				Requests:             counts.Requests,
				TotalSuccesses:       counts.TotalSuccesses,
				TotalFailures:        counts.TotalFailures,
				ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
				ConsecutiveFailures:  counts.ConsecutiveFailures,
			})
		},
		// An absent document is a normal first-run condition, not a backend failure
		IsSuccessful: func(err error) bool {
			return err == nil || store.IsNotFound(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("backend", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			rb.metrics.RecordCircuitState(name, circuitState(to))
		},
	}

	rb.cb = gobreaker.NewCircuitBreaker(settings)

	return rb
}

func circuitState(s gobreaker.State) metrics.CircuitState {
	switch s {
	case gobreaker.StateOpen:
		return metrics.CircuitOpen
	case gobreaker.StateHalfOpen:
		return metrics.CircuitHalfOpen
	default:
		return metrics.CircuitClosed
	}
}

// Name returns the name of the underlying backend.
func (rb *Backend) Name() string {
	return rb.backend.Name()
}

// State returns the current circuit breaker state.
func (rb *Backend) State() metrics.CircuitState {
	return circuitState(rb.cb.State())
}

// Read reads a document with timeout and circuit breaker protection.
func (rb *Backend) Read(ctx context.Context, document string) ([]byte, error) {
	ctx, cancel := rb.withTimeout(ctx, document)
	defer cancel()

	start := time.Now()
	result, err := rb.cb.Execute(func() (interface{}, error) {
		return rb.backend.Read(ctx, document)
	})
	if err != nil {
		return nil, rb.translate(ctx, "read", document, time.Since(start), err)
	}

	data, _ := result.([]byte)
	return data, nil
}

// Write writes a document with timeout and circuit breaker protection.
func (rb *Backend) Write(ctx context.Context, document string, data []byte) error {
	ctx, cancel := rb.withTimeout(ctx, document)
	defer cancel()

	start := time.Now()
	_, err := rb.cb.Execute(func() (interface{}, error) {
		return nil, rb.backend.Write(ctx, document, data)
	})
	if err != nil {
		return rb.translate(ctx, "write", document, time.Since(start), err)
	}
	return nil
}

// Close closes the underlying backend.
func (rb *Backend) Close() error {
	return rb.backend.Close()
}

func (rb *Backend) withTimeout(ctx context.Context, document string) (context.Context, context.CancelFunc) {
	if d := rb.config.TimeoutFor(document); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return ctx, func() {}
}

// translate maps breaker and context failures onto ledger errors.
func (rb *Backend) translate(ctx context.Context, operation, document string, elapsed time.Duration, err error) error {
	if store.IsNotFound(err) {
		return err
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		rb.logger.Warn("circuit breaker open - request rejected",
			zap.String("operation", operation),
			logging.Document(document),
		)
		return fmt.Errorf("%w: %w", ledger.ErrStorageUnavailable, ErrCircuitOpen)
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		rb.logger.Warn("operation timeout",
			zap.String("operation", operation),
			logging.Document(document),
			zap.Duration("timeout", rb.config.TimeoutFor(document)),
			zap.Duration("elapsed", elapsed),
		)
		return fmt.Errorf("%w: %w", ledger.ErrStorageUnavailable, ErrTimeout)
	}

	rb.logger.Error(operation+" operation failed",
		logging.Document(document),
		zap.Duration("duration", elapsed),
		zap.Error(err),
	)
	return fmt.Errorf("%w: %w", ledger.ErrStorageUnavailable, err)
}
