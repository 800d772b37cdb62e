package resilience

import (
	"fmt"
	"maps"
	"time"

	"atm-ledger/pkg/store"
)

// ResilientConfig configures the deadlines and circuit breaker around a store backend.
type ResilientConfig struct {
	// Timeout bounds every Read and Write of a document without its own entry
	// in DocumentTimeouts. Zero disables the deadline.
	Timeout time.Duration

	// DocumentTimeouts overrides Timeout per document name. The transaction log
	// only grows and is rewritten whole, so it gets a longer default.
	DocumentTimeouts map[string]time.Duration

	// Breaker configures when the backend is considered down
	Breaker BreakerConfig
}

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	// TripAfter consecutive failed calls open the circuit (default 5)
	TripAfter uint32

	// OpenFor is how long an open circuit rejects calls before probing
	OpenFor time.Duration

	// HalfOpenProbes is how many calls may probe a half-open circuit
	HalfOpenProbes uint32

	// ResetInterval clears failure counts while the circuit is closed; zero never clears
	ResetInterval time.Duration

	// ReadyToTrip replaces the TripAfter rule when set.
	// Reads of absent documents never count as failures.
	ReadyToTrip func(counts Counts) bool
}

// Counts holds the numbers of requests and their successes/failures.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// DefaultConsecutiveFailures is the TripAfter used when none is configured.
const DefaultConsecutiveFailures = 5

// DefaultResilientConfig returns defaults for a single interactive session.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		Timeout: 5 * time.Second,
		DocumentTimeouts: map[string]time.Duration{
			store.TransactionsDocument: 10 * time.Second,
		},
		Breaker: BreakerConfig{
			TripAfter:      DefaultConsecutiveFailures,
			OpenFor:        30 * time.Second,
			HalfOpenProbes: 1,
			ResetInterval:  60 * time.Second,
		},
	}
}

// TimeoutFor returns the deadline applied to calls on document.
func (c ResilientConfig) TimeoutFor(document string) time.Duration {
	if d, ok := c.DocumentTimeouts[document]; ok {
		return d
	}
	return c.Timeout
}

// WithTimeout returns a copy with the default per-call timeout replaced.
func (c ResilientConfig) WithTimeout(timeout time.Duration) ResilientConfig {
	c.Timeout = timeout
	return c
}

// WithDocumentTimeout returns a copy where calls on document use timeout.
func (c ResilientConfig) WithDocumentTimeout(document string, timeout time.Duration) ResilientConfig {
	timeouts := maps.Clone(c.DocumentTimeouts)
	if timeouts == nil {
		timeouts = make(map[string]time.Duration, 1)
	}
	timeouts[document] = timeout
	c.DocumentTimeouts = timeouts
	return c
}

// WithOpenFor returns a copy with the open-circuit period replaced.
func (c ResilientConfig) WithOpenFor(d time.Duration) ResilientConfig {
	c.Breaker.OpenFor = d
	return c
}

// Validate rejects negative durations and unnamed document overrides.
func (c ResilientConfig) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("resilience: negative timeout %v", c.Timeout)
	}
	for document, d := range c.DocumentTimeouts {
		if document == "" {
			return fmt.Errorf("resilience: document timeout without a document name")
		}
		if d < 0 {
			return fmt.Errorf("resilience: negative timeout %v for %s", d, document)
		}
	}
	if c.Breaker.OpenFor < 0 || c.Breaker.ResetInterval < 0 {
		return fmt.Errorf("resilience: negative circuit breaker duration")
	}
	return nil
}

// shouldTrip applies ReadyToTrip, or the TripAfter rule when it is unset.
func (b BreakerConfig) shouldTrip(counts Counts) bool {
	if b.ReadyToTrip != nil {
		return b.ReadyToTrip(counts)
	}
	limit := b.TripAfter
	if limit == 0 {
		limit = DefaultConsecutiveFailures
	}
	return counts.ConsecutiveFailures >= limit
}
