package writer

import (
	"context"
	"time"

	"atm-ledger/pkg/logging"
	"atm-ledger/pkg/metrics"
	"atm-ledger/pkg/store"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Mirror is a store.Backend that reads and writes the primary and copies every
// successful write to a secondary in the background. Replication failures are
// logged and counted but never fail the write.
type Mirror struct {
	primary   store.Backend
	secondary store.Backend
	writer    *AsyncWriter
	logger    *logging.Logger
}

// NewMirror creates a Mirror. Closing it closes both backends.
func NewMirror(primary, secondary store.Backend, config AsyncWriterConfig, collector metrics.Collector) *Mirror {
	return &Mirror{
		primary:   primary,
		secondary: secondary,
		writer:    NewAsyncWriterWithMetrics(secondary, config, collector),
		logger:    logging.L().Named("mirror"),
	}
}

// Name returns "<primary>+<secondary>".
func (m *Mirror) Name() string {
	return m.primary.Name() + "+" + m.secondary.Name()
}

// Read reads from the primary only.
func (m *Mirror) Read(ctx context.Context, document string) ([]byte, error) {
	return m.primary.Read(ctx, document)
}

// Write writes to the primary and queues a copy for the secondary.
func (m *Mirror) Write(ctx context.Context, document string, data []byte) error {
	if err := m.primary.Write(ctx, document, data); err != nil {
		return err
	}

	if err := m.writer.Write(ctx, document, data); err != nil {
		m.logger.Warn("document not queued for replication",
			logging.Document(document),
			zap.Error(err),
		)
	}
	return nil
}

// Flush waits for queued copies to reach the secondary.
func (m *Mirror) Flush(timeout time.Duration) error {
	return m.writer.Flush(timeout)
}

// Stats returns replication statistics.
func (m *Mirror) Stats() AsyncWriterStats {
	return m.writer.Stats()
}

// Close drains the replication queue, then closes both backends.
func (m *Mirror) Close() error {
	return multierr.Combine(
		m.writer.Close(),
		m.secondary.Close(),
		m.primary.Close(),
	)
}
