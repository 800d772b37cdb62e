// Package writer copies ledger documents to a secondary backend in the background.
package writer

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"atm-ledger/pkg/logging"
	"atm-ledger/pkg/metrics"
	"atm-ledger/pkg/store"

	"go.uber.org/zap"
)

// AsyncWriter replicates whole documents to a target backend using a worker pool
// and bounded queues. Each document is always handled by the same worker, so
// copies of one document reach the target in the order they were written.
type AsyncWriter struct {
	target     store.Backend
	queues     []chan writeOp
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	config     AsyncWriterConfig
	metrics    metrics.Collector
	logger     *logging.Logger
	targetName string
	closeOnce  sync.Once

	// closeMu is held shared for each enqueue and exclusively while marking
	// the writer closed, so no copy lands in a queue after its worker exits.
	closeMu sync.RWMutex
	closed  bool
	closing chan struct{}

	// Statistics (accessed atomically)
	droppedWrites int64
	totalWrites   int64
	failedWrites  int64
	pending       int64

	// Metrics ticker for periodic queue depth reporting
	metricsTicker *time.Ticker
	metricsStop   chan struct{}
}

// writeOp represents a pending document copy.
type writeOp struct {
	document string
	data     []byte
}

// AsyncWriterConfig configures the async writer behavior.
type AsyncWriterConfig struct {
	// QueueSize is the bounded queue size per worker (default: 1000)
	QueueSize int

	// Workers is the number of concurrent workers (default: 2)
	Workers int

	// MaxWaitTime is the max time to wait if the queue is full (default: 10ms)
	MaxWaitTime time.Duration

	// WriteTimeout bounds each write to the target (default: 5s)
	WriteTimeout time.Duration

	// MetricsInterval is how often queue depth is reported (default: 5s)
	MetricsInterval time.Duration
}

// DefaultAsyncWriterConfig returns the defaults applied to zero fields.
func DefaultAsyncWriterConfig() AsyncWriterConfig {
	return AsyncWriterConfig{
		QueueSize:       1000,
		Workers:         2,
		MaxWaitTime:     10 * time.Millisecond,
		WriteTimeout:    5 * time.Second,
		MetricsInterval: 5 * time.Second,
	}
}

// NewAsyncWriter creates a new async writer for target.
// The writer starts processing immediately and must be closed with Close().
func NewAsyncWriter(target store.Backend, config AsyncWriterConfig) *AsyncWriter {
	return NewAsyncWriterWithMetrics(target, config, nil)
}

// NewAsyncWriterWithMetrics creates a new async writer with a metrics collector.
func NewAsyncWriterWithMetrics(target store.Backend, config AsyncWriterConfig, collector metrics.Collector) *AsyncWriter {
	defaults := DefaultAsyncWriterConfig()
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.MaxWaitTime <= 0 {
		config.MaxWaitTime = defaults.MaxWaitTime
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.MetricsInterval <= 0 {
		config.MetricsInterval = defaults.MetricsInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &AsyncWriter{
		target:        target,
		queues:        make([]chan writeOp, config.Workers),
		ctx:           ctx,
		cancelFunc:    cancel,
		config:        config,
		metrics:       metrics.OrNoOp(collector),
		logger:        logging.L().Named("writer").With(zap.String("target", target.Name())),
		targetName:    target.Name(),
		metricsTicker: time.NewTicker(config.MetricsInterval),
		metricsStop:   make(chan struct{}),
		closing:       make(chan struct{}),
	}

	for i := range w.queues {
		w.queues[i] = make(chan writeOp, config.QueueSize)
		w.wg.Add(1)
		go w.worker(w.queues[i])
	}

	go w.reportMetrics()

	return w
}

// Write enqueues a copy of data for document.
// If the queue is full, it waits up to MaxWaitTime before dropping the copy.
// Returns ErrQueueFull if the copy was dropped due to backpressure.
func (w *AsyncWriter) Write(ctx context.Context, document string, data []byte) error {
	w.closeMu.RLock()
	defer w.closeMu.RUnlock()

	if w.closed {
		return ErrWriterClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	op := writeOp{
		document: document,
		data:     append([]byte(nil), data...),
	}
	queue := w.queueFor(document)

	timer := time.NewTimer(w.config.MaxWaitTime)
	defer timer.Stop()

	atomic.AddInt64(&w.pending, 1)
	select {
	case queue <- op:
		atomic.AddInt64(&w.totalWrites, 1)
		return nil
	case <-timer.C:
		atomic.AddInt64(&w.pending, -1)
		atomic.AddInt64(&w.droppedWrites, 1)
		w.metrics.RecordReplicationDropped(w.targetName)
		w.logger.Warn("replication queue full, copy dropped", logging.Document(document))
		return ErrQueueFull
	case <-ctx.Done():
		atomic.AddInt64(&w.pending, -1)
		return ctx.Err()
	case <-w.closing:
		atomic.AddInt64(&w.pending, -1)
		return ErrWriterClosed
	}
}

func (w *AsyncWriter) queueFor(document string) chan writeOp {
	h := fnv.New32a()
	h.Write([]byte(document))
	return w.queues[h.Sum32()%uint32(len(w.queues))]
}

// worker applies copies from one queue.
func (w *AsyncWriter) worker(queue chan writeOp) {
	defer w.wg.Done()

	for {
		select {
		case op := <-queue:
			w.apply(op)
		case <-w.ctx.Done():
			// Drain remaining items before exiting
			for {
				select {
				case op := <-queue:
					w.apply(op)
				default:
					return
				}
			}
		}
	}
}

func (w *AsyncWriter) apply(op writeOp) {
	defer atomic.AddInt64(&w.pending, -1)

	ctx, cancel := context.WithTimeout(context.Background(), w.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := w.target.Write(ctx, op.document, op.data)
	duration := time.Since(start)

	w.metrics.RecordReplication(w.targetName, err == nil, duration)

	if err != nil {
		atomic.AddInt64(&w.failedWrites, 1)
		w.logger.Warn("replication failed",
			logging.Document(op.document),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
	}
}

// Flush waits for all pending copies to be applied or until timeout.
func (w *AsyncWriter) Flush(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		if atomic.LoadInt64(&w.pending) == 0 {
			return nil
		}

		if time.Now().After(deadline) {
			return ErrFlushTimeout
		}

		time.Sleep(10 * time.Millisecond)
	}
}

// Close stops accepting new copies and waits for the queued ones to be applied.
// It does not close the target.
func (w *AsyncWriter) Close() error {
	w.closeOnce.Do(func() {
		close(w.metricsStop)
		w.metricsTicker.Stop()

		// Wake writers blocked on a full queue, then wait out any enqueue in progress.
		close(w.closing)
		w.closeMu.Lock()
		w.closed = true
		w.closeMu.Unlock()

		w.cancelFunc()
		w.wg.Wait()
	})
	return nil
}

// reportMetrics periodically reports queue depth.
func (w *AsyncWriter) reportMetrics() {
	for {
		select {
		case <-w.metricsTicker.C:
			w.metrics.RecordQueueDepth(w.targetName, w.queueDepth())
		case <-w.metricsStop:
			return
		}
	}
}

func (w *AsyncWriter) queueDepth() int {
	depth := 0
	for _, q := range w.queues {
		depth += len(q)
	}
	return depth
}

// Stats returns current statistics about the async writer.
func (w *AsyncWriter) Stats() AsyncWriterStats {
	return AsyncWriterStats{
		QueueDepth:    w.queueDepth(),
		DroppedWrites: atomic.LoadInt64(&w.droppedWrites),
		TotalWrites:   atomic.LoadInt64(&w.totalWrites),
		FailedWrites:  atomic.LoadInt64(&w.failedWrites),
	}
}
