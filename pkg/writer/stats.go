package writer

import "errors"

// AsyncWriterStats provides statistics about replication.
type AsyncWriterStats struct {
	// QueueDepth is the number of copies waiting in the queues
	QueueDepth int

	// DroppedWrites is the number of copies dropped due to backpressure
	DroppedWrites int64

	// TotalWrites is the number of copies accepted
	TotalWrites int64

	// FailedWrites is the number of copies the target rejected
	FailedWrites int64
}

// Errors returned by async writer operations.
var (
	// ErrQueueFull is returned when the queue is full and MaxWaitTime exceeded
	ErrQueueFull = errors.New("writer: queue full, copy dropped")

	// ErrWriterClosed is returned when writing to a closed writer
	ErrWriterClosed = errors.New("writer: writer is closed")

	// ErrFlushTimeout is returned when Flush() times out waiting for the queues to drain
	ErrFlushTimeout = errors.New("writer: flush timeout exceeded")
)
