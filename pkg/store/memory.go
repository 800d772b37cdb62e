package store

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryBackend keeps documents in memory. It is meant for tests: the hooks
// let a test inject read or write failures, and call counts are tracked.
type MemoryBackend struct {
	// ReadHook runs before every Read; a non-nil error fails the read
	ReadHook func(ctx context.Context, document string) error

	// WriteHook runs before every Write; a non-nil error fails the write
	// and leaves the stored document unchanged
	WriteHook func(ctx context.Context, document string, data []byte) error

	mu   sync.RWMutex
	docs map[string][]byte

	readCalls  int64
	writeCalls int64
	closeCalls int64
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string][]byte)}
}

// Name returns "memory".
func (m *MemoryBackend) Name() string {
	return "memory"
}

// Read returns a copy of the stored document.
func (m *MemoryBackend) Read(ctx context.Context, document string) ([]byte, error) {
	atomic.AddInt64(&m.readCalls, 1)
	if m.ReadHook != nil {
		if err := m.ReadHook(ctx, document); err != nil {
			return nil, err
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.docs[document]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return append([]byte(nil), data...), nil
}

// Write stores a copy of data.
func (m *MemoryBackend) Write(ctx context.Context, document string, data []byte) error {
	atomic.AddInt64(&m.writeCalls, 1)
	if m.WriteHook != nil {
		if err := m.WriteHook(ctx, document, data); err != nil {
			return err
		}
	}

	m.Put(document, data)
	return nil
}

// Close counts the call and does nothing else.
func (m *MemoryBackend) Close() error {
	atomic.AddInt64(&m.closeCalls, 1)
	return nil
}

// Put stores a document directly, bypassing hooks and counters.
func (m *MemoryBackend) Put(document string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[document] = append([]byte(nil), data...)
}

// Get returns the stored document directly, bypassing hooks and counters.
func (m *MemoryBackend) Get(document string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.docs[document]
	return data, ok
}

// ReadCalls returns the number of Read calls (thread-safe).
func (m *MemoryBackend) ReadCalls() int {
	return int(atomic.LoadInt64(&m.readCalls))
}

// WriteCalls returns the number of Write calls (thread-safe).
func (m *MemoryBackend) WriteCalls() int {
	return int(atomic.LoadInt64(&m.writeCalls))
}

// CloseCalls returns the number of Close calls (thread-safe).
func (m *MemoryBackend) CloseCalls() int {
	return int(atomic.LoadInt64(&m.closeCalls))
}
