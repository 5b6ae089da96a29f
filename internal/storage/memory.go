package storage

import (
	"context"
	"fmt"
	"io/fs"
	"sync"
)

// Memory is an in-process Provider used by tests and dry runs.
type Memory struct {
	mu       sync.Mutex
	data     []byte
	revision uint64
	seen     uint64
	failNext []error
	writes   int
}

// NewMemory returns an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{}
}

// Read returns a copy of the stored bytes.
func (m *Memory) Read(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, fmt.Errorf("storage: memory document: %w", fs.ErrNotExist)
	}
	m.seen = m.revision
	return append([]byte(nil), m.data...), nil
}

// Write stores a copy of data, or returns the next injected failure.
func (m *Memory) Write(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.failNext) > 0 {
		err := m.failNext[0]
		m.failNext = m.failNext[1:]
		return err
	}
	if m.seen != m.revision {
		return ErrStale
	}
	m.data = append([]byte(nil), data...)
	m.revision++
	m.seen = m.revision
	m.writes++
	return nil
}

// FailNextWrite makes the next Write return err without storing anything.
func (m *Memory) FailNextWrite(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = append(m.failNext, err)
}

// ReplaceExternally overwrites the document as another process would, without
// updating the revision this provider has seen.
func (m *Memory) ReplaceExternally(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.revision++
}

// Bytes returns a copy of the stored document, or nil.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil
	}
	return append([]byte(nil), m.data...)
}

// Writes returns the number of successful writes.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
