package sink

import (
	"context"
	"sync"
)

// Memory keeps records in memory.
type Memory struct {
	mu    sync.Mutex
	items []any
}

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Write appends v.
func (m *Memory) Write(ctx context.Context, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, v)
	recordsWritten.WithLabelValues("memory").Inc()
	return nil
}

// Items returns a copy of the records written so far.
func (m *Memory) Items() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.items))
	copy(out, m.items)
	return out
}

// Close is a no-op.
func (m *Memory) Close(ctx context.Context) error {
	return nil
}
