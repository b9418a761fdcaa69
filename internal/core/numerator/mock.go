package numerator

import (
	"context"
	"sync"
)

// MockGenerator is a test implementation of Generator.
// Without hooks it behaves like an in-memory sequence per key.
type MockGenerator struct {
	ReserveFunc func(ctx context.Context, cfg Config, count int64) (int64, error)
	AdvanceFunc func(ctx context.Context, cfg Config, last int64) error

	mu      sync.Mutex
	current map[string]int64
}

// Reserve implements Generator.
func (m *MockGenerator) Reserve(ctx context.Context, cfg Config, count int64) (int64, error) {
	if m.ReserveFunc != nil {
		return m.ReserveFunc(ctx, cfg, count)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		m.current = make(map[string]int64)
	}
	first := m.current[cfg.Key] + 1
	m.current[cfg.Key] += count
	return first, nil
}

// Advance implements Generator.
func (m *MockGenerator) Advance(ctx context.Context, cfg Config, last int64) error {
	if m.AdvanceFunc != nil {
		return m.AdvanceFunc(ctx, cfg, last)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		m.current = make(map[string]int64)
	}
	if last > m.current[cfg.Key] {
		m.current[cfg.Key] = last
	}
	return nil
}

// Ensure compile-time interface compliance.
var _ Generator = (*MockGenerator)(nil)
