package numerator

import (
	"context"
)

// Generator hands out sequential check numbers.
// Implementations live in infrastructure layer and must take part in the
// caller's transaction so a rolled-back issuance releases its numbers.
type Generator interface {
	// Reserve allocates count consecutive values and returns the first one.
	Reserve(ctx context.Context, cfg Config, count int64) (int64, error)

	// Advance moves the sequence so the next reservation starts after last.
	// It never moves the sequence backwards.
	Advance(ctx context.Context, cfg Config, last int64) error
}
