// Package numerator provides PostgreSQL implementation of check auto-numbering.
// It implements core/numerator.Generator on top of the sys_sequences table.
package numerator

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	corenumerator "checkbook/internal/core/numerator"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service allocates sequence values with UPSERT ... RETURNING.
// The upserted row stays locked until the surrounding transaction ends, so
// concurrent reservations on the same key are serialized and contiguous.
type Service struct {
	querier func(ctx context.Context) Querier
}

// Ensure compile-time interface compliance.
var _ corenumerator.Generator = (*Service)(nil)

// New creates a numerator bound to a fixed querier.
func New(q Querier) *Service {
	return &Service{querier: func(context.Context) Querier { return q }}
}

// NewFromContext creates a numerator that joins the transaction found in ctx.
func NewFromContext(src func(ctx context.Context) Querier) *Service {
	return &Service{querier: src}
}

// Reserve allocates count consecutive values and returns the first one.
func (s *Service) Reserve(ctx context.Context, cfg corenumerator.Config, count int64) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("numerator service is not initialized")
	}
	if count <= 0 {
		return 0, fmt.Errorf("reserve %s: count must be positive, got %d", cfg.Key, count)
	}

	var last int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2
		RETURNING current_val
	`, cfg.Key, count).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("reserve %s: %w", cfg.Key, err)
	}

	// New row: 1..count. Existing row: (old+1)..(old+count).
	return last - count + 1, nil
}

// Advance moves the sequence forward to at least last.
func (s *Service) Advance(ctx context.Context, cfg corenumerator.Config, last int64) error {
	var current int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = GREATEST(sys_sequences.current_val, $2)
		RETURNING current_val
	`, cfg.Key, last).Scan(&current)
	if err != nil {
		return fmt.Errorf("advance %s: %w", cfg.Key, err)
	}
	return nil
}
