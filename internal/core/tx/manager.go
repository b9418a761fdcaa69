// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces; the implementations live in
// infrastructure/storage (postgres and memory).
package tx

import (
	"context"
)

// Manager is the unit of work around provider balances and check requests.
// Everything fn does through repositories resolved from ctx commits or rolls back together.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transaction support.
// Use for queries that must see one consistent snapshot without taking locks.
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn in a read-only transaction.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
