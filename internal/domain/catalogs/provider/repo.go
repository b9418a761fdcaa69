package provider

import (
	"context"

	"checkbook/internal/core/types"
)

// Debit is one balance decrement.
type Debit struct {
	ProviderID int64
	Amount     types.Money
}

// Repository defines provider directory access.
type Repository interface {
	// GetByID returns NotFound if the provider does not exist.
	GetByID(ctx context.Context, id int64) (*Provider, error)

	// GetForUpdate reads the provider with a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*Provider, error)

	// ListForUpdate locks the given providers in ascending id order.
	// Unknown ids are omitted from the result.
	ListForUpdate(ctx context.Context, ids []int64) ([]*Provider, error)

	// ApplyDebits decrements balances. Each debit must be covered by the
	// current balance, otherwise the whole call fails.
	ApplyDebits(ctx context.Context, debits []Debit) error
}
