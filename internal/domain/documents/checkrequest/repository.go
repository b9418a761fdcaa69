package checkrequest

import (
	"context"
	"time"
)

// Repository defines persistence for check requests.
// The transition methods (MarkGenerated, MarkVoided, StampEntries) are reserved
// for the issuance, voiding and posting components.
type Repository interface {
	// Create inserts the request and sets its database-assigned ID.
	Create(ctx context.Context, r *Request) error

	// GetByID returns NotFound if absent.
	GetByID(ctx context.Context, id int64) (*Request, error)

	// GetForUpdate reads the request with a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*Request, error)

	// ListByIDs returns the found requests ordered by id; unknown ids are omitted.
	ListByIDs(ctx context.Context, ids []int64) ([]*Request, error)

	// ListForUpdate locks the found requests in ascending id order.
	ListForUpdate(ctx context.Context, ids []int64) ([]*Request, error)

	// ListByState returns all requests in the given state ordered by id.
	ListByState(ctx context.Context, state State) ([]*Request, error)

	// ListGeneratedUnposted returns generated requests without entry references
	// registered in [from, to).
	ListGeneratedUnposted(ctx context.Context, from, to time.Time) ([]*Request, error)

	// Update persists editable fields with optimistic locking on Version.
	Update(ctx context.Context, r *Request) error

	// Delete removes a request.
	Delete(ctx context.Context, id int64) error

	// MarkGenerated sets check numbers and moves pending requests to generated.
	MarkGenerated(ctx context.Context, issued []Issued) error

	// MarkVoided moves pending requests to voided and clears check numbers.
	// Returns the ids that actually changed.
	MarkVoided(ctx context.Context, ids []int64) ([]int64, error)

	// StampEntries sets both entry references on requests that are still
	// generated and unposted. Returns the ids that actually changed.
	StampEntries(ctx context.Context, ids []int64, debitEntryID, creditEntryID int64) ([]int64, error)
}
