package reports

import (
	"context"
	"time"
)

// Repository defines report data access interface.
type Repository interface {
	// ListPosted returns generated requests with both entry references whose
	// registration date is in [from, to). Zero bounds are open.
	ListPosted(ctx context.Context, from, to time.Time, debitEntryID, creditEntryID *int64) ([]PostedCheck, error)

	// ListGroup returns the posted checks of one group ordered by request id.
	ListGroup(ctx context.Context, key GroupKey) ([]PostedCheck, error)

	// SearchChecks returns generated requests matching the filter, newest first.
	// The service passes From and To as a half-open [From, To) range.
	SearchChecks(ctx context.Context, filter CheckSearchFilter) ([]CheckLine, error)

	// GetCheck returns NotFound unless the request exists and is generated.
	GetCheck(ctx context.Context, requestID int64) (*CheckDetail, error)
}
