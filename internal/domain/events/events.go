// Package events defines integration events emitted by check operations.
// They are written to the transactional outbox and relayed to the broker by the worker.
package events

import (
	"context"
	"strconv"
	"time"

	"checkbook/internal/core/types"
)

// Event types.
const (
	TypeCheckIssued  = "check.issued"
	TypeCheckVoided  = "check.voided"
	TypeChecksPosted = "checks.posted"
)

// Aggregate types.
const (
	AggregateCheckRequest = "check_request"
	AggregatePosting      = "posting_batch"
)

// Event is one integration event.
type Event struct {
	AggregateType string
	AggregateID   string
	Type          string
	Payload       any
}

// Publisher stores events in the same unit of work as the state change.
// Publish must be called inside tx.Manager.RunInTransaction.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// CheckIssued is emitted for every request that became generated.
type CheckIssued struct {
	RequestID   int64       `json:"requestId"`
	ProviderID  int64       `json:"providerId"`
	CheckNumber string      `json:"checkNumber"`
	Amount      types.Money `json:"amount"`
	IssuedAt    time.Time   `json:"issuedAt"`
}

// CheckVoided is emitted for every request that became voided.
type CheckVoided struct {
	RequestID int64     `json:"requestId"`
	VoidedAt  time.Time `json:"voidedAt"`
}

// ChecksPosted is emitted after a posting batch has been stamped.
type ChecksPosted struct {
	RequestIDs    []int64     `json:"requestIds"`
	DebitEntryID  int64       `json:"debitEntryId"`
	CreditEntryID int64       `json:"creditEntryId"`
	Total         types.Money `json:"total"`
	PostingDate   string      `json:"postingDate"`
	Description   string      `json:"description"`
}

// ForRequest builds an event keyed by a check request id.
func ForRequest(requestID int64, eventType string, payload any) Event {
	return Event{
		AggregateType: AggregateCheckRequest,
		AggregateID:   strconv.FormatInt(requestID, 10),
		Type:          eventType,
		Payload:       payload,
	}
}

// ForPosting builds an event keyed by the debit/credit entry pair.
func ForPosting(debitEntryID, creditEntryID int64, payload ChecksPosted) Event {
	return Event{
		AggregateType: AggregatePosting,
		AggregateID:   strconv.FormatInt(debitEntryID, 10) + "/" + strconv.FormatInt(creditEntryID, 10),
		Type:          TypeChecksPosted,
		Payload:       payload,
	}
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, ...Event) error { return nil }
