// Package checkrequest provides the check request document and its store.
package checkrequest

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"checkbook/internal/core/apperror"
	"checkbook/internal/core/types"
)

// State is the lifecycle state of a check request.
//
//	pending -> generated
//	pending -> voided
//
// generated and voided are terminal.
type State string

const (
	StatePending   State = "pending"
	StateGenerated State = "generated"
	StateVoided    State = "voided"
)

// ParseState accepts only the three lifecycle states (case-insensitive).
func ParseState(s string) (State, error) {
	switch State(strings.ToLower(strings.TrimSpace(s))) {
	case StatePending:
		return StatePending, nil
	case StateGenerated:
		return StateGenerated, nil
	case StateVoided:
		return StateVoided, nil
	}
	return "", apperror.NewValidation(fmt.Sprintf("unknown request state %q", s)).
		WithDetail("allowed", []State{StatePending, StateGenerated, StateVoided})
}

// Valid reports whether s is one of the lifecycle states.
func (s State) Valid() bool {
	return s == StatePending || s == StateGenerated || s == StateVoided
}

// CanTransitionTo reports whether next is reachable from s.
func (s State) CanTransitionTo(next State) bool {
	return s == StatePending && (next == StateGenerated || next == StateVoided)
}

// UnmarshalText rejects unknown states at JSON and query boundaries.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Scan implements sql.Scanner and rejects unknown states coming from storage.
func (s *State) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into State", src)
	}
	parsed, err := ParseState(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value implements driver.Valuer.
func (s State) Value() (driver.Value, error) {
	return string(s), nil
}

// Request is a unit of intent to pay a provider a fixed amount.
type Request struct {
	ID                 int64       `db:"id" json:"id"`
	ProviderID         int64       `db:"provider_id" json:"providerId"`
	PaymentConceptID   int64       `db:"payment_concept_id" json:"paymentConceptId"`
	Amount             types.Money `db:"amount" json:"amount"`
	RegisteredAt       time.Time   `db:"registered_at" json:"registeredAt"`
	State              State       `db:"state" json:"state"`
	ProviderAccountRef string      `db:"provider_account_ref" json:"providerAccountRef"`
	BankAccountRef     string      `db:"bank_account_ref" json:"bankAccountRef"`
	CheckNumber        *string     `db:"check_number" json:"checkNumber,omitempty"`
	DebitEntryID       *int64      `db:"debit_entry_id" json:"debitEntryId,omitempty"`
	CreditEntryID      *int64      `db:"credit_entry_id" json:"creditEntryId,omitempty"`
	Version            int         `db:"version" json:"version"`
	CreatedAt          time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time   `db:"updated_at" json:"updatedAt"`
}

// Validate checks the invariants that hold in every state.
func (r *Request) Validate() error {
	if !r.Amount.IsPositive() {
		return apperror.NewValidation("amount must be greater than zero").
			WithDetail("field", "amount").
			WithDetail("value", r.Amount.String())
	}
	if r.ProviderID <= 0 {
		return apperror.NewValidation("provider is required").WithDetail("field", "providerId")
	}
	if r.PaymentConceptID <= 0 {
		return apperror.NewValidation("payment concept is required").WithDetail("field", "paymentConceptId")
	}
	if strings.TrimSpace(r.ProviderAccountRef) == "" {
		return apperror.NewValidation("provider account is required").WithDetail("field", "providerAccountRef")
	}
	if strings.TrimSpace(r.BankAccountRef) == "" {
		return apperror.NewValidation("bank account is required").WithDetail("field", "bankAccountRef")
	}
	if r.RegisteredAt.IsZero() {
		return apperror.NewValidation("registration date is required").WithDetail("field", "registeredAt")
	}
	if !r.State.Valid() {
		return apperror.NewValidation(fmt.Sprintf("unknown request state %q", r.State)).WithDetail("field", "state")
	}
	return nil
}

// IsPosted reports whether both ledger entry references are set.
func (r *Request) IsPosted() bool {
	return r.DebitEntryID != nil && r.CreditEntryID != nil
}

// EligibleForPosting reports whether the request may join a posting batch.
func (r *Request) EligibleForPosting() bool {
	return r.State == StateGenerated && r.DebitEntryID == nil && r.CreditEntryID == nil
}

// CanModify returns an error unless the request is still pending.
func (r *Request) CanModify() error {
	switch r.State {
	case StatePending:
		return nil
	case StateGenerated:
		return apperror.NewImmutableState("check request", r.ID, string(r.State))
	default:
		return apperror.NewInvalidState(fmt.Sprintf("check request %d is %s", r.ID, r.State)).
			WithDetail("request_id", r.ID).
			WithDetail("state", r.State)
	}
}

// Issued pairs a request with the check number assigned to it.
type Issued struct {
	RequestID   int64
	CheckNumber string
}

// MonthRange returns the half-open interval [first day of month, first day of next month) in UTC.
func MonthRange(year, month int) (time.Time, time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, time.Time{}, apperror.NewValidation(fmt.Sprintf("month must be between 1 and 12, got %d", month)).
			WithDetail("field", "month")
	}
	if year < 1900 || year > 9999 {
		return time.Time{}, time.Time{}, apperror.NewValidation(fmt.Sprintf("invalid year %d", year)).
			WithDetail("field", "year")
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0), nil
}
