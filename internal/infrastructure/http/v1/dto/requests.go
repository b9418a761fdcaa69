package dto

import (
	"time"

	"checkbook/internal/core/types"
	"checkbook/internal/domain/audit"
	"checkbook/internal/domain/documents/checkrequest"
)

// CreateRequestRequest is the body of POST /requests.
type CreateRequestRequest struct {
	ProviderID         int64       `json:"providerId" binding:"required"`
	PaymentConceptID   int64       `json:"paymentConceptId" binding:"required"`
	Amount             types.Money `json:"amount"`
	RegisteredAt       *Date       `json:"registeredAt"`
	State              string      `json:"state"`
	ProviderAccountRef string      `json:"providerAccountRef"`
	BankAccountRef     string      `json:"bankAccountRef"`
}

// ToInput converts the body to a service input.
func (r *CreateRequestRequest) ToInput() (checkrequest.CreateInput, error) {
	in := checkrequest.CreateInput{
		ProviderID:         r.ProviderID,
		PaymentConceptID:   r.PaymentConceptID,
		Amount:             r.Amount,
		RegisteredAt:       r.RegisteredAt.Ptr(),
		ProviderAccountRef: r.ProviderAccountRef,
		BankAccountRef:     r.BankAccountRef,
	}
	if r.State != "" {
		state, err := checkrequest.ParseState(r.State)
		if err != nil {
			return in, err
		}
		in.State = state
	}
	return in, nil
}

// UpdateRequestRequest is the body of PUT /requests/:id. Omitted fields are unchanged.
type UpdateRequestRequest struct {
	ProviderID         *int64       `json:"providerId"`
	PaymentConceptID   *int64       `json:"paymentConceptId"`
	Amount             *types.Money `json:"amount"`
	RegisteredAt       *Date        `json:"registeredAt"`
	ProviderAccountRef *string      `json:"providerAccountRef"`
	BankAccountRef     *string      `json:"bankAccountRef"`
	Version            int          `json:"version"`
}

// ToInput converts the body to a service input.
func (r *UpdateRequestRequest) ToInput() checkrequest.UpdateInput {
	return checkrequest.UpdateInput{
		ProviderID:         r.ProviderID,
		PaymentConceptID:   r.PaymentConceptID,
		Amount:             r.Amount,
		RegisteredAt:       r.RegisteredAt.Ptr(),
		ProviderAccountRef: r.ProviderAccountRef,
		BankAccountRef:     r.BankAccountRef,
		Version:            r.Version,
	}
}

// RequestResponse represents a check request in API responses.
type RequestResponse struct {
	ID                 int64              `json:"id"`
	ProviderID         int64              `json:"providerId"`
	PaymentConceptID   int64              `json:"paymentConceptId"`
	Amount             types.Money        `json:"amount"`
	RegisteredAt       Date               `json:"registeredAt"`
	State              checkrequest.State `json:"state"`
	ProviderAccountRef string             `json:"providerAccountRef"`
	BankAccountRef     string             `json:"bankAccountRef"`
	CheckNumber        *string            `json:"checkNumber"`
	DebitEntryID       *int64             `json:"debitEntryId"`
	CreditEntryID      *int64             `json:"creditEntryId"`
	Version            int                `json:"version"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// FromRequest converts a domain request to its response.
func FromRequest(r *checkrequest.Request) RequestResponse {
	return RequestResponse{
		ID:                 r.ID,
		ProviderID:         r.ProviderID,
		PaymentConceptID:   r.PaymentConceptID,
		Amount:             r.Amount,
		RegisteredAt:       Date{Time: r.RegisteredAt},
		State:              r.State,
		ProviderAccountRef: r.ProviderAccountRef,
		BankAccountRef:     r.BankAccountRef,
		CheckNumber:        r.CheckNumber,
		DebitEntryID:       r.DebitEntryID,
		CreditEntryID:      r.CreditEntryID,
		Version:            r.Version,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

// FromRequests converts a slice of requests.
func FromRequests(reqs []*checkrequest.Request) []RequestResponse {
	out := make([]RequestResponse, len(reqs))
	for i, r := range reqs {
		out[i] = FromRequest(r)
	}
	return out
}

// BalanceResponse is the body of GET /providers/:id/balance.
type BalanceResponse struct {
	ProviderID int64       `json:"providerId"`
	Balance    types.Money `json:"balance"`
}

// HistoryResponse is one audit record of a request.
type HistoryResponse struct {
	Action    audit.Action `json:"action"`
	Actor     string       `json:"actor,omitempty"`
	Changes   any          `json:"changes,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// FromHistory converts audit records to responses.
func FromHistory(records []audit.Record) []HistoryResponse {
	out := make([]HistoryResponse, len(records))
	for i, rec := range records {
		out[i] = HistoryResponse{
			Action:    rec.Action,
			Actor:     rec.Actor,
			CreatedAt: rec.CreatedAt,
		}
		if len(rec.Changes) > 0 && string(rec.Changes) != "null" {
			out[i].Changes = rec.Changes
		}
	}
	return out
}
