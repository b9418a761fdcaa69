package dto

import (
	"checkbook/internal/core/types"
	"checkbook/internal/domain/posting"
)

// PostBatchRequest is the body of POST /postings.
type PostBatchRequest struct {
	IDs         []int64 `json:"ids" binding:"required,min=1"`
	Description *string `json:"description"`
	PostingDate *Date   `json:"postingDate"`
}

// ToInput converts the body to a coordinator input.
func (r *PostBatchRequest) ToInput() posting.Input {
	return posting.Input{
		RequestIDs:  r.IDs,
		Description: r.Description,
		PostingDate: r.PostingDate.Ptr(),
	}
}

// PostBatchResponse describes a completed posting.
type PostBatchResponse struct {
	DebitEntryID  int64       `json:"debitEntryId"`
	CreditEntryID int64       `json:"creditEntryId"`
	Total         types.Money `json:"total"`
	Count         int         `json:"count"`
	ProviderCount int         `json:"providerCount"`
	PostingDate   Date        `json:"postingDate"`
	Description   string      `json:"description"`
	RequestIDs    []int64     `json:"requestIds"`
	Lost          []int64     `json:"lost,omitempty"`
}

// FromPostingResult converts a coordinator result.
func FromPostingResult(r *posting.Result) PostBatchResponse {
	return PostBatchResponse{
		DebitEntryID:  r.DebitEntryID,
		CreditEntryID: r.CreditEntryID,
		Total:         r.Total.Round(2),
		Count:         r.Count,
		ProviderCount: r.ProviderCount,
		PostingDate:   Date{Time: r.PostingDate},
		Description:   r.Description,
		RequestIDs:    r.RequestIDs,
		Lost:          r.Lost,
	}
}
