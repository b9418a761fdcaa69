package dto

import (
	"checkbook/internal/domain/issuance"
)

// IssueOneRequest is the body of POST /requests/:id/issue.
type IssueOneRequest struct {
	CheckNumber string `json:"checkNumber" binding:"required"`
}

// IssueManyRequest is the body of POST /requests/issue.
type IssueManyRequest struct {
	Items []issuance.Item `json:"items" binding:"required,min=1"`
}

// IssueSequentialRequest is the body of POST /requests/issue-sequential.
// Without StartNumber the next numbers of the check-number sequence are used.
type IssueSequentialRequest struct {
	IDs         []int64 `json:"ids" binding:"required,min=1"`
	StartNumber *int64  `json:"startNumber"`
}
