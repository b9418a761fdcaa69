package dto

import (
	"checkbook/internal/domain/reports"
)

// SummariesResponse is the body of GET /reports/postings.
type SummariesResponse struct {
	Items []reports.Summary `json:"items"`
	Count int               `json:"count"`
}

// FromSummaries wraps posting summaries, never returning a null list.
func FromSummaries(items []reports.Summary) SummariesResponse {
	if items == nil {
		items = []reports.Summary{}
	}
	return SummariesResponse{Items: items, Count: len(items)}
}

// CheckSearchResponse is the body of GET /checks.
type CheckSearchResponse struct {
	Items  []reports.CheckLine `json:"items"`
	Count  int                 `json:"count"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// FromCheckLines wraps a page of check search results.
func FromCheckLines(items []reports.CheckLine, limit, offset int) CheckSearchResponse {
	if items == nil {
		items = []reports.CheckLine{}
	}
	return CheckSearchResponse{Items: items, Count: len(items), Limit: limit, Offset: offset}
}
