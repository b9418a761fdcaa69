package reports

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"checkbook/internal/core/apperror"
	"checkbook/internal/core/types"
	"checkbook/internal/domain"
)

// Service provides report generation operations.
type Service struct {
	repo Repository
}

// NewService creates a new reports service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Summaries groups posted checks by (year, month, debit entry, credit entry).
func (s *Service) Summaries(ctx context.Context, filter SummaryFilter) ([]Summary, error) {
	from, to, err := dateBounds(filter.From, filter.To)
	if err != nil {
		return nil, err
	}

	checks, err := s.repo.ListPosted(ctx, from, to, filter.DebitEntryID, filter.CreditEntryID)
	if err != nil {
		return nil, fmt.Errorf("list posted checks: %w", err)
	}
	return GroupPosted(checks), nil
}

// Detail returns one posting group with its checks.
func (s *Service) Detail(ctx context.Context, key GroupKey) (*Detail, error) {
	if key.Month < 1 || key.Month > 12 {
		return nil, apperror.NewValidation(fmt.Sprintf("month must be between 1 and 12, got %d", key.Month)).
			WithDetail("field", "month")
	}

	checks, err := s.repo.ListGroup(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list posting group: %w", err)
	}
	if len(checks) == 0 {
		return nil, apperror.NewNotFound("posting group",
			fmt.Sprintf("%04d-%02d debit %d credit %d", key.Year, key.Month, key.DebitEntryID, key.CreditEntryID))
	}

	return &Detail{Summary: summarize(key, checks), Checks: checks}, nil
}

// SearchChecks lists issued checks.
func (s *Service) SearchChecks(ctx context.Context, filter CheckSearchFilter) ([]CheckLine, error) {
	from, to, err := dateBounds(filter.From, filter.To)
	if err != nil {
		return nil, err
	}
	if !from.IsZero() {
		filter.From = &from
	}
	if !to.IsZero() {
		filter.To = &to
	}
	filter.CheckNumber = strings.TrimSpace(filter.CheckNumber)

	page := domain.Page{Limit: filter.Limit, Offset: filter.Offset}.Normalize()
	filter.Limit, filter.Offset = page.Limit, page.Offset

	lines, err := s.repo.SearchChecks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("search checks: %w", err)
	}
	return lines, nil
}

// CheckDetail returns one issued check.
func (s *Service) CheckDetail(ctx context.Context, requestID int64) (*CheckDetail, error) {
	return s.repo.GetCheck(ctx, requestID)
}

// GroupPosted aggregates checks per group, newest year and month first.
// Groups of the same month are ordered by debit then credit entry id.
func GroupPosted(checks []PostedCheck) []Summary {
	groups := make(map[GroupKey][]PostedCheck)
	for _, c := range checks {
		k := c.Key()
		groups[k] = append(groups[k], c)
	}

	out := make([]Summary, 0, len(groups))
	for k, g := range groups {
		out = append(out, summarize(k, g))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		if a.Month != b.Month {
			return a.Month > b.Month
		}
		if a.DebitEntryID != b.DebitEntryID {
			return a.DebitEntryID < b.DebitEntryID
		}
		return a.CreditEntryID < b.CreditEntryID
	})
	return out
}

func summarize(key GroupKey, checks []PostedCheck) Summary {
	total := types.Zero()
	providers := make(map[int64]struct{})
	for _, c := range checks {
		total = total.Add(c.Amount)
		providers[c.ProviderID] = struct{}{}
	}
	return Summary{
		GroupKey:      key,
		Total:         total,
		Count:         len(checks),
		ProviderCount: len(providers),
	}
}

// dateBounds turns inclusive calendar dates into a half-open [from, to) range.
func dateBounds(from, to *time.Time) (time.Time, time.Time, error) {
	var lo, hi time.Time
	if from != nil {
		lo = truncateDay(*from)
	}
	if to != nil {
		hi = truncateDay(*to).AddDate(0, 0, 1)
	}
	if !lo.IsZero() && !hi.IsZero() && !lo.Before(hi) {
		return time.Time{}, time.Time{}, apperror.NewValidation("from must not be after to").
			WithDetail("from", lo.Format(time.DateOnly)).
			WithDetail("to", to.Format(time.DateOnly))
	}
	return lo, hi, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
