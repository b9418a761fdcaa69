package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"checkbook/internal/core/apperror"
	"checkbook/internal/domain/documents/checkrequest"
	"checkbook/internal/domain/reports"
)

// ReportRepo implements reports.Repository.
type ReportRepo struct {
	s *Store
}

var _ reports.Repository = (*ReportRepo)(nil)

// ListPosted returns posted checks registered in [from, to).
func (r *ReportRepo) ListPosted(ctx context.Context, from, to time.Time, debitEntryID, creditEntryID *int64) ([]reports.PostedCheck, error) {
	return r.posted(ctx, func(c reports.PostedCheck) bool {
		if !from.IsZero() && c.RegisteredAt.Before(from) {
			return false
		}
		if !to.IsZero() && !c.RegisteredAt.Before(to) {
			return false
		}
		if debitEntryID != nil && c.DebitEntryID != *debitEntryID {
			return false
		}
		if creditEntryID != nil && c.CreditEntryID != *creditEntryID {
			return false
		}
		return true
	}), nil
}

// ListGroup returns the checks of one posting group.
func (r *ReportRepo) ListGroup(ctx context.Context, key reports.GroupKey) ([]reports.PostedCheck, error) {
	return r.posted(ctx, func(c reports.PostedCheck) bool { return c.Key() == key }), nil
}

// SearchChecks returns generated requests matching the filter, newest first.
func (r *ReportRepo) SearchChecks(ctx context.Context, f reports.CheckSearchFilter) ([]reports.CheckLine, error) {
	var lines []reports.CheckLine
	r.s.locked(ctx, func() {
		for _, req := range r.s.requests {
			if req.State != checkrequest.StateGenerated {
				continue
			}
			if f.ProviderID != nil && req.ProviderID != *f.ProviderID {
				continue
			}
			if f.RequestID != nil && req.ID != *f.RequestID {
				continue
			}
			if f.From != nil && req.RegisteredAt.Before(*f.From) {
				continue
			}
			if f.To != nil && !req.RegisteredAt.Before(*f.To) {
				continue
			}
			number := deref(req.CheckNumber)
			if f.CheckNumber != "" && !strings.Contains(number, f.CheckNumber) {
				continue
			}
			lines = append(lines, reports.CheckLine{
				RequestID:    req.ID,
				CheckNumber:  number,
				ProviderID:   req.ProviderID,
				ProviderName: r.s.providers[req.ProviderID].Name,
				Amount:       req.Amount,
				RegisteredAt: req.RegisteredAt,
			})
		}
	})

	sort.Slice(lines, func(i, j int) bool {
		if !lines[i].RegisteredAt.Equal(lines[j].RegisteredAt) {
			return lines[i].RegisteredAt.After(lines[j].RegisteredAt)
		}
		return lines[i].RequestID > lines[j].RequestID
	})

	if f.Offset >= len(lines) {
		return []reports.CheckLine{}, nil
	}
	lines = lines[f.Offset:]
	if f.Limit > 0 && len(lines) > f.Limit {
		lines = lines[:f.Limit]
	}
	return lines, nil
}

// GetCheck returns one generated request with provider data.
func (r *ReportRepo) GetCheck(ctx context.Context, requestID int64) (*reports.CheckDetail, error) {
	var (
		d  reports.CheckDetail
		ok bool
	)
	r.s.locked(ctx, func() {
		req, found := r.s.requests[requestID]
		if !found || req.State != checkrequest.StateGenerated {
			return
		}
		req = cloneRequest(req)
		p := r.s.providers[req.ProviderID]
		d = reports.CheckDetail{
			RequestID:          req.ID,
			CheckNumber:        deref(req.CheckNumber),
			ProviderID:         req.ProviderID,
			ProviderName:       p.Name,
			ProviderTaxID:      p.TaxID,
			ProviderAccountRef: req.ProviderAccountRef,
			BankAccountRef:     req.BankAccountRef,
			Amount:             req.Amount,
			RegisteredAt:       req.RegisteredAt,
			DebitEntryID:       req.DebitEntryID,
			CreditEntryID:      req.CreditEntryID,
		}
		ok = true
	})
	if !ok {
		return nil, apperror.NewNotFound("check", requestID)
	}
	return &d, nil
}

func (r *ReportRepo) posted(ctx context.Context, keep func(reports.PostedCheck) bool) []reports.PostedCheck {
	out := []reports.PostedCheck{}
	r.s.locked(ctx, func() {
		for _, req := range r.s.requests {
			if req.State != checkrequest.StateGenerated || !req.IsPosted() {
				continue
			}
			p := r.s.providers[req.ProviderID]
			c := reports.PostedCheck{
				RequestID:          req.ID,
				CheckNumber:        deref(req.CheckNumber),
				ProviderID:         req.ProviderID,
				ProviderName:       p.Name,
				ProviderTaxID:      p.TaxID,
				Amount:             req.Amount,
				RegisteredAt:       req.RegisteredAt,
				ProviderAccountRef: req.ProviderAccountRef,
				BankAccountRef:     req.BankAccountRef,
				DebitEntryID:       *req.DebitEntryID,
				CreditEntryID:      *req.CreditEntryID,
			}
			if keep(c) {
				out = append(out, c)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].RequestID < out[j].RequestID })
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
