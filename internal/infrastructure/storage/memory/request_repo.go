package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"checkbook/internal/core/apperror"
	"checkbook/internal/domain/documents/checkrequest"
)

// RequestRepo implements checkrequest.Repository.
type RequestRepo struct {
	s *Store
}

// Create assigns the next id.
func (r *RequestRepo) Create(ctx context.Context, req *checkrequest.Request) error {
	r.s.locked(ctx, func() {
		r.s.nextRequestID++
		now := r.s.now().UTC()
		req.ID = r.s.nextRequestID
		req.Version = 1
		req.CreatedAt = now
		req.UpdatedAt = now
		r.s.requests[req.ID] = cloneRequest(*req)
	})
	return nil
}

// GetByID returns NotFound if absent.
func (r *RequestRepo) GetByID(ctx context.Context, id int64) (*checkrequest.Request, error) {
	var (
		req checkrequest.Request
		ok  bool
	)
	r.s.locked(ctx, func() {
		req, ok = r.s.requests[id]
		req = cloneRequest(req)
	})
	if !ok {
		return nil, apperror.NewNotFound("check request", id)
	}
	return &req, nil
}

// GetForUpdate is GetByID; the transaction lock already serializes access.
func (r *RequestRepo) GetForUpdate(ctx context.Context, id int64) (*checkrequest.Request, error) {
	return r.GetByID(ctx, id)
}

// ListByIDs returns the found requests ordered by id.
func (r *RequestRepo) ListByIDs(ctx context.Context, ids []int64) ([]*checkrequest.Request, error) {
	var out []*checkrequest.Request
	r.s.locked(ctx, func() {
		for _, id := range sortedIDs(ids) {
			if req, ok := r.s.requests[id]; ok {
				c := cloneRequest(req)
				out = append(out, &c)
			}
		}
	})
	return out, nil
}

// ListForUpdate is ListByIDs.
func (r *RequestRepo) ListForUpdate(ctx context.Context, ids []int64) ([]*checkrequest.Request, error) {
	return r.ListByIDs(ctx, ids)
}

// ListByState returns requests in state ordered by id.
func (r *RequestRepo) ListByState(ctx context.Context, state checkrequest.State) ([]*checkrequest.Request, error) {
	return r.filter(ctx, func(req *checkrequest.Request) bool { return req.State == state }), nil
}

// ListGeneratedUnposted returns eligible requests registered in [from, to).
func (r *RequestRepo) ListGeneratedUnposted(ctx context.Context, from, to time.Time) ([]*checkrequest.Request, error) {
	return r.filter(ctx, func(req *checkrequest.Request) bool {
		return req.EligibleForPosting() && !req.RegisteredAt.Before(from) && req.RegisteredAt.Before(to)
	}), nil
}

// Update replaces editable fields when the version matches.
func (r *RequestRepo) Update(ctx context.Context, req *checkrequest.Request) error {
	var err error
	r.s.locked(ctx, func() {
		stored, ok := r.s.requests[req.ID]
		if !ok {
			err = apperror.NewNotFound("check request", req.ID)
			return
		}
		if stored.Version != req.Version {
			err = apperror.NewConcurrentModification("check request", req.ID)
			return
		}
		req.Version++
		req.UpdatedAt = r.s.now().UTC()
		r.s.requests[req.ID] = cloneRequest(*req)
	})
	return err
}

// Delete removes a request.
func (r *RequestRepo) Delete(ctx context.Context, id int64) error {
	var err error
	r.s.locked(ctx, func() {
		if _, ok := r.s.requests[id]; !ok {
			err = apperror.NewNotFound("check request", id)
			return
		}
		delete(r.s.requests, id)
	})
	return err
}

// MarkGenerated moves pending requests to generated.
func (r *RequestRepo) MarkGenerated(ctx context.Context, issued []checkrequest.Issued) error {
	var err error
	r.s.locked(ctx, func() {
		for _, it := range issued {
			req, ok := r.s.requests[it.RequestID]
			if !ok || req.State != checkrequest.StatePending {
				err = fmt.Errorf("request %d is not pending", it.RequestID)
				return
			}
		}
		now := r.s.now().UTC()
		for _, it := range issued {
			req := r.s.requests[it.RequestID]
			number := it.CheckNumber
			req.State = checkrequest.StateGenerated
			req.CheckNumber = &number
			req.Version++
			req.UpdatedAt = now
			r.s.requests[it.RequestID] = req
		}
	})
	return err
}

// MarkVoided moves pending requests to voided and clears check numbers.
func (r *RequestRepo) MarkVoided(ctx context.Context, ids []int64) ([]int64, error) {
	changed := []int64{}
	r.s.locked(ctx, func() {
		now := r.s.now().UTC()
		for _, id := range sortedIDs(ids) {
			req, ok := r.s.requests[id]
			if !ok || req.State != checkrequest.StatePending {
				continue
			}
			req.State = checkrequest.StateVoided
			req.CheckNumber = nil
			req.Version++
			req.UpdatedAt = now
			r.s.requests[id] = req
			changed = append(changed, id)
		}
	})
	return changed, nil
}

// StampEntries sets both entry ids on requests still eligible for posting.
func (r *RequestRepo) StampEntries(ctx context.Context, ids []int64, debitEntryID, creditEntryID int64) ([]int64, error) {
	changed := []int64{}
	r.s.locked(ctx, func() {
		now := r.s.now().UTC()
		for _, id := range sortedIDs(ids) {
			req, ok := r.s.requests[id]
			if !ok || !req.EligibleForPosting() {
				continue
			}
			deb, cre := debitEntryID, creditEntryID
			req.DebitEntryID = &deb
			req.CreditEntryID = &cre
			req.Version++
			req.UpdatedAt = now
			r.s.requests[id] = req
			changed = append(changed, id)
		}
	})
	return changed, nil
}

func (r *RequestRepo) filter(ctx context.Context, keep func(*checkrequest.Request) bool) []*checkrequest.Request {
	out := []*checkrequest.Request{}
	r.s.locked(ctx, func() {
		for _, req := range r.s.requests {
			c := cloneRequest(req)
			if keep(&c) {
				out = append(out, &c)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
