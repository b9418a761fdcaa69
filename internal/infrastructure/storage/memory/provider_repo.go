package memory

import (
	"context"
	"fmt"

	"checkbook/internal/core/apperror"
	"checkbook/internal/domain/catalogs/provider"
)

// ProviderRepo implements provider.Repository.
type ProviderRepo struct {
	s *Store
}

// GetByID returns a copy of the provider.
func (r *ProviderRepo) GetByID(ctx context.Context, id int64) (*provider.Provider, error) {
	var (
		p  provider.Provider
		ok bool
	)
	r.s.locked(ctx, func() {
		p, ok = r.s.providers[id]
	})
	if !ok {
		return nil, apperror.NewNotFound("provider", id)
	}
	return &p, nil
}

// GetForUpdate is GetByID; the transaction lock already serializes access.
func (r *ProviderRepo) GetForUpdate(ctx context.Context, id int64) (*provider.Provider, error) {
	return r.GetByID(ctx, id)
}

// ListForUpdate returns the found providers in ascending id order.
func (r *ProviderRepo) ListForUpdate(ctx context.Context, ids []int64) ([]*provider.Provider, error) {
	var out []*provider.Provider
	r.s.locked(ctx, func() {
		for _, id := range sortedIDs(ids) {
			if p, ok := r.s.providers[id]; ok {
				out = append(out, &p)
			}
		}
	})
	return out, nil
}

// ApplyDebits decrements balances all or nothing.
func (r *ProviderRepo) ApplyDebits(ctx context.Context, debits []provider.Debit) error {
	var err error
	r.s.locked(ctx, func() {
		for _, d := range debits {
			p, ok := r.s.providers[d.ProviderID]
			if !ok {
				err = apperror.NewNotFound("provider", d.ProviderID)
				return
			}
			if !p.CanCover(d.Amount) {
				err = fmt.Errorf("provider %d balance %s does not cover debit %s", d.ProviderID, p.Balance, d.Amount)
				return
			}
		}
		now := r.s.now().UTC()
		for _, d := range debits {
			p := r.s.providers[d.ProviderID]
			p.Balance = p.Balance.Sub(d.Amount)
			p.UpdatedAt = now
			r.s.providers[d.ProviderID] = p
		}
	})
	return err
}
