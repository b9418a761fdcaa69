package checkrequest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"checkbook/internal/core/apperror"
	"checkbook/internal/core/tx"
	"checkbook/internal/core/types"
	"checkbook/internal/domain/audit"
	"checkbook/internal/domain/catalogs/provider"
	"checkbook/pkg/logger"
)

// ProviderReader is the part of the provider directory the store needs.
type ProviderReader interface {
	GetByID(ctx context.Context, id int64) (*provider.Provider, error)
}

// CreateInput holds the fields accepted when registering a request.
type CreateInput struct {
	ProviderID         int64
	PaymentConceptID   int64
	Amount             types.Money
	RegisteredAt       *time.Time
	State              State
	ProviderAccountRef string
	BankAccountRef     string
}

// UpdateInput holds the editable fields of a pending request.
// Nil fields are left unchanged.
type UpdateInput struct {
	ProviderID         *int64
	PaymentConceptID   *int64
	Amount             *types.Money
	RegisteredAt       *time.Time
	ProviderAccountRef *string
	BankAccountRef     *string
	Version            int
}

// Service provides the request store operations.
type Service struct {
	repo      Repository
	providers ProviderReader
	txManager tx.Manager
	audit     audit.Recorder
	now       func() time.Time
}

// NewService creates a new check request service.
func NewService(repo Repository, providers ProviderReader, txManager tx.Manager, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{
		repo:      repo,
		providers: providers,
		txManager: txManager,
		audit:     recorder,
		now:       time.Now,
	}
}

// Create registers a new request. State defaults to pending.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Request, error) {
	if in.State == "" {
		in.State = StatePending
	}
	if in.State != StatePending {
		return nil, apperror.NewValidation(fmt.Sprintf("new requests must be %s, got %q", StatePending, in.State)).
			WithDetail("field", "state")
	}

	registeredAt := s.now().UTC()
	if in.RegisteredAt != nil {
		registeredAt = in.RegisteredAt.UTC()
	}

	req := &Request{
		ProviderID:         in.ProviderID,
		PaymentConceptID:   in.PaymentConceptID,
		Amount:             in.Amount,
		RegisteredAt:       registeredAt,
		State:              in.State,
		ProviderAccountRef: strings.TrimSpace(in.ProviderAccountRef),
		BankAccountRef:     strings.TrimSpace(in.BankAccountRef),
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.ensureActiveProvider(ctx, req.ProviderID); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, req); err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		return s.audit.Record(ctx, audit.Entry{
			EntityType: audit.EntityCheckRequest,
			EntityID:   fmt.Sprintf("%d", req.ID),
			Action:     audit.ActionCreate,
			Changes: map[string]any{
				"provider_id": req.ProviderID,
				"amount":      req.Amount.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "check request created",
		"request_id", req.ID,
		"provider_id", req.ProviderID,
		"amount", req.Amount.String(),
	)
	return req, nil
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, id int64) (*Request, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByIDs returns the requests found among ids, ordered by id.
func (s *Service) ListByIDs(ctx context.Context, ids []int64) ([]*Request, error) {
	if len(ids) == 0 {
		return []*Request{}, nil
	}
	return s.repo.ListByIDs(ctx, UniqueSorted(ids))
}

// ListPending returns every pending request.
func (s *Service) ListPending(ctx context.Context) ([]*Request, error) {
	return s.repo.ListByState(ctx, StatePending)
}

// ListGeneratedUnposted returns generated, unposted requests registered in the calendar month.
func (s *Service) ListGeneratedUnposted(ctx context.Context, year, month int) ([]*Request, error) {
	from, to, err := MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	return s.repo.ListGeneratedUnposted(ctx, from, to)
}

// Update edits a pending request. Generated requests are immutable.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*Request, error) {
	var updated *Request
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		req, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := req.CanModify(); err != nil {
			return err
		}
		if in.Version != 0 && in.Version != req.Version {
			return apperror.NewConcurrentModification("check request", id)
		}

		changes := map[string]any{}
		if in.ProviderID != nil && *in.ProviderID != req.ProviderID {
			if err := s.ensureActiveProvider(ctx, *in.ProviderID); err != nil {
				return err
			}
			changes["provider_id"] = map[string]any{"old": req.ProviderID, "new": *in.ProviderID}
			req.ProviderID = *in.ProviderID
		}
		if in.PaymentConceptID != nil {
			req.PaymentConceptID = *in.PaymentConceptID
		}
		if in.Amount != nil && !in.Amount.Equal(req.Amount) {
			changes["amount"] = map[string]any{"old": req.Amount.String(), "new": in.Amount.String()}
			req.Amount = *in.Amount
		}
		if in.RegisteredAt != nil {
			req.RegisteredAt = in.RegisteredAt.UTC()
		}
		if in.ProviderAccountRef != nil {
			req.ProviderAccountRef = strings.TrimSpace(*in.ProviderAccountRef)
		}
		if in.BankAccountRef != nil {
			req.BankAccountRef = strings.TrimSpace(*in.BankAccountRef)
		}
		if err := req.Validate(); err != nil {
			return err
		}

		if err := s.repo.Update(ctx, req); err != nil {
			return err
		}
		updated = req
		return s.audit.Record(ctx, audit.Entry{
			EntityType: audit.EntityCheckRequest,
			EntityID:   fmt.Sprintf("%d", id),
			Action:     audit.ActionUpdate,
			Changes:    changes,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "check request updated", "request_id", id, "version", updated.Version)
	return updated, nil
}

// Delete removes a pending or voided request. Generated requests are kept.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		req, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.State == StateGenerated {
			return apperror.NewImmutableState("check request", id, string(req.State))
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Entry{
			EntityType: audit.EntityCheckRequest,
			EntityID:   fmt.Sprintf("%d", id),
			Action:     audit.ActionDelete,
			Changes:    map[string]any{"state": req.State},
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "check request deleted", "request_id", id)
	return nil
}

func (s *Service) ensureActiveProvider(ctx context.Context, providerID int64) error {
	p, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewValidation(fmt.Sprintf("provider %d does not exist", providerID)).
				WithDetail("field", "providerId").
				WithDetail("provider_id", providerID)
		}
		return err
	}
	if !p.Active {
		return apperror.NewValidation(fmt.Sprintf("provider %d is inactive", providerID)).
			WithDetail("field", "providerId").
			WithDetail("provider_id", providerID)
	}
	return nil
}

// UniqueSorted returns ids without duplicates in ascending order.
func UniqueSorted(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, v := range ids {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
