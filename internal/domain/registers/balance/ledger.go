// Package balance provides the provider balance ledger.
// It is the only component allowed to decrease a provider's committable balance.
package balance

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"checkbook/internal/core/apperror"
	"checkbook/internal/core/types"
	"checkbook/internal/domain/catalogs/provider"
	"checkbook/pkg/logger"
)

// Failure reasons reported by TryDebitMany.
const (
	ReasonNotFound          = "not_found"
	ReasonInactive          = "inactive"
	ReasonInsufficientFunds = "insufficient_funds"
)

// Failure describes why one provider could not be debited.
type Failure struct {
	ProviderID int64       `json:"providerId"`
	Reason     string      `json:"reason"`
	Required   types.Money `json:"required"`
	Available  types.Money `json:"available"`
}

// Message renders the failure for humans.
func (f Failure) Message() string {
	switch f.Reason {
	case ReasonNotFound:
		return fmt.Sprintf("provider %d not found", f.ProviderID)
	case ReasonInactive:
		return fmt.Sprintf("provider %d is inactive", f.ProviderID)
	default:
		return fmt.Sprintf("provider %d insufficient balance: required %s, available %s",
			f.ProviderID, f.Required.String(), f.Available.String())
	}
}

// Ledger guards provider balances.
// TryDebit and TryDebitMany must run inside tx.Manager.RunInTransaction
// together with the request state change they pay for.
type Ledger struct {
	providers provider.Repository
}

// NewLedger creates a balance ledger.
func NewLedger(providers provider.Repository) *Ledger {
	return &Ledger{providers: providers}
}

// GetBalance returns the current committable balance.
func (l *Ledger) GetBalance(ctx context.Context, providerID int64) (types.Money, error) {
	p, err := l.providers.GetByID(ctx, providerID)
	if err != nil {
		return types.Zero(), err
	}
	return p.Balance, nil
}

// TryDebit decreases one provider's balance or fails without touching it.
func (l *Ledger) TryDebit(ctx context.Context, providerID int64, amount types.Money) error {
	if !amount.IsPositive() {
		return apperror.NewValidation(fmt.Sprintf("debit amount for provider %d must be positive", providerID)).
			WithDetail("provider_id", providerID)
	}

	p, err := l.providers.GetForUpdate(ctx, providerID)
	if err != nil {
		return err
	}
	if !p.Active {
		return apperror.NewProviderInactive(providerID)
	}
	if !p.CanCover(amount) {
		return apperror.NewInsufficientFunds(providerID, amount.String(), p.Balance.String())
	}

	if err := l.providers.ApplyDebits(ctx, []provider.Debit{{ProviderID: providerID, Amount: amount}}); err != nil {
		return fmt.Errorf("debit provider %d: %w", providerID, err)
	}

	logger.Debug(ctx, "provider debited",
		"provider_id", providerID,
		"amount", amount.String(),
		"balance_before", p.Balance.String(),
	)
	return nil
}

// TryDebitMany applies one pre-aggregated debit per provider, all or nothing.
// Providers are locked in ascending id order so concurrent batches cannot deadlock.
func (l *Ledger) TryDebitMany(ctx context.Context, debits map[int64]types.Money) error {
	if len(debits) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(debits))
	for providerID, amount := range debits {
		if !amount.IsPositive() {
			return apperror.NewValidation(fmt.Sprintf("debit amount for provider %d must be positive", providerID)).
				WithDetail("provider_id", providerID)
		}
		ids = append(ids, providerID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	locked, err := l.providers.ListForUpdate(ctx, ids)
	if err != nil {
		return fmt.Errorf("lock providers: %w", err)
	}
	byID := make(map[int64]*provider.Provider, len(locked))
	for _, p := range locked {
		byID[p.ID] = p
	}

	var failures []Failure
	toApply := make([]provider.Debit, 0, len(ids))
	for _, providerID := range ids {
		amount := debits[providerID]
		p, ok := byID[providerID]
		switch {
		case !ok:
			failures = append(failures, Failure{ProviderID: providerID, Reason: ReasonNotFound, Required: amount, Available: types.Zero()})
		case !p.Active:
			failures = append(failures, Failure{ProviderID: providerID, Reason: ReasonInactive, Required: amount, Available: p.Balance})
		case !p.CanCover(amount):
			failures = append(failures, Failure{ProviderID: providerID, Reason: ReasonInsufficientFunds, Required: amount, Available: p.Balance})
		default:
			toApply = append(toApply, provider.Debit{ProviderID: providerID, Amount: amount})
		}
	}

	if len(failures) > 0 {
		return NewBatchError(failures)
	}

	if err := l.providers.ApplyDebits(ctx, toApply); err != nil {
		return fmt.Errorf("apply debits: %w", err)
	}

	logger.Debug(ctx, "providers debited", "providers", len(toApply))
	return nil
}

// NewBatchError builds one AppError naming every failed provider.
// The code is INSUFFICIENT_FUNDS when any provider lacks funds,
// otherwise PROVIDER_INACTIVE or NOT_FOUND.
func NewBatchError(failures []Failure) *apperror.AppError {
	msgs := make([]string, len(failures))
	code := apperror.CodeNotFound
	for i, f := range failures {
		msgs[i] = f.Message()
		switch f.Reason {
		case ReasonInsufficientFunds:
			code = apperror.CodeInsufficientFunds
		case ReasonInactive:
			if code != apperror.CodeInsufficientFunds {
				code = apperror.CodeProviderInactive
			}
		}
	}

	var appErr *apperror.AppError
	switch code {
	case apperror.CodeInsufficientFunds:
		appErr = apperror.NewInsufficientFunds(failures[0].ProviderID, failures[0].Required.String(), failures[0].Available.String())
	case apperror.CodeProviderInactive:
		appErr = apperror.NewProviderInactive(failures[0].ProviderID)
	default:
		appErr = apperror.NewNotFound("provider", failures[0].ProviderID)
	}
	appErr.Message = strings.Join(msgs, "; ")
	return appErr.WithDetail("failures", failures)
}

// Failures extracts per-provider failures from an error returned by TryDebitMany.
func Failures(err error) []Failure {
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Details == nil {
		return nil
	}
	failures, _ := appErr.Details["failures"].([]Failure)
	return failures
}
