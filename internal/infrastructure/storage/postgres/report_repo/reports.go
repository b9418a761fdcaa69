// Package report_repo provides PostgreSQL implementations for report repositories.
package report_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"checkbook/internal/core/apperror"
	"checkbook/internal/domain/documents/checkrequest"
	"checkbook/internal/domain/reports"
	"checkbook/internal/infrastructure/storage/postgres"
)

// ReportRepo implements reports.Repository.
type ReportRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ reports.Repository = (*ReportRepo)(nil)

// NewReportRepo creates a new report repository.
func NewReportRepo(txManager *postgres.TxManager) *ReportRepo {
	return &ReportRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// postedSelect joins requests with provider names and keeps only posted checks.
func (r *ReportRepo) postedSelect() squirrel.SelectBuilder {
	return r.builder.
		Select(
			"r.id", "r.check_number", "r.provider_id",
			"p.name AS provider_name", "p.tax_id AS provider_tax_id",
			"r.amount", "r.registered_at",
			"r.provider_account_ref", "r.bank_account_ref",
			"r.debit_entry_id", "r.credit_entry_id",
		).
		From("check_requests r").
		Join("providers p ON p.id = r.provider_id").
		Where(squirrel.Eq{"r.state": checkrequest.StateGenerated}).
		Where(squirrel.NotEq{"r.debit_entry_id": nil, "r.credit_entry_id": nil})
}

// ListPosted returns posted checks registered in [from, to).
func (r *ReportRepo) ListPosted(ctx context.Context, from, to time.Time, debitEntryID, creditEntryID *int64) ([]reports.PostedCheck, error) {
	q := r.postedSelect()
	if !from.IsZero() {
		q = q.Where(squirrel.GtOrEq{"r.registered_at": from})
	}
	if !to.IsZero() {
		q = q.Where(squirrel.Lt{"r.registered_at": to})
	}
	if debitEntryID != nil {
		q = q.Where(squirrel.Eq{"r.debit_entry_id": *debitEntryID})
	}
	if creditEntryID != nil {
		q = q.Where(squirrel.Eq{"r.credit_entry_id": *creditEntryID})
	}
	return r.selectPosted(ctx, q.OrderBy("r.registered_at", "r.id"))
}

// ListGroup returns the checks of one posting group.
func (r *ReportRepo) ListGroup(ctx context.Context, key reports.GroupKey) ([]reports.PostedCheck, error) {
	from, to, err := checkrequest.MonthRange(key.Year, key.Month)
	if err != nil {
		return nil, err
	}
	q := r.postedSelect().
		Where(squirrel.GtOrEq{"r.registered_at": from}).
		Where(squirrel.Lt{"r.registered_at": to}).
		Where(squirrel.Eq{"r.debit_entry_id": key.DebitEntryID, "r.credit_entry_id": key.CreditEntryID}).
		OrderBy("r.id")
	return r.selectPosted(ctx, q)
}

func (r *ReportRepo) selectPosted(ctx context.Context, q squirrel.SelectBuilder) ([]reports.PostedCheck, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []reports.PostedCheck
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list posted checks: %w", err)
	}
	return out, nil
}

// SearchChecks returns issued checks matching the filter, newest first.
func (r *ReportRepo) SearchChecks(ctx context.Context, filter reports.CheckSearchFilter) ([]reports.CheckLine, error) {
	q := r.builder.
		Select(
			"r.id", "r.check_number", "r.provider_id",
			"p.name AS provider_name", "r.amount", "r.registered_at",
		).
		From("check_requests r").
		Join("providers p ON p.id = r.provider_id").
		Where(squirrel.Eq{"r.state": checkrequest.StateGenerated})

	if filter.ProviderID != nil {
		q = q.Where(squirrel.Eq{"r.provider_id": *filter.ProviderID})
	}
	if filter.RequestID != nil {
		q = q.Where(squirrel.Eq{"r.id": *filter.RequestID})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"r.registered_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.Lt{"r.registered_at": *filter.To})
	}
	if filter.CheckNumber != "" {
		q = q.Where(squirrel.ILike{"r.check_number": "%" + filter.CheckNumber + "%"})
	}

	q = q.OrderBy("r.registered_at DESC", "r.id DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []reports.CheckLine
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("search checks: %w", err)
	}
	return out, nil
}

// GetCheck returns one issued check.
func (r *ReportRepo) GetCheck(ctx context.Context, requestID int64) (*reports.CheckDetail, error) {
	sql, args, err := r.builder.
		Select(
			"r.id", "r.check_number", "r.provider_id",
			"p.name AS provider_name", "p.tax_id AS provider_tax_id",
			"r.provider_account_ref", "r.bank_account_ref",
			"r.amount", "r.registered_at",
			"r.debit_entry_id", "r.credit_entry_id",
		).
		From("check_requests r").
		Join("providers p ON p.id = r.provider_id").
		Where(squirrel.Eq{"r.id": requestID, "r.state": checkrequest.StateGenerated}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var detail reports.CheckDetail
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &detail, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("check", requestID)
		}
		return nil, fmt.Errorf("get check %d: %w", requestID, err)
	}
	return &detail, nil
}
