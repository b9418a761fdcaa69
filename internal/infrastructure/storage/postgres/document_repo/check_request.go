// Package document_repo provides PostgreSQL implementations for document repositories.
package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"checkbook/internal/core/apperror"
	"checkbook/internal/domain/documents/checkrequest"
	"checkbook/internal/infrastructure/storage/postgres"
)

const checkRequestsTable = "check_requests"

// insertCols are written on Create; id, version and timestamps come from the database.
var insertCols = []string{
	"provider_id", "payment_concept_id", "amount", "registered_at", "state",
	"provider_account_ref", "bank_account_ref", "check_number",
}

// editableCols are the fields Update may change while the request is pending.
var editableCols = []string{
	"provider_id", "payment_concept_id", "amount", "registered_at",
	"provider_account_ref", "bank_account_ref",
}

// CheckRequestRepo implements checkrequest.Repository.
type CheckRequestRepo struct {
	txManager  *postgres.TxManager
	batch      *postgres.BatchExecutor
	selectCols []string
}

var _ checkrequest.Repository = (*CheckRequestRepo)(nil)

// NewCheckRequestRepo creates a new check request repository.
func NewCheckRequestRepo(txManager *postgres.TxManager) *CheckRequestRepo {
	return &CheckRequestRepo{
		txManager:  txManager,
		batch:      postgres.NewBatchExecutor(txManager),
		selectCols: postgres.ExtractDBColumns[checkrequest.Request](),
	}
}

// Builder returns a new squirrel builder.
func (r *CheckRequestRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *CheckRequestRepo) baseSelect() squirrel.SelectBuilder {
	return r.Builder().Select(r.selectCols...).From(checkRequestsTable)
}

// Create inserts a new request and fills in the generated columns.
func (r *CheckRequestRepo) Create(ctx context.Context, req *checkrequest.Request) error {
	sql, args, err := r.Builder().
		Insert(checkRequestsTable).
		SetMap(postgres.StructToMap(req, insertCols...)).
		Suffix("RETURNING id, version, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	row := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...)
	if err := row.Scan(&req.ID, &req.Version, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return fmt.Errorf("insert %s: %w", checkRequestsTable, err)
	}
	return nil
}

// GetByID retrieves a request by ID.
func (r *CheckRequestRepo) GetByID(ctx context.Context, requestID int64) (*checkrequest.Request, error) {
	return r.get(ctx, r.baseSelect().Where(squirrel.Eq{"id": requestID}), requestID)
}

// GetForUpdate retrieves a request and locks its row.
func (r *CheckRequestRepo) GetForUpdate(ctx context.Context, requestID int64) (*checkrequest.Request, error) {
	if r.txManager.GetTx(ctx) == nil {
		return nil, fmt.Errorf("GetForUpdate requires transaction context")
	}
	return r.get(ctx, r.baseSelect().Where(squirrel.Eq{"id": requestID}).Suffix("FOR UPDATE"), requestID)
}

func (r *CheckRequestRepo) get(ctx context.Context, q squirrel.SelectBuilder, requestID int64) (*checkrequest.Request, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var req checkrequest.Request
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &req, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("check request", requestID)
		}
		return nil, fmt.Errorf("get check request %d: %w", requestID, err)
	}
	return &req, nil
}

// ListByIDs returns the found requests ordered by id.
func (r *CheckRequestRepo) ListByIDs(ctx context.Context, ids []int64) ([]*checkrequest.Request, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.list(ctx, r.baseSelect().Where(squirrel.Eq{"id": ids}).OrderBy("id"))
}

// ListForUpdate locks the found requests in ascending id order.
func (r *CheckRequestRepo) ListForUpdate(ctx context.Context, ids []int64) ([]*checkrequest.Request, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if r.txManager.GetTx(ctx) == nil {
		return nil, fmt.Errorf("ListForUpdate requires transaction context")
	}
	return r.list(ctx, r.baseSelect().Where(squirrel.Eq{"id": ids}).OrderBy("id").Suffix("FOR UPDATE"))
}

// ListByState returns all requests in the given state.
func (r *CheckRequestRepo) ListByState(ctx context.Context, state checkrequest.State) ([]*checkrequest.Request, error) {
	return r.list(ctx, r.baseSelect().Where(squirrel.Eq{"state": state}).OrderBy("id"))
}

// ListGeneratedUnposted returns posting candidates registered in [from, to).
func (r *CheckRequestRepo) ListGeneratedUnposted(ctx context.Context, from, to time.Time) ([]*checkrequest.Request, error) {
	return r.list(ctx, r.generatedUnpostedQuery(from, to))
}

func (r *CheckRequestRepo) generatedUnpostedQuery(from, to time.Time) squirrel.SelectBuilder {
	q := r.baseSelect().
		Where(squirrel.Eq{"state": checkrequest.StateGenerated, "debit_entry_id": nil, "credit_entry_id": nil}).
		OrderBy("id")
	if !from.IsZero() {
		q = q.Where(squirrel.GtOrEq{"registered_at": from})
	}
	if !to.IsZero() {
		q = q.Where(squirrel.Lt{"registered_at": to})
	}
	return q
}

func (r *CheckRequestRepo) list(ctx context.Context, q squirrel.SelectBuilder) ([]*checkrequest.Request, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*checkrequest.Request
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list check requests: %w", err)
	}
	return out, nil
}

// Update writes the editable fields with optimistic locking.
func (r *CheckRequestRepo) Update(ctx context.Context, req *checkrequest.Request) error {
	sql, args, err := r.Builder().
		Update(checkRequestsTable).
		SetMap(postgres.StructToMap(req, editableCols...)).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": req.ID, "version": req.Version, "state": checkrequest.StatePending}).
		Suffix("RETURNING version, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	row := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...)
	if err := row.Scan(&req.Version, &req.UpdatedAt); err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewConcurrentModification("check request", req.ID)
		}
		return fmt.Errorf("update %s: %w", checkRequestsTable, err)
	}
	return nil
}

// Delete removes a request.
func (r *CheckRequestRepo) Delete(ctx context.Context, requestID int64) error {
	sql, args, err := r.Builder().
		Delete(checkRequestsTable).
		Where(squirrel.Eq{"id": requestID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", checkRequestsTable, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("check request", requestID)
	}
	return nil
}

// MarkGenerated assigns check numbers in one batch. Each statement must hit
// exactly one pending row or the whole batch fails.
func (r *CheckRequestRepo) MarkGenerated(ctx context.Context, issued []checkrequest.Issued) error {
	queries := make([]postgres.BatchQuery, 0, len(issued))
	for _, is := range issued {
		sql, args, err := r.markGeneratedQuery(is).ToSql()
		if err != nil {
			return fmt.Errorf("build mark generated: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args, ExpectRows: 1})
	}

	if _, err := r.batch.ExecuteBatch(ctx, queries); err != nil {
		return fmt.Errorf("mark generated: %w", err)
	}
	return nil
}

func (r *CheckRequestRepo) markGeneratedQuery(is checkrequest.Issued) squirrel.UpdateBuilder {
	return r.Builder().
		Update(checkRequestsTable).
		Set("state", checkrequest.StateGenerated).
		Set("check_number", is.CheckNumber).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": is.RequestID, "state": checkrequest.StatePending})
}

// MarkVoided voids the pending requests among ids.
func (r *CheckRequestRepo) MarkVoided(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := r.Builder().
		Update(checkRequestsTable).
		Set("state", checkrequest.StateVoided).
		Set("check_number", nil).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": ids, "state": checkrequest.StatePending})
	return r.returningIDs(ctx, q)
}

// StampEntries sets the entry references on requests that are still eligible.
func (r *CheckRequestRepo) StampEntries(ctx context.Context, ids []int64, debitEntryID, creditEntryID int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.returningIDs(ctx, r.stampEntriesQuery(ids, debitEntryID, creditEntryID))
}

// stampEntriesQuery only matches generated requests with no entry references yet.
func (r *CheckRequestRepo) stampEntriesQuery(ids []int64, debitEntryID, creditEntryID int64) squirrel.UpdateBuilder {
	return r.Builder().
		Update(checkRequestsTable).
		Set("debit_entry_id", debitEntryID).
		Set("credit_entry_id", creditEntryID).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{
			"id":              ids,
			"state":           checkrequest.StateGenerated,
			"debit_entry_id":  nil,
			"credit_entry_id": nil,
		})
}

func (r *CheckRequestRepo) returningIDs(ctx context.Context, q squirrel.UpdateBuilder) ([]int64, error) {
	sql, args, err := q.Suffix("RETURNING id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	var changed []int64
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &changed, sql, args...); err != nil {
		return nil, fmt.Errorf("update %s: %w", checkRequestsTable, err)
	}
	return changed, nil
}
