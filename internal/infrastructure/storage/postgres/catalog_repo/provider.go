// Package catalog_repo provides PostgreSQL implementations for directory repositories.
package catalog_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"checkbook/internal/core/apperror"
	"checkbook/internal/domain/catalogs/provider"
	"checkbook/internal/infrastructure/storage/postgres"
)

const providersTable = "providers"

// ProviderRepo implements provider.Repository.
// Balance rows are locked with SELECT ... FOR UPDATE in ascending id order.
type ProviderRepo struct {
	txManager  *postgres.TxManager
	batch      *postgres.BatchExecutor
	selectCols []string
}

var _ provider.Repository = (*ProviderRepo)(nil)

// NewProviderRepo creates a new provider repository.
func NewProviderRepo(txManager *postgres.TxManager) *ProviderRepo {
	return &ProviderRepo{
		txManager:  txManager,
		batch:      postgres.NewBatchExecutor(txManager),
		selectCols: postgres.ExtractDBColumns[provider.Provider](),
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *ProviderRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *ProviderRepo) baseSelect() squirrel.SelectBuilder {
	return r.Builder().Select(r.selectCols...).From(providersTable)
}

// GetByID retrieves a provider by ID.
func (r *ProviderRepo) GetByID(ctx context.Context, providerID int64) (*provider.Provider, error) {
	return r.get(ctx, r.baseSelect().Where(squirrel.Eq{"id": providerID}), providerID)
}

// GetForUpdate retrieves a provider and locks its row until the transaction ends.
func (r *ProviderRepo) GetForUpdate(ctx context.Context, providerID int64) (*provider.Provider, error) {
	if r.txManager.GetTx(ctx) == nil {
		return nil, fmt.Errorf("GetForUpdate requires transaction context")
	}
	return r.get(ctx, r.baseSelect().Where(squirrel.Eq{"id": providerID}).Suffix("FOR UPDATE"), providerID)
}

func (r *ProviderRepo) get(ctx context.Context, q squirrel.SelectBuilder, providerID int64) (*provider.Provider, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p provider.Provider
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("provider", providerID)
		}
		return nil, fmt.Errorf("get provider %d: %w", providerID, err)
	}
	return &p, nil
}

// ListForUpdate locks the found providers in ascending id order.
func (r *ProviderRepo) ListForUpdate(ctx context.Context, ids []int64) ([]*provider.Provider, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if r.txManager.GetTx(ctx) == nil {
		return nil, fmt.Errorf("ListForUpdate requires transaction context")
	}

	sql, args, err := r.baseSelect().
		Where(squirrel.Eq{"id": ids}).
		OrderBy("id").
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*provider.Provider
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("lock providers: %w", err)
	}
	return out, nil
}

// ApplyDebits decrements balances in one round-trip. The balance guard in the
// WHERE clause makes the batch fail instead of going negative.
func (r *ProviderRepo) ApplyDebits(ctx context.Context, debits []provider.Debit) error {
	queries := make([]postgres.BatchQuery, 0, len(debits))
	for _, d := range debits {
		sql, args, err := r.debitQuery(d).ToSql()
		if err != nil {
			return fmt.Errorf("build debit: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args, ExpectRows: 1})
	}

	if _, err := r.batch.ExecuteBatch(ctx, queries); err != nil {
		var rowErr *postgres.RowCountError
		if errors.As(err, &rowErr) {
			d := debits[rowErr.Index]
			return fmt.Errorf("provider %d balance does not cover %s: %w", d.ProviderID, d.Amount, err)
		}
		return err
	}
	return nil
}

func (r *ProviderRepo) debitQuery(d provider.Debit) squirrel.UpdateBuilder {
	return r.Builder().
		Update(providersTable).
		Set("balance", squirrel.Expr("balance - ?", d.Amount)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": d.ProviderID}).
		Where(squirrel.GtOrEq{"balance": d.Amount})
}
