package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BatchExecutor sends several statements to the server in one round-trip.
type BatchExecutor struct {
	txManager *TxManager
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(txManager *TxManager) *BatchExecutor {
	return &BatchExecutor{txManager: txManager}
}

// BatchQuery represents a query in a batch.
type BatchQuery struct {
	SQL  string
	Args []any
	// ExpectRows fails the batch when the statement affects a different number of rows.
	// Negative disables the check.
	ExpectRows int64
}

// RowCountError reports a statement that matched an unexpected number of rows.
type RowCountError struct {
	Index    int
	Expected int64
	Actual   int64
}

func (e *RowCountError) Error() string {
	return fmt.Sprintf("batch query %d affected %d rows, expected %d", e.Index, e.Actual, e.Expected)
}

// ExecuteBatch executes queries in order inside the current transaction and
// returns the rows affected by each.
func (e *BatchExecutor) ExecuteBatch(ctx context.Context, queries []BatchQuery) ([]int64, error) {
	if len(queries) == 0 {
		return nil, nil
	}
	tx := e.txManager.GetTx(ctx)
	if tx == nil {
		return nil, fmt.Errorf("ExecuteBatch requires transaction context")
	}

	batch := &pgx.Batch{}
	for _, q := range queries {
		batch.Queue(q.SQL, q.Args...)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	affected := make([]int64, len(queries))
	for i, q := range queries {
		tag, err := results.Exec()
		if err != nil {
			return nil, fmt.Errorf("batch query %d failed: %w", i, err)
		}
		affected[i] = tag.RowsAffected()
		if q.ExpectRows >= 0 && affected[i] != q.ExpectRows {
			return nil, &RowCountError{Index: i, Expected: q.ExpectRows, Actual: affected[i]}
		}
	}

	return affected, nil
}
