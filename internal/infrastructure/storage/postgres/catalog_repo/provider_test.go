package catalog_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkbook/internal/core/types"
	"checkbook/internal/domain/catalogs/provider"
)

func TestProviderRepo_ApplyDebits_SQL(t *testing.T) {
	repo := NewProviderRepo(nil)
	amount := types.MustMoney("400.50")

	sql, args, err := repo.debitQuery(provider.Debit{ProviderID: 3, Amount: amount}).ToSql()
	require.NoError(t, err)

	wantSQL := "UPDATE providers SET balance = balance - $1, updated_at = NOW() WHERE id = $2 AND balance >= $3"
	assert.Equal(t, wantSQL, sql)
	require.Len(t, args, 3)
	assert.Equal(t, amount, args[0])
	assert.Equal(t, int64(3), args[1])
	assert.Equal(t, amount, args[2])
}
