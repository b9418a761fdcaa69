package balance_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkbook/internal/core/apperror"
	"checkbook/internal/core/types"
	"checkbook/internal/domain/catalogs/provider"
	"checkbook/internal/domain/registers/balance"
	"checkbook/internal/infrastructure/storage/memory"
)

func setup(t *testing.T) (*memory.Store, *balance.Ledger) {
	t.Helper()
	store := memory.New()
	store.SeedProvider(provider.Provider{ID: 1, Name: "Acme", Balance: types.MustMoney("1000"), Active: true})
	store.SeedProvider(provider.Provider{ID: 2, Name: "Globex", Balance: types.MustMoney("300"), Active: true})
	store.SeedProvider(provider.Provider{ID: 3, Name: "Initech", Balance: types.MustMoney("5000"), Active: false})
	return store, balance.NewLedger(store.Providers())
}

func balanceOf(t *testing.T, l *balance.Ledger, id int64) string {
	t.Helper()
	b, err := l.GetBalance(context.Background(), id)
	require.NoError(t, err)
	return b.String()
}

func TestLedger_TryDebit(t *testing.T) {
	tests := []struct {
		name        string
		providerID  int64
		amount      string
		wantCode    string
		wantBalance string
	}{
		{name: "covers", providerID: 1, amount: "400", wantBalance: "600"},
		{name: "exact balance", providerID: 2, amount: "300", wantBalance: "0"},
		{name: "insufficient", providerID: 2, amount: "500", wantCode: apperror.CodeInsufficientFunds, wantBalance: "300"},
		{name: "inactive", providerID: 3, amount: "1", wantCode: apperror.CodeProviderInactive, wantBalance: "5000"},
		{name: "unknown", providerID: 99, amount: "1", wantCode: apperror.CodeNotFound},
		{name: "zero amount", providerID: 1, amount: "0", wantCode: apperror.CodeValidation, wantBalance: "1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, ledger := setup(t)
			ctx := context.Background()

			err := store.RunInTransaction(ctx, func(ctx context.Context) error {
				return ledger.TryDebit(ctx, tt.providerID, types.MustMoney(tt.amount))
			})

			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, apperror.HasCode(err, tt.wantCode), "got %v", err)
			} else {
				require.NoError(t, err)
			}
			if tt.wantBalance != "" {
				assert.Equal(t, tt.wantBalance, balanceOf(t, ledger, tt.providerID))
			}
		})
	}
}

func TestLedger_TryDebit_Message(t *testing.T) {
	store, ledger := setup(t)

	err := store.RunInTransaction(context.Background(), func(ctx context.Context) error {
		return ledger.TryDebit(ctx, 2, types.MustMoney("500"))
	})

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "provider 2 insufficient balance: required 500, available 300", appErr.Message)
}

func TestLedger_TryDebitMany(t *testing.T) {
	t.Run("all covered", func(t *testing.T) {
		store, ledger := setup(t)

		err := store.RunInTransaction(context.Background(), func(ctx context.Context) error {
			return ledger.TryDebitMany(ctx, map[int64]types.Money{
				1: types.MustMoney("900"),
				2: types.MustMoney("100.50"),
			})
		})

		require.NoError(t, err)
		assert.Equal(t, "100", balanceOf(t, ledger, 1))
		assert.Equal(t, "199.5", balanceOf(t, ledger, 2))
	})

	t.Run("one failure rejects all", func(t *testing.T) {
		store, ledger := setup(t)

		err := store.RunInTransaction(context.Background(), func(ctx context.Context) error {
			return ledger.TryDebitMany(ctx, map[int64]types.Money{
				1: types.MustMoney("900"),
				2: types.MustMoney("301"),
			})
		})

		require.Error(t, err)
		assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientFunds))
		assert.Equal(t, "1000", balanceOf(t, ledger, 1))
		assert.Equal(t, "300", balanceOf(t, ledger, 2))
	})

	t.Run("reports every failed provider", func(t *testing.T) {
		store, ledger := setup(t)

		err := store.RunInTransaction(context.Background(), func(ctx context.Context) error {
			return ledger.TryDebitMany(ctx, map[int64]types.Money{
				1:  types.MustMoney("10"),
				2:  types.MustMoney("301"),
				3:  types.MustMoney("1"),
				42: types.MustMoney("1"),
			})
		})

		require.Error(t, err)
		failures := balance.Failures(err)
		require.Len(t, failures, 3)
		assert.Equal(t, int64(2), failures[0].ProviderID)
		assert.Equal(t, balance.ReasonInsufficientFunds, failures[0].Reason)
		assert.Equal(t, int64(3), failures[1].ProviderID)
		assert.Equal(t, balance.ReasonInactive, failures[1].Reason)
		assert.Equal(t, int64(42), failures[2].ProviderID)
		assert.Equal(t, balance.ReasonNotFound, failures[2].Reason)

		appErr, _ := apperror.AsAppError(err)
		assert.Contains(t, appErr.Message, "provider 2 insufficient balance")
		assert.Contains(t, appErr.Message, "provider 3 is inactive")
		assert.Contains(t, appErr.Message, "provider 42 not found")
		assert.Equal(t, "1000", balanceOf(t, ledger, 1))
	})

	t.Run("empty is a no-op", func(t *testing.T) {
		_, ledger := setup(t)
		require.NoError(t, ledger.TryDebitMany(context.Background(), nil))
	})
}

func TestNewBatchError_CodePriority(t *testing.T) {
	err := balance.NewBatchError([]balance.Failure{
		{ProviderID: 5, Reason: balance.ReasonNotFound},
		{ProviderID: 6, Reason: balance.ReasonInactive},
	})
	assert.Equal(t, apperror.CodeProviderInactive, err.Code)

	err = balance.NewBatchError([]balance.Failure{{ProviderID: 5, Reason: balance.ReasonNotFound}})
	assert.Equal(t, apperror.CodeNotFound, err.Code)
}
