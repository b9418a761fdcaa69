package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkbook/internal/core/numerator"
	"checkbook/internal/core/types"
	"checkbook/internal/domain/catalogs/provider"
	"checkbook/internal/domain/documents/checkrequest"
	"checkbook/internal/domain/events"
)

func TestRunInTransaction_RollsBackOnError(t *testing.T) {
	s := New()
	pid := s.SeedProvider(provider.Provider{Name: "Acme", Balance: types.MustMoney("100"), Active: true})
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Providers().ApplyDebits(ctx, []provider.Debit{{ProviderID: pid, Amount: types.MustMoney("40")}}))
		require.NoError(t, s.Requests().Create(ctx, &checkrequest.Request{ProviderID: pid, Amount: types.MustMoney("40")}))
		require.NoError(t, s.Publish(ctx, events.ForRequest(1, events.TypeCheckIssued, nil)))
		_, err := s.Reserve(ctx, numerator.Config{Key: "check_number"}, 5)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := s.Providers().GetByID(ctx, pid)
	require.NoError(t, err)
	assert.True(t, types.MustMoney("100").Equal(p.Balance))
	assert.Empty(t, s.Events())

	_, err = s.Requests().GetByID(ctx, 1)
	assert.Error(t, err)

	first, err := s.Reserve(ctx, numerator.Config{Key: "check_number"}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)
}

func TestApplyDebits_AllOrNothing(t *testing.T) {
	s := New()
	a := s.SeedProvider(provider.Provider{Name: "A", Balance: types.MustMoney("50"), Active: true})
	b := s.SeedProvider(provider.Provider{Name: "B", Balance: types.MustMoney("10"), Active: true})
	ctx := context.Background()

	err := s.Providers().ApplyDebits(ctx, []provider.Debit{
		{ProviderID: a, Amount: types.MustMoney("20")},
		{ProviderID: b, Amount: types.MustMoney("11")},
	})
	require.Error(t, err)

	pa, _ := s.Providers().GetByID(ctx, a)
	assert.True(t, types.MustMoney("50").Equal(pa.Balance))
}

func TestReserve_Contiguous(t *testing.T) {
	s := New()
	ctx := context.Background()
	cfg := numerator.Config{Key: "check_number"}

	first, err := s.Reserve(ctx, cfg, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)

	require.NoError(t, s.Advance(ctx, cfg, 10))
	require.NoError(t, s.Advance(ctx, cfg, 7))

	next, err := s.Reserve(ctx, cfg, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(11), next)

	_, err = s.Reserve(ctx, cfg, 0)
	assert.Error(t, err)
}
