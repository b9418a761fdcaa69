package posting_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"checkbook/internal/core/apperror"
	"checkbook/internal/core/types"
	"checkbook/internal/domain/audit"
	"checkbook/internal/domain/catalogs/provider"
	"checkbook/internal/domain/documents/checkrequest"
	"checkbook/internal/domain/events"
	"checkbook/internal/domain/posting"
	"checkbook/internal/infrastructure/storage/memory"
)

var accounts = posting.Accounts{DebitAccountID: 10, CreditAccountID: 201, AuxiliaryAccountID: 1}

func seed(t *testing.T, store *memory.Store, amounts map[int64]string, state checkrequest.State) []int64 {
	t.Helper()
	ctx := context.Background()
	var ids []int64
	for providerID, amount := range amounts {
		req := &checkrequest.Request{
			ProviderID:         providerID,
			PaymentConceptID:   1,
			Amount:             types.MustMoney(amount),
			RegisteredAt:       time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC),
			State:              checkrequest.StatePending,
			ProviderAccountRef: "2101",
			BankAccountRef:     "1102",
		}
		require.NoError(t, store.Requests().Create(ctx, req))
		ids = append(ids, req.ID)
	}
	switch state {
	case checkrequest.StateGenerated:
		issued := make([]checkrequest.Issued, len(ids))
		for i, id := range ids {
			issued[i] = checkrequest.Issued{RequestID: id, CheckNumber: "N"}
		}
		require.NoError(t, store.Requests().MarkGenerated(ctx, issued))
	case checkrequest.StateVoided:
		_, err := store.Requests().MarkVoided(ctx, ids)
		require.NoError(t, err)
	}
	return ids
}

func newStore() *memory.Store {
	store := memory.New()
	for id := int64(1); id <= 3; id++ {
		store.SeedProvider(provider.Provider{ID: id, Balance: types.MustMoney("10000"), Active: true})
	}
	return store
}

func TestCoordinator_PostBatch(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStore()
	client := posting.NewMockAccountingClient(ctrl)

	ids := seed(t, store, map[int64]string{1: "400", 2: "500"}, checkrequest.StateGenerated)
	pending := seed(t, store, map[int64]string{3: "999"}, checkrequest.StatePending)
	postingDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	gomock.InOrder(
		client.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e posting.EntryRequest) (int64, error) {
				assert.Equal(t, "Check batch 2025-06", e.Description)
				assert.Equal(t, posting.MovementDebit, e.Movement)
				assert.Equal(t, int64(10), e.AccountID)
				assert.Equal(t, int64(1), e.AuxiliaryID)
				assert.True(t, postingDate.Equal(e.PostingDate))
				assert.True(t, types.MustMoney("900").Equal(e.Amount))
				return 7001, nil
			}),
		client.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e posting.EntryRequest) (int64, error) {
				assert.Equal(t, posting.MovementCredit, e.Movement)
				assert.Equal(t, int64(201), e.AccountID)
				assert.True(t, types.MustMoney("900").Equal(e.Amount))
				return 7002, nil
			}),
	)

	c := posting.NewCoordinator(store, store.Requests(), client, accounts, store, store)
	res, err := c.PostBatch(ctx, posting.Input{
		RequestIDs:  append(append([]int64{}, ids...), pending...),
		PostingDate: &postingDate,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(7001), res.DebitEntryID)
	assert.Equal(t, int64(7002), res.CreditEntryID)
	assert.Equal(t, "900", res.Total.String())
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 2, res.ProviderCount)
	assert.ElementsMatch(t, ids, res.RequestIDs)
	assert.Empty(t, res.Lost)

	for _, id := range ids {
		req, err := store.Requests().GetByID(ctx, id)
		require.NoError(t, err)
		require.True(t, req.IsPosted())
		assert.Equal(t, int64(7001), *req.DebitEntryID)
		assert.Equal(t, int64(7002), *req.CreditEntryID)
	}
	req, err := store.Requests().GetByID(ctx, pending[0])
	require.NoError(t, err)
	assert.False(t, req.IsPosted())

	evts := store.Events()
	require.Len(t, evts, 1)
	assert.Equal(t, events.TypeChecksPosted, evts[0].Type)

	// Posting the same ids again makes no external call.
	_, err = c.PostBatch(ctx, posting.Input{RequestIDs: ids})
	assert.True(t, apperror.HasCode(err, apperror.CodeNoEligibleRequests), "got %v", err)
}

func TestCoordinator_PostBatch_NothingEligible(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStore()
	client := posting.NewMockAccountingClient(ctrl)
	c := posting.NewCoordinator(store, store.Requests(), client, accounts, nil, nil)

	voided := seed(t, store, map[int64]string{1: "10"}, checkrequest.StateVoided)
	pending := seed(t, store, map[int64]string{1: "10"}, checkrequest.StatePending)

	tests := []struct {
		name     string
		ids      []int64
		wantCode string
	}{
		{name: "empty", ids: nil, wantCode: apperror.CodeValidation},
		{name: "unknown", ids: []int64{404}, wantCode: apperror.CodeNoEligibleRequests},
		{name: "voided", ids: voided, wantCode: apperror.CodeNoEligibleRequests},
		{name: "pending", ids: pending, wantCode: apperror.CodeNoEligibleRequests},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.PostBatch(ctx, posting.Input{RequestIDs: tt.ids})
			assert.True(t, apperror.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestCoordinator_PostBatch_DebitFails(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStore()
	client := posting.NewMockAccountingClient(ctrl)
	ids := seed(t, store, map[int64]string{1: "10"}, checkrequest.StateGenerated)

	client.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).Return(int64(0), errors.New("connection refused"))

	c := posting.NewCoordinator(store, store.Requests(), client, accounts, store, store)
	_, err := c.PostBatch(ctx, posting.Input{RequestIDs: ids})

	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeExternalService))
	req, _ := store.Requests().GetByID(ctx, ids[0])
	assert.True(t, req.EligibleForPosting())
	assert.Empty(t, store.Events())
}

func TestCoordinator_PostBatch_CreditFailsReportsOrphanedDebit(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStore()
	client := posting.NewMockAccountingClient(ctrl)
	ids := seed(t, store, map[int64]string{1: "10", 2: "15"}, checkrequest.StateGenerated)

	gomock.InOrder(
		client.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).Return(int64(8100), nil),
		client.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).Return(int64(0), errors.New("status 500")),
	)

	c := posting.NewCoordinator(store, store.Requests(), client, accounts, store, store)
	_, err := c.PostBatch(ctx, posting.Input{RequestIDs: ids})

	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeExternalService, appErr.Code)
	assert.Equal(t, int64(8100), appErr.Details["orphaned_debit_entry_id"])

	for _, id := range ids {
		req, _ := store.Requests().GetByID(ctx, id)
		assert.True(t, req.EligibleForPosting())
	}

	entries := store.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionPostFailed, entries[0].Action)
	assert.Equal(t, int64(8100), entries[0].Changes["orphaned_debit_entry_id"])
}

func TestCoordinator_PostBatch_ConcurrentPostingLosesRace(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStore()
	client := posting.NewMockAccountingClient(ctrl)
	ids := seed(t, store, map[int64]string{1: "10", 2: "20"}, checkrequest.StateGenerated)

	gomock.InOrder(
		client.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).Return(int64(1), nil),
		client.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, _ posting.EntryRequest) (int64, error) {
				// Another caller stamps the first request between the reads and the stamp.
				_, err := store.Requests().StampEntries(ctx, ids[:1], 90, 91)
				require.NoError(t, err)
				return 2, nil
			}),
	)

	c := posting.NewCoordinator(store, store.Requests(), client, accounts, store, store)
	res, err := c.PostBatch(ctx, posting.Input{RequestIDs: ids})

	require.NoError(t, err)
	assert.Equal(t, ids[1:], res.RequestIDs)
	assert.Equal(t, ids[:1], res.Lost)
	assert.Equal(t, 2, res.Count, "counts cover the eligible set, lost ids included")

	first, _ := store.Requests().GetByID(ctx, ids[0])
	assert.Equal(t, int64(90), *first.DebitEntryID)
}

func TestCoordinator_PostBatch_DescriptionAndAccounts(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStore()
	client := posting.NewMockAccountingClient(ctrl)
	ids := seed(t, store, map[int64]string{1: "10"}, checkrequest.StateGenerated)

	client.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e posting.EntryRequest) (int64, error) {
			assert.Equal(t, "May payables", e.Description)
			return 1, nil
		}).Times(2)

	desc := "  May payables "
	c := posting.NewCoordinator(store, store.Requests(), client, accounts, nil, nil)
	res, err := c.PostBatch(ctx, posting.Input{RequestIDs: ids, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "May payables", res.Description)

	bad := posting.NewCoordinator(store, store.Requests(), client, posting.Accounts{DebitAccountID: 1}, nil, nil)
	_, err = bad.PostBatch(ctx, posting.Input{RequestIDs: ids})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestDefaultDescription(t *testing.T) {
	assert.Equal(t, "Check batch 2024-12", posting.DefaultDescription(time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)))
}

// stampRepo fails StampEntries with err, and honours ctx cancellation.
type stampRepo struct {
	checkrequest.Repository
	err error
}

func (r *stampRepo) StampEntries(ctx context.Context, ids []int64, debitEntryID, creditEntryID int64) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.Repository.StampEntries(ctx, ids, debitEntryID, creditEntryID)
}

func TestCoordinator_PostBatch_StampFailsReportsEntries(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStore()
	client := posting.NewMockAccountingClient(ctrl)
	ids := seed(t, store, map[int64]string{1: "400", 2: "500"}, checkrequest.StateGenerated)

	gomock.InOrder(
		client.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).Return(int64(101), nil),
		client.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).Return(int64(102), nil),
	)

	repo := &stampRepo{Repository: store.Requests(), err: errors.New("connection reset")}
	c := posting.NewCoordinator(store, repo, client, accounts, store, store)
	_, err := c.PostBatch(ctx, posting.Input{RequestIDs: ids})

	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "got %T", err)
	assert.Equal(t, apperror.CodeExternalService, appErr.Code)
	assert.Equal(t, int64(101), appErr.Details["debit_entry_id"])
	assert.Equal(t, int64(102), appErr.Details["credit_entry_id"])
	assert.ElementsMatch(t, ids, appErr.Details["request_ids"])
	assert.Contains(t, appErr.Error(), "connection reset")

	entries := store.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionPostFailed, entries[0].Action)
	assert.Equal(t, "101/102", entries[0].EntityID)
	assert.Equal(t, int64(102), entries[0].Changes["credit_entry_id"])
	assert.Empty(t, store.Events())
}

func TestCoordinator_PostBatch_StampSurvivesCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctrl := gomock.NewController(t)
	store := newStore()
	client := posting.NewMockAccountingClient(ctrl)
	ids := seed(t, store, map[int64]string{1: "10"}, checkrequest.StateGenerated)

	gomock.InOrder(
		client.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).Return(int64(5), nil),
		client.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, posting.EntryRequest) (int64, error) {
				// The caller's deadline runs out right after the credit entry is created.
				cancel()
				return 6, nil
			}),
	)

	c := posting.NewCoordinator(store, &stampRepo{Repository: store.Requests()}, client, accounts, store, store)
	res, err := c.PostBatch(ctx, posting.Input{RequestIDs: ids})

	require.NoError(t, err)
	assert.Equal(t, ids, res.RequestIDs)
	req, err := store.Requests().GetByID(context.Background(), ids[0])
	require.NoError(t, err)
	assert.True(t, req.IsPosted())
}

func TestCoordinator_PostBatch_OrphanAuditSurvivesCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctrl := gomock.NewController(t)
	store := newStore()
	client := posting.NewMockAccountingClient(ctrl)
	ids := seed(t, store, map[int64]string{1: "10"}, checkrequest.StateGenerated)

	gomock.InOrder(
		client.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).Return(int64(5), nil),
		client.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, posting.EntryRequest) (int64, error) {
				cancel()
				return 0, context.Canceled
			}),
	)

	recorder := &ctxRecorder{Recorder: store}
	c := posting.NewCoordinator(store, store.Requests(), client, accounts, store, recorder)
	_, err := c.PostBatch(ctx, posting.Input{RequestIDs: ids})

	require.Error(t, err)
	entries := store.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionPostFailed, entries[0].Action)
}

// ctxRecorder refuses to record on a cancelled context, like a database would.
type ctxRecorder struct {
	audit.Recorder
}

func (r *ctxRecorder) Record(ctx context.Context, entry audit.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.Recorder.Record(ctx, entry)
}
