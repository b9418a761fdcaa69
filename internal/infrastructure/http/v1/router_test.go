package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"checkbook/internal/app"
	"checkbook/internal/core/apperror"
	"checkbook/internal/core/types"
	"checkbook/internal/domain/auth"
	"checkbook/internal/domain/catalogs/provider"
	"checkbook/internal/domain/posting"
	v1 "checkbook/internal/infrastructure/http/v1"
	"checkbook/internal/infrastructure/http/v1/middleware"
	"checkbook/internal/infrastructure/storage/memory"
	"checkbook/internal/infrastructure/storage/postgres"
	"checkbook/pkg/logger"
)

type fixture struct {
	router     http.Handler
	store      *memory.Store
	accounting *posting.MockAccountingClient
}

func newFixture(t *testing.T, mutate func(cfg *v1.RouterConfig)) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	accounting := posting.NewMockAccountingClient(ctrl)

	store := memory.New()
	store.SeedProvider(provider.Provider{ID: 1, Name: "Papelera Central", TaxID: "101-1", Balance: types.MustMoney("1000"), Active: true})
	store.SeedProvider(provider.Provider{ID: 2, Name: "Servicios Norte", TaxID: "202-2", Balance: types.MustMoney("50"), Active: true})

	st := app.NewMemoryStorage(store)
	svc := app.NewServices(st, accounting, posting.Accounts{DebitAccountID: 10, CreditAccountID: 20, AuxiliaryAccountID: 30})

	cfg := v1.RouterConfig{
		Logger:        logger.NewNop(),
		Ping:          st.Ping,
		StorageDriver: st.Driver,
		Version:       "test",
		Requests:      svc.Requests,
		Ledger:        svc.Ledger,
		History:       svc.History,
		Issuance:      svc.Issuance,
		Posting:       svc.Posting,
		Reports:       svc.Reports,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return &fixture{router: v1.NewRouter(cfg), store: store, accounting: accounting}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type requestBody struct {
	ID          int64   `json:"id"`
	State       string  `json:"state"`
	Amount      string  `json:"amount"`
	CheckNumber *string `json:"checkNumber"`
	Version     int     `json:"version"`
}

type listBody[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func (f *fixture) create(t *testing.T, providerID int64, amount string) int64 {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/requests", map[string]any{
		"providerId":         providerID,
		"paymentConceptId":   1,
		"amount":             amount,
		"registeredAt":       "2025-03-10",
		"providerAccountRef": "2101",
		"bankAccountRef":     "1102",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[requestBody](t, w).ID
}

func TestRouter_Health(t *testing.T) {
	f := newFixture(t, nil)

	for _, path := range []string{"/health/live", "/health/ready", "/health/info"} {
		w := f.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
	assert.NotEmpty(t, f.do(t, http.MethodGet, "/health/live", nil).Header().Get(middleware.HeaderRequestID))
}

func TestRouter_RequestLifecycle(t *testing.T) {
	f := newFixture(t, nil)

	id := f.create(t, 1, "300")

	w := f.do(t, http.MethodGet, "/api/v1/requests/"+itoa(id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[requestBody](t, w)
	assert.Equal(t, "pending", got.State)
	assert.Equal(t, "300", got.Amount)

	w = f.do(t, http.MethodPut, "/api/v1/requests/"+itoa(id), map[string]any{"amount": "350", "version": got.Version})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "350", decode[requestBody](t, w).Amount)

	w = f.do(t, http.MethodGet, "/api/v1/requests/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[listBody[requestBody]](t, w).Count)

	w = f.do(t, http.MethodPost, "/api/v1/requests/"+itoa(id)+"/issue", map[string]any{"checkNumber": "000123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	issued := decode[requestBody](t, w)
	assert.Equal(t, "generated", issued.State)
	require.NotNil(t, issued.CheckNumber)
	assert.Equal(t, "000123", *issued.CheckNumber)

	w = f.do(t, http.MethodGet, "/api/v1/providers/1/balance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"providerId":1,"balance":"650"}`, w.Body.String())

	w = f.do(t, http.MethodDelete, "/api/v1/requests/"+itoa(id), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeImmutableState, decode[errorBody](t, w).Code)

	w = f.do(t, http.MethodGet, "/api/v1/requests/"+itoa(id)+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.GreaterOrEqual(t, decode[listBody[map[string]any]](t, w).Count, 3)

	w = f.do(t, http.MethodGet, "/api/v1/requests/generated-unposted?year=2025&month=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[listBody[requestBody]](t, w).Count)
}

func TestRouter_IssueErrors(t *testing.T) {
	f := newFixture(t, nil)
	id := f.create(t, 2, "80")

	w := f.do(t, http.MethodPost, "/api/v1/requests/issue", map[string]any{
		"items": []map[string]any{{"id": id, "checkNumber": "A1"}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, apperror.CodeInsufficientFunds, body.Code)
	assert.Contains(t, body.Message, "provider 2")

	w = f.do(t, http.MethodPost, "/api/v1/requests/999/issue", map[string]any{"checkNumber": "A1"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/requests/abc/issue", map[string]any{"checkNumber": "A1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/requests/issue", map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, decode[errorBody](t, w).Code)
}

func TestRouter_IssueSequentialAndVoid(t *testing.T) {
	f := newFixture(t, nil)
	a := f.create(t, 1, "10")
	b := f.create(t, 1, "20")
	c := f.create(t, 1, "30")

	start := int64(41)
	w := f.do(t, http.MethodPost, "/api/v1/requests/issue-sequential", map[string]any{"ids": []int64{a, b}, "startNumber": start})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	issued := decode[listBody[requestBody]](t, w)
	require.Equal(t, 2, issued.Count)
	assert.NotEqual(t, *issued.Items[0].CheckNumber, *issued.Items[1].CheckNumber)

	w = f.do(t, http.MethodPost, "/api/v1/requests/void", map[string]any{"ids": []int64{a, c, 999}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		Voided  []int64 `json:"voided"`
		Skipped []struct {
			ID     int64  `json:"id"`
			Reason string `json:"reason"`
		} `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, []int64{c}, res.Voided)
	assert.Len(t, res.Skipped, 2)
}

func TestRouter_PostingAndReports(t *testing.T) {
	f := newFixture(t, func(cfg *v1.RouterConfig) { cfg.PostingTimeout = 5 * time.Second })
	a := f.create(t, 1, "300")
	b := f.create(t, 2, "40")
	w := f.do(t, http.MethodPost, "/api/v1/requests/issue", map[string]any{
		"items": []map[string]any{{"id": a, "checkNumber": "C-1"}, {"id": b, "checkNumber": "C-2"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	gomock.InOrder(
		f.accounting.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e posting.EntryRequest) (int64, error) {
				assert.Equal(t, posting.MovementDebit, e.Movement)
				assert.True(t, types.MustMoney("340").Equal(e.Amount))
				return 501, nil
			}),
		f.accounting.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e posting.EntryRequest) (int64, error) {
				assert.Equal(t, posting.MovementCredit, e.Movement)
				return 502, nil
			}),
	)

	w = f.do(t, http.MethodPost, "/api/v1/postings", map[string]any{"ids": []int64{a, b}, "postingDate": "2025-03-31"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var posted struct {
		DebitEntryID  int64  `json:"debitEntryId"`
		CreditEntryID int64  `json:"creditEntryId"`
		Total         string `json:"total"`
		Count         int    `json:"count"`
		ProviderCount int    `json:"providerCount"`
		PostingDate   string `json:"postingDate"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &posted))
	assert.Equal(t, int64(501), posted.DebitEntryID)
	assert.Equal(t, int64(502), posted.CreditEntryID)
	assert.Equal(t, "340", posted.Total)
	assert.Equal(t, 2, posted.Count)
	assert.Equal(t, 2, posted.ProviderCount)
	assert.Equal(t, "2025-03-31", posted.PostingDate)

	w = f.do(t, http.MethodPost, "/api/v1/postings", map[string]any{"ids": []int64{a, b}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apperror.CodeNoEligibleRequests, decode[errorBody](t, w).Code)

	w = f.do(t, http.MethodGet, "/api/v1/reports/postings?from=2025-03-01&to=2025-03-31", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summaries := decode[listBody[map[string]any]](t, w)
	require.Equal(t, 1, summaries.Count)
	assert.Equal(t, float64(2025), summaries.Items[0]["year"])
	assert.Equal(t, float64(3), summaries.Items[0]["month"])
	assert.Equal(t, float64(2), summaries.Items[0]["providerCount"])

	w = f.do(t, http.MethodGet, "/api/v1/reports/postings/detail?year=2025&month=3&debitId=501&creditId=502", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var detail struct {
		Count  int              `json:"count"`
		Checks []map[string]any `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, 2, detail.Count)
	assert.Len(t, detail.Checks, 2)

	w = f.do(t, http.MethodGet, "/api/v1/reports/postings/detail?year=2025&month=13&debitId=501&creditId=502", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/checks?checkNumber=C-&providerId=2", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	lines := decode[listBody[map[string]any]](t, w)
	require.Equal(t, 1, lines.Count)
	assert.Equal(t, "Servicios Norte", lines.Items[0]["providerName"])

	w = f.do(t, http.MethodGet, "/api/v1/checks/"+itoa(a), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "101-1", decode[map[string]any](t, w)["providerTaxId"])

	w = f.do(t, http.MethodGet, "/api/v1/checks?from=bad", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_PostingAccountingFailure(t *testing.T) {
	f := newFixture(t, nil)
	a := f.create(t, 1, "100")
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/requests/"+itoa(a)+"/issue", map[string]any{"checkNumber": "X"}).Code)

	f.accounting.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).
		Return(int64(0), apperror.NewExternalService(posting.ServiceName, "timeout"))

	w := f.do(t, http.MethodPost, "/api/v1/postings", map[string]any{"ids": []int64{a}})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, apperror.CodeExternalService, decode[errorBody](t, w).Code)
}

func TestRouter_Auth(t *testing.T) {
	jwtSvc := auth.NewJWTService(auth.JWTConfig{Secret: "s3cret", AccessTokenTTL: time.Minute})
	f := newFixture(t, func(cfg *v1.RouterConfig) { cfg.JWTValidator = jwtSvc })

	w := f.do(t, http.MethodGet, "/api/v1/requests/pending", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperror.CodeUnauthorized, decode[errorBody](t, w).Code)

	w = f.do(t, http.MethodGet, "/api/v1/requests/pending", nil, "Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, _, err := jwtSvc.GenerateAccessToken("clerk-1", "Clerk", nil)
	require.NoError(t, err)
	w = f.do(t, http.MethodGet, "/api/v1/requests/pending", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)

	// health stays public
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health/live", nil).Code)
}

// fakeIdempotency keeps keys in memory.
type fakeIdempotency struct {
	done     map[string]*postgres.IdempotencyReplay
	released []string
}

func (s *fakeIdempotency) AcquireKey(_ context.Context, key, _, _, _ string) (*postgres.IdempotencyReplay, error) {
	return s.done[key], nil
}

func (s *fakeIdempotency) CompleteKey(_ context.Context, key string, status int, ct string, body []byte) error {
	s.done[key] = &postgres.IdempotencyReplay{StatusCode: status, ContentType: ct, Body: body}
	return nil
}

func (s *fakeIdempotency) FailKey(ctx context.Context, key string, status int, ct string, body []byte) error {
	return s.CompleteKey(ctx, key, status, ct, body)
}

func (s *fakeIdempotency) ReleaseKey(_ context.Context, key string) error {
	s.released = append(s.released, key)
	return nil
}

func TestRouter_IdempotentReplay(t *testing.T) {
	store := &fakeIdempotency{done: map[string]*postgres.IdempotencyReplay{}}
	f := newFixture(t, func(cfg *v1.RouterConfig) { cfg.Idempotency = store })

	body := map[string]any{
		"providerId": 1, "paymentConceptId": 1, "amount": "5",
		"providerAccountRef": "2101", "bankAccountRef": "1102",
	}
	first := f.do(t, http.MethodPost, "/api/v1/requests", body, middleware.HeaderIdempotencyKey, "k-1")
	require.Equal(t, http.StatusCreated, first.Code)

	second := f.do(t, http.MethodPost, "/api/v1/requests", body, middleware.HeaderIdempotencyKey, "k-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	w := f.do(t, http.MethodGet, "/api/v1/requests/pending", nil)
	assert.Equal(t, 1, decode[listBody[requestBody]](t, w).Count)

	bad := f.do(t, http.MethodPost, "/api/v1/requests", map[string]any{"providerId": 1, "paymentConceptId": 1, "amount": "-1"},
		middleware.HeaderIdempotencyKey, "k-2")
	require.Equal(t, http.StatusBadRequest, bad.Code)
	require.Contains(t, store.done, "k-2")
	assert.Equal(t, http.StatusBadRequest, store.done["k-2"].StatusCode)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
