// Package app assembles storage, domain services and the HTTP router.
package app

import (
	"context"
	"fmt"
	"time"

	corenumerator "checkbook/internal/core/numerator"
	"checkbook/internal/core/tx"
	"checkbook/internal/domain/audit"
	"checkbook/internal/domain/catalogs/provider"
	"checkbook/internal/domain/documents/checkrequest"
	"checkbook/internal/domain/events"
	"checkbook/internal/domain/issuance"
	"checkbook/internal/domain/posting"
	"checkbook/internal/domain/registers/balance"
	"checkbook/internal/domain/reports"
	"checkbook/internal/infrastructure/http/v1/middleware"
	"checkbook/internal/infrastructure/numerator"
	"checkbook/internal/infrastructure/storage/memory"
	"checkbook/internal/infrastructure/storage/postgres"
	"checkbook/internal/infrastructure/storage/postgres/catalog_repo"
	"checkbook/internal/infrastructure/storage/postgres/document_repo"
	"checkbook/internal/infrastructure/storage/postgres/report_repo"
)

// AuditLog records and reads audit history.
type AuditLog interface {
	audit.Recorder
	audit.HistoryReader
}

// Storage is one storage driver's implementation of every persistence port.
type Storage struct {
	Driver    string
	TxManager tx.ReadOnlyManager
	Providers provider.Repository
	Requests  checkrequest.Repository
	Reports   reports.Repository
	Numbers   corenumerator.Generator
	Events    events.Publisher
	Audit     AuditLog
	// Idempotency is nil when the driver cannot persist idempotency keys.
	Idempotency middleware.IdempotencyStore
	Ping        func(ctx context.Context) error
}

// NewMemoryStorage wires the in-process store.
func NewMemoryStorage(store *memory.Store) Storage {
	return Storage{
		Driver:    "memory",
		TxManager: store,
		Providers: store.Providers(),
		Requests:  store.Requests(),
		Reports:   store.Reports(),
		Numbers:   store,
		Events:    store,
		Audit:     store,
		Ping:      func(context.Context) error { return nil },
	}
}

// PostgresOptions tune the postgres driver.
type PostgresOptions struct {
	AuditCompressThreshold int
	IdempotencyTTL         time.Duration
}

// NewPostgresStorage wires the PostgreSQL repositories on one pool.
func NewPostgresStorage(pool *postgres.Pool, opts PostgresOptions) (Storage, error) {
	txm := postgres.NewTxManager(pool)

	auditLog, err := postgres.NewAuditService(txm, opts.AuditCompressThreshold)
	if err != nil {
		return Storage{}, fmt.Errorf("create audit service: %w", err)
	}

	return Storage{
		Driver:    "postgres",
		TxManager: txm,
		Providers: catalog_repo.NewProviderRepo(txm),
		Requests:  document_repo.NewCheckRequestRepo(txm),
		Reports:   report_repo.NewReportRepo(txm),
		Numbers: numerator.NewFromContext(func(ctx context.Context) numerator.Querier {
			return txm.GetQuerier(ctx)
		}),
		Events:      postgres.NewOutboxPublisher(txm),
		Audit:       auditLog,
		Idempotency: postgres.NewIdempotencyStore(txm, opts.IdempotencyTTL),
		Ping:        pool.Ping,
	}, nil
}

// Services are the domain services built on one Storage.
type Services struct {
	Requests *checkrequest.Service
	Ledger   *balance.Ledger
	Issuance *issuance.Engine
	Posting  *posting.Coordinator
	Reports  *reports.Service
	History  audit.HistoryReader
}

// NewServices builds the domain services.
func NewServices(st Storage, accounting posting.AccountingClient, accounts posting.Accounts) *Services {
	ledger := balance.NewLedger(st.Providers)
	return &Services{
		Requests: checkrequest.NewService(st.Requests, st.Providers, st.TxManager, st.Audit),
		Ledger:   ledger,
		Issuance: issuance.NewEngine(st.TxManager, st.Requests, ledger, st.Numbers, st.Events, st.Audit),
		Posting:  posting.NewCoordinator(st.TxManager, st.Requests, accounting, accounts, st.Events, st.Audit),
		Reports:  reports.NewService(st.Reports),
		History:  st.Audit,
	}
}
