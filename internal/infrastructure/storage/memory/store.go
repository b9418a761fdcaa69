// Package memory is an in-process storage driver for local development and tests.
//
// A transaction holds the store lock from begin to commit, so transactions are
// fully serialized. Writes made inside a transaction that fails are rolled back
// from a snapshot taken at begin.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	appctx "checkbook/internal/core/context"
	"checkbook/internal/core/numerator"
	"checkbook/internal/core/tx"
	"checkbook/internal/domain/audit"
	"checkbook/internal/domain/catalogs/provider"
	"checkbook/internal/domain/documents/checkrequest"
	"checkbook/internal/domain/events"
	"checkbook/internal/domain/reports"
)

type txKey struct{}

// Store keeps providers, check requests, sequences, events and audit entries.
type Store struct {
	mu sync.Mutex

	providers     map[int64]provider.Provider
	requests      map[int64]checkrequest.Request
	sequences     map[string]int64
	outbox        []events.Event
	auditLog      []auditRow
	nextRequestID int64

	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		providers: make(map[int64]provider.Provider),
		requests:  make(map[int64]checkrequest.Request),
		sequences: make(map[string]int64),
		now:       time.Now,
	}
}

type auditRow struct {
	entry audit.Entry
	actor string
	at    time.Time
}

type snapshot struct {
	providers     map[int64]provider.Provider
	requests      map[int64]checkrequest.Request
	sequences     map[string]int64
	outboxLen     int
	auditLen      int
	nextRequestID int64
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		providers:     make(map[int64]provider.Provider, len(s.providers)),
		requests:      make(map[int64]checkrequest.Request, len(s.requests)),
		sequences:     make(map[string]int64, len(s.sequences)),
		outboxLen:     len(s.outbox),
		auditLen:      len(s.auditLog),
		nextRequestID: s.nextRequestID,
	}
	for k, v := range s.providers {
		snap.providers[k] = v
	}
	for k, v := range s.requests {
		snap.requests[k] = cloneRequest(v)
	}
	for k, v := range s.sequences {
		snap.sequences[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.providers = snap.providers
	s.requests = snap.requests
	s.sequences = snap.sequences
	s.outbox = s.outbox[:snap.outboxLen]
	s.auditLog = s.auditLog[:snap.auditLen]
	s.nextRequestID = snap.nextRequestID
}

// RunInTransaction implements tx.Manager. Nested calls join the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.restore(snap)
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, true))
}

// ReadOnly implements tx.ReadOnlyManager.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, true))
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// locked runs fn under the store lock unless ctx already holds it.
func (s *Store) locked(ctx context.Context, fn func()) {
	if !inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	fn()
}

// SeedProvider stores p and returns its id. A zero id is assigned the next free one.
func (s *Store) SeedProvider(p provider.Provider) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == 0 {
		for id := range s.providers {
			if id > p.ID {
				p.ID = id
			}
		}
		p.ID++
	}
	p.UpdatedAt = s.now().UTC()
	s.providers[p.ID] = p
	return p.ID
}

// Providers returns the provider directory view.
func (s *Store) Providers() *ProviderRepo { return &ProviderRepo{s: s} }

// Requests returns the check request repository view.
func (s *Store) Requests() *RequestRepo { return &RequestRepo{s: s} }

// Reports returns the report repository view.
func (s *Store) Reports() *ReportRepo { return &ReportRepo{s: s} }

// Reserve implements numerator.Generator.
func (s *Store) Reserve(ctx context.Context, cfg numerator.Config, count int64) (int64, error) {
	if count <= 0 {
		return 0, fmt.Errorf("reserve %s: count must be positive, got %d", cfg.Key, count)
	}
	var first int64
	s.locked(ctx, func() {
		first = s.sequences[cfg.Key] + 1
		s.sequences[cfg.Key] += count
	})
	return first, nil
}

// Advance implements numerator.Generator.
func (s *Store) Advance(ctx context.Context, cfg numerator.Config, last int64) error {
	s.locked(ctx, func() {
		if last > s.sequences[cfg.Key] {
			s.sequences[cfg.Key] = last
		}
	})
	return nil
}

// Publish implements events.Publisher.
func (s *Store) Publish(ctx context.Context, evts ...events.Event) error {
	s.locked(ctx, func() {
		s.outbox = append(s.outbox, evts...)
	})
	return nil
}

// Record implements audit.Recorder.
func (s *Store) Record(ctx context.Context, entry audit.Entry) error {
	row := auditRow{entry: entry, actor: appctx.GetSubject(ctx), at: s.now().UTC()}
	s.locked(ctx, func() {
		s.auditLog = append(s.auditLog, row)
	})
	return nil
}

// History implements audit.HistoryReader.
func (s *Store) History(ctx context.Context, entityType, entityID string, limit int) ([]audit.Record, error) {
	var rows []auditRow
	s.locked(ctx, func() {
		for i := len(s.auditLog) - 1; i >= 0; i-- {
			r := s.auditLog[i]
			if r.entry.EntityType != entityType || r.entry.EntityID != entityID {
				continue
			}
			rows = append(rows, r)
			if limit > 0 && len(rows) == limit {
				break
			}
		}
	})

	out := make([]audit.Record, 0, len(rows))
	for _, r := range rows {
		changes, err := json.Marshal(r.entry.Changes)
		if err != nil {
			return nil, fmt.Errorf("marshal audit changes: %w", err)
		}
		out = append(out, audit.Record{
			EntityType: r.entry.EntityType,
			EntityID:   r.entry.EntityID,
			Action:     r.entry.Action,
			Actor:      r.actor,
			Changes:    changes,
			CreatedAt:  r.at,
		})
	}
	return out, nil
}

// Events returns a copy of the published events in order.
func (s *Store) Events() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.outbox...)
}

// AuditEntries returns a copy of the recorded audit entries in order.
func (s *Store) AuditEntries() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Entry, len(s.auditLog))
	for i, r := range s.auditLog {
		out[i] = r.entry
	}
	return out
}

func cloneRequest(r checkrequest.Request) checkrequest.Request {
	if r.CheckNumber != nil {
		v := *r.CheckNumber
		r.CheckNumber = &v
	}
	if r.DebitEntryID != nil {
		v := *r.DebitEntryID
		r.DebitEntryID = &v
	}
	if r.CreditEntryID != nil {
		v := *r.CreditEntryID
		r.CreditEntryID = &v
	}
	return r
}

func sortedIDs(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Compile-time interface checks.
var (
	_ tx.ReadOnlyManager      = (*Store)(nil)
	_ numerator.Generator     = (*Store)(nil)
	_ events.Publisher        = (*Store)(nil)
	_ audit.Recorder          = (*Store)(nil)
	_ audit.HistoryReader     = (*Store)(nil)
	_ provider.Repository     = (*ProviderRepo)(nil)
	_ checkrequest.Repository = (*RequestRepo)(nil)
	_ reports.Repository      = (*ReportRepo)(nil)
)
