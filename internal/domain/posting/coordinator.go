// Package posting batches issued checks into one double-entry accounting posting.
package posting

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"checkbook/internal/core/apperror"
	"checkbook/internal/core/tx"
	"checkbook/internal/core/types"
	"checkbook/internal/domain/audit"
	"checkbook/internal/domain/documents/checkrequest"
	"checkbook/internal/domain/events"
	"checkbook/pkg/logger"
)

var tracer = otel.Tracer("checkbook/posting")

// Movement is the side of a ledger entry.
type Movement string

const (
	MovementDebit  Movement = "DB"
	MovementCredit Movement = "CR"
)

// ServiceName identifies the accounting ledger in errors and logs.
const ServiceName = "accounting"

// EntryRequest is one ledger entry sent to the accounting service.
type EntryRequest struct {
	Description string
	AccountID   int64
	AuxiliaryID int64
	Movement    Movement
	PostingDate time.Time
	Amount      types.Money
}

//go:generate mockgen -source=coordinator.go -destination=accounting_mock.go -package=posting AccountingClient

// AccountingClient creates ledger entries in the external accounting service.
type AccountingClient interface {
	// CreateEntry returns the id the accounting service assigned to the entry.
	CreateEntry(ctx context.Context, entry EntryRequest) (int64, error)
}

// Accounts are the fixed accounts every batch is posted against.
type Accounts struct {
	DebitAccountID     int64
	CreditAccountID    int64
	AuxiliaryAccountID int64
}

// Validate rejects missing account ids.
func (a Accounts) Validate() error {
	var missing []string
	if a.DebitAccountID <= 0 {
		missing = append(missing, "debit")
	}
	if a.CreditAccountID <= 0 {
		missing = append(missing, "credit")
	}
	if a.AuxiliaryAccountID <= 0 {
		missing = append(missing, "auxiliary")
	}
	if len(missing) > 0 {
		return apperror.NewValidation(fmt.Sprintf("accounting accounts not configured: %s", strings.Join(missing, ", "))).
			WithDetail("missing", missing)
	}
	return nil
}

// Input selects the requests to post.
type Input struct {
	RequestIDs  []int64
	Description *string
	PostingDate *time.Time
}

// Result describes a completed posting.
// Total, Count and ProviderCount describe the eligible set sent to the
// accounting service, including any requests that end up in Lost.
type Result struct {
	DebitEntryID  int64       `json:"debitEntryId"`
	CreditEntryID int64       `json:"creditEntryId"`
	Total         types.Money `json:"total"`
	Count         int         `json:"count"`
	ProviderCount int         `json:"providerCount"`
	PostingDate   time.Time   `json:"postingDate"`
	Description   string      `json:"description"`
	// RequestIDs are the requests stamped with both entry ids.
	RequestIDs []int64 `json:"requestIds"`
	// Lost are eligible requests another caller posted while the entries were created.
	Lost []int64 `json:"lost,omitempty"`
}

// Coordinator posts batches of generated checks.
type Coordinator struct {
	txManager  tx.ReadOnlyManager
	requests   checkrequest.Repository
	accounting AccountingClient
	accounts   Accounts
	events     events.Publisher
	audit      audit.Recorder
	now        func() time.Time
}

// NewCoordinator creates a posting coordinator.
func NewCoordinator(
	txManager tx.ReadOnlyManager,
	requests checkrequest.Repository,
	accounting AccountingClient,
	accounts Accounts,
	publisher events.Publisher,
	recorder audit.Recorder,
) *Coordinator {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Coordinator{
		txManager:  txManager,
		requests:   requests,
		accounting: accounting,
		accounts:   accounts,
		events:     publisher,
		audit:      recorder,
		now:        time.Now,
	}
}

// PostBatch creates one debit and one credit entry for the total of the
// eligible requests among in.RequestIDs and stamps both ids on them.
//
// No lock is held while the accounting service is called. The stamp step
// re-checks eligibility, so a request posted concurrently is left as is.
func (c *Coordinator) PostBatch(ctx context.Context, in Input) (*Result, error) {
	ctx, span := tracer.Start(ctx, "posting.PostBatch")
	defer span.End()

	res, err := c.postBatch(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64("posting.debit_entry_id", res.DebitEntryID),
		attribute.Int64("posting.credit_entry_id", res.CreditEntryID),
		attribute.Int("posting.count", res.Count),
	)
	return res, nil
}

func (c *Coordinator) postBatch(ctx context.Context, in Input) (*Result, error) {
	if len(in.RequestIDs) == 0 {
		return nil, apperror.NewValidation("at least one request id is required")
	}
	if err := c.accounts.Validate(); err != nil {
		return nil, err
	}
	ids := checkrequest.UniqueSorted(in.RequestIDs)

	var eligible []*checkrequest.Request
	err := c.txManager.ReadOnly(ctx, func(ctx context.Context) error {
		found, err := c.requests.ListByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("load requests: %w", err)
		}
		for _, r := range found {
			if r.EligibleForPosting() {
				eligible = append(eligible, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, apperror.NewNoEligibleRequests(ids)
	}

	res := c.summarize(eligible, in)

	debitID, err := c.createEntry(ctx, res, MovementDebit, c.accounts.DebitAccountID)
	if err != nil {
		return nil, err
	}
	res.DebitEntryID = debitID

	creditID, err := c.createEntry(ctx, res, MovementCredit, c.accounts.CreditAccountID)
	if err != nil {
		c.reportOrphanedDebit(ctx, res, err)
		return nil, apperror.NewExternalService(ServiceName,
			fmt.Sprintf("credit entry failed after debit entry %d was created", debitID)).
			WithCause(err).
			WithDetail("orphaned_debit_entry_id", debitID).
			WithDetail("request_ids", eligibleIDs(eligible))
	}
	res.CreditEntryID = creditID

	// Both entries exist now; the stamp must not be cut short by the caller's deadline.
	stampCtx := context.WithoutCancel(ctx)
	err = c.txManager.RunInTransaction(stampCtx, func(ctx context.Context) error {
		stamped, err := c.requests.StampEntries(ctx, eligibleIDs(eligible), debitID, creditID)
		if err != nil {
			return fmt.Errorf("stamp entries: %w", err)
		}
		res.RequestIDs = stamped
		res.Lost = lostIDs(eligibleIDs(eligible), stamped)

		if err := c.events.Publish(ctx, events.ForPosting(debitID, creditID, events.ChecksPosted{
			RequestIDs:    stamped,
			DebitEntryID:  debitID,
			CreditEntryID: creditID,
			Total:         res.Total,
			PostingDate:   res.PostingDate.Format(time.DateOnly),
			Description:   res.Description,
		})); err != nil {
			return fmt.Errorf("publish posted event: %w", err)
		}

		return c.audit.Record(ctx, audit.Entry{
			EntityType: audit.EntityPosting,
			EntityID:   postingID(debitID, creditID),
			Action:     audit.ActionPost,
			Changes: map[string]any{
				"request_ids":  stamped,
				"lost":         res.Lost,
				"total":        res.Total.String(),
				"posting_date": res.PostingDate.Format(time.DateOnly),
				"description":  res.Description,
			},
		})
	})
	if err != nil {
		c.reportUnstamped(stampCtx, res, eligibleIDs(eligible), err)
		return nil, apperror.NewExternalService(ServiceName,
			fmt.Sprintf("entries %d/%d were created but requests could not be stamped", debitID, creditID)).
			WithCause(err).
			WithDetail("debit_entry_id", debitID).
			WithDetail("credit_entry_id", creditID).
			WithDetail("request_ids", eligibleIDs(eligible))
	}

	if len(res.Lost) > 0 {
		logger.Warn(ctx, "requests posted concurrently were not stamped",
			"debit_entry_id", debitID,
			"credit_entry_id", creditID,
			"lost", res.Lost,
		)
	}
	logger.Info(ctx, "check batch posted",
		"debit_entry_id", debitID,
		"credit_entry_id", creditID,
		"count", res.Count,
		"providers", res.ProviderCount,
		"total", res.Total.String(),
	)
	return res, nil
}

func (c *Coordinator) summarize(eligible []*checkrequest.Request, in Input) *Result {
	total := types.Zero()
	providers := make(map[int64]struct{})
	for _, r := range eligible {
		total = total.Add(r.Amount)
		providers[r.ProviderID] = struct{}{}
	}

	postingDate := c.now()
	if in.PostingDate != nil {
		postingDate = *in.PostingDate
	}

	description := DefaultDescription(postingDate)
	if in.Description != nil && strings.TrimSpace(*in.Description) != "" {
		description = strings.TrimSpace(*in.Description)
	}

	return &Result{
		Total:         total,
		Count:         len(eligible),
		ProviderCount: len(providers),
		PostingDate:   postingDate,
		Description:   description,
	}
}

func (c *Coordinator) createEntry(ctx context.Context, res *Result, movement Movement, accountID int64) (int64, error) {
	ctx, span := tracer.Start(ctx, "posting.CreateEntry")
	defer span.End()
	span.SetAttributes(attribute.String("posting.movement", string(movement)))

	entryID, err := c.accounting.CreateEntry(ctx, EntryRequest{
		Description: res.Description,
		AccountID:   accountID,
		AuxiliaryID: c.accounts.AuxiliaryAccountID,
		Movement:    movement,
		PostingDate: res.PostingDate,
		Amount:      res.Total,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if apperror.HasCode(err, apperror.CodeExternalService) {
			return 0, err
		}
		return 0, apperror.NewExternalService(ServiceName,
			fmt.Sprintf("create %s entry: %v", movement, err)).WithCause(err)
	}
	return entryID, nil
}

// reportOrphanedDebit leaves a trace of a debit entry that has no matching
// credit entry so it can be reconciled by hand.
func (c *Coordinator) reportOrphanedDebit(ctx context.Context, res *Result, cause error) {
	logger.Error(ctx, "orphaned debit entry",
		"debit_entry_id", res.DebitEntryID,
		"total", res.Total.String(),
		"posting_date", res.PostingDate.Format(time.DateOnly),
		"error", cause,
	)
	err := c.audit.Record(context.WithoutCancel(ctx), audit.Entry{
		EntityType: audit.EntityPosting,
		EntityID:   postingID(res.DebitEntryID, 0),
		Action:     audit.ActionPostFailed,
		Changes: map[string]any{
			"orphaned_debit_entry_id": res.DebitEntryID,
			"total":                   res.Total.String(),
			"description":             res.Description,
			"error":                   cause.Error(),
		},
	})
	if err != nil {
		logger.Error(ctx, "failed to audit orphaned debit entry", "debit_entry_id", res.DebitEntryID, "error", err)
	}
}

// reportUnstamped records an entry pair that exists in the accounting service
// while the requests it covers are still unposted here.
func (c *Coordinator) reportUnstamped(ctx context.Context, res *Result, requestIDs []int64, cause error) {
	logger.Error(ctx, "posting entries created but requests not stamped",
		"debit_entry_id", res.DebitEntryID,
		"credit_entry_id", res.CreditEntryID,
		"request_ids", requestIDs,
		"error", cause,
	)
	err := c.audit.Record(ctx, audit.Entry{
		EntityType: audit.EntityPosting,
		EntityID:   postingID(res.DebitEntryID, res.CreditEntryID),
		Action:     audit.ActionPostFailed,
		Changes: map[string]any{
			"debit_entry_id":  res.DebitEntryID,
			"credit_entry_id": res.CreditEntryID,
			"request_ids":     requestIDs,
			"total":           res.Total.String(),
			"description":     res.Description,
			"error":           cause.Error(),
		},
	})
	if err != nil {
		logger.Error(ctx, "failed to audit unstamped posting", "debit_entry_id", res.DebitEntryID, "credit_entry_id", res.CreditEntryID, "error", err)
	}
}

// DefaultDescription is used when the caller does not name the batch.
func DefaultDescription(postingDate time.Time) string {
	return "Check batch " + postingDate.Format("2006-01")
}

func postingID(debitID, creditID int64) string {
	return strconv.FormatInt(debitID, 10) + "/" + strconv.FormatInt(creditID, 10)
}

func eligibleIDs(reqs []*checkrequest.Request) []int64 {
	ids := make([]int64, len(reqs))
	for i, r := range reqs {
		ids[i] = r.ID
	}
	return ids
}

func lostIDs(eligible, stamped []int64) []int64 {
	done := make(map[int64]struct{}, len(stamped))
	for _, id := range stamped {
		done[id] = struct{}{}
	}
	var lost []int64
	for _, id := range eligible {
		if _, ok := done[id]; !ok {
			lost = append(lost, id)
		}
	}
	return lost
}
