// Package issuance turns pending check requests into issued checks and voids them.
package issuance

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"checkbook/internal/core/apperror"
	"checkbook/internal/core/numerator"
	"checkbook/internal/core/tx"
	"checkbook/internal/core/types"
	"checkbook/internal/domain/audit"
	"checkbook/internal/domain/documents/checkrequest"
	"checkbook/internal/domain/events"
	"checkbook/internal/domain/registers/balance"
	"checkbook/pkg/logger"
)

// Ledger is the balance register used to pay for issued checks.
type Ledger interface {
	TryDebit(ctx context.Context, providerID int64, amount types.Money) error
	TryDebitMany(ctx context.Context, debits map[int64]types.Money) error
}

// Item asks for one request to be issued under the given check number.
type Item struct {
	RequestID   int64  `json:"id"`
	CheckNumber string `json:"checkNumber"`
}

// Engine issues and voids checks. Every call is one unit of work: either all
// balances and request states change, or none do.
type Engine struct {
	txManager tx.Manager
	requests  checkrequest.Repository
	ledger    Ledger
	numbers   numerator.Generator
	events    events.Publisher
	audit     audit.Recorder
	now       func() time.Time
}

// NewEngine creates the issuance engine.
func NewEngine(
	txManager tx.Manager,
	requests checkrequest.Repository,
	ledger Ledger,
	numbers numerator.Generator,
	publisher events.Publisher,
	recorder audit.Recorder,
) *Engine {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Engine{
		txManager: txManager,
		requests:  requests,
		ledger:    ledger,
		numbers:   numbers,
		events:    publisher,
		audit:     recorder,
		now:       time.Now,
	}
}

// IssueOne issues a single pending request.
func (e *Engine) IssueOne(ctx context.Context, requestID int64, checkNumber string) (*checkrequest.Request, error) {
	var issued *checkrequest.Request

	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		req, err := e.requests.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.State != checkrequest.StatePending {
			return notPendingError([]*checkrequest.Request{req})
		}

		number := strings.TrimSpace(checkNumber)
		if number == "" {
			return apperror.NewValidation(fmt.Sprintf("check number is required for request %d", requestID)).
				WithDetail("request_ids", []int64{requestID})
		}

		if err := e.ledger.TryDebit(ctx, req.ProviderID, req.Amount); err != nil {
			return providerErrorAsValidation(err)
		}

		if err := e.requests.MarkGenerated(ctx, []checkrequest.Issued{{RequestID: req.ID, CheckNumber: number}}); err != nil {
			return fmt.Errorf("mark request %d generated: %w", req.ID, err)
		}

		req.State = checkrequest.StateGenerated
		req.CheckNumber = &number
		issued = req

		return e.recordIssued(ctx, []*checkrequest.Request{req})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "check issued",
		"request_id", issued.ID,
		"provider_id", issued.ProviderID,
		"check_number", *issued.CheckNumber,
		"amount", issued.Amount.String(),
	)
	return issued, nil
}

// IssueMany issues a batch of pending requests all-or-nothing.
// Amounts are summed per provider before the balance check.
func (e *Engine) IssueMany(ctx context.Context, items []Item) ([]*checkrequest.Request, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}

	var issued []*checkrequest.Request
	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		issued, err = e.issueMany(ctx, items)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "checks issued",
		"count", len(issued),
		"total", sumAmounts(issued).String(),
	)
	return issued, nil
}

// IssueSequential issues requests with consecutive check numbers assigned in
// ascending request id order. When start is nil the numbers are reserved from
// the persistent check-number sequence.
func (e *Engine) IssueSequential(ctx context.Context, ids []int64, start *int64) ([]*checkrequest.Request, error) {
	if len(ids) == 0 {
		return nil, apperror.NewValidation("at least one request id is required")
	}
	if dups := duplicates(ids); len(dups) > 0 {
		return nil, apperror.NewValidation(fmt.Sprintf("duplicate request ids: %s", apperror.JoinIDs(dups))).
			WithDetail("request_ids", dups)
	}
	if start != nil && *start <= 0 {
		return nil, apperror.NewValidation("start number must be positive").WithDetail("field", "startNumber")
	}

	cfg := numerator.CheckNumberConfig()
	count := int64(len(ids))

	var issued []*checkrequest.Request
	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var first int64
		if start != nil {
			first = *start
		} else {
			reserved, err := e.numbers.Reserve(ctx, cfg, count)
			if err != nil {
				return fmt.Errorf("reserve check numbers: %w", err)
			}
			first = reserved
		}

		var err error
		issued, err = e.issueMany(ctx, AssignSequential(ids, first, cfg))
		if err != nil {
			return err
		}

		if start != nil {
			if err := e.numbers.Advance(ctx, cfg, first+count-1); err != nil {
				return fmt.Errorf("advance check numbers: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "checks issued sequentially",
		"count", len(issued),
		"first_check_number", *issued[0].CheckNumber,
	)
	return issued, nil
}

// AssignSequential sorts ids ascending and pairs them with start, start+1, ...
// The result does not depend on the input order.
func AssignSequential(ids []int64, start int64, cfg numerator.Config) []Item {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	items := make([]Item, len(sorted))
	for i, requestID := range sorted {
		items[i] = Item{RequestID: requestID, CheckNumber: cfg.Format(start + int64(i))}
	}
	return items
}

// issueMany runs inside the caller's transaction.
func (e *Engine) issueMany(ctx context.Context, items []Item) ([]*checkrequest.Request, error) {
	ids := make([]int64, len(items))
	numbers := make(map[int64]string, len(items))
	for i, it := range items {
		ids[i] = it.RequestID
		numbers[it.RequestID] = strings.TrimSpace(it.CheckNumber)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	reqs, err := e.requests.ListForUpdate(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("lock requests: %w", err)
	}
	if missing := missingIDs(ids, reqs); len(missing) > 0 {
		return nil, apperror.NewNotFound("check request", apperror.JoinIDs(missing)).
			WithDetail("request_ids", missing)
	}

	var notPending []*checkrequest.Request
	for _, r := range reqs {
		if r.State != checkrequest.StatePending {
			notPending = append(notPending, r)
		}
	}
	if len(notPending) > 0 {
		return nil, notPendingError(notPending)
	}

	var blank []int64
	for _, id := range ids {
		if numbers[id] == "" {
			blank = append(blank, id)
		}
	}
	if len(blank) > 0 {
		return nil, apperror.NewValidation(fmt.Sprintf("check number is required for requests %s", apperror.JoinIDs(blank))).
			WithDetail("request_ids", blank)
	}

	debits := make(map[int64]types.Money)
	for _, r := range reqs {
		debits[r.ProviderID] = debits[r.ProviderID].Add(r.Amount)
	}
	if err := e.ledger.TryDebitMany(ctx, debits); err != nil {
		return nil, providerErrorAsValidation(err)
	}

	issued := make([]checkrequest.Issued, len(reqs))
	for i, r := range reqs {
		number := numbers[r.ID]
		issued[i] = checkrequest.Issued{RequestID: r.ID, CheckNumber: number}
		r.State = checkrequest.StateGenerated
		r.CheckNumber = &number
	}
	if err := e.requests.MarkGenerated(ctx, issued); err != nil {
		return nil, fmt.Errorf("mark requests generated: %w", err)
	}

	if err := e.recordIssued(ctx, reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

func (e *Engine) recordIssued(ctx context.Context, reqs []*checkrequest.Request) error {
	issuedAt := e.now().UTC()
	evts := make([]events.Event, len(reqs))
	for i, r := range reqs {
		evts[i] = events.ForRequest(r.ID, events.TypeCheckIssued, events.CheckIssued{
			RequestID:   r.ID,
			ProviderID:  r.ProviderID,
			CheckNumber: *r.CheckNumber,
			Amount:      r.Amount,
			IssuedAt:    issuedAt,
		})
	}
	if err := e.events.Publish(ctx, evts...); err != nil {
		return fmt.Errorf("publish issued events: %w", err)
	}

	for _, r := range reqs {
		err := e.audit.Record(ctx, audit.Entry{
			EntityType: audit.EntityCheckRequest,
			EntityID:   strconv.FormatInt(r.ID, 10),
			Action:     audit.ActionIssue,
			Changes: map[string]any{
				"state":        checkrequest.StateGenerated,
				"check_number": *r.CheckNumber,
				"provider_id":  r.ProviderID,
				"amount":       r.Amount.String(),
			},
		})
		if err != nil {
			return fmt.Errorf("audit issue %d: %w", r.ID, err)
		}
	}
	return nil
}

func validateItems(items []Item) error {
	if len(items) == 0 {
		return apperror.NewValidation("at least one item is required")
	}
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.RequestID
	}
	if dups := duplicates(ids); len(dups) > 0 {
		return apperror.NewValidation(fmt.Sprintf("duplicate request ids: %s", apperror.JoinIDs(dups))).
			WithDetail("request_ids", dups)
	}
	return nil
}

func notPendingError(reqs []*checkrequest.Request) *apperror.AppError {
	ids := make([]int64, len(reqs))
	states := make(map[string]checkrequest.State, len(reqs))
	parts := make([]string, len(reqs))
	for i, r := range reqs {
		ids[i] = r.ID
		states[strconv.FormatInt(r.ID, 10)] = r.State
		parts[i] = fmt.Sprintf("request %d is %s", r.ID, r.State)
	}
	return apperror.NewInvalidState(strings.Join(parts, "; ")+"; only pending requests can be issued").
		WithDetail("request_ids", ids).
		WithDetail("states", states)
}

// providerErrorAsValidation reports unknown or inactive providers as validation
// errors while keeping insufficient funds distinguishable.
func providerErrorAsValidation(err error) error {
	appErr, ok := apperror.AsAppError(err)
	if !ok {
		return err
	}
	switch appErr.Code {
	case apperror.CodeProviderInactive, apperror.CodeNotFound:
		converted := apperror.NewValidation(appErr.Message).WithCause(err)
		for k, v := range appErr.Details {
			converted.WithDetail(k, v)
		}
		if len(balance.Failures(err)) == 0 {
			converted.WithDetail("reason", strings.ToLower(appErr.Code))
		}
		return converted
	}
	return err
}

func missingIDs(ids []int64, found []*checkrequest.Request) []int64 {
	have := make(map[int64]struct{}, len(found))
	for _, r := range found {
		have[r.ID] = struct{}{}
	}
	var missing []int64
	for _, id := range ids {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func duplicates(ids []int64) []int64 {
	seen := make(map[int64]int, len(ids))
	var dups []int64
	for _, id := range ids {
		seen[id]++
		if seen[id] == 2 {
			dups = append(dups, id)
		}
	}
	return dups
}

func sumAmounts(reqs []*checkrequest.Request) types.Money {
	total := types.Zero()
	for _, r := range reqs {
		total = total.Add(r.Amount)
	}
	return total
}
