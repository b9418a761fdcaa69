package issuance

import (
	"context"
	"fmt"
	"strconv"

	"checkbook/internal/core/apperror"
	"checkbook/internal/domain/audit"
	"checkbook/internal/domain/documents/checkrequest"
	"checkbook/internal/domain/events"
	"checkbook/pkg/logger"
)

// Skip reasons reported by VoidMany.
const (
	SkipNotFound   = "not_found"
	SkipNotPending = "not_pending"
)

// Skipped names a request VoidMany left untouched.
type Skipped struct {
	RequestID int64              `json:"id"`
	Reason    string             `json:"reason"`
	State     checkrequest.State `json:"state,omitempty"`
}

// VoidResult lists what VoidMany changed and what it skipped.
type VoidResult struct {
	Voided  []int64   `json:"voided"`
	Skipped []Skipped `json:"skipped"`
}

// VoidMany cancels pending requests. Requests that are unknown or no longer
// pending are skipped. Balances are never touched.
func (e *Engine) VoidMany(ctx context.Context, ids []int64) (VoidResult, error) {
	result := VoidResult{Voided: []int64{}, Skipped: []Skipped{}}
	if len(ids) == 0 {
		return result, apperror.NewValidation("at least one request id is required")
	}
	ids = checkrequest.UniqueSorted(ids)

	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		result = VoidResult{Voided: []int64{}, Skipped: []Skipped{}}

		reqs, err := e.requests.ListForUpdate(ctx, ids)
		if err != nil {
			return fmt.Errorf("lock requests: %w", err)
		}
		byID := make(map[int64]*checkrequest.Request, len(reqs))
		for _, r := range reqs {
			byID[r.ID] = r
		}

		var pending []int64
		for _, id := range ids {
			r, ok := byID[id]
			switch {
			case !ok:
				result.Skipped = append(result.Skipped, Skipped{RequestID: id, Reason: SkipNotFound})
			case r.State != checkrequest.StatePending:
				result.Skipped = append(result.Skipped, Skipped{RequestID: id, Reason: SkipNotPending, State: r.State})
			default:
				pending = append(pending, id)
			}
		}
		if len(pending) == 0 {
			return nil
		}

		voided, err := e.requests.MarkVoided(ctx, pending)
		if err != nil {
			return fmt.Errorf("mark requests voided: %w", err)
		}
		result.Voided = append(result.Voided, voided...)

		return e.recordVoided(ctx, voided)
	})
	if err != nil {
		return VoidResult{}, err
	}

	logger.Info(ctx, "check requests voided",
		"voided", len(result.Voided),
		"skipped", len(result.Skipped),
	)
	return result, nil
}

func (e *Engine) recordVoided(ctx context.Context, ids []int64) error {
	voidedAt := e.now().UTC()
	evts := make([]events.Event, len(ids))
	for i, id := range ids {
		evts[i] = events.ForRequest(id, events.TypeCheckVoided, events.CheckVoided{RequestID: id, VoidedAt: voidedAt})
	}
	if err := e.events.Publish(ctx, evts...); err != nil {
		return fmt.Errorf("publish voided events: %w", err)
	}

	for _, id := range ids {
		err := e.audit.Record(ctx, audit.Entry{
			EntityType: audit.EntityCheckRequest,
			EntityID:   strconv.FormatInt(id, 10),
			Action:     audit.ActionVoid,
			Changes:    map[string]any{"state": checkrequest.StateVoided},
		})
		if err != nil {
			return fmt.Errorf("audit void %d: %w", id, err)
		}
	}
	return nil
}
