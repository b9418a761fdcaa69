// Package audit records who changed what on check requests and posting batches.
package audit

import (
	"context"
	"encoding/json"
	"time"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionIssue      Action = "issue"
	ActionVoid       Action = "void"
	ActionPost       Action = "post"
	ActionPostFailed Action = "post_failed"
)

// Entity types.
const (
	EntityCheckRequest = "check_request"
	EntityPosting      = "posting_batch"
)

// Entry is one audit record.
type Entry struct {
	EntityType string
	EntityID   string
	Action     Action
	Changes    map[string]any
}

// Recorder persists audit entries. Inside a transaction the entry commits with it.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Record is a stored entry as read back from the log.
type Record struct {
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Action     Action          `json:"action"`
	Actor      string          `json:"actor,omitempty"`
	Changes    json.RawMessage `json:"changes,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// HistoryReader returns the newest entries of one entity first.
type HistoryReader interface {
	History(ctx context.Context, entityType, entityID string, limit int) ([]Record, error)
}

// Nop discards entries.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Entry) error { return nil }
