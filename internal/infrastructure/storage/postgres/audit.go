// Package postgres provides PostgreSQL infrastructure components.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	appctx "checkbook/internal/core/context"
	"checkbook/internal/core/id"
	"checkbook/internal/domain/audit"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the size above which changes are stored compressed.
const DefaultCompressThreshold = 4 * 1024

// AuditEntry represents a single audit log row.
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          string          `db:"entity_id"`
	Action            audit.Action    `db:"action"`
	Actor             string          `db:"actor"`
	TraceID           string          `db:"trace_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditService writes and reads sys_audit.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var (
	_ audit.Recorder      = (*AuditService)(nil)
	_ audit.HistoryReader = (*AuditService)(nil)
)

// NewAuditService creates a new audit service.
// A threshold of 0 uses DefaultCompressThreshold.
func NewAuditService(txManager *TxManager, compressThreshold int) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	if compressThreshold <= 0 {
		compressThreshold = DefaultCompressThreshold
	}

	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: compressThreshold,
	}, nil
}

// Record implements audit.Recorder. Inside a transaction the row commits with it.
func (s *AuditService) Record(ctx context.Context, entry audit.Entry) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}

	return s.Log(ctx, AuditEntry{
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		Changes:    changes,
	})
}

// Log inserts one audit row, compressing large change sets.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	if entry.Actor == "" {
		entry.Actor = appctx.GetSubject(ctx)
	}
	if entry.TraceID == "" {
		entry.TraceID = appctx.GetTraceID(ctx)
	}
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo = s.compress(entry.Changes)

	sql := `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, actor, trace_id,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action,
		entry.Actor, entry.TraceID,
		entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History implements audit.HistoryReader.
func (s *AuditService) History(ctx context.Context, entityType, entityID string, limit int) ([]audit.Record, error) {
	if limit <= 0 {
		limit = 50
	}

	sql := `
		SELECT id, entity_type, entity_id, action, actor, trace_id,
		       changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	var rows []AuditEntry
	if err := pgxscan.Select(ctx, s.txManager.GetQuerier(ctx), &rows, sql, entityType, entityID, limit); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	out := make([]audit.Record, 0, len(rows))
	for _, e := range rows {
		changes, err := s.decompress(e)
		if err != nil {
			return nil, err
		}
		out = append(out, audit.Record{
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Action:     e.Action,
			Actor:      e.Actor,
			Changes:    changes,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out, nil
}

func (s *AuditService) compress(changes json.RawMessage) (json.RawMessage, []byte, CompressionAlgo) {
	if len(changes) <= s.compressThreshold {
		return changes, nil, CompressionNone
	}
	return nil, s.encoder.EncodeAll(changes, nil), CompressionZstd
}

func (s *AuditService) decompress(e AuditEntry) (json.RawMessage, error) {
	if e.CompressionAlgo != CompressionZstd || len(e.ChangesCompressed) == 0 {
		return e.Changes, nil
	}
	decompressed, err := s.decoder.DecodeAll(e.ChangesCompressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress changes of %s %s: %w", e.EntityType, e.EntityID, err)
	}
	return decompressed, nil
}
