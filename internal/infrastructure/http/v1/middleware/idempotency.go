package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"checkbook/internal/core/apperror"
	appctx "checkbook/internal/core/context"
	"checkbook/internal/infrastructure/storage/postgres"
	"checkbook/pkg/logger"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"
const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

const (
	ctxIdempotencyKey   = "idempotency_key"
	ctxIdempotencyStore = "idempotency_store"
)

// IdempotencyStore persists idempotency keys and cached responses.
type IdempotencyStore interface {
	AcquireKey(ctx context.Context, key, actor, operation, requestHash string) (*postgres.IdempotencyReplay, error)
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
	FailKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
	ReleaseKey(ctx context.Context, key string) error
}

var _ IdempotencyStore = (*postgres.IdempotencyStore)(nil)

// Idempotency middleware protects mutating endpoints against duplicate requests.
// Requests without X-Idempotency-Key pass through.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch &&
			c.Request.Method != http.MethodDelete {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, _ := io.ReadAll(limited)
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)
		requestHash := hex.EncodeToString(hash[:])

		// Path parameters are part of the operation so one key cannot replay across ids.
		operation := c.Request.Method + " " + c.Request.URL.Path
		actor := appctx.GetSubject(c.Request.Context())

		replay, err := store.AcquireKey(c.Request.Context(), key, actor, operation, requestHash)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				_ = c.Error(appErr)
				c.Abort()
				return
			}
			_ = c.Error(apperror.NewInternal(err).WithDetail("component", "idempotency"))
			c.Abort()
			return
		}

		if replay != nil {
			c.Header("Idempotent-Replayed", "true")
			if replay.StatusCode == http.StatusNoContent {
				c.Status(http.StatusNoContent)
			} else {
				c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			}
			c.Abort()
			return
		}

		c.Set(ctxIdempotencyKey, key)
		c.Set(ctxIdempotencyStore, store)

		c.Next()
	}
}

// FinishIdempotency records the response for the request's idempotency key, if any.
// 2xx and 4xx outcomes are cached for replay; 5xx releases the key so the client may retry.
func FinishIdempotency(c *gin.Context, statusCode int, contentType string, body []byte) {
	key := c.GetString(ctxIdempotencyKey)
	if key == "" {
		return
	}
	raw, ok := c.Get(ctxIdempotencyStore)
	if !ok {
		return
	}
	store, ok := raw.(IdempotencyStore)
	if !ok || store == nil {
		return
	}

	ctx := c.Request.Context()
	var err error
	switch {
	case statusCode >= http.StatusInternalServerError:
		err = store.ReleaseKey(ctx, key)
	case statusCode >= http.StatusBadRequest:
		err = store.FailKey(ctx, key, statusCode, contentType, body)
	default:
		err = store.CompleteKey(ctx, key, statusCode, contentType, body)
	}
	if err != nil {
		logger.Warn(ctx, "failed to record idempotent response", "key", key, "error", err)
	}
}
