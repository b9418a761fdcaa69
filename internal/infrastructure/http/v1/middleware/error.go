package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"checkbook/internal/core/apperror"
	"checkbook/pkg/logger"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		status := http.StatusInternalServerError
		body := ErrorResponse{
			Code:    apperror.CodeInternal,
			Message: "Internal server error",
			Details: map[string]any{"request_id": c.GetString("request_id")},
		}

		if appErr, ok := apperror.AsAppError(err); ok {
			status = appErr.HTTPStatus
			body = ErrorResponse{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}

			if appErr.Err != nil || status >= http.StatusInternalServerError {
				logger.Error(c.Request.Context(), "request error",
					"code", appErr.Code,
					"message", appErr.Message,
					"cause", appErr.Err,
				)
			}
		} else {
			logger.Error(c.Request.Context(), "unhandled error", "error", err)
		}

		if raw, mErr := json.Marshal(body); mErr == nil {
			FinishIdempotency(c, status, "application/json", raw)
		}
		c.JSON(status, body)
	}
}
