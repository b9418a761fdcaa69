// Package handlers provides HTTP request handlers.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"checkbook/internal/core/apperror"
	"checkbook/internal/infrastructure/http/v1/dto"
	"checkbook/internal/infrastructure/http/v1/middleware"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers error on Gin context and aborts request.
// Actual JSON response is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// PathID parses a positive integer path parameter.
func (h *BaseHandler) PathID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		h.Error(c, apperror.NewValidation(fmt.Sprintf("invalid %s %q", name, raw)).WithDetail("field", name))
		return 0, false
	}
	return v, true
}

// QueryInt64 parses an optional integer query parameter.
func (h *BaseHandler) QueryInt64(c *gin.Context, key string) (*int64, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.Error(c, apperror.NewValidation(fmt.Sprintf("invalid %s %q", key, raw)).WithDetail("field", key))
		return nil, false
	}
	return &v, true
}

// QueryInt parses a required integer query parameter.
func (h *BaseHandler) QueryInt(c *gin.Context, key string) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	v, err := strconv.Atoi(raw)
	if err != nil {
		h.Error(c, apperror.NewValidation(fmt.Sprintf("invalid %s %q", key, raw)).WithDetail("field", key))
		return 0, false
	}
	return v, true
}

// ParseIntQuery parses integer query parameter with default value.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// QueryDate parses an optional date query parameter.
func (h *BaseHandler) QueryDate(c *gin.Context, key string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	t, err := dto.ParseDate(raw)
	if err != nil {
		h.Error(c, apperror.NewValidation(err.Error()).WithDetail("field", key))
		return nil, false
	}
	return &t, true
}

// QueryIDs parses a comma-separated id list, e.g. ?ids=1,2,3.
func (h *BaseHandler) QueryIDs(c *gin.Context, key string) ([]int64, bool) {
	var ids []int64
	for _, part := range c.QueryArray(key) {
		for _, s := range strings.Split(part, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				h.Error(c, apperror.NewValidation(fmt.Sprintf("invalid id %q", s)).WithDetail("field", key))
				return nil, false
			}
			ids = append(ids, v)
		}
	}
	return ids, true
}

// respond writes JSON and records it for idempotent replay.
func (h *BaseHandler) respond(c *gin.Context, status int, data any) {
	if raw, err := json.Marshal(data); err == nil {
		middleware.FinishIdempotency(c, status, "application/json", raw)
	}
	c.JSON(status, data)
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	h.respond(c, http.StatusCreated, data)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	h.respond(c, http.StatusOK, data)
}

// NoContent sends 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	middleware.FinishIdempotency(c, http.StatusNoContent, "", nil)
	c.Status(http.StatusNoContent)
}
