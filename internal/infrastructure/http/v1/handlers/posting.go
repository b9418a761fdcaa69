package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"checkbook/internal/domain/posting"
	"checkbook/internal/infrastructure/http/v1/dto"
)

// PostingHandler handles ledger posting.
type PostingHandler struct {
	*BaseHandler
	coordinator *posting.Coordinator
	timeout     time.Duration
}

// NewPostingHandler creates a new posting handler. A positive timeout bounds each batch.
func NewPostingHandler(base *BaseHandler, coordinator *posting.Coordinator, timeout time.Duration) *PostingHandler {
	return &PostingHandler{BaseHandler: base, coordinator: coordinator, timeout: timeout}
}

// PostBatch handles POST /postings
func (h *PostingHandler) PostBatch(c *gin.Context) {
	var req dto.PostBatchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.coordinator.PostBatch(ctx, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromPostingResult(result))
}
