package handlers

import (
	"github.com/gin-gonic/gin"

	"checkbook/internal/domain/issuance"
	"checkbook/internal/infrastructure/http/v1/dto"
)

// IssuanceHandler handles check issuance and voiding.
type IssuanceHandler struct {
	*BaseHandler
	engine *issuance.Engine
}

// NewIssuanceHandler creates a new issuance handler.
func NewIssuanceHandler(base *BaseHandler, engine *issuance.Engine) *IssuanceHandler {
	return &IssuanceHandler{BaseHandler: base, engine: engine}
}

// IssueOne handles POST /requests/:id/issue
func (h *IssuanceHandler) IssueOne(c *gin.Context) {
	id, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.IssueOneRequest
	if !h.BindJSON(c, &req) {
		return
	}
	issued, err := h.engine.IssueOne(c.Request.Context(), id, req.CheckNumber)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRequest(issued))
}

// IssueMany handles POST /requests/issue
func (h *IssuanceHandler) IssueMany(c *gin.Context) {
	var req dto.IssueManyRequest
	if !h.BindJSON(c, &req) {
		return
	}
	issued, err := h.engine.IssueMany(c.Request.Context(), req.Items)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: dto.FromRequests(issued), Count: len(issued)})
}

// IssueSequential handles POST /requests/issue-sequential
func (h *IssuanceHandler) IssueSequential(c *gin.Context) {
	var req dto.IssueSequentialRequest
	if !h.BindJSON(c, &req) {
		return
	}
	issued, err := h.engine.IssueSequential(c.Request.Context(), req.IDs, req.StartNumber)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: dto.FromRequests(issued), Count: len(issued)})
}

// Void handles POST /requests/void
func (h *IssuanceHandler) Void(c *gin.Context) {
	var req dto.IDsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.engine.VoidMany(c.Request.Context(), req.IDs)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}
