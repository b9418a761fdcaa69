package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"checkbook/internal/domain/audit"
	"checkbook/internal/domain/documents/checkrequest"
	"checkbook/internal/domain/registers/balance"
	"checkbook/internal/infrastructure/http/v1/dto"
)

const historyLimit = 100

// RequestHandler handles the check request store endpoints.
type RequestHandler struct {
	*BaseHandler
	service *checkrequest.Service
	ledger  *balance.Ledger
	history audit.HistoryReader
}

// NewRequestHandler creates a new request handler.
func NewRequestHandler(base *BaseHandler, service *checkrequest.Service, ledger *balance.Ledger, history audit.HistoryReader) *RequestHandler {
	return &RequestHandler{BaseHandler: base, service: service, ledger: ledger, history: history}
}

// Create handles POST /requests
func (h *RequestHandler) Create(c *gin.Context) {
	var req dto.CreateRequestRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	created, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromRequest(created))
}

// Get handles GET /requests/:id
func (h *RequestHandler) Get(c *gin.Context) {
	id, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	req, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRequest(req))
}

// List handles GET /requests?ids=1,2
func (h *RequestHandler) List(c *gin.Context) {
	ids, ok := h.QueryIDs(c, "ids")
	if !ok {
		return
	}
	reqs, err := h.service.ListByIDs(c.Request.Context(), ids)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: dto.FromRequests(reqs), Count: len(reqs)})
}

// ListPending handles GET /requests/pending
func (h *RequestHandler) ListPending(c *gin.Context) {
	reqs, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: dto.FromRequests(reqs), Count: len(reqs)})
}

// ListGeneratedUnposted handles GET /requests/generated-unposted?year=&month=
func (h *RequestHandler) ListGeneratedUnposted(c *gin.Context) {
	year, ok := h.QueryInt(c, "year")
	if !ok {
		return
	}
	month, ok := h.QueryInt(c, "month")
	if !ok {
		return
	}
	reqs, err := h.service.ListGeneratedUnposted(c.Request.Context(), year, month)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: dto.FromRequests(reqs), Count: len(reqs)})
}

// Update handles PUT /requests/:id
func (h *RequestHandler) Update(c *gin.Context) {
	id, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateRequestRequest
	if !h.BindJSON(c, &req) {
		return
	}
	updated, err := h.service.Update(c.Request.Context(), id, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRequest(updated))
}

// Delete handles DELETE /requests/:id
func (h *RequestHandler) Delete(c *gin.Context) {
	id, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// History handles GET /requests/:id/history
func (h *RequestHandler) History(c *gin.Context) {
	id, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	if _, err := h.service.Get(c.Request.Context(), id); err != nil {
		h.Error(c, err)
		return
	}
	records, err := h.history.History(c.Request.Context(), audit.EntityCheckRequest, strconv.FormatInt(id, 10), historyLimit)
	if err != nil {
		h.Error(c, err)
		return
	}
	items := dto.FromHistory(records)
	h.OK(c, dto.ListResponse{Items: items, Count: len(items)})
}

// Balance handles GET /providers/:id/balance
func (h *RequestHandler) Balance(c *gin.Context) {
	id, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	bal, err := h.ledger.GetBalance(c.Request.Context(), id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.BalanceResponse{ProviderID: id, Balance: bal})
}
