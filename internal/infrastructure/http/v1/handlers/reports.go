package handlers

import (
	"github.com/gin-gonic/gin"

	"checkbook/internal/core/apperror"
	"checkbook/internal/domain/reports"
	"checkbook/internal/infrastructure/http/v1/dto"
)

// ReportsHandler handles HTTP requests for reports.
type ReportsHandler struct {
	*BaseHandler
	service *reports.Service
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(base *BaseHandler, service *reports.Service) *ReportsHandler {
	return &ReportsHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Summaries handles GET /reports/postings?from&to&debitId&creditId
func (h *ReportsHandler) Summaries(c *gin.Context) {
	var (
		filter reports.SummaryFilter
		ok     bool
	)
	if filter.From, ok = h.QueryDate(c, "from"); !ok {
		return
	}
	if filter.To, ok = h.QueryDate(c, "to"); !ok {
		return
	}
	if filter.DebitEntryID, ok = h.QueryInt64(c, "debitId"); !ok {
		return
	}
	if filter.CreditEntryID, ok = h.QueryInt64(c, "creditId"); !ok {
		return
	}

	items, err := h.service.Summaries(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromSummaries(items))
}

// Detail handles GET /reports/postings/detail?year&month&debitId&creditId
func (h *ReportsHandler) Detail(c *gin.Context) {
	var key reports.GroupKey
	var ok bool
	if key.Year, ok = h.QueryInt(c, "year"); !ok {
		return
	}
	if key.Month, ok = h.QueryInt(c, "month"); !ok {
		return
	}
	deb, ok := h.QueryInt64(c, "debitId")
	if !ok {
		return
	}
	cre, ok := h.QueryInt64(c, "creditId")
	if !ok {
		return
	}
	if deb == nil || cre == nil {
		h.Error(c, apperror.NewValidation("debitId and creditId are required"))
		return
	}
	key.DebitEntryID = *deb
	key.CreditEntryID = *cre

	detail, err := h.service.Detail(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, detail)
}

// SearchChecks handles GET /checks?providerId&from&to&checkNumber&requestId
func (h *ReportsHandler) SearchChecks(c *gin.Context) {
	filter := reports.CheckSearchFilter{
		CheckNumber: c.Query("checkNumber"),
		Limit:       h.ParseIntQuery(c, "limit", 0),
		Offset:      h.ParseIntQuery(c, "offset", 0),
	}
	var ok bool
	if filter.ProviderID, ok = h.QueryInt64(c, "providerId"); !ok {
		return
	}
	if filter.RequestID, ok = h.QueryInt64(c, "requestId"); !ok {
		return
	}
	if filter.From, ok = h.QueryDate(c, "from"); !ok {
		return
	}
	if filter.To, ok = h.QueryDate(c, "to"); !ok {
		return
	}

	lines, err := h.service.SearchChecks(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromCheckLines(lines, filter.Limit, filter.Offset))
}

// CheckDetail handles GET /checks/:id
func (h *ReportsHandler) CheckDetail(c *gin.Context) {
	id, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	detail, err := h.service.CheckDetail(c.Request.Context(), id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, detail)
}
