package handler

import (
	"net/http"

	"github.com/FacundoTogliefoso/transaction-log/internal/query"
	"github.com/FacundoTogliefoso/transaction-log/internal/store"
	"github.com/FacundoTogliefoso/transaction-log/internal/util"

	"github.com/gin-gonic/gin"
)

// LogHandler lists the request audit trail.
type LogHandler struct {
	Logs   *store.AuditLogs
	Limits query.Limits
}

func NewLogHandler(logs *store.AuditLogs, limits query.Limits) *LogHandler {
	return &LogHandler{Logs: logs, Limits: limits}
}

// ListLogs returns the audit trail newest first in the paginated envelope.
func (h *LogHandler) ListLogs(c *gin.Context) {
	p, err := query.ParseParams(c.Request.URL.Query(), h.Limits)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	page := p.Page()
	page.Order = ""
	logs, total, err := h.Logs.List(c.Request.Context(), page)
	if err != nil {
		storeError(c, err, "audit log")
		return
	}
	util.Success(c, query.NewEnvelope(logs, total, p.PageNumber, p.PageSize))
}
