// audit_logs.go serves the read side of the audit trail.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feedback-system/feedback-system/internal/audit"
	"github.com/feedback-system/feedback-system/internal/db/models"
	"github.com/feedback-system/feedback-system/internal/middleware"
)

// AuditLogHandler handles audit log requests
type AuditLogHandler struct {
	recorder *audit.Recorder
}

// NewAuditLogHandler creates a new audit log handler
func NewAuditLogHandler(recorder *audit.Recorder) *AuditLogHandler {
	return &AuditLogHandler{recorder: recorder}
}

// List handles GET /api/feedback/audit-logs?page=&limit=&action=&adminId=
func (h *AuditLogHandler) List(c *gin.Context) {
	filter := audit.Filter{
		Action:  models.AuditAction(c.Query("action")),
		AdminID: c.Query("adminId"),
	}

	logs, page, err := h.recorder.List(c.Request.Context(), filter, queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       logs,
		"pagination": page,
	})
}
