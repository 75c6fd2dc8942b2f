// export.go streams feedback as a CSV attachment.
package admin

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feedback-system/feedback-system/internal/export"
	"github.com/feedback-system/feedback-system/internal/middleware"
	"github.com/feedback-system/feedback-system/internal/validation"
)

// ExportHandler handles CSV export requests
type ExportHandler struct {
	service *export.Service
}

// NewExportHandler creates a new export handler
func NewExportHandler(service *export.Service) *ExportHandler {
	return &ExportHandler{service: service}
}

// Export handles GET /api/feedback/export?status=&category=&startDate=&endDate=
func (h *ExportHandler) Export(c *gin.Context) {
	var q export.Query
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.RespondError(c, validation.BindError(err))
		return
	}

	res, err := h.service.Export(c.Request.Context(), q, middleware.ActorFrom(c))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, res.Filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", res.Data)
}
