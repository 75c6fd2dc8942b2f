// feedback.go implements the moderation endpoints under /api/feedback.
package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/feedback-system/feedback-system/internal/db/models"
	"github.com/feedback-system/feedback-system/internal/middleware"
	"github.com/feedback-system/feedback-system/internal/moderation"
	"github.com/feedback-system/feedback-system/internal/validation"
)

// FeedbackHandler handles feedback moderation requests
type FeedbackHandler struct {
	engine *moderation.Engine
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(engine *moderation.Engine) *FeedbackHandler {
	return &FeedbackHandler{engine: engine}
}

// itemResponse wraps a single item.
func itemResponse(message string, f *models.Feedback) gin.H {
	return gin.H{"success": true, "message": message, "data": f}
}

// List handles GET /api/feedback?page=&limit=&status=&category=&search=
func (h *FeedbackHandler) List(c *gin.Context) {
	filter := models.FeedbackFilter{
		Status:   models.FeedbackStatus(c.Query("status")),
		Category: models.Category(c.Query("category")),
		Search:   c.Query("search"),
	}

	items, page, err := h.engine.List(c.Request.Context(), filter, queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Feedback retrieved successfully.",
		"data":       items,
		"pagination": page,
	})
}

// Get handles GET /api/feedback/:id
func (h *FeedbackHandler) Get(c *gin.Context) {
	f, err := h.engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, itemResponse("Feedback retrieved successfully.", f))
}

// Approve handles PUT /api/feedback/:id/approve
func (h *FeedbackHandler) Approve(c *gin.Context) {
	h.setStatus(c, models.StatusApproved)
}

// Reject handles PUT /api/feedback/:id/reject
func (h *FeedbackHandler) Reject(c *gin.Context) {
	h.setStatus(c, models.StatusRejected)
}

// UpdateStatus handles PATCH /api/feedback/:id with body {"status": "..."}
func (h *FeedbackHandler) UpdateStatus(c *gin.Context) {
	var req validation.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, validation.BindError(err))
		return
	}
	if err := req.Validate(); err != nil {
		middleware.RespondError(c, err)
		return
	}
	h.setStatus(c, models.FeedbackStatus(req.Status))
}

func (h *FeedbackHandler) setStatus(c *gin.Context, status models.FeedbackStatus) {
	f, err := h.engine.SetStatus(c.Request.Context(), c.Param("id"), status, middleware.ActorFrom(c))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, itemResponse("Feedback status updated successfully.", f))
}

// Delete handles DELETE /api/feedback/:id
func (h *FeedbackHandler) Delete(c *gin.Context) {
	if err := h.engine.Delete(c.Request.Context(), c.Param("id"), middleware.ActorFrom(c)); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Feedback deleted successfully.",
	})
}

// queryInt reads a positive integer query parameter; anything else is 0, which the
// engines replace with their defaults.
func queryInt(c *gin.Context, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
