// Package public implements the unauthenticated feedback submission endpoint.
package public

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feedback-system/feedback-system/internal/db/models"
	"github.com/feedback-system/feedback-system/internal/middleware"
	"github.com/feedback-system/feedback-system/internal/moderation"
	"github.com/feedback-system/feedback-system/internal/validation"
)

// SubmitHandler handles public feedback submissions
type SubmitHandler struct {
	engine *moderation.Engine
}

// NewSubmitHandler creates a new submit handler
func NewSubmitHandler(engine *moderation.Engine) *SubmitHandler {
	return &SubmitHandler{engine: engine}
}

// SubmittedFeedback is the item echoed back to the submitter.
type SubmittedFeedback struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Email     string                `json:"email"`
	Category  models.Category       `json:"category"`
	Rating    int                   `json:"rating"`
	Message   string                `json:"message"`
	Status    models.FeedbackStatus `json:"status"`
	CreatedAt time.Time             `json:"createdAt"`
}

// Submit handles POST /api/feedback/submit
func (h *SubmitHandler) Submit(c *gin.Context) {
	var req validation.SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, validation.BindError(err))
		return
	}

	f, err := h.engine.Submit(c.Request.Context(), &req)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Feedback submitted successfully.",
		"feedback": SubmittedFeedback{
			ID:        f.ID,
			Name:      f.Name,
			Email:     f.Email,
			Category:  f.Category,
			Rating:    f.Rating,
			Message:   f.Message,
			Status:    f.Status,
			CreatedAt: f.CreatedAt,
		},
	})
}
