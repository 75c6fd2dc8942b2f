package validation

import (
	"strings"

	"github.com/feedback-system/feedback-system/internal/db/models"
)

// SubmitFeedbackRequest is the public feedback form payload.
type SubmitFeedbackRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50,person_name"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Category string `json:"category" validate:"required,category"`
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
	Message  string `json:"message" validate:"required,min=10,max=1000"`
}

// Normalize trims whitespace and lowercases the email in place.
func (r *SubmitFeedbackRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Category = strings.TrimSpace(r.Category)
	r.Message = strings.TrimSpace(r.Message)
}

// Validate normalizes then checks the form.
func (r *SubmitFeedbackRequest) Validate() error {
	r.Normalize()
	return Struct(r, "Validation failed.")
}

// Feedback converts a validated request into a new pending item.
func (r *SubmitFeedbackRequest) Feedback() *models.Feedback {
	return &models.Feedback{
		Name:     r.Name,
		Email:    r.Email,
		Category: models.Category(r.Category),
		Rating:   r.Rating,
		Message:  r.Message,
		Status:   models.StatusPending,
	}
}

// StatusRequest is the body of PATCH /feedback/:id.
type StatusRequest struct {
	Status string `json:"status" validate:"required,feedback_status"`
}

// Validate checks the requested status.
func (r *StatusRequest) Validate() error {
	r.Status = strings.TrimSpace(r.Status)
	return Struct(r, "Invalid status. Valid statuses are: pending, approved, rejected.")
}
