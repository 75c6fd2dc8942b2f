// Package validation checks inbound request payloads before they reach the service layer.
// It wraps a single go-playground validator instance with the custom rules the feedback
// form and the admin credential forms need, and converts validator output into
// apperrors.Validation values carrying one human readable message per failed field.
package validation

import (
	"errors"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/feedback-system/feedback-system/internal/apperrors"
	"github.com/feedback-system/feedback-system/internal/db/models"
)

var (
	personNamePattern = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)
	usernamePattern   = regexp.MustCompile(`^[a-z0-9_]+$`)
)

var (
	once     sync.Once
	validate *validator.Validate
)

// instance returns the shared validator, registering custom rules on first use.
func instance() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("person_name", func(fl validator.FieldLevel) bool {
			return personNamePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
			return models.Category(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("feedback_status", func(fl validator.FieldLevel) bool {
			return models.FeedbackStatus(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || models.Role(s).Valid()
		})
		validate = v
	})
	return validate
}

// fieldMessages maps "<Struct>.<Field>" to the message reported for any rule failing on it.
var fieldMessages = map[string]string{
	"SubmitFeedbackRequest.Name":     "Name must be between 2 and 50 characters and contain only letters, spaces, hyphens, and apostrophes",
	"SubmitFeedbackRequest.Email":    "Please provide a valid email address of at most 100 characters",
	"SubmitFeedbackRequest.Category": "Category must be one of: General, Technical, Sales, Support, Billing, Other",
	"SubmitFeedbackRequest.Rating":   "Rating must be an integer between 1 and 5",
	"SubmitFeedbackRequest.Message":  "Message must be between 10 and 1000 characters",
	"StatusRequest.Status":           "Status must be one of: pending, approved, rejected",
	"RegisterRequest.Role":           "Role must be either admin, moderator, or super_admin",
}

// Struct validates s and returns an *apperrors.Error of kind validation listing every
// failed field, or nil. summary is used as the top-level message.
func Struct(s interface{}, summary string) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Validation(summary, err.Error())
	}

	seen := make(map[string]bool, len(verrs))
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		key := fe.StructNamespace()
		if seen[key] {
			continue
		}
		seen[key] = true
		msg, ok := fieldMessages[key]
		if !ok {
			msg = fe.Field() + " is invalid"
		}
		fields = append(fields, msg)
	}
	return apperrors.Validation(summary, fields...)
}
