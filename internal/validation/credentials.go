package validation

import (
	"github.com/feedback-system/feedback-system/internal/apperrors"
	"github.com/feedback-system/feedback-system/internal/db/models"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate normalizes the username and checks both lengths. The messages mirror the
// login form's wording; they say nothing about whether the account exists.
func (r *LoginRequest) Validate() error {
	if r.Username == "" || r.Password == "" {
		return apperrors.Validation("Username and password are required.")
	}
	r.Username = models.NormalizeUsername(r.Username)
	if len(r.Username) < models.UsernameMinLength || len(r.Username) > models.UsernameMaxLength {
		return apperrors.Validation("Username must be between 3 and 30 characters.")
	}
	if models.ValidateSecret(r.Password) != nil {
		return apperrors.Validation("Password must be between 6 and 128 characters.")
	}
	return nil
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30,username"`
	Password string `json:"password" validate:"required,min=6,max=128"`
	Role     string `json:"role" validate:"role"`
}

// Validate normalizes the username and checks the form.
func (r *RegisterRequest) Validate() error {
	if r.Username == "" || r.Password == "" {
		return apperrors.Validation("Username and password are required.")
	}
	r.Username = models.NormalizeUsername(r.Username)
	if len(r.Username) < models.UsernameMinLength || len(r.Username) > models.UsernameMaxLength {
		return apperrors.Validation("Username must be between 3 and 30 characters.")
	}
	if models.ValidateSecret(r.Password) != nil {
		return apperrors.Validation("Password must be between 6 and 128 characters.")
	}
	return Struct(r, "Validation error.")
}
