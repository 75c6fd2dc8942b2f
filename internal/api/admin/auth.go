// Package admin implements the authenticated administrator API: sessions, moderation,
// dashboard statistics, the audit trail and CSV export.
package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feedback-system/feedback-system/internal/audit"
	"github.com/feedback-system/feedback-system/internal/auth"
	"github.com/feedback-system/feedback-system/internal/db/models"
	"github.com/feedback-system/feedback-system/internal/middleware"
	"github.com/feedback-system/feedback-system/internal/validation"
)

// Auditor records actions in the background. *audit.Recorder satisfies it.
type Auditor interface {
	RecordAsync(e audit.Entry)
}

// AuthHandler handles administrator sessions
type AuthHandler struct {
	verifier *auth.Verifier
	audit    Auditor
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(verifier *auth.Verifier, auditor Auditor) *AuthHandler {
	return &AuthHandler{verifier: verifier, audit: auditor}
}

// AdminView is the public part of an administrator.
type AdminView struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
	CreatedAt *time.Time  `json:"createdAt,omitempty"`
}

// SessionResponse is returned by login and register.
type SessionResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresIn int64     `json:"expiresIn"`
	Admin     AdminView `json:"admin"`
}

func viewOf(a *models.Administrator, withCreated bool) AdminView {
	v := AdminView{ID: a.ID, Username: a.Username, Role: a.Role}
	if withCreated {
		created := a.CreatedAt
		v.CreatedAt = &created
	}
	return v
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req validation.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, validation.BindError(err))
		return
	}

	session, err := h.verifier.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	h.audit.RecordAsync(audit.Entry{
		Action:     models.ActionLogin,
		EntityType: models.EntityAdmin,
		EntityID:   session.Admin.ID,
		Actor: audit.Actor{
			AdminID:   session.Admin.ID,
			Username:  session.Admin.Username,
			Role:      session.Admin.Role,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		},
	})

	c.JSON(http.StatusOK, SessionResponse{
		Success:   true,
		Message:   "Login successful.",
		Token:     session.Token,
		ExpiresIn: session.ExpiresIn,
		Admin:     viewOf(session.Admin, true),
	})
}

// Register handles POST /api/auth/register. The route is limited to super admins.
func (h *AuthHandler) Register(c *gin.Context) {
	var req validation.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, validation.BindError(err))
		return
	}
	role := models.Role(req.Role)
	if role == "" {
		role = models.RoleAdmin
	}

	session, err := h.verifier.Register(c.Request.Context(), req.Username, req.Password, role)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	h.audit.RecordAsync(audit.Entry{
		Action:     models.ActionCreate,
		EntityType: models.EntityAdmin,
		EntityID:   session.Admin.ID,
		Actor:      middleware.ActorFrom(c),
		Details: map[string]interface{}{
			"username": session.Admin.Username,
			"role":     string(session.Admin.Role),
		},
	})

	c.JSON(http.StatusCreated, SessionResponse{
		Success:   true,
		Message:   "Admin registered successfully.",
		Token:     session.Token,
		ExpiresIn: session.ExpiresIn,
		Admin:     viewOf(session.Admin, true),
	})
}

// Verify handles GET /api/auth/verify. AuthMiddleware has already checked the token.
func (h *AuthHandler) Verify(c *gin.Context) {
	admin, _ := middleware.CurrentAdmin(c)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Token is valid.",
		"admin":   viewOf(admin, false),
	})
}

// Logout handles POST /api/auth/logout. Tokens are stateless, so this only records
// the event; the client discards its token.
func (h *AuthHandler) Logout(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	h.audit.RecordAsync(audit.Entry{
		Action:     models.ActionLogout,
		EntityType: models.EntityAdmin,
		EntityID:   actor.AdminID,
		Actor:      actor,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logged out successfully.",
	})
}
