// Package middleware (rbac.go) gates routes on administrator role. Roles are read from
// the administrator loaded for this request, not from token claims, so a role change
// applies on the next request.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/feedback-system/feedback-system/internal/apperrors"
	"github.com/feedback-system/feedback-system/internal/auth"
	"github.com/feedback-system/feedback-system/internal/db/models"
)

// MsgInsufficientRole is returned when an authenticated administrator lacks a role.
const MsgInsufficientRole = "Access denied. Insufficient permissions."

// RequireRole allows administrators whose role ranks at least role.
func RequireRole(role models.Role) gin.HandlerFunc {
	return RequireAnyRole(role)
}

// RequireAnyRole allows administrators satisfying at least one of roles.
func RequireAnyRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := CurrentAdmin(c)
		if !ok {
			Abort(c, apperrors.New(apperrors.KindUnauthenticated, auth.MsgNoToken))
			return
		}
		if !auth.HasAnyRole(admin.Role, roles...) {
			Abort(c, apperrors.Forbidden(MsgInsufficientRole))
			return
		}
		c.Next()
	}
}
