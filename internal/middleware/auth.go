// Package middleware provides Gin HTTP middleware for authentication, role checks,
// rate limiting, security headers, request ids and metrics.
//
// Middleware ordering is enforced in router.go:
//
//	RequestID → Metrics → Logger → Security → RateLimit → Auth → RequireRole → Handler
//
// Rate limiting runs before auth so brute-force attempts are rejected before any
// database work. RequireRole reads the administrator Auth stored on the context.
package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/feedback-system/feedback-system/internal/apperrors"
	"github.com/feedback-system/feedback-system/internal/db/models"
)

// AdminKey is the gin.Context key holding the verified *models.Administrator.
const AdminKey = "admin"

// TokenVerifier resolves a bearer token to an administrator. *auth.Verifier satisfies it.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*models.Administrator, error)
}

// AuthMiddleware requires a valid bearer token. The token is the second
// space-separated field of the Authorization header; a missing header or token is 401,
// a bad or expired token 403, and a token whose administrator no longer exists 401.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, err := verifier.Verify(c.Request.Context(), bearerToken(c.GetHeader("Authorization")))
		if err != nil {
			Abort(c, err)
			return
		}

		c.Set(AdminKey, admin)
		c.Next()
	}
}

// CurrentAdmin returns the administrator set by AuthMiddleware.
func CurrentAdmin(c *gin.Context) (*models.Administrator, bool) {
	v, ok := c.Get(AdminKey)
	if !ok {
		return nil, false
	}
	admin, ok := v.(*models.Administrator)
	return admin, ok && admin != nil
}

// Abort ends the request with the error response for err.
func Abort(c *gin.Context, err error) {
	status, body := apperrors.ResponseFor(err)
	c.AbortWithStatusJSON(status, body)
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header. Any
// other scheme yields no token.
func bearerToken(header string) string {
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return ""
	}
	return fields[1]
}
