package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/feedback-system/feedback-system/internal/apperrors"
	"github.com/feedback-system/feedback-system/internal/audit"
)

// RespondError writes the error response for err. Internal errors are logged with the
// request id and their cause; callers only see a generic message.
func RespondError(c *gin.Context, err error) {
	if apperrors.KindOf(err) == apperrors.KindInternal {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", GetRequestID(c),
			"error", err,
		)
	}
	status, body := apperrors.ResponseFor(err)
	c.JSON(status, body)
}

// ActorFrom builds the audit actor for the authenticated administrator. It returns the
// zero Actor when the request is unauthenticated.
func ActorFrom(c *gin.Context) audit.Actor {
	admin, ok := CurrentAdmin(c)
	if !ok {
		return audit.Actor{}
	}
	return audit.Actor{
		AdminID:   admin.ID,
		Username:  admin.Username,
		Role:      admin.Role,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
