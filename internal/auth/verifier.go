// Package auth - verifier.go implements the credential verifier: administrator login,
// bearer token verification, and administrator registration.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/feedback-system/feedback-system/internal/apperrors"
	"github.com/feedback-system/feedback-system/internal/db/models"
	"github.com/feedback-system/feedback-system/internal/db/repositories"
	"github.com/feedback-system/feedback-system/internal/telemetry"
	"github.com/feedback-system/feedback-system/internal/validation"
)

// Messages returned to callers. Unknown usernames and wrong secrets share one message.
const (
	MsgInvalidCredentials = "Invalid credentials."
	MsgNoToken            = "Access denied. No token provided."
	MsgInvalidToken       = "Invalid token. Access forbidden."
	MsgTokenExpired       = "Token expired. Please log in again."
	MsgAdminNotFound      = "Invalid token. Admin not found."
	MsgDuplicateUsername  = "Admin with this username already exists."
)

// AdminStore is the identity store the verifier reads and writes.
type AdminStore interface {
	GetByID(ctx context.Context, id string) (*models.Administrator, error)
	GetByUsername(ctx context.Context, username string) (*models.Administrator, error)
	Create(ctx context.Context, admin *models.Administrator) error
}

// Session is a freshly minted token and the administrator it was minted for.
type Session struct {
	Token     string
	Admin     *models.Administrator
	ExpiresIn int64 // seconds
}

// Verifier validates credentials and session tokens.
type Verifier struct {
	admins     AdminStore
	tokens     *TokenIssuer
	bcryptCost int
	dummyHash  string
}

// NewVerifier builds a Verifier. bcryptCost is used both for new administrators and for
// the dummy hash compared against when a username is unknown, so both login paths spend
// the same time hashing.
func NewVerifier(admins AdminStore, tokens *TokenIssuer, bcryptCost int) (*Verifier, error) {
	if bcryptCost == 0 {
		bcryptCost = models.DefaultBcryptCost
	}
	dummy, err := models.HashSecret("feedback-system-dummy-secret", bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	return &Verifier{admins: admins, tokens: tokens, bcryptCost: bcryptCost, dummyHash: dummy}, nil
}

// Login checks username and secret and mints a session on success.
func (v *Verifier) Login(ctx context.Context, username, secret string) (*Session, error) {
	req := validation.LoginRequest{Username: username, Password: secret}
	if err := req.Validate(); err != nil {
		telemetry.AuthLoginAttemptsTotal.WithLabelValues("validation_error").Inc()
		return nil, err
	}

	admin, err := v.admins.GetByUsername(ctx, req.Username)
	if err != nil {
		telemetry.AuthLoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.Internal("Internal server error during login.", err)
	}

	if admin == nil {
		_ = models.CompareSecret(v.dummyHash, req.Password)
		telemetry.AuthLoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, apperrors.New(apperrors.KindInvalidCredentials, MsgInvalidCredentials)
	}
	if !admin.CheckSecret(req.Password) {
		telemetry.AuthLoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, apperrors.New(apperrors.KindInvalidCredentials, MsgInvalidCredentials)
	}

	session, err := v.mint(admin)
	if err != nil {
		telemetry.AuthLoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	telemetry.AuthLoginAttemptsTotal.WithLabelValues("success").Inc()
	slog.InfoContext(ctx, "admin logged in", "admin_id", admin.ID, "username", admin.Username)
	return session, nil
}

// Verify resolves a raw bearer token to the administrator it was minted for. The
// administrator is re-read from the store so a deleted account stops working at once.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*models.Administrator, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, apperrors.New(apperrors.KindUnauthenticated, MsgNoToken)
	}

	claims, err := v.tokens.Parse(rawToken)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, apperrors.New(apperrors.KindTokenExpired, MsgTokenExpired)
		}
		slog.DebugContext(ctx, "token rejected", "error", err)
		return nil, apperrors.New(apperrors.KindInvalidToken, MsgInvalidToken)
	}

	admin, err := v.admins.GetByID(ctx, claims.AdminID)
	if err != nil {
		return nil, apperrors.Internal("Internal server error during authentication.", err)
	}
	if admin == nil {
		return nil, apperrors.New(apperrors.KindAdminNotFound, MsgAdminNotFound)
	}
	return admin, nil
}

// Register creates a new administrator and mints a session for it.
func (v *Verifier) Register(ctx context.Context, username, secret string, role models.Role) (*Session, error) {
	req := validation.RegisterRequest{Username: username, Password: secret, Role: string(role)}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	admin, err := models.NewAdministrator(req.Username, req.Password, models.Role(req.Role), v.bcryptCost)
	if err != nil {
		if errors.Is(err, models.ErrHashFailed) {
			return nil, apperrors.Internal("Internal server error during registration.", err)
		}
		return nil, apperrors.Validation(err.Error())
	}

	if err := v.admins.Create(ctx, admin); err != nil {
		if errors.Is(err, repositories.ErrDuplicateUsername) {
			return nil, apperrors.Conflict(MsgDuplicateUsername)
		}
		return nil, apperrors.Internal("Internal server error during registration.", err)
	}

	slog.InfoContext(ctx, "admin registered", "admin_id", admin.ID, "username", admin.Username, "role", admin.Role)
	return v.mint(admin)
}

func (v *Verifier) mint(admin *models.Administrator) (*Session, error) {
	token, _, err := v.tokens.Issue(admin)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue session token.", err)
	}
	return &Session{Token: token, Admin: admin, ExpiresIn: int64(v.tokens.TTL().Seconds())}, nil
}
