// Package auth - jwt.go handles session token minting and verification using a shared
// HS256 secret, including lazy secret initialization for development mode.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/feedback-system/feedback-system/internal/db/models"
)

// SecretEnvVar names the environment variable holding the token signing secret.
const SecretEnvVar = "FBS_JWT_SECRET"

// DefaultIssuer is the iss claim stamped into every session token.
const DefaultIssuer = "feedback-system"

// DefaultTokenTTL is how long a session token stays valid.
const DefaultTokenTTL = 24 * time.Hour

var (
	jwtSecret     string
	jwtSecretOnce sync.Once
	jwtSecretErr  error
)

// Token verification failures.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the session token payload.
type Claims struct {
	AdminID  string      `json:"admin_id"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// isDevMode reports whether the process runs in a development environment.
func isDevMode() bool {
	devMode := os.Getenv("DEV_MODE")
	appEnv := os.Getenv("FBS_ENV")
	ginMode := os.Getenv("GIN_MODE")

	return devMode == "true" || devMode == "1" ||
		appEnv == "development" ||
		ginMode == "debug"
}

func generateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("dev-fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// ValidateJWTSecret checks that the signing secret is configured. Outside dev mode a
// missing FBS_JWT_SECRET is fatal; in dev mode a random secret is generated and sessions
// do not survive restarts. Call this at application startup.
func ValidateJWTSecret() error {
	jwtSecretOnce.Do(func() {
		secret := os.Getenv(SecretEnvVar)

		if secret == "" {
			if isDevMode() {
				jwtSecret = generateRandomSecret()
				slog.Warn(SecretEnvVar + " not set, using an auto-generated secret for development; sessions will not persist across restarts")
			} else {
				jwtSecretErr = errors.New("SECURITY ERROR: " + SecretEnvVar + " environment variable is required in production. " +
					"Generate a secure secret with: openssl rand -hex 32")
			}
			return
		}

		if len(secret) < 32 {
			slog.Warn(SecretEnvVar + " is shorter than the recommended 32 characters")
		}

		jwtSecret = secret
	})

	return jwtSecretErr
}

// GetJWTSecret retrieves the validated secret. Panics if validation failed.
func GetJWTSecret() string {
	if err := ValidateJWTSecret(); err != nil {
		panic(err)
	}
	return jwtSecret
}

// TokenIssuer mints and parses session tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer builds an issuer. Empty issuer and zero ttl take the defaults.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// TTL returns the token lifetime.
func (ti *TokenIssuer) TTL() time.Duration { return ti.ttl }

// Issue mints a token bound to admin. The audience is the admin's own ID so a token
// minted for one administrator cannot be replayed with a forged subject.
func (ti *TokenIssuer) Issue(admin *models.Administrator) (string, time.Time, error) {
	now := ti.now()
	expiresAt := now.Add(ti.ttl)

	claims := &Claims{
		AdminID:  admin.ID,
		Username: admin.Username,
		Role:     admin.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    ti.issuer,
			Subject:   admin.ID,
			Audience:  jwt.ClaimStrings{admin.ID},
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies signature, issuer, expiry and audience binding. Expiry failures wrap
// ErrTokenExpired; every other failure wraps ErrTokenInvalid.
func (ti *TokenIssuer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return ti.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ti.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.AdminID == "" || claims.Subject != claims.AdminID {
		return nil, fmt.Errorf("%w: subject does not match admin_id", ErrTokenInvalid)
	}
	if !slices.Contains(claims.Audience, claims.AdminID) {
		return nil, fmt.Errorf("%w: audience does not match admin_id", ErrTokenInvalid)
	}

	return claims, nil
}
