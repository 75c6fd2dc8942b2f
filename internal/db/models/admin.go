// Package models - admin.go defines the Administrator model together with the only
// sanctioned way to construct one. NewAdministrator validates the username and role and
// bcrypt-hashes the raw secret before returning, so an Administrator value never exists
// with a plaintext secret or an unhashed password column.
package models

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role is an administrator's privilege level.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleModerator  Role = "moderator"
	RoleSuperAdmin Role = "super_admin"
)

// Administrator limits.
const (
	UsernameMinLength = 3
	UsernameMaxLength = 30
	SecretMinLength   = 6
	SecretMaxLength   = 128

	// DefaultBcryptCost matches the cost the service has always used for admin secrets.
	DefaultBcryptCost = 12
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

var (
	ErrInvalidUsername = errors.New("username must be 3-30 characters and contain only letters, numbers, and underscores")
	ErrInvalidSecret   = errors.New("password must be between 6 and 128 characters")
	ErrInvalidRole     = errors.New("role must be either admin, moderator, or super_admin")

	// ErrHashFailed wraps a failure inside bcrypt. It is never caused by caller input.
	ErrHashFailed = errors.New("failed to hash password")
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleSuperAdmin:
		return true
	}
	return false
}

// AllRoles returns every role in ascending privilege order.
func AllRoles() []Role {
	return []Role{RoleModerator, RoleAdmin, RoleSuperAdmin}
}

// Administrator is a user allowed to moderate feedback.
type Administrator struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// NormalizeUsername trims and lowercases a username. Lookups and storage both use
// the normalized form, which is what makes usernames case-insensitive.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// ValidateUsername checks an already-normalized username.
func ValidateUsername(username string) error {
	if len(username) < UsernameMinLength || len(username) > UsernameMaxLength {
		return ErrInvalidUsername
	}
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// ValidateSecret checks raw secret length.
func ValidateSecret(secret string) error {
	if len(secret) < SecretMinLength || len(secret) > SecretMaxLength {
		return ErrInvalidSecret
	}
	return nil
}

// NewAdministrator validates its inputs and returns an Administrator whose secret is
// already hashed. An empty role defaults to RoleAdmin. A cost of 0 uses DefaultBcryptCost.
// ID and timestamps are assigned by the repository on insert.
func NewAdministrator(username, secret string, role Role, cost int) (*Administrator, error) {
	username = NormalizeUsername(username)
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if role == "" {
		role = RoleAdmin
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	a := &Administrator{Username: username, Role: role}
	if err := a.SetSecret(secret, cost); err != nil {
		return nil, err
	}
	return a, nil
}

// SetSecret replaces the stored hash with a fresh bcrypt hash of secret.
func (a *Administrator) SetSecret(secret string, cost int) error {
	if err := ValidateSecret(secret); err != nil {
		return err
	}
	hash, err := HashSecret(secret, cost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

// CheckSecret compares secret against the stored hash in constant time.
func (a *Administrator) CheckSecret(secret string) bool {
	return CompareSecret(a.PasswordHash, secret)
}

// secretDigest maps a secret of any length to 44 bytes so bcrypt's 72-byte input limit
// never truncates or rejects a valid secret.
func secretDigest(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// HashSecret bcrypt-hashes the SHA-256 digest of secret. A cost of 0 uses
// DefaultBcryptCost. It does not check secret length; callers storing the hash on an
// Administrator go through SetSecret.
func HashSecret(secret string, cost int) (string, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword(secretDigest(secret), cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashFailed, err)
	}
	return string(hash), nil
}

// CompareSecret reports whether secret matches a hash produced by HashSecret.
func CompareSecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), secretDigest(secret)) == nil
}
