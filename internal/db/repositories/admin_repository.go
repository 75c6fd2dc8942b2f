// Package repositories implements the data access layer for the feedback service.
// Each repository type encapsulates all database queries for one table; handlers and
// services never issue SQL directly. Lookups that match nothing return (nil, nil).
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/feedback-system/feedback-system/internal/db/models"
)

// ErrDuplicateUsername is returned by AdminRepository.Create when the username is taken.
var ErrDuplicateUsername = errors.New("admin with this username already exists")

const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// AdminRepository handles administrator database operations
type AdminRepository struct {
	db *sql.DB
}

// NewAdminRepository creates a new AdminRepository
func NewAdminRepository(db *sql.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// Create inserts an administrator built by models.NewAdministrator. It assigns the ID
// and timestamps.
func (r *AdminRepository) Create(ctx context.Context, admin *models.Administrator) error {
	admin.ID = uuid.New().String()
	admin.CreatedAt = time.Now().UTC()
	admin.UpdatedAt = admin.CreatedAt

	query := `
		INSERT INTO admins (id, username, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		admin.ID,
		admin.Username,
		admin.PasswordHash,
		admin.Role,
		admin.CreatedAt,
		admin.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateUsername
	}
	return err
}

// GetByID retrieves an administrator by ID
func (r *AdminRepository) GetByID(ctx context.Context, id string) (*models.Administrator, error) {
	query := `
		SELECT id, username, password_hash, role, created_at, updated_at
		FROM admins
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByUsername retrieves an administrator by normalized username
func (r *AdminRepository) GetByUsername(ctx context.Context, username string) (*models.Administrator, error) {
	query := `
		SELECT id, username, password_hash, role, created_at, updated_at
		FROM admins
		WHERE username = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, models.NormalizeUsername(username)))
}

// UpdatePasswordHash stores a new hash produced by Administrator.SetSecret.
func (r *AdminRepository) UpdatePasswordHash(ctx context.Context, admin *models.Administrator) error {
	admin.UpdatedAt = time.Now().UTC()
	query := `UPDATE admins SET password_hash = $2, updated_at = $3 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, admin.ID, admin.PasswordHash, admin.UpdatedAt)
	return err
}

func (r *AdminRepository) scanOne(row *sql.Row) (*models.Administrator, error) {
	admin := &models.Administrator{}
	err := row.Scan(
		&admin.ID,
		&admin.Username,
		&admin.PasswordHash,
		&admin.Role,
		&admin.CreatedAt,
		&admin.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return admin, nil
}
