package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/feedback-system/feedback-system/internal/config"
	"github.com/feedback-system/feedback-system/internal/db/models"
	"github.com/feedback-system/feedback-system/internal/db/repositories"
	"github.com/feedback-system/feedback-system/internal/telemetry"
)

// adminSeeder is the part of the administrator store the seed needs.
type adminSeeder interface {
	GetByUsername(ctx context.Context, username string) (*models.Administrator, error)
	Create(ctx context.Context, admin *models.Administrator) error
}

// ensureAdmin creates the configured administrator unless one with that username
// already exists. It reports whether an account was created. An existing account is
// left untouched, including its secret.
func ensureAdmin(ctx context.Context, store adminSeeder, seed config.SeedConfig, cost int) (bool, error) {
	if seed.AdminUsername == "" {
		return false, errors.New("seed.admin_username is not set")
	}

	existing, err := store.GetByUsername(ctx, models.NormalizeUsername(seed.AdminUsername))
	if err != nil {
		return false, fmt.Errorf("failed to look up admin: %w", err)
	}
	if existing != nil {
		slog.Info("seed admin already exists", "username", existing.Username)
		return false, nil
	}

	role := models.Role(seed.AdminRole)
	if role == "" {
		role = models.RoleSuperAdmin
	}
	admin, err := models.NewAdministrator(seed.AdminUsername, seed.AdminPassword, role, cost)
	if err != nil {
		return false, err
	}

	if err := store.Create(ctx, admin); err != nil {
		// A replica starting at the same moment may have won the race.
		if errors.Is(err, repositories.ErrDuplicateUsername) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create admin: %w", err)
	}

	slog.Info("seed admin created", "admin_id", admin.ID, "username", admin.Username, "role", admin.Role)
	return true, nil
}

func runSeedAdmin(cfg *config.Config) error {
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	dbx, err := connect(cfg)
	if err != nil {
		return err
	}
	defer dbx.Close()

	_, err = ensureAdmin(context.Background(), repositories.NewAdminRepository(dbx.DB), cfg.Seed, cfg.Auth.BcryptCost)
	return err
}
