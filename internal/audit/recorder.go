package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/feedback-system/feedback-system/internal/apperrors"
	"github.com/feedback-system/feedback-system/internal/db/models"
	"github.com/feedback-system/feedback-system/internal/db/repositories"
	"github.com/feedback-system/feedback-system/internal/telemetry"
)

// List paging bounds.
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// recordTimeout bounds a background audit write.
const recordTimeout = 5 * time.Second

// Store is the append-only audit table.
type Store interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
	ListAuditLogs(ctx context.Context, filters repositories.AuditFilters, limit, offset int) ([]*models.AuditLog, int, error)
}

// Executor runs background work. *safego.Pool satisfies it.
type Executor interface {
	SubmitOrRun(name string, fn func())
}

// Actor identifies the administrator performing an action, built per request.
type Actor struct {
	AdminID   string
	Username  string
	Role      models.Role
	IPAddress string
	UserAgent string
}

// Entry is one action to record.
type Entry struct {
	Action     models.AuditAction
	EntityType models.EntityType
	EntityID   string // empty for bulk actions such as export
	Actor      Actor
	Details    map[string]interface{}
}

// Filter narrows List.
type Filter struct {
	Action  models.AuditAction
	AdminID string
}

// Pagination describes a page of audit records.
type Pagination struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	Total       int `json:"total"`
}

// Recorder appends audit records and mirrors them to shippers.
type Recorder struct {
	store   Store
	shipper Shipper
	exec    Executor
}

// NewRecorder builds a Recorder. shipper and exec may be nil; without an executor
// RecordAsync writes synchronously.
func NewRecorder(store Store, shipper Shipper, exec Executor) *Recorder {
	return &Recorder{store: store, shipper: shipper, exec: exec}
}

// Record validates e and appends it. The database write is authoritative; a shipping
// failure is logged and does not fail the call.
func (r *Recorder) Record(ctx context.Context, e Entry) (*models.AuditLog, error) {
	if !e.Action.Valid() {
		return nil, apperrors.Validation("Invalid audit action: " + string(e.Action))
	}
	if !e.EntityType.Valid() {
		return nil, apperrors.Validation("Invalid audit entity type: " + string(e.EntityType))
	}
	if e.Actor.AdminID == "" {
		return nil, apperrors.Validation("Audit records require an acting administrator")
	}

	rec := &models.AuditLog{
		Action:        e.Action,
		EntityType:    e.EntityType,
		EntityID:      optional(e.EntityID),
		AdminID:       e.Actor.AdminID,
		AdminUsername: e.Actor.Username,
		Details:       e.Details,
		IPAddress:     optional(e.Actor.IPAddress),
		UserAgent:     optional(e.Actor.UserAgent),
	}

	if err := r.store.CreateAuditLog(ctx, rec); err != nil {
		telemetry.AuditWritesTotal.WithLabelValues("failure").Inc()
		return nil, apperrors.Internal("Failed to write audit record", err)
	}
	telemetry.AuditWritesTotal.WithLabelValues("success").Inc()

	if r.shipper != nil {
		if err := r.shipper.Ship(ctx, rec); err != nil {
			slog.WarnContext(ctx, "audit record stored but not shipped", "audit_id", rec.ID, "error", err)
		}
	}
	return rec, nil
}

// RecordAsync records e off the request path with its own timeout. Failures are logged
// and counted, never returned. When the executor is saturated the write runs inline.
func (r *Recorder) RecordAsync(e Entry) {
	task := func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if _, err := r.Record(ctx, e); err != nil {
			slog.Error("audit write failed",
				"action", e.Action,
				"entity_type", e.EntityType,
				"entity_id", e.EntityID,
				"admin_id", e.Actor.AdminID,
				"error", err,
			)
		}
	}
	if r.exec == nil {
		task()
		return
	}
	r.exec.SubmitOrRun("audit:"+string(e.Action), task)
}

// List returns one page of records, newest first. page < 1 and limit < 1 take the
// defaults; limit is capped at MaxLimit.
func (r *Recorder) List(ctx context.Context, f Filter, page, limit int) ([]*models.AuditLog, Pagination, error) {
	page, limit = normalizePage(page, limit)

	var filters repositories.AuditFilters
	if f.Action != "" {
		if !f.Action.Valid() {
			return nil, Pagination{}, apperrors.Validation("Invalid audit action filter: " + string(f.Action))
		}
		a := string(f.Action)
		filters.Action = &a
	}
	if f.AdminID != "" {
		id, err := uuid.Parse(f.AdminID)
		if err != nil {
			return nil, Pagination{}, apperrors.Validation("Invalid adminId filter.")
		}
		s := id.String()
		filters.AdminID = &s
	}

	logs, total, err := r.store.ListAuditLogs(ctx, filters, limit, (page-1)*limit)
	if err != nil {
		return nil, Pagination{}, apperrors.Internal("Failed to retrieve audit logs.", err)
	}

	return logs, Pagination{
		CurrentPage: page,
		TotalPages:  (total + limit - 1) / limit,
		Total:       total,
	}, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
