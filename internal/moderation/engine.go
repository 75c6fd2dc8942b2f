// Package moderation owns the feedback lifecycle: public submission, status
// transitions, deletion and the read paths the dashboard uses.
//
// Every state change is a single UPDATE ... RETURNING or DELETE ... RETURNING statement,
// so concurrent moderators never read-modify-write. Audit records and notifications run
// after the change commits and never fail the operation.
package moderation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/feedback-system/feedback-system/internal/apperrors"
	"github.com/feedback-system/feedback-system/internal/audit"
	"github.com/feedback-system/feedback-system/internal/db/models"
	"github.com/feedback-system/feedback-system/internal/db/repositories"
	"github.com/feedback-system/feedback-system/internal/notify"
	"github.com/feedback-system/feedback-system/internal/telemetry"
	"github.com/feedback-system/feedback-system/internal/validation"
)

// List paging.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

const (
	msgInvalidStatus = "Invalid status. Valid statuses are: pending, approved, rejected."
	msgInvalidID     = "Invalid feedback ID format."
	msgNotFound      = "Feedback not found."
)

// Actor is the administrator performing a moderation action.
type Actor = audit.Actor

// Store is the persistence the engine needs. *repositories.FeedbackRepository satisfies it.
type Store interface {
	Create(ctx context.Context, f *models.Feedback) error
	GetByID(ctx context.Context, id string) (*models.Feedback, error)
	List(ctx context.Context, filter models.FeedbackFilter, limit, offset int) ([]*models.Feedback, int, error)
	UpdateStatus(ctx context.Context, id string, status models.FeedbackStatus) (*repositories.StatusChange, error)
	Delete(ctx context.Context, id string) (*models.Feedback, error)
}

// Auditor records moderation actions in the background. *audit.Recorder satisfies it.
type Auditor interface {
	RecordAsync(e audit.Entry)
}

// Notifications queues outbound email. *notify.Dispatcher satisfies it.
type Notifications interface {
	Dispatch(kind notify.Kind, f *models.Feedback)
}

// Pagination describes a page of feedback.
type Pagination struct {
	CurrentPage   int  `json:"currentPage"`
	TotalPages    int  `json:"totalPages"`
	TotalFeedback int  `json:"totalFeedback"`
	HasNextPage   bool `json:"hasNextPage"`
	HasPrevPage   bool `json:"hasPrevPage"`
}

// Engine applies moderation operations.
type Engine struct {
	store  Store
	audit  Auditor
	notify Notifications
}

// NewEngine builds an Engine. notifications may be nil.
func NewEngine(store Store, auditor Auditor, notifications Notifications) *Engine {
	return &Engine{store: store, audit: auditor, notify: notifications}
}

// Submit validates and stores a public submission. The new item is always pending.
func (e *Engine) Submit(ctx context.Context, req *validation.SubmitFeedbackRequest) (*models.Feedback, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	f := req.Feedback()
	if err := e.store.Create(ctx, f); err != nil {
		return nil, apperrors.Internal("Failed to submit feedback.", err)
	}
	telemetry.FeedbackSubmissionsTotal.WithLabelValues(string(f.Category)).Inc()

	e.dispatch(notify.KindNewFeedback, f)
	return f, nil
}

// Get returns one item.
func (e *Engine) Get(ctx context.Context, id string) (*models.Feedback, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	f, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve feedback.", err)
	}
	if f == nil {
		return nil, apperrors.NotFound(msgNotFound)
	}
	return f, nil
}

// List returns one page of feedback, newest first. page < 1 and limit < 1 take the
// defaults; limit is capped at MaxLimit.
func (e *Engine) List(ctx context.Context, filter models.FeedbackFilter, page, limit int) ([]*models.Feedback, Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, Pagination{}, apperrors.Validation(msgInvalidStatus)
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, Pagination{}, apperrors.Validation("Invalid category.")
	}
	filter.Search = strings.TrimSpace(filter.Search)

	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	items, total, err := e.store.List(ctx, filter, limit, (page-1)*limit)
	if err != nil {
		return nil, Pagination{}, apperrors.Internal("Failed to retrieve feedback.", err)
	}

	totalPages := (total + limit - 1) / limit
	return items, Pagination{
		CurrentPage:   page,
		TotalPages:    totalPages,
		TotalFeedback: total,
		HasNextPage:   page < totalPages,
		HasPrevPage:   page > 1,
	}, nil
}

// SetStatus moves an item to status. Any state may move to any state, including its
// current one; repeating a transition is harmless and is audited again.
//
// The status is checked before the id and neither check touches storage.
func (e *Engine) SetStatus(ctx context.Context, id string, status models.FeedbackStatus, actor Actor) (*models.Feedback, error) {
	if !status.Valid() {
		return nil, apperrors.Validation(msgInvalidStatus)
	}
	if err := validateID(id); err != nil {
		return nil, err
	}

	change, err := e.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, apperrors.Internal("Failed to update feedback status.", err)
	}
	if change == nil {
		return nil, apperrors.NotFound(msgNotFound)
	}
	telemetry.FeedbackStatusTransitionsTotal.WithLabelValues(string(status)).Inc()

	item := change.Feedback
	slog.Info("feedback status changed",
		"feedback_id", item.ID,
		"from", change.PreviousStatus,
		"to", status,
		"admin", actor.Username,
	)

	e.record(audit.Entry{
		Action:     actionFor(status),
		EntityType: models.EntityFeedback,
		EntityID:   item.ID,
		Actor:      actor,
		Details: map[string]interface{}{
			"status":           string(status),
			"previousStatus":   string(change.PreviousStatus),
			"feedbackCategory": string(item.Category),
		},
	})

	switch status {
	case models.StatusApproved:
		e.dispatch(notify.KindApproved, &item)
	case models.StatusRejected:
		e.dispatch(notify.KindRejected, &item)
	}

	return &item, nil
}

// Approve is SetStatus(approved).
func (e *Engine) Approve(ctx context.Context, id string, actor Actor) (*models.Feedback, error) {
	return e.SetStatus(ctx, id, models.StatusApproved, actor)
}

// Reject is SetStatus(rejected).
func (e *Engine) Reject(ctx context.Context, id string, actor Actor) (*models.Feedback, error) {
	return e.SetStatus(ctx, id, models.StatusRejected, actor)
}

// Delete removes an item permanently. No notification is sent.
func (e *Engine) Delete(ctx context.Context, id string, actor Actor) error {
	if err := validateID(id); err != nil {
		return err
	}

	deleted, err := e.store.Delete(ctx, id)
	if err != nil {
		return apperrors.Internal("Failed to delete feedback.", err)
	}
	if deleted == nil {
		return apperrors.NotFound(msgNotFound)
	}
	telemetry.FeedbackDeletionsTotal.Inc()
	slog.Info("feedback deleted", "feedback_id", deleted.ID, "admin", actor.Username)

	e.record(audit.Entry{
		Action:     models.ActionDelete,
		EntityType: models.EntityFeedback,
		EntityID:   deleted.ID,
		Actor:      actor,
		Details: map[string]interface{}{
			"deletedName":     deleted.Name,
			"deletedCategory": string(deleted.Category),
			"deletedStatus":   string(deleted.Status),
		},
	})
	return nil
}

func (e *Engine) record(entry audit.Entry) {
	if e.audit == nil {
		return
	}
	e.audit.RecordAsync(entry)
}

func (e *Engine) dispatch(kind notify.Kind, f *models.Feedback) {
	if e.notify == nil {
		return
	}
	e.notify.Dispatch(kind, f)
}

func actionFor(status models.FeedbackStatus) models.AuditAction {
	switch status {
	case models.StatusApproved:
		return models.ActionApprove
	case models.StatusRejected:
		return models.ActionReject
	default:
		return models.ActionUpdate
	}
}

// validateID accepts only canonical hyphenated UUIDs.
func validateID(id string) error {
	if len(id) != 36 {
		return apperrors.Validation(msgInvalidID)
	}
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.Validation(msgInvalidID)
	}
	return nil
}
