// Package export renders feedback as CSV for download and optionally archives every
// export to object storage.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/feedback-system/feedback-system/internal/apperrors"
	"github.com/feedback-system/feedback-system/internal/audit"
	"github.com/feedback-system/feedback-system/internal/db/models"
)

// MsgNoData is returned when a filter matches nothing.
const MsgNoData = "No data to export"

// SubmittedDateLayout formats the Submitted Date column. Times are written in UTC.
const SubmittedDateLayout = "2006-01-02 15:04:05"

// Header is the CSV column row.
var Header = []string{"ID", "Name", "Email", "Category", "Rating", "Message", "Status", "Submitted Date"}

// Store reads the rows to export. *repositories.FeedbackRepository satisfies it.
type Store interface {
	ListForExport(ctx context.Context, filter models.FeedbackFilter) ([]*models.Feedback, error)
}

// Auditor records the export. *audit.Recorder satisfies it.
type Auditor interface {
	RecordAsync(e audit.Entry)
}

// Query is the raw export filter as it arrives on the query string.
type Query struct {
	Status    string `form:"status"`
	Category  string `form:"category"`
	StartDate string `form:"startDate"`
	EndDate   string `form:"endDate"`
}

// Filter validates q and converts it to a repository filter. Dates are RFC 3339
// timestamps or plain 2006-01-02 dates; a plain end date covers the whole day.
func (q Query) Filter() (models.FeedbackFilter, error) {
	var f models.FeedbackFilter

	if s := strings.TrimSpace(q.Status); s != "" {
		f.Status = models.FeedbackStatus(s)
		if !f.Status.Valid() {
			return f, apperrors.Validation("Invalid status. Valid statuses are: pending, approved, rejected.")
		}
	}
	if c := strings.TrimSpace(q.Category); c != "" {
		f.Category = models.Category(c)
		if !f.Category.Valid() {
			return f, apperrors.Validation("Invalid category.")
		}
	}
	if q.StartDate != "" {
		t, _, err := parseDate(q.StartDate)
		if err != nil {
			return f, apperrors.Validation("Invalid startDate.")
		}
		f.StartDate = &t
	}
	if q.EndDate != "" {
		t, dateOnly, err := parseDate(q.EndDate)
		if err != nil {
			return f, apperrors.Validation("Invalid endDate.")
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.EndDate = &t
	}
	if f.StartDate != nil && f.EndDate != nil && f.StartDate.After(*f.EndDate) {
		return f, apperrors.Validation("startDate must not be after endDate.")
	}
	return f, nil
}

// details is the filter as recorded in the audit trail; unset filters are omitted.
func (q Query) details() map[string]interface{} {
	d := make(map[string]interface{})
	for k, v := range map[string]string{
		"status": q.Status, "category": q.Category, "startDate": q.StartDate, "endDate": q.EndDate,
	} {
		if v != "" {
			d[k] = v
		}
	}
	return d
}

func parseDate(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse("2006-01-02", s)
	return t, true, err
}

// Result is a rendered export.
type Result struct {
	Filename string
	Count    int
	Data     []byte
}

// Service builds exports.
type Service struct {
	store    Store
	audit    Auditor
	archiver *Archiver
	now      func() time.Time
}

// NewService builds a Service. archiver may be nil to disable archiving.
func NewService(store Store, auditor Auditor, archiver *Archiver) *Service {
	return &Service{store: store, audit: auditor, archiver: archiver, now: time.Now}
}

// Export renders every item matching q, newest first. An empty match is a NotFound
// error and records nothing.
func (s *Service) Export(ctx context.Context, q Query, actor audit.Actor) (*Result, error) {
	filter, err := q.Filter()
	if err != nil {
		return nil, err
	}

	items, err := s.store.ListForExport(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal("Failed to export feedback.", err)
	}
	if len(items) == 0 {
		return nil, apperrors.NotFound(MsgNoData)
	}

	data, err := Render(items)
	if err != nil {
		return nil, apperrors.Internal("Failed to export feedback.", err)
	}

	now := s.now()
	res := &Result{
		Filename: fmt.Sprintf("feedback_export_%d.csv", now.UnixMilli()),
		Count:    len(items),
		Data:     data,
	}

	slog.InfoContext(ctx, "feedback exported", "admin_id", actor.AdminID, "count", res.Count)

	if s.audit != nil {
		s.audit.RecordAsync(audit.Entry{
			Action:     models.ActionExport,
			EntityType: models.EntityFeedback,
			Actor:      actor,
			Details: map[string]interface{}{
				"exportCount": res.Count,
				"filters":     q.details(),
			},
		})
	}
	if s.archiver != nil {
		s.archiver.Archive(res.Filename, res.Data, now)
	}
	return res, nil
}

// Render writes items as CSV with a header row.
func Render(items []*models.Feedback) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, err
	}
	for _, f := range items {
		category := string(f.Category)
		if category == "" {
			category = string(models.CategoryUnknown)
		}
		if err := w.Write([]string{
			f.ID,
			f.Name,
			f.Email,
			category,
			strconv.Itoa(f.Rating),
			f.Message,
			string(f.Status),
			f.CreatedAt.UTC().Format(SubmittedDateLayout),
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
