package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/feedback-system/feedback-system/internal/db/models"
)

const feedbackID = "6f1c2b8e-3c1d-4e7a-9b0a-2d5e8f9a1b2c"

var feedbackCols = []string{"id", "name", "email", "category", "rating", "message", "status", "created_at", "updated_at"}

func sampleFeedbackRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(feedbackCols).
		AddRow(feedbackID, "Jane Doe", "jane@example.com", "Support", 5, "Great support experience overall.", "pending", now, now)
}

func newFeedbackRepo(t *testing.T) (*FeedbackRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewFeedbackRepository(sqlx.NewDb(db, "sqlmock")), mock
}

// ---------------------------------------------------------------------------
// Create / GetByID
// ---------------------------------------------------------------------------

func TestFeedbackCreate_ForcesPending(t *testing.T) {
	repo, mock := newFeedbackRepo(t)
	mock.ExpectExec("INSERT INTO feedback").
		WithArgs(sqlmock.AnyArg(), "Jane Doe", "jane@example.com", models.CategorySupport, 5,
			"Great support experience overall.", models.StatusPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	f := &models.Feedback{
		Name: "Jane Doe", Email: "jane@example.com", Category: models.CategorySupport,
		Rating: 5, Message: "Great support experience overall.", Status: models.StatusApproved,
	}
	if err := repo.Create(context.Background(), f); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if f.Status != models.StatusPending {
		t.Errorf("Status = %s, want pending", f.Status)
	}
	if f.ID == "" {
		t.Error("Create did not assign an ID")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestFeedbackGetByID(t *testing.T) {
	repo, mock := newFeedbackRepo(t)
	mock.ExpectQuery("SELECT .* FROM feedback WHERE id").
		WithArgs(feedbackID).
		WillReturnRows(sampleFeedbackRows())

	f, err := repo.GetByID(context.Background(), feedbackID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if f == nil || f.Name != "Jane Doe" || f.Category != models.CategorySupport {
		t.Errorf("GetByID = %+v", f)
	}
}

func TestFeedbackGetByID_NotFound(t *testing.T) {
	repo, mock := newFeedbackRepo(t)
	mock.ExpectQuery("SELECT .* FROM feedback WHERE id").
		WithArgs(feedbackID).
		WillReturnRows(sqlmock.NewRows(feedbackCols))

	f, err := repo.GetByID(context.Background(), feedbackID)
	if err != nil || f != nil {
		t.Errorf("GetByID = %v, %v; want nil, nil", f, err)
	}
}

// ---------------------------------------------------------------------------
// List / ListForExport
// ---------------------------------------------------------------------------

func TestFeedbackList_Filters(t *testing.T) {
	repo, mock := newFeedbackRepo(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM feedback WHERE status = \$1 AND category = \$2 AND \(name ILIKE \$3`).
		WithArgs(models.StatusPending, models.CategorySupport, `%50\%%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))
	mock.ExpectQuery(`ORDER BY created_at DESC LIMIT \$4 OFFSET \$5`).
		WithArgs(models.StatusPending, models.CategorySupport, `%50\%%`, 10, 10).
		WillReturnRows(sampleFeedbackRows())

	items, total, err := repo.List(context.Background(), models.FeedbackFilter{
		Status: models.StatusPending, Category: models.CategorySupport, Search: "50%",
	}, 10, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 11 {
		t.Errorf("total = %d, want 11", total)
	}
	if len(items) != 1 {
		t.Errorf("len(items) = %d, want 1", len(items))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestFeedbackList_NoFilters(t *testing.T) {
	repo, mock := newFeedbackRepo(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM feedback$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`LIMIT \$1 OFFSET \$2`).
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows(feedbackCols))

	items, total, err := repo.List(context.Background(), models.FeedbackFilter{}, 20, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Errorf("List = %d items, total %d", len(items), total)
	}
	if items == nil {
		t.Error("List must return an empty slice, not nil")
	}
}

func TestFeedbackListForExport_DateRange(t *testing.T) {
	repo, mock := newFeedbackRepo(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)
	mock.ExpectQuery(`WHERE created_at >= \$1 AND created_at <= \$2 ORDER BY created_at DESC`).
		WithArgs(start, end).
		WillReturnRows(sampleFeedbackRows())

	items, err := repo.ListForExport(context.Background(), models.FeedbackFilter{StartDate: &start, EndDate: &end})
	if err != nil {
		t.Fatalf("ListForExport: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("len(items) = %d, want 1", len(items))
	}
}

// ---------------------------------------------------------------------------
// UpdateStatus / Delete
// ---------------------------------------------------------------------------

func TestFeedbackUpdateStatus_ReturnsPrevious(t *testing.T) {
	repo, mock := newFeedbackRepo(t)
	now := time.Now()
	rows := sqlmock.NewRows(append(append([]string{}, feedbackCols...), "previous_status")).
		AddRow(feedbackID, "Jane Doe", "jane@example.com", "Support", 5, "Great support experience overall.", "approved", now, now, "pending")
	mock.ExpectQuery(`UPDATE feedback AS f.*RETURNING`).
		WithArgs(feedbackID, models.StatusApproved, sqlmock.AnyArg()).
		WillReturnRows(rows)

	change, err := repo.UpdateStatus(context.Background(), feedbackID, models.StatusApproved)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if change == nil {
		t.Fatal("expected a change, got nil")
	}
	if change.Status != models.StatusApproved || change.PreviousStatus != models.StatusPending {
		t.Errorf("change = %s -> %s", change.PreviousStatus, change.Status)
	}
}

func TestFeedbackUpdateStatus_NoRow(t *testing.T) {
	repo, mock := newFeedbackRepo(t)
	mock.ExpectQuery(`UPDATE feedback AS f`).
		WillReturnRows(sqlmock.NewRows(append(append([]string{}, feedbackCols...), "previous_status")))

	change, err := repo.UpdateStatus(context.Background(), feedbackID, models.StatusRejected)
	if err != nil || change != nil {
		t.Errorf("UpdateStatus = %v, %v; want nil, nil", change, err)
	}
}

func TestFeedbackUpdateStatus_DBError(t *testing.T) {
	repo, mock := newFeedbackRepo(t)
	mock.ExpectQuery(`UPDATE feedback AS f`).WillReturnError(errDB)

	if _, err := repo.UpdateStatus(context.Background(), feedbackID, models.StatusRejected); err == nil {
		t.Error("expected error, got nil")
	}
}

func TestFeedbackDelete(t *testing.T) {
	repo, mock := newFeedbackRepo(t)
	mock.ExpectQuery(`DELETE FROM feedback WHERE id = \$1 RETURNING`).
		WithArgs(feedbackID).
		WillReturnRows(sampleFeedbackRows())

	f, err := repo.Delete(context.Background(), feedbackID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if f == nil || f.Name != "Jane Doe" {
		t.Errorf("Delete returned %+v", f)
	}
}

func TestFeedbackDelete_NoRow(t *testing.T) {
	repo, mock := newFeedbackRepo(t)
	mock.ExpectQuery(`DELETE FROM feedback`).
		WillReturnRows(sqlmock.NewRows(feedbackCols))

	f, err := repo.Delete(context.Background(), feedbackID)
	if err != nil || f != nil {
		t.Errorf("Delete = %v, %v; want nil, nil", f, err)
	}
}

// ---------------------------------------------------------------------------
// StatusCategoryBuckets
// ---------------------------------------------------------------------------

func TestFeedbackStatusCategoryBuckets(t *testing.T) {
	repo, mock := newFeedbackRepo(t)
	mock.ExpectQuery(`GROUP BY status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "category", "count", "rating_sum"}).
			AddRow("pending", "Support", 2, 9).
			AddRow("approved", "Unknown", 1, 3))

	buckets, err := repo.StatusCategoryBuckets(context.Background())
	if err != nil {
		t.Fatalf("StatusCategoryBuckets: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("len = %d, want 2", len(buckets))
	}
	if buckets[1].Category != models.CategoryUnknown || buckets[0].RatingSum != 9 {
		t.Errorf("buckets = %+v", buckets)
	}
}
