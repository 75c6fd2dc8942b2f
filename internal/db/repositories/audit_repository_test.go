package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/feedback-system/feedback-system/internal/db/models"
)

var auditCols = []string{"id", "action", "entity_type", "entity_id", "admin_id", "admin_username", "details", "ip_address", "user_agent", "timestamp"}

func newAuditRepo(t *testing.T) (*AuditRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAuditRepository(db), mock
}

// ---------------------------------------------------------------------------
// CreateAuditLog
// ---------------------------------------------------------------------------

func TestCreateAuditLog_Success(t *testing.T) {
	repo, mock := newAuditRepo(t)
	entity := feedbackID
	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), models.ActionApprove, models.EntityFeedback, &entity, "admin-1", "admin",
			[]byte(`{"feedbackCategory":"Support","status":"approved"}`), nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	log := &models.AuditLog{
		Action: models.ActionApprove, EntityType: models.EntityFeedback, EntityID: &entity,
		AdminID: "admin-1", AdminUsername: "admin",
		Details: map[string]interface{}{"status": "approved", "feedbackCategory": "Support"},
	}
	if err := repo.CreateAuditLog(context.Background(), log); err != nil {
		t.Fatalf("CreateAuditLog: %v", err)
	}
	if log.ID == "" || log.Timestamp.IsZero() {
		t.Error("CreateAuditLog did not assign ID and Timestamp")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCreateAuditLog_NilDetailsStoredAsEmptyObject(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), models.ActionLogin, models.EntityAdmin, nil, "admin-1", "admin",
			[]byte(`{}`), nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateAuditLog(context.Background(), &models.AuditLog{
		Action: models.ActionLogin, EntityType: models.EntityAdmin, AdminID: "admin-1", AdminUsername: "admin",
	})
	if err != nil {
		t.Fatalf("CreateAuditLog: %v", err)
	}
}

func TestCreateAuditLog_DBError(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(errDB)

	err := repo.CreateAuditLog(context.Background(), &models.AuditLog{Action: models.ActionDelete})
	if err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// ListAuditLogs
// ---------------------------------------------------------------------------

func TestListAuditLogs_Filtered(t *testing.T) {
	repo, mock := newAuditRepo(t)
	action := "approve"
	adminID := "admin-1"

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_logs WHERE 1=1 AND admin_id = \$1 AND action = \$2`).
		WithArgs(adminID, action).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`ORDER BY timestamp DESC LIMIT \$3 OFFSET \$4`).
		WithArgs(adminID, action, 20, 0).
		WillReturnRows(sqlmock.NewRows(auditCols).
			AddRow("log-1", "approve", "feedback", feedbackID, adminID, "admin",
				[]byte(`{"status":"approved"}`), "10.0.0.1", "curl/8", time.Now()))

	logs, total, err := repo.ListAuditLogs(context.Background(), AuditFilters{AdminID: &adminID, Action: &action}, 20, 0)
	if err != nil {
		t.Fatalf("ListAuditLogs: %v", err)
	}
	if total != 1 || len(logs) != 1 {
		t.Fatalf("got %d logs, total %d", len(logs), total)
	}
	if logs[0].Details["status"] != "approved" {
		t.Errorf("Details = %v", logs[0].Details)
	}
	if logs[0].EntityID == nil || *logs[0].EntityID != feedbackID {
		t.Errorf("EntityID = %v", logs[0].EntityID)
	}
}

func TestListAuditLogs_CountError(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery(`SELECT COUNT`).WillReturnError(errDB)

	if _, _, err := repo.ListAuditLogs(context.Background(), AuditFilters{}, 20, 0); err == nil {
		t.Error("expected error, got nil")
	}
}
