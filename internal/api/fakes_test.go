package api

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/feedback-system/feedback-system/internal/analytics"
	"github.com/feedback-system/feedback-system/internal/audit"
	"github.com/feedback-system/feedback-system/internal/auth"
	"github.com/feedback-system/feedback-system/internal/config"
	"github.com/feedback-system/feedback-system/internal/db/models"
	"github.com/feedback-system/feedback-system/internal/db/repositories"
	"github.com/feedback-system/feedback-system/internal/export"
	"github.com/feedback-system/feedback-system/internal/moderation"
)

// ---------------------------------------------------------------------------
// in-memory feedback store
// ---------------------------------------------------------------------------

type memFeedback struct {
	mu    sync.Mutex
	items map[string]*models.Feedback
}

func newMemFeedback() *memFeedback {
	return &memFeedback{items: map[string]*models.Feedback{}}
}

func (s *memFeedback) Create(_ context.Context, f *models.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.ID = uuid.New().String()
	f.Status = models.StatusPending
	f.CreatedAt = time.Now().UTC()
	f.UpdatedAt = f.CreatedAt
	cp := *f
	s.items[f.ID] = &cp
	return nil
}

func (s *memFeedback) GetByID(_ context.Context, id string) (*models.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (s *memFeedback) matching(filter models.FeedbackFilter) []*models.Feedback {
	var out []*models.Feedback
	for _, f := range s.items {
		if filter.Status != "" && f.Status != filter.Status {
			continue
		}
		if filter.Category != "" && f.Category != filter.Category {
			continue
		}
		if q := strings.ToLower(filter.Search); q != "" &&
			!strings.Contains(strings.ToLower(f.Name), q) &&
			!strings.Contains(strings.ToLower(f.Email), q) &&
			!strings.Contains(strings.ToLower(f.Message), q) {
			continue
		}
		if filter.StartDate != nil && f.CreatedAt.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && f.CreatedAt.After(*filter.EndDate) {
			continue
		}
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *memFeedback) List(_ context.Context, filter models.FeedbackFilter, limit, offset int) ([]*models.Feedback, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.matching(filter)
	if offset >= len(all) {
		return []*models.Feedback{}, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (s *memFeedback) ListForExport(_ context.Context, filter models.FeedbackFilter) ([]*models.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matching(filter), nil
}

func (s *memFeedback) UpdateStatus(_ context.Context, id string, status models.FeedbackStatus) (*repositories.StatusChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	prev := f.Status
	f.Status = status
	f.UpdatedAt = time.Now().UTC()
	return &repositories.StatusChange{Feedback: *f, PreviousStatus: prev}, nil
}

func (s *memFeedback) Delete(_ context.Context, id string) (*models.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	delete(s.items, id)
	return f, nil
}

func (s *memFeedback) StatusCategoryBuckets(_ context.Context) ([]repositories.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type key struct {
		status   models.FeedbackStatus
		category models.Category
	}
	agg := map[key]*repositories.Bucket{}
	for _, f := range s.items {
		k := key{f.Status, f.Category}
		b, ok := agg[k]
		if !ok {
			b = &repositories.Bucket{Status: f.Status, Category: f.Category}
			agg[k] = b
		}
		b.Count++
		b.RatingSum += int64(f.Rating)
	}
	out := make([]repositories.Bucket, 0, len(agg))
	for _, b := range agg {
		out = append(out, *b)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// in-memory administrator and audit stores
// ---------------------------------------------------------------------------

type memAdmins struct {
	mu     sync.Mutex
	byID   map[string]*models.Administrator
	byName map[string]*models.Administrator
}

func newMemAdmins() *memAdmins {
	return &memAdmins{byID: map[string]*models.Administrator{}, byName: map[string]*models.Administrator{}}
}

func (s *memAdmins) GetByID(_ context.Context, id string) (*models.Administrator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id], nil
}

func (s *memAdmins) GetByUsername(_ context.Context, username string) (*models.Administrator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byName[username], nil
}

func (s *memAdmins) Create(_ context.Context, a *models.Administrator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byName[a.Username]; taken {
		return repositories.ErrDuplicateUsername
	}
	a.ID = uuid.New().String()
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	s.byID[a.ID] = a
	s.byName[a.Username] = a
	return nil
}

type memAudit struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (s *memAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log.ID = uuid.New().String()
	log.Timestamp = time.Now().UTC()
	s.logs = append(s.logs, log)
	return nil
}

func (s *memAudit) ListAuditLogs(_ context.Context, f repositories.AuditFilters, limit, offset int) ([]*models.AuditLog, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.AuditLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		l := s.logs[i]
		if f.Action != nil && string(l.Action) != *f.Action {
			continue
		}
		if f.AdminID != nil && l.AdminID != *f.AdminID {
			continue
		}
		out = append(out, l)
	}
	total := len(out)
	if offset >= total {
		return []*models.AuditLog{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (s *memAudit) actions() []models.AuditAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AuditAction, len(s.logs))
	for i, l := range s.logs {
		out[i] = l.Action
	}
	return out
}

// ---------------------------------------------------------------------------
// test server
// ---------------------------------------------------------------------------

const testSecret = "router-test-secret-0123456789abcdef"

type testServer struct {
	deps     Dependencies
	feedback *memFeedback
	admins   *memAdmins
	audit    *memAudit
	tokens   *auth.TokenIssuer
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Logging.Format = "json"
	cfg.Security.CORS.AllowedOrigins = []string{"https://dashboard.example.com"}
	return cfg
}

// newTestServer wires real engines over in-memory stores. The audit recorder has no
// executor, so records are written before the handler returns.
func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ts := &testServer{
		feedback: newMemFeedback(),
		admins:   newMemAdmins(),
		audit:    &memAudit{},
		tokens:   auth.NewTokenIssuer(testSecret, "", time.Hour),
	}

	verifier, err := auth.NewVerifier(ts.admins, ts.tokens, bcrypt.MinCost)
	require.NoError(t, err)
	recorder := audit.NewRecorder(ts.audit, nil, nil)

	ts.deps = Dependencies{
		Config:     cfg,
		DB:         db,
		Verifier:   verifier,
		Moderation: moderation.NewEngine(ts.feedback, recorder, nil),
		Analytics:  analytics.NewEngine(ts.feedback),
		Audit:      recorder,
		Export:     export.NewService(ts.feedback, recorder, nil),
	}
	return ts
}

// seedAdmin stores an administrator and returns a bearer header for it.
func (ts *testServer) seedAdmin(t *testing.T, username string, role models.Role) string {
	t.Helper()
	a, err := models.NewAdministrator(username, "correct-horse-battery", role, bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, ts.admins.Create(context.Background(), a))
	session, err := ts.deps.Verifier.Login(context.Background(), username, "correct-horse-battery")
	require.NoError(t, err)
	return "Bearer " + session.Token
}
