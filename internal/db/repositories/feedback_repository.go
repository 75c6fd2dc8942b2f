// feedback_repository.go implements FeedbackRepository. Status changes and deletions are
// single UPDATE ... RETURNING / DELETE ... RETURNING statements so the service layer never
// has to read a row before mutating it.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/feedback-system/feedback-system/internal/db/models"
)

// feedbackColumns maps a NULL category to "Unknown" so struct scanning never sees NULL.
const feedbackColumns = `id, name, email, COALESCE(category, 'Unknown') AS category, rating, message, status, created_at, updated_at`

// FeedbackRepository handles feedback database operations
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository creates a new FeedbackRepository
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// StatusChange is the result of an atomic status update.
type StatusChange struct {
	models.Feedback
	PreviousStatus models.FeedbackStatus `db:"previous_status"`
}

// Bucket is one (status, category) group of the dashboard aggregate.
type Bucket struct {
	Status    models.FeedbackStatus `db:"status"`
	Category  models.Category       `db:"category"`
	Count     int64                 `db:"count"`
	RatingSum int64                 `db:"rating_sum"`
}

// Create inserts a new feedback item. It assigns ID and timestamps and forces the
// status to pending.
func (r *FeedbackRepository) Create(ctx context.Context, f *models.Feedback) error {
	f.ID = uuid.New().String()
	f.Status = models.StatusPending
	f.CreatedAt = time.Now().UTC()
	f.UpdatedAt = f.CreatedAt

	query := `
		INSERT INTO feedback (id, name, email, category, rating, message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		f.ID, f.Name, f.Email, f.Category, f.Rating, f.Message, f.Status, f.CreatedAt, f.UpdatedAt,
	)
	return err
}

// GetByID retrieves a feedback item by ID
func (r *FeedbackRepository) GetByID(ctx context.Context, id string) (*models.Feedback, error) {
	var f models.Feedback
	err := r.db.GetContext(ctx, &f, `SELECT `+feedbackColumns+` FROM feedback WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// buildFeedbackWhere renders filter as a WHERE clause starting at placeholder $1.
func buildFeedbackWhere(filter models.FeedbackFilter) (string, []interface{}) {
	clauses := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)
	next := func() int { return len(args) + 1 }

	if filter.Status != "" {
		clauses = append(clauses, fmt.Sprintf("status = $%d", next()))
		args = append(args, filter.Status)
	}
	if filter.Category != "" {
		clauses = append(clauses, fmt.Sprintf("category = $%d", next()))
		args = append(args, filter.Category)
	}
	if filter.Search != "" {
		n := next()
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR message ILIKE $%d)", n, n, n))
		args = append(args, "%"+escapeLike(filter.Search)+"%")
	}
	if filter.StartDate != nil {
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", next()))
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", next()))
		args = append(args, *filter.EndDate)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user search text match literally under ILIKE.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// List returns one page of feedback, newest first, and the total matching count.
func (r *FeedbackRepository) List(ctx context.Context, filter models.FeedbackFilter, limit, offset int) ([]*models.Feedback, int, error) {
	where, args := buildFeedbackWhere(filter)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM feedback`+where, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + feedbackColumns + ` FROM feedback` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	items := make([]*models.Feedback, 0)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListForExport returns every matching item, newest first.
func (r *FeedbackRepository) ListForExport(ctx context.Context, filter models.FeedbackFilter) ([]*models.Feedback, error) {
	where, args := buildFeedbackWhere(filter)
	query := `SELECT ` + feedbackColumns + ` FROM feedback` + where + ` ORDER BY created_at DESC`

	items := make([]*models.Feedback, 0)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateStatus sets the status of one item in a single statement and returns the
// updated row together with the status it held immediately before. A nil result
// means no such item exists.
func (r *FeedbackRepository) UpdateStatus(ctx context.Context, id string, status models.FeedbackStatus) (*StatusChange, error) {
	query := `
		UPDATE feedback AS f
		SET status = $2, updated_at = $3
		FROM (SELECT id, status AS previous_status FROM feedback WHERE id = $1 FOR UPDATE) AS prev
		WHERE f.id = prev.id
		RETURNING f.id, f.name, f.email, COALESCE(f.category, 'Unknown') AS category, f.rating, f.message,
		          f.status, f.created_at, f.updated_at, prev.previous_status
	`
	var change StatusChange
	err := r.db.GetContext(ctx, &change, query, id, status, time.Now().UTC())
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &change, nil
}

// Delete removes one item and returns the row as it was. A nil result means no such
// item existed.
func (r *FeedbackRepository) Delete(ctx context.Context, id string) (*models.Feedback, error) {
	var f models.Feedback
	err := r.db.GetContext(ctx, &f, `DELETE FROM feedback WHERE id = $1 RETURNING `+feedbackColumns, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// StatusCategoryBuckets groups every row by (status, category) in one statement, so
// every figure derived from the result comes from the same snapshot.
func (r *FeedbackRepository) StatusCategoryBuckets(ctx context.Context) ([]Bucket, error) {
	query := `
		SELECT status, COALESCE(category, 'Unknown') AS category,
		       COUNT(*) AS count, COALESCE(SUM(rating), 0) AS rating_sum
		FROM feedback
		GROUP BY status, COALESCE(category, 'Unknown')
	`
	buckets := make([]Bucket, 0)
	if err := r.db.SelectContext(ctx, &buckets, query); err != nil {
		return nil, err
	}
	return buckets, nil
}
