// Package analytics computes the dashboard statistics. Every figure is folded from the
// rows of a single grouped query so the numbers are mutually consistent: total equals the
// sum of the status counts and the sum of the category counts.
package analytics

import (
	"context"
	"math"
	"sort"

	"github.com/feedback-system/feedback-system/internal/apperrors"
	"github.com/feedback-system/feedback-system/internal/db/models"
	"github.com/feedback-system/feedback-system/internal/db/repositories"
)

// Store supplies the grouped aggregate. *repositories.FeedbackRepository satisfies it.
type Store interface {
	StatusCategoryBuckets(ctx context.Context) ([]repositories.Bucket, error)
}

// CategoryCount is one entry of the category distribution.
type CategoryCount struct {
	Category models.Category `json:"category"`
	Count    int64           `json:"count"`
}

// StatusCount is one entry of the status distribution.
type StatusCount struct {
	Status models.FeedbackStatus `json:"status"`
	Count  int64                 `json:"count"`
}

// DashboardStats is the dashboard summary.
type DashboardStats struct {
	TotalFeedback        int64           `json:"totalFeedback"`
	AverageRating        float64         `json:"averageRating"`
	PendingCount         int64           `json:"pendingCount"`
	ApprovedCount        int64           `json:"approvedCount"`
	RejectedCount        int64           `json:"rejectedCount"`
	CategoryDistribution []CategoryCount `json:"categoryDistribution"`
}

// Analytics is the payload of the analytics endpoint.
type Analytics struct {
	TotalFeedback int64           `json:"totalFeedback"`
	AverageRating float64         `json:"averageRating"`
	CategoryCount []CategoryCount `json:"categoryCount"`
	StatusCount   []StatusCount   `json:"statusCount"`
}

// Engine computes statistics.
type Engine struct {
	store Store
}

// NewEngine builds an Engine.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Dashboard returns the dashboard summary.
func (e *Engine) Dashboard(ctx context.Context) (*DashboardStats, error) {
	s, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &DashboardStats{
		TotalFeedback:        s.total,
		AverageRating:        s.average(),
		PendingCount:         s.byStatus[models.StatusPending],
		ApprovedCount:        s.byStatus[models.StatusApproved],
		RejectedCount:        s.byStatus[models.StatusRejected],
		CategoryDistribution: s.categories(),
	}, nil
}

// CategoryDistribution returns per-category counts, largest first.
func (e *Engine) CategoryDistribution(ctx context.Context) ([]CategoryCount, error) {
	s, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.categories(), nil
}

// Analytics returns totals with both distributions.
func (e *Engine) Analytics(ctx context.Context) (*Analytics, error) {
	s, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	statuses := make([]StatusCount, 0, len(models.AllStatuses()))
	for _, st := range models.AllStatuses() {
		statuses = append(statuses, StatusCount{Status: st, Count: s.byStatus[st]})
	}
	return &Analytics{
		TotalFeedback: s.total,
		AverageRating: s.average(),
		CategoryCount: s.categories(),
		StatusCount:   statuses,
	}, nil
}

type snapshot struct {
	total      int64
	ratingSum  int64
	byStatus   map[models.FeedbackStatus]int64
	byCategory map[models.Category]int64
}

func (e *Engine) snapshot(ctx context.Context) (*snapshot, error) {
	buckets, err := e.store.StatusCategoryBuckets(ctx)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve statistics.", err)
	}
	return fold(buckets), nil
}

func fold(buckets []repositories.Bucket) *snapshot {
	s := &snapshot{
		byStatus:   make(map[models.FeedbackStatus]int64, 3),
		byCategory: make(map[models.Category]int64),
	}
	for _, b := range buckets {
		category := b.Category
		if category == "" {
			category = models.CategoryUnknown
		}
		s.total += b.Count
		s.ratingSum += b.RatingSum
		s.byStatus[b.Status] += b.Count
		s.byCategory[category] += b.Count
	}
	return s
}

// average is the mean rating rounded half away from zero to two decimals, 0 when empty.
func (s *snapshot) average() float64 {
	if s.total == 0 {
		return 0
	}
	return math.Round(float64(s.ratingSum)/float64(s.total)*100) / 100
}

// categories orders by count descending, then name ascending.
func (s *snapshot) categories() []CategoryCount {
	out := make([]CategoryCount, 0, len(s.byCategory))
	for c, n := range s.byCategory {
		out = append(out, CategoryCount{Category: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}
