// Package models - feedback.go defines the Feedback model and the closed sets of
// statuses and categories it may carry.
package models

import "time"

// FeedbackStatus is a moderation state. Every state is reachable from every other
// state; there is no terminal state.
type FeedbackStatus string

const (
	StatusPending  FeedbackStatus = "pending"
	StatusApproved FeedbackStatus = "approved"
	StatusRejected FeedbackStatus = "rejected"
)

// Valid reports whether s is one of the three moderation states.
func (s FeedbackStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// AllStatuses returns the moderation states in dashboard order.
func AllStatuses() []FeedbackStatus {
	return []FeedbackStatus{StatusPending, StatusApproved, StatusRejected}
}

// Category is the topic a submitter picked for their feedback.
type Category string

const (
	CategoryGeneral   Category = "General"
	CategoryTechnical Category = "Technical"
	CategorySales     Category = "Sales"
	CategorySupport   Category = "Support"
	CategoryBilling   Category = "Billing"
	CategoryOther     Category = "Other"

	// CategoryUnknown labels rows whose category column is NULL. It is never accepted
	// on input.
	CategoryUnknown Category = "Unknown"
)

// Valid reports whether c is an accepted submission category.
func (c Category) Valid() bool {
	switch c {
	case CategoryGeneral, CategoryTechnical, CategorySales, CategorySupport, CategoryBilling, CategoryOther:
		return true
	}
	return false
}

// AllCategories returns the accepted submission categories.
func AllCategories() []Category {
	return []Category{CategoryGeneral, CategoryTechnical, CategorySales, CategorySupport, CategoryBilling, CategoryOther}
}

// Feedback field limits.
const (
	RatingMin        = 1
	RatingMax        = 5
	MessageMinLength = 10
	MessageMaxLength = 1000
	NameMinLength    = 2
	NameMaxLength    = 50
	EmailMaxLength   = 100
)

// Feedback is a single submission and its moderation state.
type Feedback struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Email     string         `db:"email" json:"email"`
	Category  Category       `db:"category" json:"category"`
	Rating    int            `db:"rating" json:"rating"`
	Message   string         `db:"message" json:"message"`
	Status    FeedbackStatus `db:"status" json:"status"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time      `db:"updated_at" json:"updatedAt"`
}

// FeedbackFilter narrows list and export queries. Zero values mean "no filter".
type FeedbackFilter struct {
	Status    FeedbackStatus
	Category  Category
	Search    string
	StartDate *time.Time
	EndDate   *time.Time
}
