// Package notify delivers outbound email about feedback: a note to the administrators
// when feedback arrives, and a note to the submitter when it is approved or rejected.
// Delivery is fire-and-forget; see Dispatcher.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/feedback-system/feedback-system/internal/db/models"
	"github.com/feedback-system/feedback-system/internal/telemetry"
)

// Kind names a notification for logs and metrics.
type Kind string

const (
	KindNewFeedback Kind = "new_feedback"
	KindApproved    Kind = "approved"
	KindRejected    Kind = "rejected"
)

// DefaultSendTimeout bounds one delivery attempt.
const DefaultSendTimeout = 30 * time.Second

// Notifier sends feedback notifications.
type Notifier interface {
	NewFeedback(ctx context.Context, f *models.Feedback) error
	FeedbackApproved(ctx context.Context, f *models.Feedback) error
	FeedbackRejected(ctx context.Context, f *models.Feedback) error
}

// NopNotifier discards every notification. It is used when notifications are disabled.
type NopNotifier struct{}

func (NopNotifier) NewFeedback(context.Context, *models.Feedback) error      { return nil }
func (NopNotifier) FeedbackApproved(context.Context, *models.Feedback) error { return nil }
func (NopNotifier) FeedbackRejected(context.Context, *models.Feedback) error { return nil }

// Submitter accepts background work without blocking. *safego.Pool satisfies it.
type Submitter interface {
	Submit(name string, fn func()) bool
}

// Dispatcher sends notifications on a worker pool so a slow or failing mail server never
// delays a response. Notifications that cannot be queued are dropped and counted.
type Dispatcher struct {
	notifier Notifier
	pool     Submitter
	timeout  time.Duration
}

// NewDispatcher builds a Dispatcher. A zero timeout uses DefaultSendTimeout.
func NewDispatcher(n Notifier, pool Submitter, timeout time.Duration) *Dispatcher {
	if n == nil {
		n = NopNotifier{}
	}
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Dispatcher{notifier: n, pool: pool, timeout: timeout}
}

// Dispatch queues a notification of kind about f. f is copied so later mutation by the
// caller cannot race with delivery.
func (d *Dispatcher) Dispatch(kind Kind, f *models.Feedback) {
	if f == nil {
		return
	}
	item := *f

	send := func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		var err error
		switch kind {
		case KindNewFeedback:
			err = d.notifier.NewFeedback(ctx, &item)
		case KindApproved:
			err = d.notifier.FeedbackApproved(ctx, &item)
		case KindRejected:
			err = d.notifier.FeedbackRejected(ctx, &item)
		default:
			slog.Warn("unknown notification kind", "kind", kind)
			return
		}

		if err != nil {
			telemetry.NotificationsSentTotal.WithLabelValues(string(kind), "failure").Inc()
			slog.Error("notification failed", "kind", kind, "feedback_id", item.ID, "error", err)
			return
		}
		telemetry.NotificationsSentTotal.WithLabelValues(string(kind), "success").Inc()
	}

	if d.pool == nil {
		send()
		return
	}
	if !d.pool.Submit("notify:"+string(kind), send) {
		telemetry.NotificationsSentTotal.WithLabelValues(string(kind), "dropped").Inc()
		slog.Warn("notification dropped, worker pool saturated", "kind", kind, "feedback_id", item.ID)
	}
}
