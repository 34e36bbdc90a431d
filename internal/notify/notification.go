// Package notify delivers lifecycle notifications to moderators: live
// WebSocket subscribers through the Hub, other instances through Redis and
// the moderator chat through Telegram.
package notify

import (
	"complaintflow/backend/internal/models"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindBlocked    Kind = "blocked"
	KindRedirected Kind = "redirected"
)

// Notification is one moderator-facing event about a complaint.
type Notification struct {
	ID          uuid.UUID              `json:"id"`
	Kind        Kind                   `json:"kind"`
	ComplaintID int64                  `json:"complaint_id"`
	ExecutorID  *int64                 `json:"executor_id,omitempty"`
	Status      models.ComplaintStatus `json:"status"`
	Reason      string                 `json:"reason"`
	At          time.Time              `json:"at"`
}

// Blocked builds the notification for a complaint that entered block_workflow.
func Blocked(complaintID int64, reason string, at time.Time) Notification {
	return Notification{
		ID:          uuid.New(),
		Kind:        KindBlocked,
		ComplaintID: complaintID,
		Status:      models.StatusBlockWorkflow,
		Reason:      reason,
		At:          at,
	}
}

// Redirected builds the notification for a complaint handed to executorID.
func Redirected(complaintID, executorID int64, status models.ComplaintStatus, reason string, at time.Time) Notification {
	return Notification{
		ID:          uuid.New(),
		Kind:        KindRedirected,
		ComplaintID: complaintID,
		ExecutorID:  &executorID,
		Status:      status,
		Reason:      reason,
		At:          at,
	}
}

// Notifier delivers notifications. Delivery is best effort: callers log the
// error and carry on.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Fanout sends every notification to all of its notifiers, even when some fail.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, target := range f {
		if target == nil {
			continue
		}
		if err := target.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops everything.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) error { return nil }
