// Package storage persists complaints, executors, moderators and the audit
// ledgers behind a single Storage interface. The gorm-backed Service is used
// in production; MemoryStorage backs tests and local runs without Postgres.
package storage

import (
	"complaintflow/backend/internal/models"
	"context"
	"errors"
)

// ErrNotFound is returned when a complaint, executor or moderator does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a unique key (moderator username) is taken.
var ErrDuplicate = errors.New("record already exists")

// ComplaintStore covers complaint rows.
type ComplaintStore interface {
	CreateComplaint(ctx context.Context, c *models.Complaint) error
	GetComplaint(ctx context.Context, id int64) (*models.Complaint, error)
	// GetComplaintForUpdate loads the complaint and locks its row until the
	// surrounding transaction ends.
	GetComplaintForUpdate(ctx context.Context, id int64) (*models.Complaint, error)
	ListComplaints(ctx context.Context, limit, offset int) ([]models.Complaint, error)
	UpdateComplaint(ctx context.Context, c *models.Complaint) error
	DeleteComplaint(ctx context.Context, id int64) error
}

// ExecutorStore is the executor directory.
type ExecutorStore interface {
	CreateExecutor(ctx context.Context, e *models.Executor) error
	GetExecutor(ctx context.Context, id int64) (*models.Executor, error)
	// FindExecutorByName matches trimmed names case-insensitively.
	FindExecutorByName(ctx context.Context, name string) (*models.Executor, error)
	UpdateExecutor(ctx context.Context, e *models.Executor) error
	DeleteExecutor(ctx context.Context, id int64) error
}

type ModeratorStore interface {
	CreateModerator(ctx context.Context, m *models.Moderator) error
	GetModerator(ctx context.Context, id int64) (*models.Moderator, error)
	FindModeratorByUsername(ctx context.Context, username string) (*models.Moderator, error)
	DeleteModerator(ctx context.Context, id int64) error
}

// HistoryStore keeps the executor-response ledger and the status history.
type HistoryStore interface {
	// GetOrCreateHistory is idempotent; it never returns ErrNotFound.
	GetOrCreateHistory(ctx context.Context, complaintID int64) (*models.ComplaintHistory, error)
	SaveHistory(ctx context.Context, h *models.ComplaintHistory) error

	AppendStatus(ctx context.Context, e *models.StatusEntry) error
	// ListStatuses returns entries ordered by SortOrder.
	ListStatuses(ctx context.Context, complaintID int64) ([]models.StatusEntry, error)
}

type Storage interface {
	ComplaintStore
	ExecutorStore
	ModeratorStore
	HistoryStore

	// Transaction runs fn against a Storage bound to one transaction.
	// Any error returned by fn rolls back every write made through tx.
	Transaction(ctx context.Context, fn func(tx Storage) error) error
}

var (
	_ Storage = (*Service)(nil)
	_ Storage = (*MemoryStorage)(nil)
)
