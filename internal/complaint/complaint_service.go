// Package complaint implements the complaint lifecycle: creation, the
// executor-response state machine and the directory of executors and
// moderators the lifecycle routes between.
package complaint

import (
	"complaintflow/backend/internal/classifier"
	"complaintflow/backend/internal/config"
	"complaintflow/backend/internal/models"
	"complaintflow/backend/internal/notify"
	"complaintflow/backend/internal/storage"
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Service handles the business logic for complaints.
type Service struct {
	Storage    storage.Storage
	Classifier classifier.Classifier
	Notifier   notify.Notifier
	Policy     config.Lifecycle
	Logger     *zap.Logger

	now func() time.Time
}

// NewService creates a new complaint service. A nil notifier or logger is
// replaced by a no-op.
func NewService(s storage.Storage, c classifier.Classifier, n notify.Notifier, policy config.Lifecycle, logger *zap.Logger) *Service {
	if n == nil {
		n = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Storage:    s,
		Classifier: c,
		Notifier:   n,
		Policy:     policy,
		Logger:     logger,
		now:        time.Now,
	}
}

// NewComplaint is the input for CreateComplaint.
type NewComplaint struct {
	Description string  `json:"description" validate:"required,max=10000"`
	District    *string `json:"district" validate:"omitempty,max=255"`
	ExecutorID  *int64  `json:"executor_id" validate:"omitempty,gt=0"`
}

// CreateComplaint stores a complaint in status new together with its empty
// history and the first status entry.
func (s *Service) CreateComplaint(ctx context.Context, in NewComplaint) (*models.Complaint, error) {
	in.Description = strings.TrimSpace(in.Description)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	c := &models.Complaint{
		Description: in.Description,
		District:    in.District,
		Status:      models.StatusNew,
		ExecutorID:  in.ExecutorID,
		CreatedAt:   s.now(),
	}

	err := s.Storage.Transaction(ctx, func(tx storage.Storage) error {
		if in.ExecutorID != nil {
			if _, err := tx.GetExecutor(ctx, *in.ExecutorID); err != nil {
				return fmt.Errorf("initial executor: %w", err)
			}
		}
		if err := tx.CreateComplaint(ctx, c); err != nil {
			return fmt.Errorf("create complaint: %w", err)
		}
		if _, err := tx.GetOrCreateHistory(ctx, c.ComplaintID); err != nil {
			return fmt.Errorf("create history: %w", err)
		}
		return tx.AppendStatus(ctx, &models.StatusEntry{
			ComplaintID: c.ComplaintID,
			Status:      models.StatusNew,
			ExecutorID:  c.ExecutorID,
			SortOrder:   1,
			CreatedAt:   c.CreatedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("complaint created", zap.Int64("complaint_id", c.ComplaintID))
	return c, nil
}

func (s *Service) GetComplaint(ctx context.Context, id int64) (*models.Complaint, error) {
	return s.Storage.GetComplaint(ctx, id)
}

// ListComplaints returns newest complaints first. limit <= 0 means the
// default page size; larger limits are capped.
func (s *Service) ListComplaints(ctx context.Context, limit, offset int) ([]models.Complaint, error) {
	if offset < 0 {
		return nil, invalid("offset", "must not be negative")
	}
	switch {
	case limit <= 0:
		limit = config.DefaultListLimit
	case limit > config.MaxListLimit:
		limit = config.MaxListLimit
	}
	return s.Storage.ListComplaints(ctx, limit, offset)
}

// DeleteComplaint removes the complaint with its history and status entries.
func (s *Service) DeleteComplaint(ctx context.Context, id int64) error {
	if err := s.Storage.DeleteComplaint(ctx, id); err != nil {
		return err
	}
	s.Logger.Info("complaint deleted", zap.Int64("complaint_id", id))
	return nil
}

// GetHistory returns the executor-response ledger, creating it on first access.
func (s *Service) GetHistory(ctx context.Context, complaintID int64) (*models.ComplaintHistory, error) {
	if _, err := s.Storage.GetComplaint(ctx, complaintID); err != nil {
		return nil, err
	}
	return s.Storage.GetOrCreateHistory(ctx, complaintID)
}

func (s *Service) ListStatuses(ctx context.Context, complaintID int64) ([]models.StatusEntry, error) {
	if _, err := s.Storage.GetComplaint(ctx, complaintID); err != nil {
		return nil, err
	}
	return s.Storage.ListStatuses(ctx, complaintID)
}
