package storage

import (
	"complaintflow/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service is the PostgreSQL implementation of Storage.
type Service struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{DB: db, Logger: logger}
}

// Migrate creates or updates every table the backend needs.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.Executor{},
		&models.Complaint{},
		&models.Moderator{},
		&models.ComplaintHistory{},
		&models.StatusEntry{},
	)
}

func (s *Service) Transaction(ctx context.Context, fn func(tx Storage) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Service{DB: tx, Logger: s.Logger})
	})
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return err
}

// --- complaints ---

func (s *Service) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	if c.Status == "" {
		c.Status = models.StatusNew
	}
	if err := s.DB.WithContext(ctx).Create(c).Error; err != nil {
		s.Logger.Error("failed to create complaint", zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) GetComplaint(ctx context.Context, id int64) (*models.Complaint, error) {
	var c models.Complaint
	if err := s.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err, "complaint", id)
	}
	return &c, nil
}

func (s *Service) GetComplaintForUpdate(ctx context.Context, id int64) (*models.Complaint, error) {
	var c models.Complaint
	err := s.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&c, id).Error
	if err != nil {
		return nil, notFound(err, "complaint", id)
	}
	return &c, nil
}

func (s *Service) ListComplaints(ctx context.Context, limit, offset int) ([]models.Complaint, error) {
	var out []models.Complaint
	err := s.DB.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	if err != nil {
		s.Logger.Error("failed to list complaints", zap.Error(err))
		return nil, err
	}
	return out, nil
}

func (s *Service) UpdateComplaint(ctx context.Context, c *models.Complaint) error {
	return s.DB.WithContext(ctx).Save(c).Error
}

func (s *Service) DeleteComplaint(ctx context.Context, id int64) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Complaint{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("complaint %d: %w", id, ErrNotFound)
		}
		if err := tx.Where("complaint_id = ?", id).Delete(&models.StatusEntry{}).Error; err != nil {
			return err
		}
		return tx.Where("complaint_id = ?", id).Delete(&models.ComplaintHistory{}).Error
	})
}

// --- executors ---

// CreateExecutor writes is_active explicitly afterwards, since gorm skips a
// false bool in favour of the column default.
func (s *Service) CreateExecutor(ctx context.Context, e *models.Executor) error {
	active := e.IsActive
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(e).Error; err != nil {
			return err
		}
		if active {
			return nil
		}
		return tx.Model(e).Update("is_active", false).Error
	})
}

func (s *Service) GetExecutor(ctx context.Context, id int64) (*models.Executor, error) {
	var e models.Executor
	if err := s.DB.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, notFound(err, "executor", id)
	}
	return &e, nil
}

func (s *Service) FindExecutorByName(ctx context.Context, name string) (*models.Executor, error) {
	var e models.Executor
	err := s.DB.WithContext(ctx).
		Where("lower(trim(name)) = ?", strings.ToLower(strings.TrimSpace(name))).
		Order("executor_id asc").
		First(&e).Error
	if err != nil {
		return nil, notFound(err, "executor", name)
	}
	return &e, nil
}

func (s *Service) UpdateExecutor(ctx context.Context, e *models.Executor) error {
	return s.DB.WithContext(ctx).Save(e).Error
}

func (s *Service) DeleteExecutor(ctx context.Context, id int64) error {
	res := s.DB.WithContext(ctx).Delete(&models.Executor{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("executor %d: %w", id, ErrNotFound)
	}
	return nil
}

// --- moderators ---

// CreateModerator relies on the DB being opened with TranslateError so that
// the unique username index surfaces as gorm.ErrDuplicatedKey.
func (s *Service) CreateModerator(ctx context.Context, m *models.Moderator) error {
	err := s.DB.WithContext(ctx).Create(m).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("moderator %q: %w", m.Username, ErrDuplicate)
	}
	return err
}

func (s *Service) GetModerator(ctx context.Context, id int64) (*models.Moderator, error) {
	var m models.Moderator
	if err := s.DB.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err, "moderator", id)
	}
	return &m, nil
}

func (s *Service) FindModeratorByUsername(ctx context.Context, username string) (*models.Moderator, error) {
	var m models.Moderator
	if err := s.DB.WithContext(ctx).Where("username = ?", username).First(&m).Error; err != nil {
		return nil, notFound(err, "moderator", username)
	}
	return &m, nil
}

func (s *Service) DeleteModerator(ctx context.Context, id int64) error {
	res := s.DB.WithContext(ctx).Delete(&models.Moderator{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("moderator %d: %w", id, ErrNotFound)
	}
	return nil
}

// --- ledgers ---

// GetOrCreateHistory uses FirstOrCreate, same as the first-contact user lookup did.
func (s *Service) GetOrCreateHistory(ctx context.Context, complaintID int64) (*models.ComplaintHistory, error) {
	var h models.ComplaintHistory
	result := s.DB.WithContext(ctx).
		Where(models.ComplaintHistory{ComplaintID: complaintID}).
		Attrs(models.ComplaintHistory{ExecutorIDs: pq.Int64Array{}, Responses: models.ExecutorResponses{}}).
		FirstOrCreate(&h)
	if result.Error != nil {
		s.Logger.Error("failed to load complaint history",
			zap.Int64("complaint_id", complaintID), zap.Error(result.Error))
		return nil, result.Error
	}
	if h.Responses == nil {
		h.Responses = models.ExecutorResponses{}
	}
	if result.RowsAffected > 0 {
		s.Logger.Debug("complaint history created", zap.Int64("complaint_id", complaintID))
	}
	return &h, nil
}

func (s *Service) SaveHistory(ctx context.Context, h *models.ComplaintHistory) error {
	return s.DB.WithContext(ctx).Save(h).Error
}

func (s *Service) AppendStatus(ctx context.Context, e *models.StatusEntry) error {
	return s.DB.WithContext(ctx).Create(e).Error
}

func (s *Service) ListStatuses(ctx context.Context, complaintID int64) ([]models.StatusEntry, error) {
	var out []models.StatusEntry
	err := s.DB.WithContext(ctx).
		Where("complaint_id = ?", complaintID).
		Order("sort_order asc").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
