package complaint

import (
	"complaintflow/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ExecutorInput creates an executor. IsActive defaults to true.
type ExecutorInput struct {
	Name         string  `json:"name" validate:"required,max=255"`
	Organization *string `json:"organization" validate:"omitempty,max=255"`
	Phone        *string `json:"phone" validate:"omitempty,max=50"`
	Email        *string `json:"email" validate:"omitempty,email"`
	IsActive     *bool   `json:"is_active"`
}

// ExecutorPatch changes only the fields that are set.
type ExecutorPatch struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=255"`
	Organization *string `json:"organization" validate:"omitempty,max=255"`
	Phone        *string `json:"phone" validate:"omitempty,max=50"`
	Email        *string `json:"email" validate:"omitempty,email"`
	IsActive     *bool   `json:"is_active"`
}

func (s *Service) CreateExecutor(ctx context.Context, in ExecutorInput) (*models.Executor, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	e := &models.Executor{
		Name:         in.Name,
		Organization: in.Organization,
		Phone:        in.Phone,
		Email:        in.Email,
		IsActive:     true,
	}
	if in.IsActive != nil {
		e.IsActive = *in.IsActive
	}
	if err := s.Storage.CreateExecutor(ctx, e); err != nil {
		return nil, err
	}
	s.Logger.Info("executor created", zap.Int64("executor_id", e.ExecutorID), zap.String("name", e.Name))
	return e, nil
}

func (s *Service) GetExecutor(ctx context.Context, id int64) (*models.Executor, error) {
	return s.Storage.GetExecutor(ctx, id)
}

func (s *Service) UpdateExecutor(ctx context.Context, id int64, patch ExecutorPatch) (*models.Executor, error) {
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		patch.Name = &trimmed
	}
	if err := validateStruct(patch); err != nil {
		return nil, err
	}

	e, err := s.Storage.GetExecutor(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		e.Name = *patch.Name
	}
	if patch.Organization != nil {
		e.Organization = patch.Organization
	}
	if patch.Phone != nil {
		e.Phone = patch.Phone
	}
	if patch.Email != nil {
		e.Email = patch.Email
	}
	if patch.IsActive != nil {
		e.IsActive = *patch.IsActive
	}
	if err := s.Storage.UpdateExecutor(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// DeactivateExecutor keeps the executor for history but removes it from routing.
func (s *Service) DeactivateExecutor(ctx context.Context, id int64) (*models.Executor, error) {
	inactive := false
	return s.UpdateExecutor(ctx, id, ExecutorPatch{IsActive: &inactive})
}

func (s *Service) DeleteExecutor(ctx context.Context, id int64) error {
	return s.Storage.DeleteExecutor(ctx, id)
}

// ModeratorInput creates a moderator. Password is stored only as a bcrypt
// hash; bcrypt ignores input past 72 bytes, so longer passwords are refused.
type ModeratorInput struct {
	Username string  `json:"username" validate:"required,max=255"`
	FullName string  `json:"full_name" validate:"required,max=255"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone" validate:"omitempty,max=50"`
}

func (s *Service) CreateModerator(ctx context.Context, in ModeratorInput) (*models.Moderator, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	m := &models.Moderator{
		Username:     in.Username,
		FullName:     in.FullName,
		Email:        in.Email,
		Phone:        in.Phone,
		IsActive:     true,
		PasswordHash: string(hash),
	}
	if err := s.Storage.CreateModerator(ctx, m); err != nil {
		return nil, err
	}
	s.Logger.Info("moderator created", zap.Int64("moderator_id", m.ModeratorID), zap.String("username", m.Username))
	return m, nil
}

// AuthenticateModerator checks a username/password pair. Unknown users,
// wrong passwords and inactive accounts all return ErrInvalidCredentials.
func (s *Service) AuthenticateModerator(ctx context.Context, username, password string) (*models.Moderator, error) {
	m, err := s.Storage.FindModeratorByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if m.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(password)) != nil {
		s.Logger.Warn("moderator login failed", zap.String("username", m.Username))
		return nil, ErrInvalidCredentials
	}
	if !m.IsActive {
		s.Logger.Warn("inactive moderator tried to log in", zap.Int64("moderator_id", m.ModeratorID))
		return nil, ErrInvalidCredentials
	}
	return m, nil
}

func (s *Service) GetModerator(ctx context.Context, id int64) (*models.Moderator, error) {
	return s.Storage.GetModerator(ctx, id)
}

func (s *Service) DeleteModerator(ctx context.Context, id int64) error {
	return s.Storage.DeleteModerator(ctx, id)
}
