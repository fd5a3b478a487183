package service

import (
	"context"
	"fmt"

	"github.com/sprayline/foamops-api/internal/domain"
	"github.com/sprayline/foamops-api/internal/mapper"
	"github.com/sprayline/foamops-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// SettingsService reads and writes per-company settings
type SettingsService struct {
	repo   *repository.SettingsRepository
	logger *zap.Logger
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(repo *repository.SettingsRepository, logger *zap.Logger) *SettingsService {
	return &SettingsService{repo: repo, logger: logger}
}

// GetSettings returns stored settings or the defaults
func (s *SettingsService) GetSettings(ctx context.Context) (*domain.SettingsDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := s.repo.Get(ctx, nil, user.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	dto := mapper.ToSettingsDTO(settings)
	return &dto, nil
}

// UpdateSettings replaces the sections present in req and keeps the others
func (s *SettingsService) UpdateSettings(ctx context.Context, req *domain.UpdateSettingsRequest) (*domain.SettingsDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	settings, err := s.repo.Get(ctx, nil, user.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if req.Profile != nil {
		settings.Profile = datatypes.NewJSONType(*req.Profile)
	}
	if req.Costs != nil {
		if req.Costs.OpenCell < 0 || req.Costs.ClosedCell < 0 || req.Costs.LaborRate < 0 {
			return nil, fmt.Errorf("%w: costs cannot be negative", ErrInvalidInput)
		}
		settings.Costs = datatypes.NewJSONType(*req.Costs)
	}
	if req.Yields != nil {
		settings.Yields = datatypes.NewJSONType(*req.Yields)
	}
	if req.Expenses != nil {
		settings.Expenses = datatypes.NewJSONType(*req.Expenses)
	}

	if err := s.repo.Upsert(ctx, nil, settings); err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}

	s.logger.Info("settings updated",
		zap.String("company_id", string(user.CompanyID)),
		zap.String("by", user.Actor()))

	dto := mapper.ToSettingsDTO(settings)
	return &dto, nil
}
