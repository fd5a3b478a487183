package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sprayline/foamops-api/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// DefaultSettings is what a company sees before it saves its own settings
func DefaultSettings(companyID domain.CompanyID) domain.CompanySettings {
	return domain.CompanySettings{
		CompanyID: companyID,
		Profile:   datatypes.NewJSONType(domain.CompanyProfile{}),
		Costs:     datatypes.NewJSONType(domain.DefaultCostSettings()),
		Yields:    datatypes.NewJSONType(domain.DefaultYieldSettings()),
		Expenses:  datatypes.NewJSONType(domain.DefaultExpenseDefaults()),
	}
}

// Get returns stored settings, or the defaults when none are stored
func (r *SettingsRepository) Get(ctx context.Context, tx *gorm.DB, companyID domain.CompanyID) (*domain.CompanySettings, error) {
	var s domain.CompanySettings
	err := conn(r.db, tx).WithContext(ctx).Where("company_id = ?", companyID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		defaults := DefaultSettings(companyID)
		return &defaults, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert writes all sections of a company's settings
func (r *SettingsRepository) Upsert(ctx context.Context, tx *gorm.DB, s *domain.CompanySettings) error {
	s.UpdatedAt = time.Now().UTC()
	return conn(r.db, tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "company_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"profile", "costs", "yields", "expenses", "updated_at"}),
		}).
		Create(s).Error
}
