package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/sprayline/foamops-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NumberSequenceRepository hands out per-company, per-year invoice sequence numbers
type NumberSequenceRepository struct {
	db *gorm.DB
}

// NewNumberSequenceRepository creates a new NumberSequenceRepository
func NewNumberSequenceRepository(db *gorm.DB) *NumberSequenceRepository {
	return &NumberSequenceRepository{db: db}
}

// GetNextNumber atomically retrieves and increments the sequence for a company/year.
// The row is locked with SELECT FOR UPDATE; a missing row starts at 1. Called
// with a caller transaction the increment commits or rolls back with it.
func (r *NumberSequenceRepository) GetNextNumber(ctx context.Context, tx *gorm.DB, companyID domain.CompanyID, year int) (int, error) {
	var nextSeq int

	err := conn(r.db, tx).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq domain.NumberSequence
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("company_id = ? AND year = ?", companyID, year).
			First(&seq)

		switch {
		case errors.Is(result.Error, gorm.ErrRecordNotFound):
			seq = domain.NumberSequence{
				CompanyID:    companyID,
				Year:         year,
				LastSequence: 1,
			}
			if err := tx.Create(&seq).Error; err != nil {
				return fmt.Errorf("failed to create number sequence: %w", err)
			}
			nextSeq = 1
		case result.Error != nil:
			return fmt.Errorf("failed to get number sequence: %w", result.Error)
		default:
			nextSeq = seq.LastSequence + 1
			if err := tx.Model(&seq).Update("last_sequence", nextSeq).Error; err != nil {
				return fmt.Errorf("failed to update number sequence: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return nextSeq, nil
}

// GetCurrentSequence returns the last issued number, or 0 when none has been issued
func (r *NumberSequenceRepository) GetCurrentSequence(ctx context.Context, companyID domain.CompanyID, year int) (int, error) {
	var seq domain.NumberSequence
	result := r.db.WithContext(ctx).
		Where("company_id = ? AND year = ?", companyID, year).
		First(&seq)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if result.Error != nil {
		return 0, fmt.Errorf("failed to get number sequence: %w", result.Error)
	}

	return seq.LastSequence, nil
}
