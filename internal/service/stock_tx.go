package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sprayline/foamops-api/internal/auth"
	"github.com/sprayline/foamops-api/internal/domain"
	"github.com/sprayline/foamops-api/internal/lock"
	"github.com/sprayline/foamops-api/internal/repository"
	"gorm.io/gorm"
)

// stockTx runs warehouse mutations one at a time per company. Each operation
// is a single database transaction taken under the company's stock lock.
type stockTx struct {
	db     *gorm.DB
	locker lock.Locker
}

func (s stockTx) run(ctx context.Context, companyID domain.CompanyID, fn func(tx *gorm.DB) error) error {
	unlock, err := s.locker.Lock(ctx, lock.CompanyKey(string(companyID)))
	if err != nil {
		return fmt.Errorf("failed to lock warehouse: %w", err)
	}
	defer unlock()

	return s.db.WithContext(ctx).Transaction(fn)
}

// currentUser returns the caller, who must belong to a company
func currentUser(ctx context.Context) (*auth.UserContext, error) {
	user, ok := auth.FromContext(ctx)
	if !ok || user.CompanyID == "" {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// loadEstimate maps a missing row to ErrEstimateNotFound
func loadEstimate(ctx context.Context, repo *repository.EstimateRepository, tx *gorm.DB, companyID domain.CompanyID, id uuid.UUID) (*domain.Estimate, error) {
	est, err := repo.GetByID(ctx, tx, companyID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEstimateNotFound
		}
		return nil, fmt.Errorf("failed to get estimate: %w", err)
	}
	return est, nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
