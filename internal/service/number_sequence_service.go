package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sprayline/foamops-api/internal/domain"
	"github.com/sprayline/foamops-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InvoicePrefix starts every invoice number
const InvoicePrefix = "INV"

// NumberSequenceService issues invoice numbers from a per-company, per-year
// counter. Numbers are strictly increasing within a company and year.
//
// Format: INV-{YEAR}-{SEQUENCE}
// Example: INV-2026-0001
type NumberSequenceService struct {
	repo   *repository.NumberSequenceRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewNumberSequenceService creates a new NumberSequenceService
func NewNumberSequenceService(
	repo *repository.NumberSequenceRepository,
	logger *zap.Logger,
) *NumberSequenceService {
	return &NumberSequenceService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// GenerateInvoiceNumber reserves the next number for a company. Pass the
// transaction that saves the number so a rolled back save releases it; with a
// nil tx the number commits on its own and may leave a gap.
func (s *NumberSequenceService) GenerateInvoiceNumber(ctx context.Context, tx *gorm.DB, companyID domain.CompanyID) (string, error) {
	if companyID == "" {
		return "", fmt.Errorf("%w: company id is required", ErrInvalidInput)
	}

	year := s.now().Year()

	nextSeq, err := s.repo.GetNextNumber(ctx, tx, companyID, year)
	if err != nil {
		s.logger.Error("failed to get next sequence number",
			zap.String("company_id", string(companyID)),
			zap.Int("year", year),
			zap.Error(err))
		return "", fmt.Errorf("failed to generate invoice number: %w", err)
	}

	number := FormatInvoiceNumber(year, nextSeq)

	s.logger.Info("generated invoice number",
		zap.String("company_id", string(companyID)),
		zap.String("number", number))

	return number, nil
}

// FormatInvoiceNumber renders a sequence value
func FormatInvoiceNumber(year, seq int) string {
	return fmt.Sprintf("%s-%d-%04d", InvoicePrefix, year, seq)
}
