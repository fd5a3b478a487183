package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sprayline/foamops-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EstimateFilters narrows an estimate listing
type EstimateFilters struct {
	Status          *domain.EstimateStatus
	ExecutionStatus *domain.ExecutionStatus
	IncludeArchived bool
	Search          string
}

var estimateSortFields = map[string]string{
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
	"customerName": "customer_name",
	"totalValue":   "total_value",
	"status":       "status",
}

type EstimateRepository struct {
	db *gorm.DB
}

func NewEstimateRepository(db *gorm.DB) *EstimateRepository {
	return &EstimateRepository{db: db}
}

func (r *EstimateRepository) Create(ctx context.Context, tx *gorm.DB, est *domain.Estimate) error {
	if est.Version == 0 {
		est.Version = 1
	}
	return conn(r.db, tx).WithContext(ctx).Create(est).Error
}

func (r *EstimateRepository) GetByID(ctx context.Context, tx *gorm.DB, companyID domain.CompanyID, id uuid.UUID) (*domain.Estimate, error) {
	var est domain.Estimate
	err := conn(r.db, tx).WithContext(ctx).
		Scopes(ForCompany(companyID)).
		Where("id = ?", id).
		First(&est).Error
	if err != nil {
		return nil, err
	}
	return &est, nil
}

// Update saves every column and bumps the version stamp
func (r *EstimateRepository) Update(ctx context.Context, tx *gorm.DB, est *domain.Estimate) error {
	est.Version++
	return conn(r.db, tx).WithContext(ctx).Save(est).Error
}

func (r *EstimateRepository) Delete(ctx context.Context, tx *gorm.DB, companyID domain.CompanyID, id uuid.UUID) error {
	result := conn(r.db, tx).WithContext(ctx).
		Scopes(ForCompany(companyID)).
		Delete(&domain.Estimate{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *EstimateRepository) List(ctx context.Context, companyID domain.CompanyID, filters EstimateFilters, page, pageSize int, sort SortConfig) ([]domain.Estimate, int64, error) {
	var estimates []domain.Estimate
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Estimate{}).Scopes(ForCompany(companyID))

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	} else if !filters.IncludeArchived {
		query = query.Where("status <> ?", domain.EstimateStatusArchived)
	}
	if filters.ExecutionStatus != nil {
		query = query.Where("execution_status = ?", *filters.ExecutionStatus)
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(customer_name) LIKE ? OR LOWER(job_address) LIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Scopes(Paginate(page, pageSize)).
		Order(BuildOrderClause(sort, estimateSortFields, "updated_at")).
		Find(&estimates).Error

	return estimates, total, err
}

// ListAll returns every estimate of a company, archived included, for full snapshots
func (r *EstimateRepository) ListAll(ctx context.Context, tx *gorm.DB, companyID domain.CompanyID) ([]domain.Estimate, error) {
	var estimates []domain.Estimate
	err := conn(r.db, tx).WithContext(ctx).
		Scopes(ForCompany(companyID)).
		Order("created_at ASC").
		Find(&estimates).Error
	return estimates, err
}

// SetDocumentURL stores a rendered document link without touching the version stamp
func (r *EstimateRepository) SetDocumentURL(ctx context.Context, companyID domain.CompanyID, id uuid.UUID, column, url string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Estimate{}).
		Scopes(ForCompany(companyID)).
		Where("id = ?", id).
		UpdateColumn(column, url).Error
}

// Tombstone records that an estimate was hard-deleted
func (r *EstimateRepository) Tombstone(ctx context.Context, tx *gorm.DB, companyID domain.CompanyID, id uuid.UUID, actor string, at time.Time) error {
	return conn(r.db, tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.DeletedEstimate{ID: id, CompanyID: companyID, DeletedByName: actor, DeletedAt: at}).Error
}

// IsTombstoned reports whether the company once hard-deleted this estimate
func (r *EstimateRepository) IsTombstoned(ctx context.Context, tx *gorm.DB, companyID domain.CompanyID, id uuid.UUID) (bool, error) {
	var n int64
	err := conn(r.db, tx).WithContext(ctx).
		Model(&domain.DeletedEstimate{}).
		Scopes(ForCompany(companyID)).
		Where("id = ?", id).
		Count(&n).Error
	return n > 0, err
}

// ListTombstones returns every hard-deleted estimate id of a company
func (r *EstimateRepository) ListTombstones(ctx context.Context, tx *gorm.DB, companyID domain.CompanyID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := conn(r.db, tx).WithContext(ctx).
		Model(&domain.DeletedEstimate{}).
		Scopes(ForCompany(companyID)).
		Order("deleted_at ASC").
		Pluck("id", &ids).Error
	return ids, err
}
