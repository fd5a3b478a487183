package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/sprayline/foamops-api/internal/domain"
	"gorm.io/gorm"
)

// PurchaseOrderRepository stores immutable stock-replenishment records
type PurchaseOrderRepository struct {
	db *gorm.DB
}

func NewPurchaseOrderRepository(db *gorm.DB) *PurchaseOrderRepository {
	return &PurchaseOrderRepository{db: db}
}

func (r *PurchaseOrderRepository) Create(ctx context.Context, tx *gorm.DB, po *domain.PurchaseOrder) error {
	return conn(r.db, tx).WithContext(ctx).Create(po).Error
}

func (r *PurchaseOrderRepository) List(ctx context.Context, tx *gorm.DB, companyID domain.CompanyID, page, pageSize int) ([]domain.PurchaseOrder, int64, error) {
	var orders []domain.PurchaseOrder
	var total int64

	query := conn(r.db, tx).WithContext(ctx).Model(&domain.PurchaseOrder{}).Scopes(ForCompany(companyID))
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Scopes(Paginate(page, pageSize)).Order("order_date DESC, created_at DESC").Find(&orders).Error
	return orders, total, err
}

// UsageLogRepository is the append-only material usage audit trail
type UsageLogRepository struct {
	db *gorm.DB
}

func NewUsageLogRepository(db *gorm.DB) *UsageLogRepository {
	return &UsageLogRepository{db: db}
}

func (r *UsageLogRepository) CreateBatch(ctx context.Context, tx *gorm.DB, entries []domain.MaterialUsageLog) error {
	if len(entries) == 0 {
		return nil
	}
	return conn(r.db, tx).WithContext(ctx).Create(&entries).Error
}

func (r *UsageLogRepository) List(ctx context.Context, tx *gorm.DB, companyID domain.CompanyID, estimateID *uuid.UUID, page, pageSize int) ([]domain.MaterialUsageLog, int64, error) {
	var entries []domain.MaterialUsageLog
	var total int64

	query := conn(r.db, tx).WithContext(ctx).Model(&domain.MaterialUsageLog{}).Scopes(ForCompany(companyID))
	if estimateID != nil {
		query = query.Where("estimate_id = ?", *estimateID)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Scopes(Paginate(page, pageSize)).Order("logged_at DESC").Find(&entries).Error
	return entries, total, err
}

// ProfitLossRepository stores one immutable record per paid estimate
type ProfitLossRepository struct {
	db *gorm.DB
}

func NewProfitLossRepository(db *gorm.DB) *ProfitLossRepository {
	return &ProfitLossRepository{db: db}
}

func (r *ProfitLossRepository) Create(ctx context.Context, tx *gorm.DB, rec *domain.ProfitLossRecord) error {
	return conn(r.db, tx).WithContext(ctx).Create(rec).Error
}

func (r *ProfitLossRepository) List(ctx context.Context, tx *gorm.DB, companyID domain.CompanyID, page, pageSize int) ([]domain.ProfitLossRecord, int64, error) {
	var records []domain.ProfitLossRecord
	var total int64

	query := conn(r.db, tx).WithContext(ctx).Model(&domain.ProfitLossRecord{}).Scopes(ForCompany(companyID))
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Scopes(Paginate(page, pageSize)).Order("recorded_at DESC").Find(&records).Error
	return records, total, err
}

func (r *ProfitLossRepository) GetByEstimate(ctx context.Context, tx *gorm.DB, companyID domain.CompanyID, estimateID uuid.UUID) (*domain.ProfitLossRecord, error) {
	var rec domain.ProfitLossRecord
	err := conn(r.db, tx).WithContext(ctx).
		Scopes(ForCompany(companyID)).
		Where("estimate_id = ?", estimateID).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
