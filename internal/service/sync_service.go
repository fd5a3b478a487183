package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sprayline/foamops-api/internal/domain"
	"github.com/sprayline/foamops-api/internal/inventory"
	"github.com/sprayline/foamops-api/internal/lock"
	"github.com/sprayline/foamops-api/internal/mapper"
	"github.com/sprayline/foamops-api/internal/metrics"
	"github.com/sprayline/foamops-api/internal/quantity"
	"github.com/sprayline/foamops-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// snapshotPurchaseOrders caps how many recent receipts a pull carries
const snapshotPurchaseOrders = 100

// SyncService serves whole-tenant snapshots to devices and merges the
// snapshots office devices push back
type SyncService struct {
	db            *gorm.DB
	stock         stockTx
	estimateRepo  *repository.EstimateRepository
	warehouseRepo *repository.WarehouseRepository
	poRepo        *repository.PurchaseOrderRepository
	settingsRepo  *repository.SettingsRepository
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewSyncService creates a new SyncService
func NewSyncService(
	db *gorm.DB,
	locker lock.Locker,
	estimateRepo *repository.EstimateRepository,
	warehouseRepo *repository.WarehouseRepository,
	poRepo *repository.PurchaseOrderRepository,
	settingsRepo *repository.SettingsRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) *SyncService {
	return &SyncService{
		db:            db,
		stock:         stockTx{db: db, locker: locker},
		estimateRepo:  estimateRepo,
		warehouseRepo: warehouseRepo,
		poRepo:        poRepo,
		settingsRepo:  settingsRepo,
		metrics:       m,
		logger:        logger,
	}
}

// PullSnapshot returns the caller's full dataset. Archived estimates are
// included so devices can hide them locally.
func (s *SyncService) PullSnapshot(ctx context.Context) (*domain.TenantSnapshot, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	settings, err := s.settingsRepo.Get(ctx, nil, user.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	w, err := s.warehouseRepo.Get(ctx, nil, user.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load warehouse: %w", err)
	}
	estimates, err := s.estimateRepo.ListAll(ctx, nil, user.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load estimates: %w", err)
	}
	orders, _, err := s.poRepo.List(ctx, nil, user.CompanyID, 1, snapshotPurchaseOrders)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase orders: %w", err)
	}
	deleted, err := s.estimateRepo.ListTombstones(ctx, nil, user.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load deleted estimates: %w", err)
	}

	snapshot := &domain.TenantSnapshot{
		Settings:   mapper.ToSettingsDTO(settings),
		Warehouse:  mapper.ToWarehouseDTO(w),
		Estimates:  mapper.ToEstimateDTOs(estimates),
		ServerTime: nowUTC().Format(mapper.TimeFormat),

		DeletedEstimateIDs: deleted,
	}
	for i := range orders {
		snapshot.PurchaseOrders = append(snapshot.PurchaseOrders, mapper.ToPurchaseOrderDTO(&orders[i]))
	}
	return snapshot, nil
}

// PushSnapshot merges a device's full dataset. Settings and estimate content
// are last-write-wins. Stock counters, reservations, actuals, financials and
// invoice numbers stay as the server has them, and an estimate's status never
// moves backwards. Estimates missing from the push are left alone and
// estimates the server has deleted are never recreated.
func (s *SyncService) PushSnapshot(ctx context.Context, snapshot *domain.TenantSnapshot) (*domain.PushResult, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if user.IsCrewOnly() {
		return nil, ErrPushForbiddenForCrew
	}
	if !user.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	result := &domain.PushResult{}
	err = s.stock.run(ctx, user.CompanyID, func(tx *gorm.DB) error {
		if err := s.pushSettings(ctx, tx, user.CompanyID, snapshot.Settings); err != nil {
			return err
		}

		w, err := s.warehouseRepo.Get(ctx, tx, user.CompanyID)
		if err != nil {
			return fmt.Errorf("failed to load warehouse: %w", err)
		}
		if !quantity.IsZero(quantity.Sub(w.OpenCellSets, snapshot.Warehouse.OpenCellSets)) ||
			!quantity.IsZero(quantity.Sub(w.ClosedCellSets, snapshot.Warehouse.ClosedCellSets)) {
			result.Warnings = append(result.Warnings, "warehouse counters differ from the server and were not applied")
		}

		for _, dto := range snapshot.Estimates {
			if dto.ID == uuid.Nil {
				result.Warnings = append(result.Warnings, "estimate without id skipped")
				continue
			}
			if err := s.pushEstimate(ctx, tx, user.CompanyID, user.Actor(), dto, result); err != nil {
				return fmt.Errorf("estimate %s: %w", dto.ID, err)
			}
		}
		return nil
	})
	s.metrics.SyncPush(err)
	if err != nil {
		s.logger.Warn("snapshot push failed",
			zap.String("company_id", string(user.CompanyID)),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("snapshot pushed",
		zap.String("company_id", string(user.CompanyID)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("skipped", result.Skipped),
		zap.Int("warnings", len(result.Warnings)))
	return result, nil
}

func (s *SyncService) pushSettings(ctx context.Context, tx *gorm.DB, companyID domain.CompanyID, dto domain.SettingsDTO) error {
	settings := &domain.CompanySettings{
		CompanyID: companyID,
		Profile:   datatypes.NewJSONType(dto.Profile),
		Costs:     datatypes.NewJSONType(dto.Costs),
		Yields:    datatypes.NewJSONType(dto.Yields),
		Expenses:  datatypes.NewJSONType(dto.Expenses),
	}
	if err := s.settingsRepo.Upsert(ctx, tx, settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func (s *SyncService) pushEstimate(ctx context.Context, tx *gorm.DB, companyID domain.CompanyID, actor string, dto domain.EstimateDTO, result *domain.PushResult) error {
	existing, err := s.estimateRepo.GetByID(ctx, tx, companyID, dto.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.createPushedEstimate(ctx, tx, companyID, actor, dto, result)
	}
	if err != nil {
		return fmt.Errorf("failed to get estimate: %w", err)
	}

	before, err := contentOf(existing)
	if err != nil {
		return err
	}

	merged := domain.MergeLifecycle(existing.Lifecycle(), domain.LifecycleState{Status: dto.Status, Execution: dto.ExecutionStatus})
	if merged != existing.Lifecycle() {
		if merged.Status == domain.EstimateStatusArchived && existing.Status.CanArchive() && merged.Execution == existing.ExecutionStatus {
			existing.Status = domain.EstimateStatusArchived
		} else {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("estimate %s: %s to %s must go through its lifecycle action", existing.ID, existing.Lifecycle(), merged))
		}
	}

	snap := existing.Materials.Data()
	snap.MaterialSet = dto.Materials.MaterialSet.Clone()
	if existing.IsActiveWorkOrder() && snap.Reserved != nil {
		delta, reservation := inventory.AdjustReservation(*snap.Reserved, snap.MaterialSet)
		if !delta.IsZero() {
			missing, err := s.warehouseRepo.ApplyDelta(ctx, tx, companyID, delta)
			if err != nil {
				return fmt.Errorf("failed to adjust stock: %w", err)
			}
			s.metrics.StockMutation("adjust")
			if len(missing) > 0 {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("estimate %s: items not in warehouse: %s", existing.ID, strings.Join(missing, ", ")))
			}
			snap.Reserved = &reservation
		}
	}

	existing.CustomerName = strings.TrimSpace(dto.CustomerName)
	existing.JobAddress = strings.TrimSpace(dto.JobAddress)
	existing.TotalValue = quantity.Round2(dto.TotalValue)
	existing.LaborRate = dto.LaborRate
	existing.Results = datatypes.NewJSONType(dto.Results)
	existing.Materials = datatypes.NewJSONType(snap)
	existing.Expenses = datatypes.NewJSONType(dto.Expenses)
	existing.Notes = dto.Notes

	after, err := contentOf(existing)
	if err != nil {
		return err
	}
	if bytes.Equal(before, after) {
		result.Unchanged++
		return nil
	}

	existing.UpdatedByName = actor
	if err := s.estimateRepo.Update(ctx, tx, existing); err != nil {
		return fmt.Errorf("failed to update estimate: %w", err)
	}
	result.Updated++
	return nil
}

// createPushedEstimate stores an estimate first seen in a push. It always lands
// as an unsold draft, or archived draft, since nothing was withdrawn for it on
// the server; confirming it goes through ConfirmWorkOrder.
func (s *SyncService) createPushedEstimate(ctx context.Context, tx *gorm.DB, companyID domain.CompanyID, actor string, dto domain.EstimateDTO, result *domain.PushResult) error {
	deleted, err := s.estimateRepo.IsTombstoned(ctx, tx, companyID, dto.ID)
	if err != nil {
		return fmt.Errorf("failed to check deleted estimates: %w", err)
	}
	if deleted {
		s.logger.Warn("push named a deleted estimate, skipped",
			zap.String("company_id", string(companyID)),
			zap.String("estimate_id", dto.ID.String()))
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("estimate %s was deleted on the server and was not recreated", dto.ID))
		result.Skipped++
		return nil
	}

	est := mapper.EstimateFromDTO(companyID, dto)
	snap := est.Materials.Data()
	snap.Reserved = nil
	est.Materials = datatypes.NewJSONType(snap)

	pushed := domain.MergeLifecycle(domain.NewLifecycleState(), est.Lifecycle())
	lifecycle := domain.NewLifecycleState()
	if pushed.Status == domain.EstimateStatusArchived {
		lifecycle.Status = domain.EstimateStatusArchived
	}
	if pushed != lifecycle {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("estimate %s arrived as %s and was stored as %s; confirm it to reserve stock", est.ID, pushed, lifecycle))
	}
	est.Status, est.ExecutionStatus = lifecycle.Status, lifecycle.Execution
	est.Actuals = datatypes.NewJSONType[*domain.JobActuals](nil)
	est.Financials = datatypes.NewJSONType[*domain.FinancialSnapshot](nil)
	est.InvoiceNumber = ""
	est.InvoiceDate = nil
	est.PaidDate = nil
	est.UpdatedByName = actor

	if err := s.estimateRepo.Create(ctx, tx, est); err != nil {
		return fmt.Errorf("failed to create estimate: %w", err)
	}
	result.Created++
	return nil
}

// contentOf serialises the fields a push may change
func contentOf(est *domain.Estimate) ([]byte, error) {
	b, err := json.Marshal(struct {
		CustomerName string
		JobAddress   string
		Status       domain.EstimateStatus
		TotalValue   float64
		LaborRate    *float64
		Results      domain.CalculationResults
		Materials    domain.MaterialSnapshot
		Expenses     domain.JobExpenses
		Notes        string
	}{
		est.CustomerName, est.JobAddress, est.Status, est.TotalValue, est.LaborRate,
		est.Results.Data(), est.Materials.Data(), est.Expenses.Data(), est.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode estimate: %w", err)
	}
	return b, nil
}
