package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sprayline/foamops-api/internal/domain"
	"github.com/sprayline/foamops-api/internal/financials"
	"github.com/sprayline/foamops-api/internal/inventory"
	"github.com/sprayline/foamops-api/internal/lock"
	applog "github.com/sprayline/foamops-api/internal/logger"
	"github.com/sprayline/foamops-api/internal/mapper"
	"github.com/sprayline/foamops-api/internal/metrics"
	"github.com/sprayline/foamops-api/internal/quantity"
	"github.com/sprayline/foamops-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EstimateService runs the estimate lifecycle: draft, work order, job
// completion, invoice, payment, archive and delete. Every transition that
// moves stock does so in the same transaction as the estimate write.
type EstimateService struct {
	db            *gorm.DB
	stock         stockTx
	estimateRepo  *repository.EstimateRepository
	warehouseRepo *repository.WarehouseRepository
	usageRepo     *repository.UsageLogRepository
	profitRepo    *repository.ProfitLossRepository
	settingsRepo  *repository.SettingsRepository
	numbers       *NumberSequenceService
	outbox        *OutboxService
	metrics       *metrics.Metrics
	logger        *zap.Logger
	now           func() time.Time
}

// NewEstimateService creates a new EstimateService
func NewEstimateService(
	db *gorm.DB,
	locker lock.Locker,
	estimateRepo *repository.EstimateRepository,
	warehouseRepo *repository.WarehouseRepository,
	usageRepo *repository.UsageLogRepository,
	profitRepo *repository.ProfitLossRepository,
	settingsRepo *repository.SettingsRepository,
	numbers *NumberSequenceService,
	outbox *OutboxService,
	m *metrics.Metrics,
	logger *zap.Logger,
) *EstimateService {
	return &EstimateService{
		db:            db,
		stock:         stockTx{db: db, locker: locker},
		estimateRepo:  estimateRepo,
		warehouseRepo: warehouseRepo,
		usageRepo:     usageRepo,
		profitRepo:    profitRepo,
		settingsRepo:  settingsRepo,
		numbers:       numbers,
		outbox:        outbox,
		metrics:       m,
		logger:        logger,
		now:           time.Now,
	}
}

// ============================================================================
// Queries
// ============================================================================

// GetEstimate returns one estimate of the caller's company
func (s *EstimateService) GetEstimate(ctx context.Context, id uuid.UUID) (*domain.EstimateDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	est, err := loadEstimate(ctx, s.estimateRepo, nil, user.CompanyID, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToEstimateDTO(est)
	return &dto, nil
}

// ListEstimates returns a page of estimates. Archived estimates are excluded
// unless the filter asks for them.
func (s *EstimateService) ListEstimates(ctx context.Context, filters repository.EstimateFilters, page, pageSize int, sort repository.SortConfig) (*domain.PaginatedResponse, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	page, pageSize = normalizePage(page, pageSize)

	estimates, total, err := s.estimateRepo.List(ctx, user.CompanyID, filters, page, pageSize, sort)
	if err != nil {
		return nil, fmt.Errorf("failed to list estimates: %w", err)
	}
	return paginated(mapper.ToEstimateDTOs(estimates), total, page, pageSize), nil
}

// PreviewShortage reports which materials would go negative if the estimate
// were confirmed (or re-confirmed) now
func (s *EstimateService) PreviewShortage(ctx context.Context, id uuid.UUID) (*domain.ShortagePreviewDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	est, err := loadEstimate(ctx, s.estimateRepo, nil, user.CompanyID, id)
	if err != nil {
		return nil, err
	}
	w, err := s.warehouseRepo.Get(ctx, nil, user.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load warehouse: %w", err)
	}

	snap := est.Materials.Data()
	var delta inventory.StockDelta
	switch {
	case !est.IsAlreadySold():
		delta, _ = inventory.Reserve(snap.MaterialSet)
	case est.IsActiveWorkOrder() && snap.Reserved != nil:
		delta, _ = inventory.AdjustReservation(*snap.Reserved, snap.MaterialSet)
	}

	shortages := inventory.Shortages(*w, delta)
	return &domain.ShortagePreviewDTO{
		EstimateID:  est.ID,
		HasShortage: len(shortages) > 0,
		Shortages:   mapper.ToShortageDTOs(shortages),
	}, nil
}

// ============================================================================
// Draft editing
// ============================================================================

// CreateEstimate saves a new draft. A client-generated id is kept so offline
// devices can refer to the estimate before it reaches the server.
func (s *EstimateService) CreateEstimate(ctx context.Context, req *domain.CreateEstimateRequest) (*domain.EstimateDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	var expenses domain.JobExpenses
	if req.Expenses != nil {
		expenses = *req.Expenses
	} else {
		settings, err := s.settingsRepo.Get(ctx, nil, user.CompanyID)
		if err != nil {
			return nil, fmt.Errorf("failed to load settings: %w", err)
		}
		defaults := settings.Expenses.Data()
		expenses = domain.JobExpenses{TripCharge: defaults.TripCharge, FuelSurcharge: defaults.FuelSurcharge}
	}

	lifecycle := domain.NewLifecycleState()
	est := &domain.Estimate{
		CompanyID:       user.CompanyID,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		JobAddress:      strings.TrimSpace(req.JobAddress),
		Status:          lifecycle.Status,
		ExecutionStatus: lifecycle.Execution,
		TotalValue:      quantity.Round2(req.TotalValue),
		LaborRate:       req.LaborRate,
		Results:         datatypes.NewJSONType(req.Results),
		Materials:       datatypes.NewJSONType(domain.MaterialSnapshot{MaterialSet: req.Materials.Clone()}),
		Actuals:         datatypes.NewJSONType[*domain.JobActuals](nil),
		Financials:      datatypes.NewJSONType[*domain.FinancialSnapshot](nil),
		Expenses:        datatypes.NewJSONType(expenses),
		Notes:           req.Notes,
		CreatedByID:     user.UserID,
		CreatedByName:   user.Actor(),
		UpdatedByName:   user.Actor(),
	}

	if req.ID != nil && *req.ID != uuid.Nil {
		_, err := s.estimateRepo.GetByID(ctx, nil, user.CompanyID, *req.ID)
		if err == nil {
			return nil, ErrEstimateExists
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to check estimate id: %w", err)
		}
		est.ID = *req.ID
	}

	if err := s.estimateRepo.Create(ctx, nil, est); err != nil {
		return nil, fmt.Errorf("failed to create estimate: %w", err)
	}

	applog.WithEstimate(s.logger, est).Info("estimate created")

	dto := mapper.ToEstimateDTO(est)
	return &dto, nil
}

// SaveEstimate replaces the editable content of an estimate. When an active
// work order's materials change, the reservation follows them and the
// difference moves stock.
func (s *EstimateService) SaveEstimate(ctx context.Context, id uuid.UUID, req *domain.UpdateEstimateRequest) (*domain.EstimateDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	var saved *domain.Estimate
	err = s.stock.run(ctx, user.CompanyID, func(tx *gorm.DB) error {
		est, err := loadEstimate(ctx, s.estimateRepo, tx, user.CompanyID, id)
		if err != nil {
			return err
		}
		if est.Status == domain.EstimateStatusArchived {
			return transitionError("edit", est.Lifecycle())
		}

		snap := est.Materials.Data()
		snap.MaterialSet = req.Materials.Clone()
		if est.IsActiveWorkOrder() && snap.Reserved != nil {
			delta, reservation := inventory.AdjustReservation(*snap.Reserved, snap.MaterialSet)
			if !delta.IsZero() {
				if err := s.moveStock(ctx, tx, est, delta, "adjust"); err != nil {
					return err
				}
				snap.Reserved = &reservation
			}
		}

		est.CustomerName = strings.TrimSpace(req.CustomerName)
		est.JobAddress = strings.TrimSpace(req.JobAddress)
		est.TotalValue = quantity.Round2(req.TotalValue)
		est.LaborRate = req.LaborRate
		est.Results = datatypes.NewJSONType(req.Results)
		est.Materials = datatypes.NewJSONType(snap)
		est.Expenses = datatypes.NewJSONType(req.Expenses)
		est.Notes = req.Notes
		est.UpdatedByName = user.Actor()

		if err := s.estimateRepo.Update(ctx, tx, est); err != nil {
			return fmt.Errorf("failed to update estimate: %w", err)
		}
		saved = est
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto := mapper.ToEstimateDTO(saved)
	return &dto, nil
}

// ============================================================================
// Lifecycle transitions
// ============================================================================

// ConfirmWorkOrder sells the estimate. The first confirmation withdraws the
// required materials and records them as the reservation. Confirming an
// estimate that is already sold only moves stock by the change in materials.
func (s *EstimateService) ConfirmWorkOrder(ctx context.Context, id uuid.UUID, req *domain.ConfirmWorkOrderRequest) (*domain.EstimateDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	var saved *domain.Estimate
	err = s.stock.run(ctx, user.CompanyID, func(tx *gorm.DB) error {
		est, err := loadEstimate(ctx, s.estimateRepo, tx, user.CompanyID, id)
		if err != nil {
			return err
		}
		if !est.HasCustomerName() {
			return ErrCustomerNameRequired
		}
		if est.Status == domain.EstimateStatusArchived {
			return transitionError("confirm", est.Lifecycle())
		}

		snap := est.Materials.Data()
		if req.Materials != nil {
			snap.MaterialSet = req.Materials.Clone()
		}

		if est.IsAlreadySold() {
			if req.Materials == nil {
				saved = est
				return nil
			}
			if est.IsActiveWorkOrder() && snap.Reserved != nil {
				delta, reservation := inventory.AdjustReservation(*snap.Reserved, snap.MaterialSet)
				if !delta.IsZero() {
					if err := s.checkShortage(ctx, tx, est, delta, req.AcknowledgeShortage); err != nil {
						return err
					}
					if err := s.moveStock(ctx, tx, est, delta, "adjust"); err != nil {
						return err
					}
					snap.Reserved = &reservation
				}
			}
			est.Materials = datatypes.NewJSONType(snap)
			est.UpdatedByName = user.Actor()
			if err := s.estimateRepo.Update(ctx, tx, est); err != nil {
				return fmt.Errorf("failed to update estimate: %w", err)
			}
			saved = est
			return nil
		}

		delta, reservation := inventory.Reserve(snap.MaterialSet)
		if err := s.checkShortage(ctx, tx, est, delta, req.AcknowledgeShortage); err != nil {
			return err
		}
		if !delta.IsZero() {
			if err := s.moveStock(ctx, tx, est, delta, "reserve"); err != nil {
				return err
			}
		}

		snap.Reserved = &reservation
		est.Materials = datatypes.NewJSONType(snap)
		est.Status = domain.EstimateStatusWorkOrder
		est.ExecutionStatus = domain.ExecutionStatusNotStarted
		est.UpdatedByName = user.Actor()

		if err := s.estimateRepo.Update(ctx, tx, est); err != nil {
			return fmt.Errorf("failed to update estimate: %w", err)
		}
		if err := s.outbox.Emit(ctx, tx, domain.OutboxEventWorkOrderConfirmed, est); err != nil {
			return err
		}
		saved = est
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition("confirm_work_order")
	s.logger.Info("work order confirmed",
		zap.String("estimate_id", saved.ID.String()),
		zap.String("company_id", string(saved.CompanyID)),
		zap.String("state", saved.Lifecycle().String()))

	dto := mapper.ToEstimateDTO(saved)
	return &dto, nil
}

// StartJob marks field work as begun
func (s *EstimateService) StartJob(ctx context.Context, id uuid.UUID) (*domain.EstimateDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	var saved *domain.Estimate
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		est, err := loadEstimate(ctx, s.estimateRepo, tx, user.CompanyID, id)
		if err != nil {
			return err
		}
		if est.Status != domain.EstimateStatusWorkOrder {
			return transitionError("start", est.Lifecycle())
		}
		switch est.ExecutionStatus {
		case domain.ExecutionStatusInProgress:
			saved = est
			return nil
		case domain.ExecutionStatusNotStarted:
		default:
			return transitionError("start", est.Lifecycle())
		}

		est.ExecutionStatus = domain.ExecutionStatusInProgress
		est.UpdatedByName = user.Actor()
		if err := s.estimateRepo.Update(ctx, tx, est); err != nil {
			return fmt.Errorf("failed to update estimate: %w", err)
		}
		saved = est
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition("start_job")
	dto := mapper.ToEstimateDTO(saved)
	return &dto, nil
}

// CompleteJob records crew actuals and reconciles stock against the
// reservation. Stock and usage rows are written before the execution status
// flips so an interrupted completion can be retried.
func (s *EstimateService) CompleteJob(ctx context.Context, id uuid.UUID, req *domain.CompleteJobRequest) (*domain.EstimateDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	var saved *domain.Estimate
	err = s.stock.run(ctx, user.CompanyID, func(tx *gorm.DB) error {
		est, err := loadEstimate(ctx, s.estimateRepo, tx, user.CompanyID, id)
		if err != nil {
			return err
		}
		if est.ExecutionStatus == domain.ExecutionStatusCompleted || est.Actuals.Data() != nil {
			return ErrActualsAlreadyRecorded
		}
		if est.Status != domain.EstimateStatusWorkOrder {
			return transitionError("complete", est.Lifecycle())
		}

		actuals := domain.JobActuals{
			OpenCellSets:   quantity.Round2(req.OpenCellSets),
			ClosedCellSets: quantity.Round2(req.ClosedCellSets),
			Inventory:      req.Inventory,
			LaborHours:     quantity.Round2(req.LaborHours),
			Notes:          req.Notes,
			CompletedBy:    user.Actor(),
			CompletedAt:    s.now().UTC(),
		}

		snap := est.Materials.Data()
		baseline := snap.MaterialSet
		if snap.Reserved != nil {
			baseline = *snap.Reserved
		} else {
			applog.WithEstimate(s.logger, est).Warn("no reservation baseline, reconciling against estimated materials")
		}

		rec := inventory.Reconcile(baseline, actuals.Usage())
		if !rec.Delta.IsZero() {
			missing, err := s.warehouseRepo.ApplyDelta(ctx, tx, est.CompanyID, rec.Delta)
			if err != nil {
				return fmt.Errorf("failed to reconcile stock: %w", err)
			}
			s.metrics.StockMutation("reconcile")
			if len(missing) > 0 {
				applog.WithEstimate(s.logger, est).Error("reconciliation left inconsistent state",
					zap.Strings("missing_items", missing))
			}
		}

		if err := s.usageRepo.CreateBatch(ctx, tx, inventory.UsageEntries(est, actuals)); err != nil {
			return fmt.Errorf("failed to write usage log: %w", err)
		}

		est.Actuals = datatypes.NewJSONType(&actuals)
		est.ExecutionStatus = domain.ExecutionStatusCompleted
		est.UpdatedByName = user.Actor()
		if err := s.estimateRepo.Update(ctx, tx, est); err != nil {
			return fmt.Errorf("failed to update estimate: %w", err)
		}
		saved = est
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition("complete_job")
	s.logger.Info("job completed",
		zap.String("estimate_id", saved.ID.String()),
		zap.String("completed_by", user.Actor()))

	dto := mapper.ToEstimateDTO(saved)
	return &dto, nil
}

// MarkInvoiced moves a work order to invoiced and assigns an invoice number
// if it has none. Stock is not touched.
func (s *EstimateService) MarkInvoiced(ctx context.Context, id uuid.UUID, req *domain.MarkInvoicedRequest) (*domain.EstimateDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	var est *domain.Estimate
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := loadEstimate(ctx, s.estimateRepo, tx, user.CompanyID, id)
		if err != nil {
			return err
		}
		if err := canInvoice(current); err != nil {
			return err
		}
		est = current

		// Drawn in this transaction so a refused transition leaves no gap
		if est.InvoiceNumber == "" {
			number, err := s.numbers.GenerateInvoiceNumber(ctx, tx, user.CompanyID)
			if err != nil {
				return err
			}
			est.InvoiceNumber = number
		}
		invoiceDate := s.now().UTC()
		if req.InvoiceDate != nil {
			invoiceDate = req.InvoiceDate.UTC()
		}
		est.InvoiceDate = &invoiceDate
		if req.ApplyActuals {
			if actuals := est.Actuals.Data(); actuals != nil {
				applyActuals(est, actuals)
			}
		}
		est.Status = domain.EstimateStatusInvoiced
		est.UpdatedByName = user.Actor()

		if err := s.estimateRepo.Update(ctx, tx, est); err != nil {
			return fmt.Errorf("failed to update estimate: %w", err)
		}
		return s.outbox.Emit(ctx, tx, domain.OutboxEventInvoiced, est)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition("mark_invoiced")
	s.logger.Info("estimate invoiced",
		zap.String("estimate_id", est.ID.String()),
		zap.String("invoice_number", est.InvoiceNumber))

	dto := mapper.ToEstimateDTO(est)
	return &dto, nil
}

func canInvoice(est *domain.Estimate) error {
	if !est.HasCustomerName() {
		return ErrCustomerNameRequired
	}
	if est.Status != domain.EstimateStatusWorkOrder {
		return transitionError("invoice", est.Lifecycle())
	}
	return nil
}

// applyActuals copies what the crew reported onto the billed figures.
// The reservation is left as it was.
func applyActuals(est *domain.Estimate, actuals *domain.JobActuals) {
	results := est.Results.Data()
	results.OpenCellSets = actuals.OpenCellSets
	results.ClosedCellSets = actuals.ClosedCellSets
	results.LaborHours = actuals.LaborHours
	est.Results = datatypes.NewJSONType(results)

	expenses := est.Expenses.Data()
	expenses.LaborHours = actuals.LaborHours
	est.Expenses = datatypes.NewJSONType(expenses)

	snap := est.Materials.Data()
	snap.MaterialSet = actuals.Usage()
	est.Materials = datatypes.NewJSONType(snap)
}

// MarkPaid closes the job: it computes the financial snapshot once and
// writes the matching profit/loss record
func (s *EstimateService) MarkPaid(ctx context.Context, id uuid.UUID, req *domain.MarkPaidRequest) (*domain.EstimateDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	var saved *domain.Estimate
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		est, err := loadEstimate(ctx, s.estimateRepo, tx, user.CompanyID, id)
		if err != nil {
			return err
		}
		if est.Financials.Data() != nil {
			return ErrFinancialsAlreadyRecorded
		}
		if est.Status != domain.EstimateStatusInvoiced {
			return transitionError("mark paid", est.Lifecycle())
		}

		settings, err := s.settingsRepo.Get(ctx, tx, user.CompanyID)
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		items, err := s.warehouseRepo.ListItems(ctx, tx, user.CompanyID)
		if err != nil {
			return fmt.Errorf("failed to load item costs: %w", err)
		}

		now := s.now().UTC()
		snapshot := financials.Calculate(financials.InputFromEstimate(est, settings.Costs.Data(), items), now)

		paidDate := now
		if req.PaidDate != nil {
			paidDate = req.PaidDate.UTC()
		}
		est.Financials = datatypes.NewJSONType(&snapshot)
		est.PaidDate = &paidDate
		est.Status = domain.EstimateStatusPaid
		est.UpdatedByName = user.Actor()

		if err := s.estimateRepo.Update(ctx, tx, est); err != nil {
			return fmt.Errorf("failed to update estimate: %w", err)
		}
		record := financials.Record(est, snapshot)
		if err := s.profitRepo.Create(ctx, tx, &record); err != nil {
			return fmt.Errorf("failed to write profit/loss record: %w", err)
		}
		if err := s.outbox.Emit(ctx, tx, domain.OutboxEventPaid, est); err != nil {
			return err
		}
		saved = est
		return nil
	})
	if err != nil {
		return nil, err
	}

	fin := saved.Financials.Data()
	s.metrics.Transition("mark_paid")
	s.logger.Info("estimate paid",
		zap.String("estimate_id", saved.ID.String()),
		zap.Float64("net_profit", fin.NetProfit),
		zap.Float64("margin", fin.Margin))

	dto := mapper.ToEstimateDTO(saved)
	return &dto, nil
}

// Archive soft-deletes an estimate. Reserved stock stays withdrawn.
func (s *EstimateService) Archive(ctx context.Context, id uuid.UUID) (*domain.EstimateDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	var saved *domain.Estimate
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		est, err := loadEstimate(ctx, s.estimateRepo, tx, user.CompanyID, id)
		if err != nil {
			return err
		}
		if !est.Status.CanArchive() {
			return transitionError("archive", est.Lifecycle())
		}
		est.Status = domain.EstimateStatusArchived
		est.UpdatedByName = user.Actor()
		if err := s.estimateRepo.Update(ctx, tx, est); err != nil {
			return fmt.Errorf("failed to update estimate: %w", err)
		}
		saved = est
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition("archive")
	dto := mapper.ToEstimateDTO(saved)
	return &dto, nil
}

// DeleteEstimate removes an estimate for good. An active work order first
// returns its reservation to stock. The id is tombstoned so no later push can
// recreate it.
func (s *EstimateService) DeleteEstimate(ctx context.Context, id uuid.UUID) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}
	if !user.IsAdmin() {
		return ErrPermissionDenied
	}

	return s.stock.run(ctx, user.CompanyID, func(tx *gorm.DB) error {
		est, err := loadEstimate(ctx, s.estimateRepo, tx, user.CompanyID, id)
		if err != nil {
			return err
		}

		if est.IsActiveWorkOrder() {
			snap := est.Materials.Data()
			if snap.Reserved == nil {
				applog.WithEstimate(s.logger, est).Warn("deleting work order without reservation baseline, foam sets are not returned")
			}
			delta := inventory.Release(snap.Reserved, snap.MaterialSet)
			if !delta.IsZero() {
				if err := s.moveStock(ctx, tx, est, delta, "release"); err != nil {
					return err
				}
			}
		}

		if err := s.estimateRepo.Delete(ctx, tx, user.CompanyID, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEstimateNotFound
			}
			return fmt.Errorf("failed to delete estimate: %w", err)
		}
		if err := s.estimateRepo.Tombstone(ctx, tx, user.CompanyID, id, user.Actor(), s.now().UTC()); err != nil {
			return fmt.Errorf("failed to record deleted estimate: %w", err)
		}

		applog.WithEstimate(s.logger, est).Info("estimate deleted")
		return nil
	})
}

// ============================================================================
// Helpers
// ============================================================================

func (s *EstimateService) moveStock(ctx context.Context, tx *gorm.DB, est *domain.Estimate, delta inventory.StockDelta, op string) error {
	missing, err := s.warehouseRepo.ApplyDelta(ctx, tx, est.CompanyID, delta)
	if err != nil {
		return fmt.Errorf("failed to %s stock: %w", op, err)
	}
	s.metrics.StockMutation(op)
	log := applog.WithEstimate(s.logger, est)
	log.Debug("stock moved", applog.StockFields(op, delta.OpenCellSets, delta.ClosedCellSets, len(delta.Items))...)
	if len(missing) > 0 {
		log.Warn("stock movement skipped items not in warehouse",
			zap.String("operation", op),
			zap.Strings("missing_items", missing))
	}
	return nil
}

// checkShortage refuses a withdrawal that would drive stock negative unless
// the caller has acknowledged it
func (s *EstimateService) checkShortage(ctx context.Context, tx *gorm.DB, est *domain.Estimate, delta inventory.StockDelta, acknowledged bool) error {
	w, err := s.warehouseRepo.Get(ctx, tx, est.CompanyID)
	if err != nil {
		return fmt.Errorf("failed to load warehouse: %w", err)
	}
	shortages := inventory.Shortages(*w, delta)
	if len(shortages) == 0 {
		return nil
	}
	s.metrics.Shortage(acknowledged)
	if !acknowledged {
		return &ShortageError{Shortages: shortages}
	}
	s.logger.Info("shortage acknowledged, stock will go negative",
		zap.String("estimate_id", est.ID.String()),
		zap.Int("materials", len(shortages)))
	return nil
}
