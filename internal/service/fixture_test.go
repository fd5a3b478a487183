package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sprayline/foamops-api/internal/auth"
	"github.com/sprayline/foamops-api/internal/config"
	"github.com/sprayline/foamops-api/internal/documents"
	"github.com/sprayline/foamops-api/internal/domain"
	"github.com/sprayline/foamops-api/internal/lock"
	"github.com/sprayline/foamops-api/internal/metrics"
	"github.com/sprayline/foamops-api/internal/repository"
	"github.com/sprayline/foamops-api/internal/testutil"
)

const testCompany domain.CompanyID = "acme-foam"

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type fakeRenderer struct {
	mu       sync.Mutex
	requests []documents.Request
	err      error
}

func (f *fakeRenderer) Render(_ context.Context, req documents.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("https://docs.test/%s/%s.pdf", req.Kind, req.Estimate.ID), nil
}

type fixture struct {
	db        *gorm.DB
	estimates *EstimateService
	warehouse *WarehouseService
	settings  *SettingsService
	sync      *SyncService
	outbox    *OutboxService
	numbers   *NumberSequenceService
	renderer  *fakeRenderer
	admin     context.Context
	crew      context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	m := metrics.New(nil)
	locker := lock.NewLocalLocker()

	estimateRepo := repository.NewEstimateRepository(db)
	warehouseRepo := repository.NewWarehouseRepository(db)
	usageRepo := repository.NewUsageLogRepository(db)
	profitRepo := repository.NewProfitLossRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	poRepo := repository.NewPurchaseOrderRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	renderer := &fakeRenderer{}
	numbers := NewNumberSequenceService(repository.NewNumberSequenceRepository(db), logger)
	numbers.now = func() time.Time { return fixedNow }
	outbox := NewOutboxService(outboxRepo, estimateRepo, settingsRepo, renderer,
		config.OutboxConfig{BatchSize: 10, MaxAttempts: 3}, m, logger)

	estimates := NewEstimateService(db, locker, estimateRepo, warehouseRepo, usageRepo, profitRepo,
		settingsRepo, numbers, outbox, m, logger)
	estimates.now = func() time.Time { return fixedNow }

	return &fixture{
		db:        db,
		estimates: estimates,
		warehouse: NewWarehouseService(db, locker, warehouseRepo, poRepo, usageRepo, profitRepo, m, logger),
		settings:  NewSettingsService(settingsRepo, logger),
		sync:      NewSyncService(db, locker, estimateRepo, warehouseRepo, poRepo, settingsRepo, m, logger),
		outbox:    outbox,
		numbers:   numbers,
		renderer:  renderer,
		admin: auth.WithUserContext(context.Background(), &auth.UserContext{
			UserID: "u-office", DisplayName: "Olivia Office", Roles: []domain.UserRole{domain.RoleAdmin}, CompanyID: testCompany,
		}),
		crew: auth.WithUserContext(context.Background(), &auth.UserContext{
			UserID: "u-crew", DisplayName: "Carl Crew", Roles: []domain.UserRole{domain.RoleCrew}, CompanyID: testCompany,
		}),
	}
}

// stock sets the warehouse to the given counters and named item quantities
func (f *fixture) stock(t *testing.T, open, closed float64, items map[string]float64) {
	t.Helper()
	current, err := f.warehouse.GetWarehouse(f.admin)
	require.NoError(t, err)

	req := &domain.UpdateWarehouseRequest{OpenCellSets: open, ClosedCellSets: closed}
	for _, it := range current.Items {
		if qty, ok := items[it.Name]; ok {
			id := it.ID
			req.Items = append(req.Items, domain.WarehouseItemInput{ID: &id, Name: it.Name, Quantity: qty, UnitCost: it.UnitCost})
			delete(items, it.Name)
		}
	}
	for name, qty := range items {
		req.Items = append(req.Items, domain.WarehouseItemInput{Name: name, Quantity: qty})
	}
	_, err = f.warehouse.UpdateWarehouse(f.admin, req)
	require.NoError(t, err)
}

func (f *fixture) warehouseState(t *testing.T) *domain.WarehouseDTO {
	t.Helper()
	w, err := f.warehouse.GetWarehouse(f.admin)
	require.NoError(t, err)
	return w
}

func itemQuantity(w *domain.WarehouseDTO, name string) float64 {
	for _, it := range w.Items {
		if it.Name == name {
			return it.Quantity
		}
	}
	return 0
}

func (f *fixture) draft(t *testing.T, customer string, value float64, materials domain.MaterialSet) *domain.EstimateDTO {
	t.Helper()
	est, err := f.estimates.CreateEstimate(f.admin, &domain.CreateEstimateRequest{
		CustomerName: customer,
		TotalValue:   value,
		Materials:    materials,
	})
	require.NoError(t, err)
	return est
}

func (f *fixture) confirm(t *testing.T, est *domain.EstimateDTO) *domain.EstimateDTO {
	t.Helper()
	out, err := f.estimates.ConfirmWorkOrder(f.admin, est.ID, &domain.ConfirmWorkOrderRequest{AcknowledgeShortage: true})
	require.NoError(t, err)
	return out
}

func (f *fixture) countRows(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func withCompany(ctx context.Context, companyID domain.CompanyID) context.Context {
	user, _ := auth.FromContext(ctx)
	clone := *user
	clone.CompanyID = companyID
	return auth.WithUserContext(context.Background(), &clone)
}

func repositoryFilters(includeArchived bool) repository.EstimateFilters {
	return repository.EstimateFilters{IncludeArchived: includeArchived}
}

func defaultSort() repository.SortConfig {
	return repository.DefaultSortConfig()
}
