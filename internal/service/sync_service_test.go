package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprayline/foamops-api/internal/domain"
)

func TestPushSnapshot_StatusNeverRegresses(t *testing.T) {
	f := newFixture(t)
	est := f.confirm(t, f.draft(t, "Jane Doe", 0, domain.MaterialSet{}))
	_, err := f.estimates.MarkInvoiced(f.admin, est.ID, &domain.MarkInvoicedRequest{})
	require.NoError(t, err)
	paid, err := f.estimates.MarkPaid(f.admin, est.ID, &domain.MarkPaidRequest{})
	require.NoError(t, err)

	snapshot, err := f.sync.PullSnapshot(f.admin)
	require.NoError(t, err)
	require.Len(t, snapshot.Estimates, 1)

	stale := snapshot.Estimates[0]
	stale.Status = domain.EstimateStatusDraft
	stale.ExecutionStatus = domain.ExecutionStatusNotStarted
	stale.Financials = nil
	stale.Notes = "edited offline"
	snapshot.Estimates[0] = stale

	result, err := f.sync.PushSnapshot(f.admin, snapshot)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	got, err := f.estimates.GetEstimate(f.admin, est.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EstimateStatusPaid, got.Status)
	assert.Equal(t, "edited offline", got.Notes)
	require.NotNil(t, got.Financials)
	assert.Equal(t, paid.InvoiceNumber, got.InvoiceNumber)
}

func TestPushSnapshot_CrewIsRejected(t *testing.T) {
	f := newFixture(t)
	snapshot, err := f.sync.PullSnapshot(f.crew)
	require.NoError(t, err)

	_, err = f.sync.PushSnapshot(f.crew, snapshot)
	assert.ErrorIs(t, err, ErrPushForbiddenForCrew)
}

func TestPushSnapshot_CreatesNewEstimatesAsDrafts(t *testing.T) {
	f := newFixture(t)
	f.stock(t, 10, 0, nil)
	snapshot, err := f.sync.PullSnapshot(f.admin)
	require.NoError(t, err)

	id := uuid.Must(uuid.NewV7())
	reserved := domain.MaterialSet{OpenCellSets: 4}
	snapshot.Estimates = append(snapshot.Estimates, domain.EstimateDTO{
		ID:              id,
		CustomerName:    "Offline Customer",
		Status:          domain.EstimateStatusWorkOrder,
		ExecutionStatus: domain.ExecutionStatusNotStarted,
		InvoiceNumber:   "INV-2026-9999",
		Materials: domain.MaterialSnapshot{
			MaterialSet: domain.MaterialSet{OpenCellSets: 4},
			Reserved:    &reserved,
		},
	})
	// Devices cannot overwrite stock
	snapshot.Warehouse.OpenCellSets = 99

	result, err := f.sync.PushSnapshot(f.admin, snapshot)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Len(t, result.Warnings, 2)

	got, err := f.estimates.GetEstimate(f.admin, id)
	require.NoError(t, err)
	assert.Equal(t, domain.EstimateStatusDraft, got.Status)
	assert.Equal(t, domain.ExecutionStatusNotStarted, got.ExecutionStatus)
	assert.Nil(t, got.Materials.Reserved)
	assert.Empty(t, got.InvoiceNumber)
	assert.Equal(t, 10.0, f.warehouseState(t).OpenCellSets)

	again, err := f.sync.PullSnapshot(f.admin)
	require.NoError(t, err)
	result, err = f.sync.PushSnapshot(f.admin, again)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Unchanged)
	assert.Equal(t, 0, result.Updated)

	// The sale still has to go through the ledger, and stock is conserved
	f.confirm(t, got)
	assert.Equal(t, 6.0, f.warehouseState(t).OpenCellSets)
	_, err = f.estimates.CompleteJob(f.crew, id, &domain.CompleteJobRequest{OpenCellSets: 3})
	require.NoError(t, err)
	assert.Equal(t, 7.0, f.warehouseState(t).OpenCellSets)
}

func TestPushSnapshot_KeepsPushedArchiveOnNewEstimate(t *testing.T) {
	f := newFixture(t)
	snapshot, err := f.sync.PullSnapshot(f.admin)
	require.NoError(t, err)

	id := uuid.Must(uuid.NewV7())
	snapshot.Estimates = append(snapshot.Estimates, domain.EstimateDTO{
		ID:              id,
		CustomerName:    "Old Lead",
		Status:          domain.EstimateStatusArchived,
		ExecutionStatus: domain.ExecutionStatusNotStarted,
	})

	result, err := f.sync.PushSnapshot(f.admin, snapshot)
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)

	got, err := f.estimates.GetEstimate(f.admin, id)
	require.NoError(t, err)
	assert.Equal(t, domain.EstimateStatusArchived, got.Status)
}

func TestPushSnapshot_NeverRecreatesDeletedEstimate(t *testing.T) {
	f := newFixture(t)
	f.stock(t, 10, 0, nil)
	est := f.confirm(t, f.draft(t, "Jane Doe", 100, domain.MaterialSet{OpenCellSets: 4}))
	assert.Equal(t, 6.0, f.warehouseState(t).OpenCellSets)

	stale, err := f.sync.PullSnapshot(f.admin)
	require.NoError(t, err)
	require.Len(t, stale.Estimates, 1)

	require.NoError(t, f.estimates.DeleteEstimate(f.admin, est.ID))
	assert.Equal(t, 10.0, f.warehouseState(t).OpenCellSets)

	result, err := f.sync.PushSnapshot(f.admin, stale)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.NotEmpty(t, result.Warnings)

	_, err = f.estimates.GetEstimate(f.admin, est.ID)
	assert.ErrorIs(t, err, ErrEstimateNotFound)
	assert.Equal(t, 10.0, f.warehouseState(t).OpenCellSets)

	fresh, err := f.sync.PullSnapshot(f.admin)
	require.NoError(t, err)
	assert.Empty(t, fresh.Estimates)
	assert.Equal(t, []uuid.UUID{est.ID}, fresh.DeletedEstimateIDs)

	// Tombstones are per company
	other, err := f.sync.PullSnapshot(withCompany(f.admin, "other-co"))
	require.NoError(t, err)
	assert.Empty(t, other.DeletedEstimateIDs)
}

func TestPushSnapshot_CannotSellThroughSync(t *testing.T) {
	f := newFixture(t)
	f.stock(t, 10, 0, nil)
	est := f.draft(t, "Jane Doe", 100, domain.MaterialSet{OpenCellSets: 2})

	snapshot, err := f.sync.PullSnapshot(f.admin)
	require.NoError(t, err)
	snapshot.Estimates[0].Status = domain.EstimateStatusWorkOrder

	result, err := f.sync.PushSnapshot(f.admin, snapshot)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Warnings)

	got, err := f.estimates.GetEstimate(f.admin, est.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EstimateStatusDraft, got.Status)
	assert.Equal(t, 10.0, f.warehouseState(t).OpenCellSets)
}

func TestPushSnapshot_EditedWorkOrderAdjustsStock(t *testing.T) {
	f := newFixture(t)
	f.stock(t, 10, 0, nil)
	est := f.confirm(t, f.draft(t, "Jane Doe", 100, domain.MaterialSet{OpenCellSets: 4}))

	snapshot, err := f.sync.PullSnapshot(f.admin)
	require.NoError(t, err)
	snapshot.Estimates[0].Materials.OpenCellSets = 3

	_, err = f.sync.PushSnapshot(f.admin, snapshot)
	require.NoError(t, err)

	got, err := f.estimates.GetEstimate(f.admin, est.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.Materials.Reserved.OpenCellSets)
	assert.Equal(t, 7.0, f.warehouseState(t).OpenCellSets)
}

func TestPushSnapshot_SettingsAreLastWriteWins(t *testing.T) {
	f := newFixture(t)
	snapshot, err := f.sync.PullSnapshot(f.admin)
	require.NoError(t, err)
	snapshot.Settings.Costs.OpenCell = 2150
	snapshot.Settings.Profile.CompanyName = "Acme Foam"

	_, err = f.sync.PushSnapshot(f.admin, snapshot)
	require.NoError(t, err)

	settings, err := f.settings.GetSettings(f.admin)
	require.NoError(t, err)
	assert.Equal(t, 2150.0, settings.Costs.OpenCell)
	assert.Equal(t, "Acme Foam", settings.Profile.CompanyName)
}
