package service

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/datatypes"

	"github.com/sprayline/foamops-api/internal/domain"
)

func TestEstimateLifecycle_FullJob(t *testing.T) {
	f := newFixture(t)
	f.stock(t, 10, 0, nil)

	est := f.draft(t, "Jane Doe", 20000, domain.MaterialSet{OpenCellSets: 4})
	assert.Equal(t, domain.EstimateStatusDraft, est.Status)
	assert.Equal(t, domain.ExecutionStatusNotStarted, est.ExecutionStatus)

	est = f.confirm(t, est)
	assert.Equal(t, domain.EstimateStatusWorkOrder, est.Status)
	require.NotNil(t, est.Materials.Reserved)
	assert.Equal(t, 4.0, est.Materials.Reserved.OpenCellSets)
	assert.Equal(t, 6.0, f.warehouseState(t).OpenCellSets)

	est, err := f.estimates.StartJob(f.crew, est.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStatusInProgress, est.ExecutionStatus)

	est, err = f.estimates.CompleteJob(f.crew, est.ID, &domain.CompleteJobRequest{OpenCellSets: 4.5, LaborHours: 0})
	require.NoError(t, err)
	assert.Equal(t, domain.EstimateStatusWorkOrder, est.Status)
	assert.Equal(t, domain.ExecutionStatusCompleted, est.ExecutionStatus)
	require.NotNil(t, est.Actuals)
	assert.Equal(t, "Carl Crew", est.Actuals.CompletedBy)
	assert.Equal(t, 5.5, f.warehouseState(t).OpenCellSets)

	est, err = f.estimates.MarkInvoiced(f.admin, est.ID, &domain.MarkInvoicedRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.EstimateStatusInvoiced, est.Status)
	assert.Equal(t, "INV-2026-0001", est.InvoiceNumber)

	est, err = f.estimates.MarkPaid(f.admin, est.ID, &domain.MarkPaidRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.EstimateStatusPaid, est.Status)
	require.NotNil(t, est.Financials)
	assert.Equal(t, 9000.0, est.Financials.ChemicalCost)
	assert.Equal(t, 11000.0, est.Financials.NetProfit)
	assert.Equal(t, 0.55, est.Financials.Margin)

	// Payment never moves stock
	assert.Equal(t, 5.5, f.warehouseState(t).OpenCellSets)

	pl, err := f.warehouse.ListProfitLoss(f.admin, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pl.Total)
	assert.Equal(t, int64(3), f.countRows(t, &domain.OutboxEvent{}))
}

func TestConfirmWorkOrder_RequiresCustomerName(t *testing.T) {
	f := newFixture(t)
	f.stock(t, 10, 0, nil)
	est := f.draft(t, "   ", 100, domain.MaterialSet{OpenCellSets: 1})

	_, err := f.estimates.ConfirmWorkOrder(f.admin, est.ID, &domain.ConfirmWorkOrderRequest{})

	assert.ErrorIs(t, err, ErrCustomerNameRequired)
	assert.Equal(t, 10.0, f.warehouseState(t).OpenCellSets)
	got, err := f.estimates.GetEstimate(f.admin, est.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EstimateStatusDraft, got.Status)
}

func TestConfirmWorkOrder_ShortageNeedsAcknowledgement(t *testing.T) {
	f := newFixture(t)
	f.stock(t, 1, 0, nil)
	est := f.draft(t, "Jane Doe", 100, domain.MaterialSet{OpenCellSets: 3})

	_, err := f.estimates.ConfirmWorkOrder(f.admin, est.ID, &domain.ConfirmWorkOrderRequest{})

	var shortage *ShortageError
	require.True(t, errors.As(err, &shortage))
	assert.ErrorIs(t, err, ErrShortageNotConfirmed)
	require.Len(t, shortage.Shortages, 1)
	assert.Equal(t, 2.0, shortage.Shortages[0].Shortfall)
	assert.Equal(t, 1.0, f.warehouseState(t).OpenCellSets)

	preview, err := f.estimates.PreviewShortage(f.admin, est.ID)
	require.NoError(t, err)
	assert.True(t, preview.HasShortage)

	_, err = f.estimates.ConfirmWorkOrder(f.admin, est.ID, &domain.ConfirmWorkOrderRequest{AcknowledgeShortage: true})
	require.NoError(t, err)
	assert.Equal(t, -2.0, f.warehouseState(t).OpenCellSets)
}

func TestConfirmWorkOrder_ReconfirmUnchangedIsNoop(t *testing.T) {
	f := newFixture(t)
	f.stock(t, 10, 5, map[string]float64{"Tape": 4})
	materials := domain.MaterialSet{
		OpenCellSets:   2,
		ClosedCellSets: 1,
		Inventory:      []domain.MaterialLine{{Name: "Tape", Quantity: 1}},
	}
	est := f.confirm(t, f.draft(t, "Jane Doe", 100, materials))
	before := f.warehouseState(t)

	again, err := f.estimates.ConfirmWorkOrder(f.admin, est.ID, &domain.ConfirmWorkOrderRequest{Materials: &materials})
	require.NoError(t, err)
	_, err = f.estimates.ConfirmWorkOrder(f.admin, est.ID, &domain.ConfirmWorkOrderRequest{})
	require.NoError(t, err)

	after := f.warehouseState(t)
	assert.Equal(t, before.OpenCellSets, after.OpenCellSets)
	assert.Equal(t, before.ClosedCellSets, after.ClosedCellSets)
	assert.Equal(t, itemQuantity(before, "Tape"), itemQuantity(after, "Tape"))
	assert.Equal(t, domain.EstimateStatusWorkOrder, again.Status)
	assert.Equal(t, int64(1), f.countRows(t, &domain.OutboxEvent{}))
}

func TestSaveEstimate_ConservationAcrossEdits(t *testing.T) {
	f := newFixture(t)
	f.stock(t, 20, 0, nil)
	est := f.confirm(t, f.draft(t, "Jane Doe", 100, domain.MaterialSet{OpenCellSets: 10}))
	assert.Equal(t, 10.0, f.warehouseState(t).OpenCellSets)

	est, err := f.estimates.SaveEstimate(f.admin, est.ID, &domain.UpdateEstimateRequest{
		CustomerName: "Jane Doe",
		TotalValue:   100,
		Materials:    domain.MaterialSet{OpenCellSets: 8},
	})
	require.NoError(t, err)
	assert.Equal(t, 12.0, f.warehouseState(t).OpenCellSets)
	assert.Equal(t, 8.0, est.Materials.Reserved.OpenCellSets)

	_, err = f.estimates.CompleteJob(f.crew, est.ID, &domain.CompleteJobRequest{OpenCellSets: 9})
	require.NoError(t, err)

	// Net movement equals the actual usage
	assert.Equal(t, 11.0, f.warehouseState(t).OpenCellSets)
}

func TestSaveEstimate_DraftDoesNotMoveStock(t *testing.T) {
	f := newFixture(t)
	f.stock(t, 5, 0, nil)
	est := f.draft(t, "Jane Doe", 100, domain.MaterialSet{OpenCellSets: 2})

	saved, err := f.estimates.SaveEstimate(f.admin, est.ID, &domain.UpdateEstimateRequest{
		CustomerName: "Jane Doe",
		Materials:    domain.MaterialSet{OpenCellSets: 3},
	})
	require.NoError(t, err)
	assert.Nil(t, saved.Materials.Reserved)
	assert.Equal(t, 5.0, f.warehouseState(t).OpenCellSets)
	assert.Equal(t, est.Version+1, saved.Version)
}

func TestDeleteEstimate_ReturnsReservation(t *testing.T) {
	f := newFixture(t)
	f.stock(t, 10, 10, map[string]float64{"Tape": 10})
	est := f.confirm(t, f.draft(t, "Jane Doe", 100, domain.MaterialSet{
		OpenCellSets:   5,
		ClosedCellSets: 2,
		Inventory:      []domain.MaterialLine{{Name: "Tape", Quantity: 3}},
	}))
	f.stock(t, 1, 1, map[string]float64{"Tape": 0})

	require.NoError(t, f.estimates.DeleteEstimate(f.admin, est.ID))

	w := f.warehouseState(t)
	assert.Equal(t, 6.0, w.OpenCellSets)
	assert.Equal(t, 3.0, w.ClosedCellSets)
	assert.Equal(t, 3.0, itemQuantity(w, "Tape"))

	_, err := f.estimates.GetEstimate(f.admin, est.ID)
	assert.ErrorIs(t, err, ErrEstimateNotFound)
}

func TestDeleteEstimate_CompletedJobKeepsStock(t *testing.T) {
	f := newFixture(t)
	f.stock(t, 10, 0, nil)
	est := f.confirm(t, f.draft(t, "Jane Doe", 100, domain.MaterialSet{OpenCellSets: 4}))
	_, err := f.estimates.CompleteJob(f.crew, est.ID, &domain.CompleteJobRequest{OpenCellSets: 4})
	require.NoError(t, err)

	require.NoError(t, f.estimates.DeleteEstimate(f.admin, est.ID))
	assert.Equal(t, 6.0, f.warehouseState(t).OpenCellSets)
}

func TestCompleteJob_WritesUsageLogOnce(t *testing.T) {
	f := newFixture(t)
	f.stock(t, 10, 10, map[string]float64{"Tape": 5, "Plastic": 5})
	est := f.confirm(t, f.draft(t, "Jane Doe", 100, domain.MaterialSet{
		OpenCellSets: 2,
		Inventory:    []domain.MaterialLine{{Name: "Tape", Quantity: 2}},
	}))

	_, err := f.estimates.CompleteJob(f.crew, est.ID, &domain.CompleteJobRequest{
		OpenCellSets: 2,
		Inventory: []domain.MaterialLine{
			{Name: "Tape", Quantity: 1},
			{Name: "Plastic", Quantity: 2},
			{Name: "Foil", Quantity: 0},
		},
	})
	require.NoError(t, err)

	w := f.warehouseState(t)
	assert.Equal(t, 4.0, itemQuantity(w, "Tape"))
	assert.Equal(t, 3.0, itemQuantity(w, "Plastic"))
	assert.Equal(t, 10.0, w.ClosedCellSets)

	logs, err := f.warehouse.ListUsageLog(f.admin, &est.ID, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(3), logs.Total)

	_, err = f.estimates.CompleteJob(f.crew, est.ID, &domain.CompleteJobRequest{OpenCellSets: 1})
	assert.ErrorIs(t, err, ErrActualsAlreadyRecorded)
	assert.Equal(t, 8.0, f.warehouseState(t).OpenCellSets)
}

func TestCompleteJob_WithoutReservationReconcilesAgainstMaterials(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zapcore.WarnLevel)
	f.estimates.logger = zap.New(core)

	// A work order confirmed before reservations were recorded: stock was
	// withdrawn for its materials but no baseline was kept
	f.stock(t, 6, 0, map[string]float64{"Tape": 2})
	est := f.draft(t, "Jane Doe", 100, domain.MaterialSet{
		OpenCellSets: 4,
		Inventory:    []domain.MaterialLine{{Name: "Tape", Quantity: 3}},
	})
	row, err := f.estimates.estimateRepo.GetByID(f.admin, nil, testCompany, est.ID)
	require.NoError(t, err)
	snap := row.Materials.Data()
	snap.Reserved = nil
	row.Materials = datatypes.NewJSONType(snap)
	row.Status = domain.EstimateStatusWorkOrder
	require.NoError(t, f.estimates.estimateRepo.Update(f.admin, nil, row))

	done, err := f.estimates.CompleteJob(f.crew, est.ID, &domain.CompleteJobRequest{
		OpenCellSets: 3,
		Inventory:    []domain.MaterialLine{{Name: "Tape", Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStatusCompleted, done.ExecutionStatus)

	w := f.warehouseState(t)
	assert.Equal(t, 7.0, w.OpenCellSets)
	assert.Equal(t, 3.0, itemQuantity(w, "Tape"))

	warned := logs.FilterMessage("no reservation baseline, reconciling against estimated materials").All()
	require.Len(t, warned, 1)
	assert.Equal(t, est.ID.String(), warned[0].ContextMap()["estimate_id"])
}

func TestCompleteJob_RequiresWorkOrder(t *testing.T) {
	f := newFixture(t)
	est := f.draft(t, "Jane Doe", 100, domain.MaterialSet{OpenCellSets: 1})

	_, err := f.estimates.CompleteJob(f.crew, est.ID, &domain.CompleteJobRequest{OpenCellSets: 1})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMarkInvoiced_ApplyActualsAndSequentialNumbers(t *testing.T) {
	f := newFixture(t)
	f.stock(t, 10, 0, nil)

	first := f.confirm(t, f.draft(t, "First", 100, domain.MaterialSet{OpenCellSets: 2}))
	second := f.confirm(t, f.draft(t, "Second", 100, domain.MaterialSet{OpenCellSets: 1}))
	_, err := f.estimates.CompleteJob(f.crew, first.ID, &domain.CompleteJobRequest{OpenCellSets: 2.5, LaborHours: 6})
	require.NoError(t, err)

	inv1, err := f.estimates.MarkInvoiced(f.admin, first.ID, &domain.MarkInvoicedRequest{ApplyActuals: true})
	require.NoError(t, err)
	inv2, err := f.estimates.MarkInvoiced(f.admin, second.ID, &domain.MarkInvoicedRequest{})
	require.NoError(t, err)

	assert.Equal(t, "INV-2026-0001", inv1.InvoiceNumber)
	assert.Equal(t, "INV-2026-0002", inv2.InvoiceNumber)
	assert.Equal(t, 2.5, inv1.Materials.OpenCellSets)
	assert.Equal(t, 2.0, inv1.Materials.Reserved.OpenCellSets)
	assert.Equal(t, 6.0, inv1.Expenses.LaborHours)
	assert.Equal(t, 6.0, inv1.Results.LaborHours)

	_, err = f.estimates.MarkInvoiced(f.admin, first.ID, &domain.MarkInvoicedRequest{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMarkPaid_Guards(t *testing.T) {
	f := newFixture(t)
	est := f.confirm(t, f.draft(t, "Jane Doe", 0, domain.MaterialSet{}))

	_, err := f.estimates.MarkPaid(f.admin, est.ID, &domain.MarkPaidRequest{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.estimates.MarkInvoiced(f.admin, est.ID, &domain.MarkInvoicedRequest{})
	require.NoError(t, err)
	paid, err := f.estimates.MarkPaid(f.admin, est.ID, &domain.MarkPaidRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, paid.Financials.Margin)

	_, err = f.estimates.MarkPaid(f.admin, est.ID, &domain.MarkPaidRequest{})
	assert.ErrorIs(t, err, ErrFinancialsAlreadyRecorded)
}

func TestArchive(t *testing.T) {
	f := newFixture(t)
	f.stock(t, 10, 0, nil)
	est := f.confirm(t, f.draft(t, "Jane Doe", 100, domain.MaterialSet{OpenCellSets: 2}))

	archived, err := f.estimates.Archive(f.admin, est.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EstimateStatusArchived, archived.Status)
	assert.Equal(t, 8.0, f.warehouseState(t).OpenCellSets)

	_, err = f.estimates.Archive(f.admin, est.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	list, err := f.estimates.ListEstimates(f.admin, repositoryFilters(false), 1, 20, defaultSort())
	require.NoError(t, err)
	assert.Equal(t, int64(0), list.Total)
	list, err = f.estimates.ListEstimates(f.admin, repositoryFilters(true), 1, 20, defaultSort())
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)
}

func TestCrewCannotRunOfficeTransitions(t *testing.T) {
	f := newFixture(t)
	est := f.draft(t, "Jane Doe", 100, domain.MaterialSet{})

	_, err := f.estimates.ConfirmWorkOrder(f.crew, est.ID, &domain.ConfirmWorkOrderRequest{})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.ErrorIs(t, f.estimates.DeleteEstimate(f.crew, est.ID), ErrPermissionDenied)
	_, err = f.estimates.CreateEstimate(f.crew, &domain.CreateEstimateRequest{CustomerName: "x"})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestCreateEstimate_KeepsClientID(t *testing.T) {
	f := newFixture(t)
	id, err := uuid.NewV7()
	require.NoError(t, err)

	est, err := f.estimates.CreateEstimate(f.admin, &domain.CreateEstimateRequest{ID: &id, CustomerName: "Jane"})
	require.NoError(t, err)
	assert.Equal(t, id, est.ID)
	assert.Equal(t, 1, est.Version)

	_, err = f.estimates.CreateEstimate(f.admin, &domain.CreateEstimateRequest{ID: &id, CustomerName: "Jane"})
	assert.ErrorIs(t, err, ErrEstimateExists)
}

func TestGetEstimate_OtherCompanyIsNotFound(t *testing.T) {
	f := newFixture(t)
	est := f.draft(t, "Jane Doe", 100, domain.MaterialSet{})

	other := withCompany(f.admin, "someone-else")
	_, err := f.estimates.GetEstimate(other, est.ID)
	assert.ErrorIs(t, err, ErrEstimateNotFound)
}
