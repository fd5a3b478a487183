package syncer

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sprayline/foamops-api/internal/domain"
)

// DefaultSnapshot is the skeleton a device starts from before it has ever synced
func DefaultSnapshot() *domain.TenantSnapshot {
	return &domain.TenantSnapshot{
		Settings: domain.SettingsDTO{
			Costs:    domain.DefaultCostSettings(),
			Yields:   domain.DefaultYieldSettings(),
			Expenses: domain.DefaultExpenseDefaults(),
		},
		Warehouse: domain.WarehouseDTO{Items: []domain.WarehouseItemDTO{}},
		Estimates: []domain.EstimateDTO{},
	}
}

// DecodeOverDefaults decodes raw onto DefaultSnapshot. Nested objects such as
// profile, costs, yields, expenses and warehouse counters are merged field by
// field, so keys missing from raw keep their default. Lists are replaced.
func DecodeOverDefaults(raw []byte) (*domain.TenantSnapshot, error) {
	snap := DefaultSnapshot()
	if err := json.Unmarshal(raw, snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Estimates == nil {
		snap.Estimates = []domain.EstimateDTO{}
	}
	if snap.Warehouse.Items == nil {
		snap.Warehouse.Items = []domain.WarehouseItemDTO{}
	}
	return snap, nil
}

// MergeEstimates lays incoming over local by id. Incoming wins field by field
// except for the lifecycle pair, which never moves backwards. When local is the
// further along record its billing fields are kept too.
func MergeEstimates(local, incoming []domain.EstimateDTO) []domain.EstimateDTO {
	byID := make(map[string]int, len(local))
	merged := make([]domain.EstimateDTO, len(local))
	copy(merged, local)
	for i, e := range merged {
		byID[e.ID.String()] = i
	}

	for _, in := range incoming {
		i, ok := byID[in.ID.String()]
		if !ok {
			byID[in.ID.String()] = len(merged)
			merged = append(merged, in)
			continue
		}
		merged[i] = mergeEstimate(merged[i], in)
	}
	return merged
}

func mergeEstimate(existing, incoming domain.EstimateDTO) domain.EstimateDTO {
	state := domain.MergeLifecycle(
		domain.LifecycleState{Status: existing.Status, Execution: existing.ExecutionStatus},
		domain.LifecycleState{Status: incoming.Status, Execution: incoming.ExecutionStatus},
	)
	out := incoming
	out.Status = state.Status
	out.ExecutionStatus = state.Execution

	if out.Actuals == nil {
		out.Actuals = existing.Actuals
	}
	if out.Financials == nil {
		out.Financials = existing.Financials
	}
	if out.InvoiceNumber == "" {
		out.InvoiceNumber = existing.InvoiceNumber
		out.InvoiceDate = existing.InvoiceDate
	}
	if out.PaidDate == "" {
		out.PaidDate = existing.PaidDate
	}
	if out.Version < existing.Version {
		out.Version = existing.Version
	}
	return out
}

// PruneRemoved drops local estimates the server no longer has. Estimates
// created on this device and not yet pushed are kept, unless the server lists
// them as deleted.
func PruneRemoved(local []domain.EstimateDTO, remote *domain.TenantSnapshot, pending []uuid.UUID) []domain.EstimateDTO {
	onServer := idSet(nil)
	for _, e := range remote.Estimates {
		onServer[e.ID] = struct{}{}
	}
	deleted := idSet(remote.DeletedEstimateIDs)
	unpushed := idSet(pending)

	out := make([]domain.EstimateDTO, 0, len(local))
	for _, e := range local {
		if _, gone := deleted[e.ID]; gone {
			continue
		}
		_, known := onServer[e.ID]
		_, mine := unpushed[e.ID]
		if known || mine {
			out = append(out, e)
		}
	}
	return out
}

// StillPending keeps the pending ids the server has neither received nor deleted
func StillPending(pending []uuid.UUID, remote *domain.TenantSnapshot) []uuid.UUID {
	seen := idSet(remote.DeletedEstimateIDs)
	for _, e := range remote.Estimates {
		seen[e.ID] = struct{}{}
	}
	var out []uuid.UUID
	for _, id := range pending {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func idSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// trackPending adds estimates that fn created to the snapshot's pending list
// and forgets pending ids that fn removed
func trackPending(snap *domain.TenantSnapshot, before map[uuid.UUID]struct{}) {
	present := make(map[uuid.UUID]struct{}, len(snap.Estimates))
	for _, e := range snap.Estimates {
		present[e.ID] = struct{}{}
	}
	pending := snap.PendingEstimateIDs[:0]
	for _, id := range snap.PendingEstimateIDs {
		if _, ok := present[id]; ok {
			pending = append(pending, id)
		}
	}
	queued := idSet(pending)
	for _, e := range snap.Estimates {
		if _, old := before[e.ID]; old {
			continue
		}
		if _, ok := queued[e.ID]; !ok {
			pending = append(pending, e.ID)
			queued[e.ID] = struct{}{}
		}
	}
	if len(pending) == 0 {
		pending = nil
	}
	snap.PendingEstimateIDs = pending
}

func estimateIDs(estimates []domain.EstimateDTO) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(estimates))
	for _, e := range estimates {
		set[e.ID] = struct{}{}
	}
	return set
}
