package handler

import (
	"net/http"
	"strconv"

	"github.com/sprayline/foamops-api/internal/domain"
	"github.com/sprayline/foamops-api/internal/repository"
	"github.com/sprayline/foamops-api/internal/service"
	"go.uber.org/zap"
)

type EstimateHandler struct {
	estimateService *service.EstimateService
	logger          *zap.Logger
}

func NewEstimateHandler(estimateService *service.EstimateService, logger *zap.Logger) *EstimateHandler {
	return &EstimateHandler{
		estimateService: estimateService,
		logger:          logger,
	}
}

// @Summary List estimates
// @Description Archived estimates are excluded unless includeArchived=true or status=archived
// @Tags Estimates
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param status query string false "Filter by status" Enums(draft, work_order, invoiced, paid, archived)
// @Param executionStatus query string false "Filter by execution status" Enums(not_started, in_progress, completed)
// @Param includeArchived query bool false "Include archived estimates"
// @Param search query string false "Customer name or job address"
// @Param sortBy query string false "Sort field" Enums(createdAt, updatedAt, customerName, totalValue, status)
// @Param sortOrder query string false "Sort order" Enums(asc, desc) default(desc)
// @Success 200 {object} domain.PaginatedResponse
// @Failure 400 {object} domain.APIError "Invalid request"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /estimates [get]
func (h *EstimateHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePage(r)
	q := r.URL.Query()

	filters := repository.EstimateFilters{Search: q.Get("search")}
	if v := q.Get("status"); v != "" {
		status := domain.EstimateStatus(v)
		if !status.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid status filter")
			return
		}
		filters.Status = &status
	}
	if v := q.Get("executionStatus"); v != "" {
		exec := domain.ExecutionStatus(v)
		if !exec.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid executionStatus filter")
			return
		}
		filters.ExecutionStatus = &exec
	}
	filters.IncludeArchived, _ = strconv.ParseBool(q.Get("includeArchived"))

	sort := repository.DefaultSortConfig()
	if v := q.Get("sortBy"); v != "" {
		sort.Field = v
	}
	if v := q.Get("sortOrder"); v != "" {
		sort.Order = repository.ParseSortOrder(v)
	}

	result, err := h.estimateService.ListEstimates(r.Context(), filters, page, pageSize, sort)
	if err != nil {
		handleServiceError(w, h.logger, "failed to list estimates", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// @Summary Create estimate
// @Tags Estimates
// @Accept json
// @Produce json
// @Param request body domain.CreateEstimateRequest true "Estimate data"
// @Success 201 {object} domain.EstimateDTO
// @Failure 400 {object} domain.APIError "Invalid request"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /estimates [post]
func (h *EstimateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateEstimateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	est, err := h.estimateService.CreateEstimate(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.logger, "failed to create estimate", err)
		return
	}
	w.Header().Set("Location", "/api/v1/estimates/"+est.ID.String())
	respondJSON(w, http.StatusCreated, est)
}

// @Summary Get estimate
// @Tags Estimates
// @Produce json
// @Param id path string true "Estimate ID" format(uuid)
// @Success 200 {object} domain.EstimateDTO
// @Failure 400 {object} domain.APIError "Invalid request"
// @Failure 404 {object} domain.APIError "Estimate not found"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /estimates/{id} [get]
func (h *EstimateHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	est, err := h.estimateService.GetEstimate(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, "failed to get estimate", err)
		return
	}
	respondJSON(w, http.StatusOK, est)
}

// @Summary Save estimate
// @Description Saving an active work order moves stock by the difference from its reservation
// @Tags Estimates
// @Accept json
// @Produce json
// @Param id path string true "Estimate ID" format(uuid)
// @Param request body domain.UpdateEstimateRequest true "Estimate data"
// @Success 200 {object} domain.EstimateDTO
// @Failure 400 {object} domain.APIError "Invalid request"
// @Failure 404 {object} domain.APIError "Estimate not found"
// @Failure 409 {object} domain.APIError "Stock shortage or locked fields"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /estimates/{id} [put]
func (h *EstimateHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req domain.UpdateEstimateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	est, err := h.estimateService.SaveEstimate(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, "failed to save estimate", err)
		return
	}
	respondJSON(w, http.StatusOK, est)
}

// @Summary Delete estimate
// @Description An active work order returns its reservation to stock first. Deleted ids are never recreated by sync.
// @Tags Estimates
// @Produce json
// @Param id path string true "Estimate ID" format(uuid)
// @Success 204 "No Content"
// @Failure 403 {object} domain.APIError "Office role required"
// @Failure 404 {object} domain.APIError "Estimate not found"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /estimates/{id} [delete]
func (h *EstimateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.estimateService.DeleteEstimate(r.Context(), id); err != nil {
		handleServiceError(w, h.logger, "failed to delete estimate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// @Summary Preview stock shortage
// @Tags Estimates
// @Produce json
// @Param id path string true "Estimate ID" format(uuid)
// @Success 200 {object} domain.ShortagePreviewDTO
// @Failure 404 {object} domain.APIError "Estimate not found"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /estimates/{id}/shortage [get]
func (h *EstimateHandler) Shortage(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	preview, err := h.estimateService.PreviewShortage(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, "failed to preview shortage", err)
		return
	}
	respondJSON(w, http.StatusOK, preview)
}

// @Summary Confirm work order
// @Description Reserves stock. Responds 409 with the shortages when stock would go negative and the body does not acknowledge it.
// @Tags Estimates
// @Accept json
// @Produce json
// @Param id path string true "Estimate ID" format(uuid)
// @Param request body domain.ConfirmWorkOrderRequest false "Shortage acknowledgement"
// @Success 200 {object} domain.EstimateDTO
// @Failure 403 {object} domain.APIError "Office role required"
// @Failure 404 {object} domain.APIError "Estimate not found"
// @Failure 409 {object} domain.APIError "Shortage not acknowledged or invalid transition"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /estimates/{id}/work-order [post]
func (h *EstimateHandler) ConfirmWorkOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req domain.ConfirmWorkOrderRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	est, err := h.estimateService.ConfirmWorkOrder(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, "failed to confirm work order", err)
		return
	}
	respondJSON(w, http.StatusOK, est)
}

// @Summary Start job
// @Tags Estimates
// @Produce json
// @Param id path string true "Estimate ID" format(uuid)
// @Success 200 {object} domain.EstimateDTO
// @Failure 404 {object} domain.APIError "Estimate not found"
// @Failure 409 {object} domain.APIError "Transition not allowed from the current state"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /estimates/{id}/start [post]
func (h *EstimateHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	est, err := h.estimateService.StartJob(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, "failed to start job", err)
		return
	}
	respondJSON(w, http.StatusOK, est)
}

// @Summary Complete job
// @Description Records the crew's actuals once and reconciles stock against the reservation
// @Tags Estimates
// @Accept json
// @Produce json
// @Param id path string true "Estimate ID" format(uuid)
// @Param request body domain.CompleteJobRequest true "Actual usage"
// @Success 200 {object} domain.EstimateDTO
// @Failure 400 {object} domain.APIError "Invalid request"
// @Failure 404 {object} domain.APIError "Estimate not found"
// @Failure 409 {object} domain.APIError "Transition not allowed from the current state"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /estimates/{id}/complete [post]
func (h *EstimateHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req domain.CompleteJobRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	est, err := h.estimateService.CompleteJob(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, "failed to complete job", err)
		return
	}
	respondJSON(w, http.StatusOK, est)
}

// @Summary Mark invoiced
// @Tags Estimates
// @Accept json
// @Produce json
// @Param id path string true "Estimate ID" format(uuid)
// @Param request body domain.MarkInvoicedRequest false "Invoice options"
// @Success 200 {object} domain.EstimateDTO
// @Failure 403 {object} domain.APIError "Office role required"
// @Failure 404 {object} domain.APIError "Estimate not found"
// @Failure 409 {object} domain.APIError "Transition not allowed from the current state"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /estimates/{id}/invoice [post]
func (h *EstimateHandler) Invoice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req domain.MarkInvoicedRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	est, err := h.estimateService.MarkInvoiced(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, "failed to mark estimate invoiced", err)
		return
	}
	respondJSON(w, http.StatusOK, est)
}

// @Summary Mark paid
// @Description Computes the financial snapshot and writes the profit/loss record
// @Tags Estimates
// @Accept json
// @Produce json
// @Param id path string true "Estimate ID" format(uuid)
// @Param request body domain.MarkPaidRequest false "Payment options"
// @Success 200 {object} domain.EstimateDTO
// @Failure 403 {object} domain.APIError "Office role required"
// @Failure 404 {object} domain.APIError "Estimate not found"
// @Failure 409 {object} domain.APIError "Transition not allowed from the current state"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /estimates/{id}/paid [post]
func (h *EstimateHandler) Paid(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req domain.MarkPaidRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	est, err := h.estimateService.MarkPaid(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, "failed to mark estimate paid", err)
		return
	}
	respondJSON(w, http.StatusOK, est)
}

// @Summary Archive estimate
// @Description Reserved stock stays withdrawn
// @Tags Estimates
// @Produce json
// @Param id path string true "Estimate ID" format(uuid)
// @Success 200 {object} domain.EstimateDTO
// @Failure 403 {object} domain.APIError "Office role required"
// @Failure 404 {object} domain.APIError "Estimate not found"
// @Failure 409 {object} domain.APIError "Transition not allowed from the current state"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /estimates/{id}/archive [post]
func (h *EstimateHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	est, err := h.estimateService.Archive(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, "failed to archive estimate", err)
		return
	}
	respondJSON(w, http.StatusOK, est)
}
