package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/sprayline/foamops-api/internal/domain"
	"github.com/sprayline/foamops-api/internal/service"
	"go.uber.org/zap"
)

type WarehouseHandler struct {
	warehouseService *service.WarehouseService
	logger           *zap.Logger
}

func NewWarehouseHandler(warehouseService *service.WarehouseService, logger *zap.Logger) *WarehouseHandler {
	return &WarehouseHandler{
		warehouseService: warehouseService,
		logger:           logger,
	}
}

// @Summary Get warehouse
// @Tags Warehouse
// @Produce json
// @Success 200 {object} domain.WarehouseDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /warehouse [get]
func (h *WarehouseHandler) Get(w http.ResponseWriter, r *http.Request) {
	wh, err := h.warehouseService.GetWarehouse(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, "failed to get warehouse", err)
		return
	}
	respondJSON(w, http.StatusOK, wh)
}

// @Summary Update warehouse
// @Description Manual stock count; sets counters and items directly
// @Tags Warehouse
// @Accept json
// @Produce json
// @Param request body domain.UpdateWarehouseRequest true "Stock levels"
// @Success 200 {object} domain.WarehouseDTO
// @Failure 400 {object} domain.APIError "Invalid request"
// @Failure 403 {object} domain.APIError "Office role required"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /warehouse [put]
func (h *WarehouseHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateWarehouseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	wh, err := h.warehouseService.UpdateWarehouse(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.logger, "failed to update warehouse", err)
		return
	}
	respondJSON(w, http.StatusOK, wh)
}

// @Summary List purchase orders
// @Tags Warehouse
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Success 200 {object} domain.PaginatedResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /purchase-orders [get]
func (h *WarehouseHandler) ListPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePage(r)
	result, err := h.warehouseService.ListPurchaseOrders(r.Context(), page, pageSize)
	if err != nil {
		handleServiceError(w, h.logger, "failed to list purchase orders", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// @Summary Receive purchase order
// @Description Adds every line to stock in one transaction
// @Tags Warehouse
// @Accept json
// @Produce json
// @Param request body domain.CreatePurchaseOrderRequest true "Purchase order"
// @Success 201 {object} domain.PurchaseOrderDTO
// @Failure 400 {object} domain.APIError "Invalid request"
// @Failure 403 {object} domain.APIError "Office role required"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /purchase-orders [post]
func (h *WarehouseHandler) ReceivePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePurchaseOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	po, err := h.warehouseService.ReceivePurchaseOrder(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.logger, "failed to receive purchase order", err)
		return
	}
	respondJSON(w, http.StatusCreated, po)
}

// @Summary List material usage
// @Tags Warehouse
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param estimateId query string false "Filter by estimate ID" format(uuid)
// @Success 200 {object} domain.PaginatedResponse
// @Failure 400 {object} domain.APIError "Invalid request"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /usage-log [get]
func (h *WarehouseHandler) ListUsage(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePage(r)

	var estimateID *uuid.UUID
	if v := r.URL.Query().Get("estimateId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid estimateId")
			return
		}
		estimateID = &id
	}

	result, err := h.warehouseService.ListUsageLog(r.Context(), estimateID, page, pageSize)
	if err != nil {
		handleServiceError(w, h.logger, "failed to list usage log", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// @Summary List profit and loss
// @Tags Warehouse
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Success 200 {object} domain.PaginatedResponse
// @Failure 403 {object} domain.APIError "Office role required"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /profit-loss [get]
func (h *WarehouseHandler) ListProfitLoss(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePage(r)
	result, err := h.warehouseService.ListProfitLoss(r.Context(), page, pageSize)
	if err != nil {
		handleServiceError(w, h.logger, "failed to list profit and loss", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
