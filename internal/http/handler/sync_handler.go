package handler

import (
	"net/http"

	"github.com/sprayline/foamops-api/internal/domain"
	"github.com/sprayline/foamops-api/internal/service"
	"go.uber.org/zap"
)

// SyncHandler serves settings and the whole-tenant snapshot used by devices
type SyncHandler struct {
	syncService     *service.SyncService
	settingsService *service.SettingsService
	logger          *zap.Logger
}

func NewSyncHandler(syncService *service.SyncService, settingsService *service.SettingsService, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		syncService:     syncService,
		settingsService: settingsService,
		logger:          logger,
	}
}

// @Summary Pull snapshot
// @Description Full tenant dataset including archived estimates and deleted estimate ids
// @Tags Sync
// @Produce json
// @Success 200 {object} domain.TenantSnapshot
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /sync/snapshot [get]
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.syncService.PullSnapshot(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, "failed to pull snapshot", err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// @Summary Push snapshot
// @Description Merges a device snapshot. Statuses never move backwards, stock and billing fields stay as the server has them, and deleted estimates are not recreated.
// @Tags Sync
// @Accept json
// @Produce json
// @Param request body domain.TenantSnapshot true "Device snapshot"
// @Success 200 {object} domain.PushResult
// @Failure 400 {object} domain.APIError "Invalid request"
// @Failure 403 {object} domain.APIError "Crew devices cannot push"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /sync/snapshot [put]
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	var snapshot domain.TenantSnapshot
	if !decodeJSON(w, r, &snapshot) {
		return
	}
	result, err := h.syncService.PushSnapshot(r.Context(), &snapshot)
	if err != nil {
		handleServiceError(w, h.logger, "failed to push snapshot", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// @Summary Get settings
// @Tags Settings
// @Produce json
// @Success 200 {object} domain.SettingsDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /settings [get]
func (h *SyncHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsService.GetSettings(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, "failed to get settings", err)
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

// @Summary Update settings
// @Description Omitted sections are kept
// @Tags Settings
// @Accept json
// @Produce json
// @Param request body domain.UpdateSettingsRequest true "Settings sections"
// @Success 200 {object} domain.SettingsDTO
// @Failure 400 {object} domain.APIError "Invalid request"
// @Failure 403 {object} domain.APIError "Office role required"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /settings [patch]
func (h *SyncHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateSettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	settings, err := h.settingsService.UpdateSettings(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.logger, "failed to update settings", err)
		return
	}
	respondJSON(w, http.StatusOK, settings)
}
