package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sprayline/foamops-api/internal/auth"
	"github.com/sprayline/foamops-api/internal/config"
	"github.com/sprayline/foamops-api/internal/documents"
	"github.com/sprayline/foamops-api/internal/domain"
	"github.com/sprayline/foamops-api/internal/http/handler"
	"github.com/sprayline/foamops-api/internal/http/middleware"
	"github.com/sprayline/foamops-api/internal/http/router"
	"github.com/sprayline/foamops-api/internal/lock"
	"github.com/sprayline/foamops-api/internal/metrics"
	"github.com/sprayline/foamops-api/internal/repository"
	"github.com/sprayline/foamops-api/internal/service"
	"github.com/sprayline/foamops-api/internal/testutil"
)

const apiKey = "router-test-key"

type nopRenderer struct{}

func (nopRenderer) Render(context.Context, documents.Request) (string, error) { return "", nil }

type server struct {
	handler   http.Handler
	validator *auth.JWTValidator
}

func newServer(t *testing.T) *server {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	cfg := &config.Config{
		App:       config.AppConfig{Environment: "development"},
		Auth:      config.AuthConfig{JWTSigningKey: "router-test-signing-key", APIKey: apiKey, APIKeyCompanyID: "acme-foam"},
		RateLimit: config.RateLimitConfig{Enabled: false},
		Metrics:   config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Security:  config.SecurityConfig{ContentTypeNosniff: true, FrameOptions: "DENY"},
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	locker := lock.NewLocalLocker()

	estimateRepo := repository.NewEstimateRepository(db)
	warehouseRepo := repository.NewWarehouseRepository(db)
	usageRepo := repository.NewUsageLogRepository(db)
	profitRepo := repository.NewProfitLossRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	poRepo := repository.NewPurchaseOrderRepository(db)

	numbers := service.NewNumberSequenceService(repository.NewNumberSequenceRepository(db), logger)
	outbox := service.NewOutboxService(repository.NewOutboxRepository(db), estimateRepo, settingsRepo, nopRenderer{}, cfg.Outbox, m, logger)
	estimates := service.NewEstimateService(db, locker, estimateRepo, warehouseRepo, usageRepo, profitRepo, settingsRepo, numbers, outbox, m, logger)
	warehouse := service.NewWarehouseService(db, locker, warehouseRepo, poRepo, usageRepo, profitRepo, m, logger)
	settings := service.NewSettingsService(settingsRepo, logger)
	sync := service.NewSyncService(db, locker, estimateRepo, warehouseRepo, poRepo, settingsRepo, m, logger)

	rt := router.NewRouter(cfg, logger, db, m, reg,
		auth.NewMiddleware(&cfg.Auth, logger),
		middleware.NewRateLimiter(&cfg.RateLimit, logger),
		handler.NewEstimateHandler(estimates, logger),
		handler.NewWarehouseHandler(warehouse, logger),
		handler.NewSyncHandler(sync, settings, logger),
	)
	return &server{handler: rt.Setup(), validator: auth.NewJWTValidator(&cfg.Auth)}
}

func (s *server) crewToken(t *testing.T) string {
	t.Helper()
	token, err := s.validator.IssueToken(&auth.UserContext{
		UserID:    "u-crew",
		Roles:     []domain.UserRole{domain.RoleCrew},
		CompanyID: "acme-foam",
	}, time.Hour)
	require.NoError(t, err)
	return token
}

// do sends body as JSON with the admin API key unless token is set
func (s *server) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Set("x-api-key", apiKey)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/health/db", nil)
	w = httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_request_duration_seconds")
}

func TestRequiresAuthentication(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/estimates", nil)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEstimateLifecycleOverHTTP(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPut, "/api/v1/warehouse", domain.UpdateWarehouseRequest{OpenCellSets: 1}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/estimates", domain.CreateEstimateRequest{
		CustomerName: "Jane Doe",
		TotalValue:   5000,
		Materials:    domain.MaterialSet{OpenCellSets: 3},
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	est := decode[domain.EstimateDTO](t, w)
	base := "/api/v1/estimates/" + est.ID.String()

	// Not enough stock and not acknowledged
	w = s.do(t, http.MethodPost, base+"/work-order", nil, "")
	require.Equal(t, http.StatusConflict, w.Code)
	problem := decode[domain.APIError](t, w)
	assert.Equal(t, domain.ErrorTypeShortage, problem.Type)
	require.Len(t, problem.Shortages, 1)
	assert.Equal(t, 2.0, problem.Shortages[0].Shortfall)

	w = s.do(t, http.MethodPost, base+"/work-order", domain.ConfirmWorkOrderRequest{AcknowledgeShortage: true}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.EstimateStatusWorkOrder, decode[domain.EstimateDTO](t, w).Status)

	w = s.do(t, http.MethodGet, "/api/v1/warehouse", nil, "")
	assert.Equal(t, -2.0, decode[domain.WarehouseDTO](t, w).OpenCellSets)

	// Crew runs the job
	crew := s.crewToken(t)
	w = s.do(t, http.MethodPost, base+"/start", nil, crew)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, base+"/complete", domain.CompleteJobRequest{OpenCellSets: 2.5, LaborHours: 6}, crew)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, base+"/complete", domain.CompleteJobRequest{OpenCellSets: 2.5}, crew)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Office bills it
	w = s.do(t, http.MethodPost, base+"/invoice", nil, crew)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, http.MethodPost, base+"/invoice", domain.MarkInvoicedRequest{ApplyActuals: true}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, strings.HasPrefix(decode[domain.EstimateDTO](t, w).InvoiceNumber, "INV-"))
	w = s.do(t, http.MethodPost, base+"/paid", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, decode[domain.EstimateDTO](t, w).Financials)

	w = s.do(t, http.MethodGet, "/api/v1/profit-loss", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[domain.PaginatedResponse](t, w).Total)

	w = s.do(t, http.MethodGet, "/api/v1/usage-log?estimateId="+est.ID.String(), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[domain.PaginatedResponse](t, w).Total)
}

func TestErrorMapping(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/estimates/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/estimates/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/purchase-orders", domain.CreatePurchaseOrderRequest{VendorName: "Foam Supply Co"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrorTypeValidation, decode[domain.APIError](t, w).Type)

	w = s.do(t, http.MethodGet, "/api/v1/estimates?status=bogus", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCrewCannotUseOfficeRoutes(t *testing.T) {
	s := newServer(t)
	crew := s.crewToken(t)

	w := s.do(t, http.MethodPut, "/api/v1/warehouse", domain.UpdateWarehouseRequest{OpenCellSets: 50}, crew)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/sync/snapshot", nil, crew)
	require.Equal(t, http.StatusOK, w.Code)
	snapshot := decode[domain.TenantSnapshot](t, w)

	w = s.do(t, http.MethodPut, "/api/v1/sync/snapshot", snapshot, crew)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPut, "/api/v1/sync/snapshot", snapshot, "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
