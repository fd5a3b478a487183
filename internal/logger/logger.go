package logger

import (
	"fmt"

	"github.com/sprayline/foamops-api/internal/config"
	"github.com/sprayline/foamops-api/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a new structured logger
func NewLogger(cfg *config.LoggingConfig, appCfg *config.AppConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" || appCfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	// Set log level
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	// Add initial fields
	zapCfg.InitialFields = map[string]interface{}{
		"app":         appCfg.Name,
		"environment": appCfg.Environment,
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return logger, nil
}

// WithRequest adds request context to logger
func WithRequest(logger *zap.Logger, method, path, requestID string) *zap.Logger {
	return logger.With(
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
	)
}

// WithUser adds the caller and their company to logger
func WithUser(logger *zap.Logger, userID, displayName, companyID string) *zap.Logger {
	return logger.With(
		zap.String("user_id", userID),
		zap.String("user_name", displayName),
		zap.String("company_id", companyID),
	)
}

// WithEstimate adds an estimate's identity and lifecycle pair to logger
func WithEstimate(logger *zap.Logger, est *domain.Estimate) *zap.Logger {
	return logger.With(
		zap.String("estimate_id", est.ID.String()),
		zap.String("company_id", string(est.CompanyID)),
		zap.String("status", string(est.Status)),
		zap.String("execution_status", string(est.ExecutionStatus)),
	)
}

// StockFields describes a warehouse movement. Zero counters are left out.
func StockFields(op string, openCell, closedCell float64, items int) []zap.Field {
	fields := []zap.Field{zap.String("operation", op)}
	if openCell != 0 {
		fields = append(fields, zap.Float64("open_cell_sets", openCell))
	}
	if closedCell != 0 {
		fields = append(fields, zap.Float64("closed_cell_sets", closedCell))
	}
	if items > 0 {
		fields = append(fields, zap.Int("items", items))
	}
	return fields
}
