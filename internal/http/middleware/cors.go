package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/sprayline/foamops-api/internal/config"
	"go.uber.org/zap"
)

// CORS returns a CORS middleware for the office web app
func CORS(cfg *config.CORSConfig, environment string, logger *zap.Logger) func(http.Handler) http.Handler {
	options := cors.Options{
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   append([]string{RequestIDHeader}, cfg.ExposedHeaders...),
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}

	development := environment == "development" || environment == "local" || environment == ""
	switch {
	case hasWildcard(cfg.AllowedOrigins):
		if !development {
			logger.Warn("CORS allows any origin outside development", zap.String("environment", environment))
		}
		options.AllowOriginFunc = anyOrigin
	case len(cfg.AllowedOrigins) > 0:
		options.AllowedOrigins = cfg.AllowedOrigins
	case development:
		options.AllowOriginFunc = anyOrigin
	default:
		// go-chi/cors treats an empty origin list as "*"
		options.AllowOriginFunc = func(*http.Request, string) bool { return false }
		logger.Warn("CORS has no allowed origins; cross-origin requests will be denied",
			zap.String("environment", environment))
	}

	return cors.Handler(options)
}

func anyOrigin(_ *http.Request, origin string) bool {
	return origin != ""
}

func hasWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
