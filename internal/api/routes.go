package api

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "ingestion/internal/docs" // registers the OpenAPI document served under /swagger/
	"ingestion/internal/health"
	"ingestion/internal/job"
	"ingestion/internal/observability"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	JobService    *job.Service
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	APIKey        string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.JobService, cfg.HealthChecker)

	mux := http.NewServeMux()

	// Health check endpoints (liveness/readiness probes) - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Ingestion endpoints - auth required
	auth := AuthMiddleware(cfg.APIKey)
	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"POST /v1/ingestions", handler.CreateJob},
		{"GET /v1/ingestions/{id}", handler.GetJob},
		{"GET /v1/ingestions/{id}/status", handler.GetStatus},
		{"POST /v1/ingestions/{id}/cancel", handler.Cancel},
		{"POST /v1/ingestions/{id}/pause", handler.Pause},
		{"POST /v1/ingestions/{id}/resume", handler.Resume},
		{"POST /v1/ingestions/{id}/retry", handler.Retry},
		{"GET /v1/ingestions/{id}/embedding", handler.GetEmbedding},
	}
	for _, rt := range routes {
		mux.Handle(rt.pattern, auth(rt.handler))
	}

	// Apply middleware chain (order matters: outermost first)
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	h = CORSMiddleware()(h)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RequestIDMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
