package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/wallet-activity-bfa/internal/domain"
	"github.com/boddenberg/wallet-activity-bfa/internal/infra/observability"
	"github.com/boddenberg/wallet-activity-bfa/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// breaker guards the wallet API and drives the health report; it may be nil.
func NewRouter(svc *service.ActivityService, breaker *gobreaker.CircuitBreaker, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(breaker))
	r.Get("/readyz", readyzHandler(breaker))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/pipeline", pipelineMetricsHandler(metrics))

		r.Route("/customers/{customerId}/activity", func(r chi.Router) {
			r.Use(CustomerMiddleware(logger))

			r.Get("/", listActivityHandler(svc, logger))
			r.Get("/chart", chartHandler(svc, logger))
			r.Get("/summary", summaryHandler(svc, logger))
			r.Get("/state", queryStatesHandler(svc, logger))
			r.Post("/refresh", refreshHandler(svc, logger))
			r.Post("/retry", retryHandler(svc, logger))
			r.Get("/{transactionId}", detailHandler(svc, logger))
			r.Delete("/{transactionId}", releaseDetailHandler(svc, logger))
		})
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func walletHealth(breaker *gobreaker.CircuitBreaker, now string) domain.ServiceHealth {
	h := domain.ServiceHealth{Name: "wallet-api", Status: "healthy", LastChecked: now}
	if breaker == nil {
		h.Detail = "not configured"
		return h
	}
	switch breaker.State() {
	case gobreaker.StateOpen:
		h.Status = "unhealthy"
	case gobreaker.StateHalfOpen:
		h.Status = "degraded"
	}
	h.Detail = "circuit " + breaker.State().String()
	return h
}

func healthzHandler(breaker *gobreaker.CircuitBreaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bfa-api", Status: "healthy", LastChecked: now},
			walletHealth(breaker, now),
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

// readyzHandler reports not ready while the wallet API circuit is open.
func readyzHandler(breaker *gobreaker.CircuitBreaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if breaker != nil && breaker.State() == gobreaker.StateOpen {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func pipelineMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetPipelineSnapshot())
	}
}
