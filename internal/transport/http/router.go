package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gatekeeper/internal/gatekeeper"
	"gatekeeper/internal/identity"
	platformmetrics "gatekeeper/internal/platform/metrics"
	"gatekeeper/pkg/platform/httputil"
	"gatekeeper/pkg/platform/middleware/metadata"
	request "gatekeeper/pkg/platform/middleware/request"
	"gatekeeper/pkg/platform/middleware/requesttime"
)

const readinessTimeout = 2 * time.Second

// HealthChecker is implemented by backing clients probed by /health/ready.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Registrar mounts a group of routes.
type Registrar interface {
	Register(r chi.Router)
}

// Deps is everything the router composes. Admin and Governed may be nil.
type Deps struct {
	Logger   *slog.Logger
	Identity identity.Provider
	Pipeline *gatekeeper.Pipeline
	Metrics  *platformmetrics.Metrics
	Gatherer prometheus.Gatherer

	// Admin routes get identity and their own role guard, never the pipeline.
	Admin Registrar
	// Governed routes run behind the pipeline.
	Governed []Registrar

	Checks map[string]HealthChecker
}

// NewRouter wires health, metrics, admin and governed routes. Health and
// metrics need no identity.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(chimw.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	r.Get("/health", handleHealth)
	r.Get("/health/ready", handleReady(d.Checks, d.Logger))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	authenticate := identity.Middleware(d.Identity, d.Logger)

	if d.Admin != nil {
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			d.Admin.Register(r)
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Use(gatekeeper.Middleware(d.Pipeline))
		for _, g := range d.Governed {
			g.Register(r)
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleReady(checks map[string]HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check.Health(ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed",
					"request_id", request.GetRequestID(ctx),
					"dependency", name,
					"error", err,
				)
				results[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		resp := map[string]any{"status": "ok", "checks": results}
		if status != http.StatusOK {
			resp["status"] = "degraded"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
