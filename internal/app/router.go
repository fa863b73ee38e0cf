package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	authhandler "educa/internal/auth/handler"
	enrollmenthandler "educa/internal/enrollment/handler"
	"educa/internal/platform/metrics"
	"educa/internal/platform/middleware"
	"educa/pkg/platform/httputil"
	authmw "educa/pkg/platform/middleware/auth"
	"educa/pkg/platform/middleware/metadata"
	"educa/pkg/platform/middleware/requesttime"
)

// Check is one named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// RouterDeps is everything the HTTP surface needs.
type RouterDeps struct {
	Logger         *slog.Logger
	Gatherer       prometheus.Gatherer
	HTTPMetrics    *metrics.HTTP
	RequestTimeout time.Duration
	Auth           *authhandler.Handler
	Enrollment     *enrollmenthandler.Handler
	Validator      authmw.JWTValidator
	Revocations    authmw.TokenRevocationChecker
	Checks         []Check
	OpenAPI        []byte
}

// NewRouter assembles the public and authenticated routes. Trailing slashes
// are stripped so "/enrollment/" and "/enrollment" reach the same handler.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.StripSlashes)
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(d.Logger, d.HTTPMetrics))
	r.Use(middleware.Recovery(d.Logger))
	if d.RequestTimeout > 0 {
		r.Use(chimw.Timeout(d.RequestTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(d.Checks))
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Gatherer))
	}
	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(d.OpenAPI)
	})

	d.Auth.RegisterPublic(r)
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(d.Validator, d.Revocations, d.Logger))
		d.Auth.RegisterProtected(r)
		d.Enrollment.Register(r)
	})
	return r
}

func readiness(checks []Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Fn(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[c.Name] = err.Error()
				continue
			}
			results[c.Name] = "ok"
		}
		state := "ready"
		if status != http.StatusOK {
			state = "unavailable"
		}
		httputil.WriteJSON(w, status, map[string]any{"status": state, "checks": results})
	}
}
