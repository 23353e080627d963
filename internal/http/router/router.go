package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/docshield/view-session-service/internal/health"
	"github.com/docshield/view-session-service/internal/http/handler"
	"github.com/docshield/view-session-service/internal/http/middleware"
	"github.com/docshield/view-session-service/internal/http/response"
	"github.com/docshield/view-session-service/internal/repository"
	"github.com/docshield/view-session-service/internal/security"
)

type Dependencies struct {
	ViewHandler     *handler.ViewHandler
	AmbientParser   *security.AmbientTokenParser
	UserRepo        repository.UserRepository
	APIRateLimitRPM int
	Readiness       *health.ProbeRunner
	EnableOTelHTTP  bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute).Middleware())

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/view/{docID}", func(r chi.Router) {
		r.Use(middleware.IdentityResolver(dep.AmbientParser, dep.UserRepo))
		r.Get("/manifest", dep.ViewHandler.Manifest)
		r.Get("/tile", dep.ViewHandler.Tile)
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
