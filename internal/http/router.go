package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"dpia-ai/internal/handlers"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Documents    handlers.DocumentService
	Jobs         handlers.JobService
	Reports      handlers.ReportReader
	HealthChecks map[string]handlers.Check
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	documents := handlers.NewDocumentsHandler(deps.Documents)
	jobs := handlers.NewJobsHandler(deps.Jobs)
	reports := handlers.NewReportsHandler(deps.Reports)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", handlers.NewHealthHandler(deps.HealthChecks))

		r.Post("/documents", documents.Upload)
		r.Get("/documents", documents.List)
		r.Delete("/documents", documents.Delete)
		r.Delete("/scopes", documents.ClearScope)

		r.Post("/jobs", jobs.Submit)
		r.Get("/jobs/{id}", jobs.Get)
		r.Post("/jobs/{id}/cancel", jobs.Cancel)

		r.Get("/reports/{jobID}", reports.Get)
	})

	return r
}
