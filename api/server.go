/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the planning frontend

ROUTE GROUPS:
  /api/rates, /api/drivers/*     Reference data
  /api/rides/*, /api/executions  Ride commits
  /api/weeks/*, /api/periods/*   Sign-off workflow
  /api/disputes/*                Ride-level disputes
  /api/execution-disputes/*      Execution-level disputes
  /api/scenarios/*               Demo scenarios

SECURITY NOTE:
  No authentication middleware. Actor headers are trusted as set by the
  fronting proxy.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. An empty
// origins list allows the local frontend dev servers.
func NewRouter(h *Handler, origins []string) *chi.Mux {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", HeaderActorID, HeaderActorRole, HeaderActorContext},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/rates", h.GetRate)

		r.Route("/drivers/{id}", func(r chi.Router) {
			r.Put("/", h.PutDriver)
			r.Post("/contracts", h.AddContract)
			r.Get("/vacation", h.GetVacation)
		})

		r.Route("/rides", func(r chi.Router) {
			r.Post("/", h.SaveRide)
			r.Get("/{id}", h.GetRide)
		})
		r.Post("/shared-rides", h.CreateSharedRide)
		r.Route("/executions", func(r chi.Router) {
			r.Post("/", h.SaveExecution)
			r.Get("/{id}", h.GetExecution)
		})

		r.Route("/weeks", func(r chi.Router) {
			r.Post("/", h.GetOrCreateWeek)
			r.Get("/{id}", h.GetWeek)
			r.Post("/{id}/allow", h.AllowWeek)
			r.Post("/{id}/sign", h.SignWeek)
		})

		r.Route("/periods", func(r chi.Router) {
			r.Post("/", h.GetOrCreatePeriod)
			r.Get("/{id}", h.GetPeriod)
			r.Get("/{id}/weeks", h.ListPeriodWeeks)
			r.Post("/{id}/sign", h.SignPeriod)
			r.Get("/{id}/export", h.ExportPeriod)
		})

		r.Route("/disputes", func(r chi.Router) {
			r.Post("/", h.OpenDispute)
			r.Get("/{id}", h.GetDispute)
			r.Post("/{id}/reply", h.ReplyDispute)
			r.Post("/{id}/accept", h.AcceptDispute)
			r.Post("/{id}/close", h.CloseDispute)
			r.Post("/{id}/comments", h.CommentDispute)
		})

		r.Route("/execution-disputes", func(r chi.Router) {
			r.Post("/", h.OpenExecutionDispute)
			r.Get("/{id}", h.GetExecutionDispute)
			r.Post("/{id}/resolve", h.ResolveExecutionDispute)
			r.Post("/{id}/close", h.CloseExecutionDispute)
			r.Post("/{id}/comments", h.CommentExecutionDispute)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
