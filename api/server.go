/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zerolog request logging (level by status)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the planner frontend

ROUTE GROUPS:
  /api/weeks/*       Week resolution
  /api/products/*    Products and weekly plans
  /api/objectives/*  Objectives and their tasks
  /api/tasks/*       Task completion
  /api/admin/*       Reconciliation
  /api/scenarios/*   Seed scenarios (dev only)

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// NewRouter creates a new router with all routes configured.
// allowedOrigins configures CORS; nil allows none.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Week routes
		r.Route("/weeks", func(r chi.Router) {
			r.Get("/", h.GetWeekForDate)
			r.Get("/current", h.GetCurrentWeek)
			r.Get("/all", h.ListWeeks)
			r.Get("/shared/{token}", h.ResolveSharedWeek)
			r.Get("/{weekID}", h.GetWeek)
		})

		// Product routes
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
			r.Get("/{id}/weeks/{weekID}/plan", h.GetPlan)
			r.Post("/{id}/weeks/{weekID}/objectives", h.CreateObjective)
		})

		// Objective routes
		r.Route("/objectives", func(r chi.Router) {
			r.Get("/{id}", h.GetObjective)
			r.Post("/{id}/tasks", h.AddTask)
		})

		// Task routes
		r.Route("/tasks", func(r chi.Router) {
			r.Put("/{id}", h.UpdateTask)
			r.Post("/{id}/toggle", h.ToggleTask)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/reconcile", h.TriggerReconcile)
			r.Get("/reconcile/runs", h.ListReconciliationRuns)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// RequestLogger logs one zerolog event per request. 5xx responses log at
// error level, 4xx at warn.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			var event *zerolog.Event
			if status >= 500 {
				event = log.Error()
			} else if status >= 400 {
				event = log.Warn()
			} else {
				event = log.Info()
			}

			event.
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", time.Since(start)).
				Str("ip", r.RemoteAddr).
				Msg("request")
		})
	}
}
