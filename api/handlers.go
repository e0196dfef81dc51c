/*
handlers.go - HTTP API handlers for the weekly planner

PURPOSE:
  Exposes week resolution, reconciliation and the objective board via REST.
  Handles HTTP request/response and JSON serialization, and delegates to
  week.Service and objective.Board.

ENDPOINTS:
  Weeks:
    GET    /api/weeks?date=YYYY-MM-DD   Week containing date (created if new)
    GET    /api/weeks/current           Current week (created if new)
    GET    /api/weeks/all               Every stored week range
    GET    /api/weeks/shared/{token}    Week for a shared-plan link
    GET    /api/weeks/{weekID}          Stored week range by id

  Products & plans:
    GET    /api/products                           List products
    POST   /api/products                           Create product
    GET    /api/products/{id}/weeks/{weekID}/plan  Grouped objectives
    POST   /api/products/{id}/weeks/{weekID}/objectives  Create objective

  Objectives & tasks:
    GET    /api/objectives/{id}         Objective with tasks
    POST   /api/objectives/{id}/tasks   Add task
    POST   /api/tasks/{id}/toggle       Flip completion
    PUT    /api/tasks/{id}              Set completion

  Admin:
    POST   /api/admin/reconcile         Run a reconciliation pass
    GET    /api/admin/reconcile/runs    Reconciliation history

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate week range)
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Seed scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/warp/weekplan/objective"
	"github.com/warp/weekplan/week"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the API needs from a backend. store/memory,
// store/sqlite and store/redis all implement it.
type Store interface {
	week.Store
	week.RunLog
	objective.Store
	PutWeekRange(ctx context.Context, r week.Record) error
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store Store
	Weeks *week.Service
	Board *objective.Board
	Log   zerolog.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over store. Week records are created and
// corrected through weeks.
func NewHandler(store Store, weeks *week.Service, log zerolog.Logger) *Handler {
	return &Handler{
		Store: store,
		Weeks: weeks,
		Board: objective.NewBoard(store, weeks),
		Log:   log,
	}
}

// =============================================================================
// WEEK ENDPOINTS
// =============================================================================

// GetWeekForDate returns the week containing the date query parameter.
// GET /api/weeks?date=YYYY-MM-DD
func (h *Handler) GetWeekForDate(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "date is required", nil)
		return
	}
	date, err := time.ParseInLocation(dateLayout, raw, h.Weeks.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", &week.InvalidDateError{Input: raw})
		return
	}

	rec, err := h.Weeks.ForDate(r.Context(), date)
	if err != nil {
		h.writeDomainError(w, "Failed to get week", err)
		return
	}
	writeJSON(w, http.StatusOK, toWeekDTO(rec))
}

// GetCurrentWeek returns the current week.
// GET /api/weeks/current
func (h *Handler) GetCurrentWeek(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Weeks.CurrentWeek(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to get current week", err)
		return
	}
	writeJSON(w, http.StatusOK, toWeekDTO(rec))
}

// ListWeeks returns every stored week range.
// GET /api/weeks/all
func (h *Handler) ListWeeks(w http.ResponseWriter, r *http.Request) {
	records, err := h.Weeks.All(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list weeks", err)
		return
	}
	writeJSON(w, http.StatusOK, toWeekDTOs(records))
}

// GetWeek returns a stored week range by id.
// GET /api/weeks/{weekID}
func (h *Handler) GetWeek(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "weekID")
	rec, err := h.Weeks.ByID(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Week not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toWeekDTO(rec))
}

// ResolveSharedWeek returns the week a shared-plan token points at.
// Unparseable tokens resolve to the current week with fallback=true.
// GET /api/weeks/shared/{token}
func (h *Handler) ResolveSharedWeek(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	res, err := h.Weeks.ResolveShared(r.Context(), token)
	if err != nil {
		h.writeDomainError(w, "Failed to resolve shared week", err)
		return
	}
	if res.Fallback {
		h.Log.Debug().Str("token", token).Msg("shared token not parseable, using current week")
	}
	writeJSON(w, http.StatusOK, SharedWeekDTO{
		Token:    token,
		Week:     toWeekDTO(res.Record),
		Fallback: res.Fallback,
		Created:  res.Created,
	})
}

// =============================================================================
// RECONCILIATION ENDPOINTS
// =============================================================================

// TriggerReconcile runs one reconciliation pass and records it.
// POST /api/admin/reconcile
func (h *Handler) TriggerReconcile(w http.ResponseWriter, r *http.Request) {
	runID, report, err := RunReconciliation(r.Context(), h.Weeks.Reconciler(), h.Store, TriggerAPI, h.Log)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Reconciliation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(runID, report))
}

// ListReconciliationRuns returns the most recent reconciliation runs.
// GET /api/admin/reconcile/runs?limit=N
func (h *Handler) ListReconciliationRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	runs, err := h.Store.GetReconciliationRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get reconciliation runs", err)
		return
	}

	dtos := make([]RunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toRunDTO(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": dtos})
}

// =============================================================================
// PRODUCT & PLAN ENDPOINTS
// =============================================================================

// ListProducts returns all products.
// GET /api/products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Board.Products(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list products", err)
		return
	}

	dtos := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		dtos = append(dtos, toProductDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProduct creates a product.
// POST /api/products
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p, err := h.Board.CreateProduct(r.Context(), req.Name)
	if err != nil {
		h.writeDomainError(w, "Failed to create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(p))
}

// GetPlan returns a product's objectives for a week, grouped by quadrant.
// GET /api/products/{id}/weeks/{weekID}/plan
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	weekID := chi.URLParam(r, "weekID")
	if _, err := week.ParseID(weekID, h.Weeks.Location()); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid week id", err)
		return
	}

	plan, err := h.Board.WeekPlan(r.Context(), productID, weekID)
	if err != nil {
		h.writeDomainError(w, "Failed to get plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(plan))
}

// CreateObjective adds an objective to a product's week.
// POST /api/products/{id}/weeks/{weekID}/objectives
func (h *Handler) CreateObjective(w http.ResponseWriter, r *http.Request) {
	var req CreateObjectiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	o, err := h.Board.CreateObjective(r.Context(), objective.NewObjective{
		ProductID:   chi.URLParam(r, "id"),
		WeekID:      chi.URLParam(r, "weekID"),
		Title:       req.Title,
		Description: req.Description,
		IsUrgent:    req.IsUrgent,
		IsImportant: req.IsImportant,
		Category:    objective.Category(strings.TrimSpace(req.Category)),
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create objective", err)
		return
	}
	writeJSON(w, http.StatusCreated, toObjectiveDTO(o))
}

// =============================================================================
// OBJECTIVE & TASK ENDPOINTS
// =============================================================================

// GetObjective returns an objective with its tasks.
// GET /api/objectives/{id}
func (h *Handler) GetObjective(w http.ResponseWriter, r *http.Request) {
	o, err := h.Board.Objective(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Objective not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toObjectiveDTO(o))
}

// AddTask appends a task and returns the recomputed objective.
// POST /api/objectives/{id}/tasks
func (h *Handler) AddTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	o, err := h.Board.AddTask(r.Context(), chi.URLParam(r, "id"), req.Title)
	if err != nil {
		h.writeDomainError(w, "Failed to add task", err)
		return
	}
	writeJSON(w, http.StatusCreated, toObjectiveDTO(o))
}

// ToggleTask flips a task and returns the recomputed objective.
// POST /api/tasks/{id}/toggle
func (h *Handler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	o, err := h.Board.ToggleTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to toggle task", err)
		return
	}
	writeJSON(w, http.StatusOK, toObjectiveDTO(o))
}

// UpdateTask sets a task's completion and returns the recomputed objective.
// PUT /api/tasks/{id}
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Completed == nil {
		writeError(w, http.StatusBadRequest, "completed is required", nil)
		return
	}

	o, err := h.Board.SetTaskCompleted(r.Context(), chi.URLParam(r, "id"), *req.Completed)
	if err != nil {
		h.writeDomainError(w, "Failed to update task", err)
		return
	}
	writeJSON(w, http.StatusOK, toObjectiveDTO(o))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps week and objective errors to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case week.IsNotFound(err) || objective.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case week.IsClientError(err) || objective.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, week.ErrWeekRangeExists):
		writeError(w, http.StatusConflict, message, err)
	default:
		h.Log.Error().Err(err).Msg(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
