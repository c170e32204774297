// Package api is the HTTP surface of the orchestration engine: workflow
// lifecycle operations, waveless admission controls and health probes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/paklog/orchestration/internal/cache"
	"github.com/paklog/orchestration/internal/execution"
	"github.com/paklog/orchestration/internal/repository"
	"github.com/paklog/orchestration/internal/waveless"
	"github.com/paklog/orchestration/internal/workflow"
)

// Engine is the slice of the execution service the API drives.
type Engine interface {
	StartWorkflow(ctx context.Context, id string, def *workflow.WorkflowDefinition, priority workflow.WorkflowPriority, triggeredBy, correlationID string, input map[string]any) (*workflow.Workflow, error)
	ExecuteStep(ctx context.Context, workflowID, stepID string) (*workflow.Workflow, error)
	FailStep(ctx context.Context, workflowID, stepID string, failure workflow.WorkflowError) (*workflow.Workflow, error)
	PauseWorkflow(ctx context.Context, workflowID, reason string) (*workflow.Workflow, error)
	ResumeWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error)
	CancelWorkflow(ctx context.Context, workflowID, reason string) (*workflow.Workflow, error)
	RetryWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error)
	CompensateWorkflow(ctx context.Context, workflowID, reason string) (*workflow.Workflow, error)
	EnableWaveless(ctx context.Context, workflowID string, batchSize int, interval time.Duration) (*workflow.Workflow, error)
	GetWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error)
}

// Admissions is the slice of the waveless scheduler the API exposes.
type Admissions interface {
	QueueMetrics(ctx context.Context) (waveless.QueueMetrics, error)
	RebalanceOnce(ctx context.Context) error
}

// Handler serves the workflow and waveless routes.
type Handler struct {
	engine     Engine
	admissions Admissions
	repo       repository.WorkflowRepository
	cache      *cache.WorkflowCache
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewHandler wires the API handler. The cache is optional.
func NewHandler(engine Engine, admissions Admissions, repo repository.WorkflowRepository, wc *cache.WorkflowCache, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine:     engine,
		admissions: admissions,
		repo:       repo,
		cache:      wc,
		validate:   validator.New(),
		logger:     logger.With("component", "api"),
	}
}

// StartWorkflow handles POST /workflows.
func (h *Handler) StartWorkflow(w http.ResponseWriter, r *http.Request) {
	var req StartWorkflowRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.respondValidationError(w, err)
		return
	}

	id := req.WorkflowID
	if id == "" {
		id = uuid.NewString()
	}
	priority := workflow.PriorityNormal
	if req.Priority != "" {
		priority = workflow.WorkflowPriority(req.Priority)
	}
	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	wf, err := h.engine.StartWorkflow(r.Context(), id, req.Definition, priority, req.TriggeredBy, correlationID, req.Input)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.refreshCache(r.Context(), wf)
	h.respondJSON(w, http.StatusCreated, WorkflowFromSnapshot(wf.Snapshot()))
}

// GetWorkflow handles GET /workflows/{id} with a cache-aside read.
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if h.cache != nil {
		if snap, err := h.cache.Get(r.Context(), id); err == nil {
			h.respondJSON(w, http.StatusOK, WorkflowFromSnapshot(*snap))
			return
		}
	}

	wf, err := h.engine.GetWorkflow(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.refreshCache(r.Context(), wf)
	h.respondJSON(w, http.StatusOK, WorkflowFromSnapshot(wf.Snapshot()))
}

// ListWorkflows handles GET /workflows?status=...&limit=...
func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		h.respondError(w, http.StatusBadRequest, "status query parameter is required")
		return
	}

	limit := int64(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 || n > 500 {
			h.respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	ws, err := h.repo.FindByStatus(r.Context(), workflow.WorkflowStatus(status), limit)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	out := make([]WorkflowResponse, 0, len(ws))
	for _, wf := range ws {
		out = append(out, WorkflowFromSnapshot(wf.Snapshot()))
	}
	h.respondJSON(w, http.StatusOK, WorkflowListResponse{Workflows: out, Count: len(out)})
}

// ExecuteStep handles POST /workflows/{id}/steps/{stepID}/execute.
func (h *Handler) ExecuteStep(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, id string) (*workflow.Workflow, error) {
		return h.engine.ExecuteStep(ctx, id, chi.URLParam(r, "stepID"))
	})
}

// FailStep handles POST /workflows/{id}/steps/{stepID}/fail.
func (h *Handler) FailStep(w http.ResponseWriter, r *http.Request) {
	var req FailStepRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.respondValidationError(w, err)
		return
	}

	failure := workflow.NewWorkflowError(workflow.ErrorType(req.ErrorType), req.Code, req.Message, time.Now().UTC())
	failure.Details = req.Details

	h.mutate(w, r, func(ctx context.Context, id string) (*workflow.Workflow, error) {
		return h.engine.FailStep(ctx, id, chi.URLParam(r, "stepID"), failure)
	})
}

// PauseWorkflow handles POST /workflows/{id}/pause.
func (h *Handler) PauseWorkflow(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.respondValidationError(w, err)
		return
	}
	h.mutate(w, r, func(ctx context.Context, id string) (*workflow.Workflow, error) {
		return h.engine.PauseWorkflow(ctx, id, req.Reason)
	})
}

// ResumeWorkflow handles POST /workflows/{id}/resume.
func (h *Handler) ResumeWorkflow(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, id string) (*workflow.Workflow, error) {
		return h.engine.ResumeWorkflow(ctx, id)
	})
}

// CancelWorkflow handles POST /workflows/{id}/cancel.
func (h *Handler) CancelWorkflow(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.respondValidationError(w, err)
		return
	}
	h.mutate(w, r, func(ctx context.Context, id string) (*workflow.Workflow, error) {
		return h.engine.CancelWorkflow(ctx, id, req.Reason)
	})
}

// RetryWorkflow handles POST /workflows/{id}/retry.
func (h *Handler) RetryWorkflow(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, id string) (*workflow.Workflow, error) {
		return h.engine.RetryWorkflow(ctx, id)
	})
}

// CompensateWorkflow handles POST /workflows/{id}/compensate.
func (h *Handler) CompensateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.respondValidationError(w, err)
		return
	}
	h.mutate(w, r, func(ctx context.Context, id string) (*workflow.Workflow, error) {
		return h.engine.CompensateWorkflow(ctx, id, req.Reason)
	})
}

// EnableWaveless handles POST /workflows/{id}/waveless.
func (h *Handler) EnableWaveless(w http.ResponseWriter, r *http.Request) {
	var req EnableWavelessRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.respondValidationError(w, err)
		return
	}
	h.mutate(w, r, func(ctx context.Context, id string) (*workflow.Workflow, error) {
		return h.engine.EnableWaveless(ctx, id, req.BatchSize, time.Duration(req.IntervalS)*time.Second)
	})
}

// WavelessMetrics handles GET /waveless/metrics.
func (h *Handler) WavelessMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := h.admissions.QueueMetrics(r.Context())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, wavelessMetricsResponse(m))
}

// Rebalance handles POST /waveless/rebalance.
func (h *Handler) Rebalance(w http.ResponseWriter, r *http.Request) {
	if err := h.admissions.RebalanceOnce(r.Context()); err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusAccepted, map[string]string{"status": "rebalanced"})
}

// mutate runs one lifecycle operation and writes the updated workflow.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) (*workflow.Workflow, error)) {
	id := chi.URLParam(r, "id")

	wf, err := op(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.refreshCache(r.Context(), wf)
	h.respondJSON(w, http.StatusOK, WorkflowFromSnapshot(wf.Snapshot()))
}

// refreshCache keeps the read cache in step with a committed aggregate.
// Cache failures are logged, never surfaced.
func (h *Handler) refreshCache(ctx context.Context, wf *workflow.Workflow) {
	if h.cache == nil || wf == nil {
		return
	}
	snap := wf.Snapshot()
	if err := h.cache.Put(ctx, &snap); err != nil {
		h.logger.Warn("workflow cache refresh failed", "workflow_id", snap.ID, "error", err)
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, code int, message string) {
	h.respondJSON(w, code, ErrorResponse{Error: message})
}

func (h *Handler) respondValidationError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		details := make(map[string]string, len(validationErrs))
		for _, e := range validationErrs {
			details[e.Field()] = formatValidationError(e)
		}
		h.respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation failed",
			Details: details,
		})
		return
	}
	h.respondError(w, http.StatusBadRequest, "invalid request body")
}

// respondDomainError maps domain failures to HTTP statuses.
func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "workflow not found")
	case errors.Is(err, execution.ErrWorkflowBusy):
		h.respondError(w, http.StatusConflict, "workflow is busy, try again")
	case errors.Is(err, repository.ErrVersionConflict):
		h.respondError(w, http.StatusConflict, "workflow was modified concurrently")
	case errors.Is(err, repository.ErrDuplicateKey):
		h.respondError(w, http.StatusConflict, "workflow id already exists")
	case workflow.IsInvalidState(err):
		h.respondError(w, http.StatusConflict, err.Error())
	default:
		var wErr workflow.WorkflowError
		if errors.As(err, &wErr) {
			h.respondJSON(w, statusForErrorType(wErr.Type), ErrorResponse{Error: wErr.Message})
			return
		}
		h.logger.Error("request failed", "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func statusForErrorType(t workflow.ErrorType) int {
	switch t {
	case workflow.ErrorValidation:
		return http.StatusBadRequest
	case workflow.ErrorBusinessRuleViolation:
		return http.StatusUnprocessableEntity
	case workflow.ErrorResourceNotFound:
		return http.StatusNotFound
	case workflow.ErrorPermissionDenied:
		return http.StatusForbidden
	case workflow.ErrorServiceUnavailable, workflow.ErrorNetwork:
		return http.StatusBadGateway
	case workflow.ErrorTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "is invalid"
	}
}

func (h *Handler) decodeAndValidate(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return h.validate.Struct(v)
}
