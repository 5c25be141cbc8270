package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"jobcore/internal/status"
	"jobcore/internal/store"
	"jobcore/pkg/api"
)

// GetExecution handles GET /executions/{id}.
func (h *Handlers) GetExecution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	exID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpErrorMsg(w, "invalid execution id", http.StatusBadRequest)
		return
	}

	ex, err := h.engine.GetExecutionContext(ctx, exID)
	if err != nil {
		h.httpError(w, err)
		return
	}

	h.respondJson(w, http.StatusOK, executionResponse(ex))
}

// GetExecutions handles GET /jobs/{id}/executions.
func (h *Handlers) GetExecutions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID := r.PathValue("id")
	from, size := pagination(r)

	q := store.ExecutionQuery().WithJobID(jobID)
	executions, err := h.engine.GetExecutions(ctx, q, from, size, store.CreatedAsc)
	if err != nil {
		h.httpError(w, err)
		return
	}

	resp := api.ExecutionListResponse{Executions: make([]api.ExecutionResponse, 0, len(executions))}
	for _, ex := range executions {
		resp.Executions = append(resp.Executions, executionResponse(ex))
	}
	h.respondJson(w, http.StatusOK, resp)
}

// GetLatestExecution handles GET /jobs/{id}/executions/latest.
func (h *Handlers) GetLatestExecution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpErrorMsg(w, "invalid job id", http.StatusBadRequest)
		return
	}

	onlyActive := r.URL.Query().Get("active") == "true"

	exID, found, err := h.engine.GetLatestExecution(ctx, jobID, onlyActive)
	if err != nil {
		h.httpError(w, err)
		return
	}

	resp := api.LatestExecutionResponse{Found: found}
	if found {
		resp.ExecutionID = exID.String()
	}
	h.respondJson(w, http.StatusOK, resp)
}

// RestartExecution handles POST /executions/{id}/restart.
func (h *Handlers) RestartExecution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	exID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpErrorMsg(w, "invalid execution id", http.StatusBadRequest)
		return
	}

	if err := h.engine.RestartExecution(ctx, exID); err != nil {
		h.httpError(w, err)
		return
	}

	h.respondJson(w, http.StatusOK, api.NotifyResponse{Status: string(status.Scheduling)})
}

// Notify handles POST /executions/{id}/notify, the single entry point for
// pause/resume/stop/restart commands against a running execution.
func (h *Handlers) Notify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	exID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpErrorMsg(w, "invalid execution id", http.StatusBadRequest)
		return
	}

	var req api.NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpErrorMsg(w, "invalid request body", http.StatusBadRequest)
		return
	}

	newStatus, err := h.engine.Notify(ctx, exID, status.Command(req.Command))
	if err != nil {
		h.httpError(w, err)
		return
	}

	h.respondJson(w, http.StatusOK, api.NotifyResponse{Status: string(newStatus)})
}

// UpdateExecution handles PATCH /executions/{id}. It patches an
// execution's non-transition metadata; status changes go through
// Notify instead, which enforces the command/state machine.
func (h *Handlers) UpdateExecution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	exID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpErrorMsg(w, "invalid execution id", http.StatusBadRequest)
		return
	}

	var req api.UpdateExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpErrorMsg(w, "invalid request body", http.StatusBadRequest)
		return
	}

	patch := store.ExecutionPatch{
		FailureReason:    req.FailureReason,
		SlicerStats:      req.SlicerStats,
		RecoverExecution: req.RecoverExecution,
		ResolvedAssets:   req.ResolvedAssets,
		Pipeline:         req.Pipeline,
	}
	if req.HasErrors != nil {
		hasErrors := store.HasErrorsState(*req.HasErrors)
		patch.HasErrors = &hasErrors
	}

	if err := h.engine.UpdateExecution(ctx, exID, patch); err != nil {
		h.httpError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func executionResponse(ex *store.Execution) api.ExecutionResponse {
	return api.ExecutionResponse{
		ID:               ex.ID.String(),
		JobID:            ex.JobID.String(),
		Status:           string(ex.Status),
		Pipeline:         ex.Pipeline,
		FailureReason:    ex.FailureReason,
		SlicerStats:      ex.SlicerStats,
		HasErrors:        string(ex.HasErrors),
		RecoverExecution: ex.RecoverExecution,
		CreatedAt:        ex.Created,
		UpdatedAt:        ex.Updated,
	}
}
