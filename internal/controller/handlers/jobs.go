package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"jobcore/internal/lifecycle"
	"jobcore/internal/store"
	"jobcore/pkg/api"
)

// CreateJob handles POST /jobs. It persists a Job definition without
// creating an execution context.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, false)
}

// SubmitAndRunJob handles POST /jobs/run. It persists a Job definition and
// immediately creates its first execution context.
func (h *Handlers) SubmitAndRunJob(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, true)
}

func (h *Handlers) submit(w http.ResponseWriter, r *http.Request, shouldRun bool) {
	ctx := r.Context()

	var req api.SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpErrorMsg(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.engine.SubmitJob(ctx, lifecycleJobSpec(req), shouldRun || req.Run)
	if err != nil {
		h.httpError(w, err)
		return
	}

	h.respondJson(w, http.StatusOK, api.SubmitJobResponse{JobID: result.JobID.String()})
}

// StartJob handles POST /jobs/{id}/start. It creates a new execution
// context for an already-persisted job.
func (h *Handlers) StartJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpErrorMsg(w, "invalid job id", http.StatusBadRequest)
		return
	}

	result, err := h.engine.StartJob(ctx, jobID)
	if err != nil {
		h.httpError(w, err)
		return
	}

	h.respondJson(w, http.StatusOK, api.SubmitJobResponse{JobID: result.JobID.String()})
}

// GetJob handles GET /jobs/{id}.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpErrorMsg(w, "invalid job id", http.StatusBadRequest)
		return
	}

	job, err := h.engine.GetJob(ctx, jobID)
	if err != nil {
		h.httpError(w, err)
		return
	}

	h.respondJson(w, http.StatusOK, jobResponse(job))
}

// GetJobs handles GET /jobs.
func (h *Handlers) GetJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	from, size := pagination(r)

	jobs, err := h.engine.GetJobs(ctx, store.Query{}, from, size)
	if err != nil {
		h.httpError(w, err)
		return
	}

	resp := api.JobListResponse{Jobs: make([]api.JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, jobResponse(j))
	}
	h.respondJson(w, http.StatusOK, resp)
}

// UpdateJob handles PATCH /jobs/{id}. Only fields present in the request
// body are changed; the rest of the job keeps its stored value.
func (h *Handlers) UpdateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpErrorMsg(w, "invalid job id", http.StatusBadRequest)
		return
	}

	var req api.UpdateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpErrorMsg(w, "invalid request body", http.StatusBadRequest)
		return
	}

	job, err := h.engine.UpdateJob(ctx, jobID, func(j *store.Job) {
		if req.Name != nil {
			j.Name = *req.Name
		}
		if req.Pipeline != nil {
			j.Pipeline = req.Pipeline
		}
		if req.Workers != nil {
			j.Workers = *req.Workers
		}
		if req.Lifecycle != nil {
			j.Lifecycle = store.JobLifecycle(*req.Lifecycle)
		}
		if req.Assets != nil {
			j.Assets = req.Assets
		}
		if req.Moderator != nil {
			j.Moderator = store.ConnectionMap(req.Moderator)
		}
	})
	if err != nil {
		h.httpError(w, err)
		return
	}

	h.respondJson(w, http.StatusOK, jobResponse(job))
}

func lifecycleJobSpec(req api.SubmitJobRequest) lifecycle.JobSpec {
	lc := store.LifecycleOnce
	if req.Lifecycle == string(store.LifecyclePersistent) {
		lc = store.LifecyclePersistent
	}
	return lifecycle.JobSpec{
		Name:      req.Name,
		Pipeline:  req.Pipeline,
		Workers:   req.Workers,
		Lifecycle: lc,
		Assets:    req.Assets,
		Moderator: store.ConnectionMap(req.Moderator),
	}
}

func jobResponse(j *store.Job) api.JobResponse {
	return api.JobResponse{
		ID:        j.ID.String(),
		Name:      j.Name,
		Pipeline:  j.Pipeline,
		Workers:   j.Workers,
		Lifecycle: string(j.Lifecycle),
		Assets:    j.Assets,
		CreatedAt: j.Created,
		UpdatedAt: j.Updated,
	}
}
