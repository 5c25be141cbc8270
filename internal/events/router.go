package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"jobcore/internal/eventbus"
	"jobcore/internal/status"
	"jobcore/internal/store"
)

// Lifecycle is the subset of internal/lifecycle.Engine the Router
// dispatches into.
type Lifecycle interface {
	SetStatus(ctx context.Context, exID uuid.UUID, s status.Status, metadata store.ExecutionPatch) error
	UpdateExecution(ctx context.Context, exID uuid.UUID, patch store.ExecutionPatch) error
	HandleCleanupJob(ctx context.Context, exID uuid.UUID) error
	HandleModeratePause(ctx context.Context, conns []ConnectionRef) error
	HandleModerateResume(ctx context.Context, conns []ConnectionRef) error
}

// Router subscribes to the process-wide event bus and translates each
// external event into a lifecycle call. Handlers run on the
// bus's own delivery goroutine, never touch the allocator's busy flag,
// and log-and-continue on error rather than crash the dispatch loop.
type Router struct {
	lifecycle Lifecycle
	log       *slog.Logger
	subs      []eventbus.Subscription
}

// NewRouter subscribes every lifecycle event handler to bus and returns
// a Router that can later Close those subscriptions.
func NewRouter(bus eventbus.Bus, lifecycle Lifecycle, log *slog.Logger) (*Router, error) {
	if log == nil {
		log = slog.Default()
	}
	r := &Router{lifecycle: lifecycle, log: log}

	subscriptions := []struct {
		subject Subject
		handler func(json.RawMessage)
	}{
		{SlicerInitialized, r.onSlicerInitialized},
		{ClusterJobFinished, r.onJobFinished},
		{ClusterJobFailure, r.onJobFailure},
		{ClusterSlicerFailure, r.onSlicerFailure},
		{SlicerProcessingError, r.onProcessingError},
		{SlicerJobUpdate, r.onJobUpdate},
		{ClusterServiceCleanup, r.onCleanupJob},
		{ModerateJobsPause, r.onModeratePause},
		{ModerateJobsResume, r.onModerateResume},
	}

	for _, s := range subscriptions {
		handler := s.handler
		sub, err := bus.Subscribe(string(s.subject), func(_ string, payload json.RawMessage) {
			handler(payload)
		})
		if err != nil {
			r.Close()
			return nil, err
		}
		r.subs = append(r.subs, sub)
	}
	return r, nil
}

// Close unsubscribes every handler.
func (r *Router) Close() {
	for _, sub := range r.subs {
		_ = sub.Unsubscribe()
	}
}

func (r *Router) onSlicerInitialized(payload json.RawMessage) {
	var p SlicerInitializedPayload
	if !r.unmarshal(payload, &p, "slicer:initialized") {
		return
	}
	running := status.Running
	if err := r.lifecycle.SetStatus(context.Background(), p.ExecutionID, status.Running, store.ExecutionPatch{Status: &running}); err != nil {
		r.log.Error("slicer:initialized transition failed", "execution_id", p.ExecutionID, "error", err)
	}
}

func (r *Router) onJobFinished(payload json.RawMessage) {
	var p JobFinishedPayload
	if !r.unmarshal(payload, &p, "cluster:job_finished") {
		return
	}
	patch := store.ExecutionPatch{SlicerStats: p.SlicerStats}
	if p.Recovered {
		recovered := store.HasErrorsRecovered
		patch.HasErrors = &recovered
	}
	if err := r.lifecycle.SetStatus(context.Background(), p.ExecutionID, status.Completed, patch); err != nil {
		r.log.Error("cluster:job_finished transition failed", "execution_id", p.ExecutionID, "error", err)
	}
}

func (r *Router) onJobFailure(payload json.RawMessage) {
	var p JobFailurePayload
	if !r.unmarshal(payload, &p, "cluster:job_failure") {
		return
	}
	r.failExecution(p)
}

func (r *Router) onSlicerFailure(payload json.RawMessage) {
	var p JobFailurePayload
	if !r.unmarshal(payload, &p, "cluster:slicer_failure") {
		return
	}
	r.failExecution(p)
}

func (r *Router) failExecution(p JobFailurePayload) {
	hasErrors := store.HasErrorsTrue
	patch := store.ExecutionPatch{
		FailureReason: &p.FailureReason,
		SlicerStats:   p.SlicerStats,
		HasErrors:     &hasErrors,
	}
	if err := r.lifecycle.SetStatus(context.Background(), p.ExecutionID, status.Failed, patch); err != nil {
		r.log.Error("job failure transition failed", "execution_id", p.ExecutionID, "error", err)
	}
}

func (r *Router) onProcessingError(payload json.RawMessage) {
	var p ProcessingErrorPayload
	if !r.unmarshal(payload, &p, "slicer:processing:error") {
		return
	}
	hasErrors := store.HasErrorsTrue
	if err := r.lifecycle.SetStatus(context.Background(), p.ExecutionID, status.Failing, store.ExecutionPatch{HasErrors: &hasErrors}); err != nil {
		r.log.Error("slicer:processing:error transition failed", "execution_id", p.ExecutionID, "error", err)
	}
}

func (r *Router) onJobUpdate(payload json.RawMessage) {
	var p JobUpdatePayload
	if !r.unmarshal(payload, &p, "slicer:job:update") {
		return
	}
	if err := r.lifecycle.UpdateExecution(context.Background(), p.ExecutionID, store.ExecutionPatch{Pipeline: p.Pipeline}); err != nil {
		r.log.Error("slicer:job:update failed", "execution_id", p.ExecutionID, "error", err)
	}
}

func (r *Router) onCleanupJob(payload json.RawMessage) {
	var p CleanupJobPayload
	if !r.unmarshal(payload, &p, "cluster_service:cleanup_job") {
		return
	}
	if err := r.lifecycle.HandleCleanupJob(context.Background(), p.ExecutionID); err != nil {
		r.log.Error("cluster_service:cleanup_job failed", "execution_id", p.ExecutionID, "node_id", p.NodeID, "error", err)
	}
}

func (r *Router) onModeratePause(payload json.RawMessage) {
	var p ModerateConnsPayload
	if !r.unmarshal(payload, &p, "moderate_jobs:pause") {
		return
	}
	if err := r.lifecycle.HandleModeratePause(context.Background(), p.Connections); err != nil {
		r.log.Error("moderate_jobs:pause failed", "error", err)
	}
}

func (r *Router) onModerateResume(payload json.RawMessage) {
	var p ModerateConnsPayload
	if !r.unmarshal(payload, &p, "moderate_jobs:resume") {
		return
	}
	if err := r.lifecycle.HandleModerateResume(context.Background(), p.Connections); err != nil {
		r.log.Error("moderate_jobs:resume failed", "error", err)
	}
}

func (r *Router) unmarshal(payload json.RawMessage, v interface{}, subject string) bool {
	if err := json.Unmarshal(payload, v); err != nil {
		r.log.Error("failed to decode event payload", "subject", subject, "error", err)
		return false
	}
	return true
}
