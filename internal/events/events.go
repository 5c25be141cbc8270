// Package events defines the typed event envelopes carried over the
// event bus and the Router that dispatches them into lifecycle calls.
package events

import (
	"encoding/json"

	"github.com/google/uuid"

	"jobcore/internal/store"
)

// Subject names the event bus subjects the router subscribes to and the
// one it publishes for asset resolution requests.
type Subject string

const (
	SlicerInitialized       Subject = "slicer:initialized"
	ClusterJobFinished      Subject = "cluster:job_finished"
	ClusterJobFailure       Subject = "cluster:job_failure"
	ClusterSlicerFailure    Subject = "cluster:slicer_failure"
	SlicerProcessingError   Subject = "slicer:processing:error"
	SlicerJobUpdate         Subject = "slicer:job:update"
	ClusterServiceCleanup   Subject = "cluster_service:cleanup_job"
	ModerateJobsPause       Subject = "moderate_jobs:pause"
	ModerateJobsResume      Subject = "moderate_jobs:resume"
	JobsServiceVerifyAssets Subject = "jobs_service:verify_assets"
)

// SlicerInitializedPayload carries no additional data beyond the
// execution ID; the slicer is simply announcing it is ready.
type SlicerInitializedPayload struct {
	ExecutionID uuid.UUID `json:"execution_id"`
}

// JobFinishedPayload is emitted by cluster:job_finished.
type JobFinishedPayload struct {
	ExecutionID uuid.UUID       `json:"execution_id"`
	SlicerStats json.RawMessage `json:"slicer_stats,omitempty"`
	Recovered   bool            `json:"recovered,omitempty"`
}

// JobFailurePayload is shared by cluster:job_failure and
// cluster:slicer_failure; both carry the same shape.
type JobFailurePayload struct {
	ExecutionID   uuid.UUID       `json:"execution_id"`
	FailureReason string          `json:"failure_reason"`
	SlicerStats   json.RawMessage `json:"slicer_stats,omitempty"`
}

// ProcessingErrorPayload is emitted by slicer:processing:error; this is
// a transitional signal, not yet terminal.
type ProcessingErrorPayload struct {
	ExecutionID uuid.UUID `json:"execution_id"`
}

// JobUpdatePayload carries a fresh pipeline snapshot from a running
// slicer.
type JobUpdatePayload struct {
	ExecutionID uuid.UUID       `json:"execution_id"`
	Pipeline    json.RawMessage `json:"operations"`
}

// CleanupJobPayload is emitted when the cluster detects a node holding
// an execution has disconnected.
type CleanupJobPayload struct {
	ExecutionID uuid.UUID `json:"execution_id"`
	NodeID      string    `json:"node_id"`
}

// ModerateConnsPayload names the connections a moderate_jobs:pause or
// moderate_jobs:resume event concerns.
type ModerateConnsPayload struct {
	Connections []ConnectionRef `json:"connections"`
}

// ConnectionRef names one declared connection by type and name.
type ConnectionRef struct {
	Type       string `json:"type"`
	Connection string `json:"connection"`
}

// Touches reports whether conns declares the exact type/name pair.
func (c ConnectionRef) Touches(conns store.ConnectionMap) bool {
	return conns.Has(c.Type, c.Connection)
}

// VerifyAssetsRequest is published by the lifecycle engine during
// submitJob's asset resolution step, keyed by a fresh correlation ID.
type VerifyAssetsRequest struct {
	Assets []string `json:"assets"`
	MsgID  string   `json:"_msgID"`
}

// VerifyAssetsReply is the correlation-ID reply: either Assets (name ->
// content ID) or Error is populated.
type VerifyAssetsReply struct {
	Assets map[string]string `json:"assets,omitempty"`
	Error  string            `json:"error,omitempty"`
}
