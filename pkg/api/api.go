// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and Controller.
package api

import (
	"encoding/json"
	"time"
)

// SubmitJobRequest is the request body for submitJob/startJob.
type SubmitJobRequest struct {
	Name      string              `json:"name"`
	Pipeline  json.RawMessage     `json:"pipeline"`
	Workers   int                 `json:"workers"`
	Lifecycle string              `json:"lifecycle,omitempty"`
	Assets    []string            `json:"assets,omitempty"`
	Moderator map[string][]string `json:"moderator,omitempty"`
	// Run, if true, immediately creates an execution context after the
	// job is persisted; if false this only creates the job definition.
	Run bool `json:"run"`
}

// SubmitJobResponse is the response body after submitJob/startJob.
type SubmitJobResponse struct {
	JobID string `json:"job_id"`
}

// UpdateJobRequest is the request body for updateJob(job_id, partial).
// Nil/zero-value fields are left untouched on the stored job.
type UpdateJobRequest struct {
	Name      *string             `json:"name,omitempty"`
	Pipeline  json.RawMessage     `json:"pipeline,omitempty"`
	Workers   *int                `json:"workers,omitempty"`
	Lifecycle *string             `json:"lifecycle,omitempty"`
	Assets    []string            `json:"assets,omitempty"`
	Moderator map[string][]string `json:"moderator,omitempty"`
}

// UpdateExecutionRequest is the request body for updateEX(ex_id, partial).
// Status is deliberately not a field here: transitions only happen
// through notify, which enforces the command/state machine. This patches
// an execution's other metadata — failure detail, slicer stats, resolved
// assets — without touching its place in the lifecycle.
type UpdateExecutionRequest struct {
	FailureReason    *string           `json:"failure_reason,omitempty"`
	SlicerStats      json.RawMessage   `json:"slicer_stats,omitempty"`
	HasErrors        *string           `json:"has_errors,omitempty"`
	RecoverExecution *bool             `json:"recover_execution,omitempty"`
	ResolvedAssets   map[string]string `json:"resolved_assets,omitempty"`
	Pipeline         json.RawMessage   `json:"pipeline,omitempty"`
}

// NotifyRequest is the request body for notify(ex_id, command).
type NotifyRequest struct {
	Command string `json:"command"`
}

// NotifyResponse reports the resulting status.
type NotifyResponse struct {
	Status string `json:"status"`
}

// JobResponse represents a job in API responses.
type JobResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Pipeline  json.RawMessage `json:"pipeline"`
	Workers   int             `json:"workers"`
	Lifecycle string          `json:"lifecycle"`
	Assets    []string        `json:"assets,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ExecutionResponse represents an execution context in API responses.
type ExecutionResponse struct {
	ID               string          `json:"id"`
	JobID            string          `json:"job_id"`
	Status           string          `json:"status"`
	Pipeline         json.RawMessage `json:"pipeline"`
	FailureReason    string          `json:"failure_reason,omitempty"`
	SlicerStats      json.RawMessage `json:"slicer_stats,omitempty"`
	HasErrors        string          `json:"has_errors,omitempty"`
	RecoverExecution bool            `json:"recover_execution"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ExecutionListResponse wraps a page of executions.
type ExecutionListResponse struct {
	Executions []ExecutionResponse `json:"executions"`
}

// JobListResponse wraps a page of jobs.
type JobListResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// LatestExecutionResponse reports the latest execution of a job, if any.
type LatestExecutionResponse struct {
	ExecutionID string `json:"execution_id"`
	Found       bool   `json:"found"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
