// Package store contains the persistence contracts for jobcore: the Job
// and Execution record shapes, and the interfaces the rest of the core
// programs against. See internal/store/postgres for the concrete
// PostgreSQL-backed adapter.
package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"jobcore/internal/status"
)

// JobLifecycle is the job's run-once-or-keep-going flag.
type JobLifecycle string

const (
	LifecycleOnce       JobLifecycle = "once"
	LifecyclePersistent JobLifecycle = "persistent"
)

// HasErrorsState is the Execution._has_errors metadata field.
type HasErrorsState string

const (
	HasErrorsNone      HasErrorsState = ""
	HasErrorsTrue      HasErrorsState = "true"
	HasErrorsRecovered HasErrorsState = "recovered"
)

// ConnectionMap is a moderator dependency declaration: connection-type
// (e.g. "elasticsearch", "kafka") to the named connections of that type.
type ConnectionMap map[string][]string

// Has reports whether the map declares the given type/name pair.
func (c ConnectionMap) Has(connType, name string) bool {
	for _, n := range c[connType] {
		if n == name {
			return true
		}
	}
	return false
}

// Add appends name under connType if not already present.
func (c ConnectionMap) Add(connType, name string) ConnectionMap {
	if c == nil {
		c = ConnectionMap{}
	}
	if c.Has(connType, name) {
		return c
	}
	c[connType] = append(c[connType], name)
	return c
}

// Empty reports whether the map declares no connections at all.
func (c ConnectionMap) Empty() bool {
	for _, names := range c {
		if len(names) > 0 {
			return false
		}
	}
	return true
}

// Job is a persisted template describing work to perform.
// Immutable to the core except via explicit update.
type Job struct {
	ID        uuid.UUID
	Name      string
	Pipeline  json.RawMessage
	Workers   int
	Lifecycle JobLifecycle
	// Assets holds the human-readable asset names as submitted; the
	// resolved content IDs travel only with the Execution.
	Assets    []string
	Moderator ConnectionMap
	Context   string
	Created   time.Time
	Updated   time.Time
}

// Execution is one run of a Job.
type Execution struct {
	ID       uuid.UUID
	JobID    uuid.UUID
	Pipeline json.RawMessage
	// Workers is a snapshot of the job's worker count at submission
	// time, passed to allocateWorkers(ex, ex.workers); a later UpdateJob
	// does not retroactively resize an in-flight execution.
	Workers int
	Status  status.Status

	FailureReason    string
	SlicerStats      json.RawMessage
	HasErrors        HasErrorsState
	RecoverExecution bool
	ResolvedAssets   map[string]string
	Moderator        ConnectionMap

	Context string
	Created time.Time
	Updated time.Time
}

// ExecutionPatch is the partial update shape accepted by UpdateExecution;
// nil fields are left untouched.
type ExecutionPatch struct {
	Status           *status.Status
	FailureReason    *string
	SlicerStats      json.RawMessage
	HasErrors        *HasErrorsState
	RecoverExecution *bool
	ResolvedAssets   map[string]string
	Pipeline         json.RawMessage
}
