// Package cluster implements the cluster service contract consumed by
// the lifecycle engine and allocator: available worker
// capacity, slicer/worker allocation, node notification, and moderator
// throttle checks. It is the one package allowed to know about
// container runtimes, the event bus, and rate limiting — the lifecycle
// engine only ever calls through the Service interface.
package cluster

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"jobcore/internal/moderator"
	"jobcore/internal/store"
)

// Node is a cluster member capable of running a slicer or worker.
type Node struct {
	ID        string
	IsSlicer  bool
	Execution uuid.UUID
}

// Service is the cluster service contract consumed by the lifecycle
// engine and allocator.
type Service interface {
	// AvailableWorkers reports how many worker slots are currently free.
	AvailableWorkers(ctx context.Context) (int, error)

	// AllocateSlicer starts (or resumes, if recover is set) the slicer
	// process for execution.
	AllocateSlicer(ctx context.Context, execution *store.Execution, recover bool) error

	// AllocateWorkers starts count worker processes for execution.
	AllocateWorkers(ctx context.Context, execution *store.Execution, count int) error

	// FindNodesForJob returns the nodes currently running execution,
	// restricted to the slicer node when slicerOnly is set.
	FindNodesForJob(ctx context.Context, executionID uuid.UUID, slicerOnly bool) ([]Node, error)

	// NotifyNode sends message with payload to the given node.
	NotifyNode(ctx context.Context, nodeID string, message string, payload interface{}) error

	// CheckModerator reports the current throttle state of each
	// declared connection.
	CheckModerator(ctx context.Context, connections store.ConnectionMap) ([]moderator.ConnectionCheck, error)
}

// ErrNoCapacity is returned by AllocateWorkers when the cluster has no
// room; callers treat it like any other allocation failure.
var ErrNoCapacity = fmt.Errorf("cluster: no available capacity")
