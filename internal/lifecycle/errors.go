package lifecycle

import "fmt"

// ValidationError wraps a job spec rejected by the validator.
type ValidationError struct{ Err error }

func (e *ValidationError) Error() string { return fmt.Sprintf("validation failed: %v", e.Err) }
func (e *ValidationError) Unwrap() error { return e.Err }

// AssetResolutionError wraps an asset-name resolution failure.
type AssetResolutionError struct{ Err error }

func (e *AssetResolutionError) Error() string { return fmt.Sprintf("asset resolution failed: %v", e.Err) }
func (e *AssetResolutionError) Unwrap() error { return e.Err }

// InvalidCommandError is returned by Notify for a command outside the
// notify set.
type InvalidCommandError struct{ Command string }

func (e *InvalidCommandError) Error() string { return fmt.Sprintf("invalid command: %q", e.Command) }

// InvalidStatusError is returned by SetStatus for a status outside the
// status set; a design-time bug, not a runtime condition.
type InvalidStatusError struct{ Status string }

func (e *InvalidStatusError) Error() string { return fmt.Sprintf("invalid status: %q", e.Status) }

// StorageError wraps a record-store failure.
type StorageError struct{ Err error }

func (e *StorageError) Error() string { return fmt.Sprintf("storage error: %v", e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// ClusterError wraps a cluster-service call failure: slicer/worker
// allocation, node notification, or moderator check.
type ClusterError struct{ Err error }

func (e *ClusterError) Error() string { return fmt.Sprintf("cluster error: %v", e.Err) }
func (e *ClusterError) Unwrap() error { return e.Err }

// NotFoundError reports a missing job or execution record.
type NotFoundError struct{ ID string }

func (e *NotFoundError) Error() string { return fmt.Sprintf("not found: %s", e.ID) }

// CompletedNotRestartableError is returned by RestartExecution when the
// execution's status is already completed.
type CompletedNotRestartableError struct{ ExecutionID string }

func (e *CompletedNotRestartableError) Error() string {
	return fmt.Sprintf("execution %s is completed and cannot be restarted", e.ExecutionID)
}

// AlreadySchedulingError is returned by RestartExecution when the
// execution's status is already scheduling.
type AlreadySchedulingError struct{ ExecutionID string }

func (e *AlreadySchedulingError) Error() string {
	return fmt.Sprintf("execution %s is already scheduling", e.ExecutionID)
}
