package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// DBTransaction defines the methods shared by *sql.DB and *sql.Tx. This
// allows repository methods to accept either a connection pool or an
// active transaction.
type DBTransaction interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Tx is a DBTransaction that can be committed or rolled back.
type Tx interface {
	DBTransaction
	Commit() error
	Rollback() error
}

// JobStore is the C2 Execution Store Adapter contract: a
// thin, typed surface over the record store. Every method bubbles
// storage failures as *Error rather than retrying.
type JobStore interface {
	// CreateJob assigns _created/_updated/_context and persists job.
	CreateJob(ctx context.Context, job *Job) (*Job, error)

	// UpdateJob merges a partial update into the job record.
	UpdateJob(ctx context.Context, id uuid.UUID, mutate func(*Job)) (*Job, error)

	// GetJob returns a job by ID, or ErrNotFound.
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)

	// GetJobs returns jobs matching the query.
	GetJobs(ctx context.Context, q Query, from, size int) ([]*Job, error)

	// CreateExecution assigns _created/_updated/_context and persists
	// execution.
	CreateExecution(ctx context.Context, execution *Execution) (*Execution, error)

	// UpdateExecution merges patch into the execution record, bumping
	// _updated. This is the only path by which _status changes.
	UpdateExecution(ctx context.Context, id uuid.UUID, patch ExecutionPatch) (*Execution, error)

	// GetExecution returns an execution by ID, or ErrNotFound.
	GetExecution(ctx context.Context, id uuid.UUID) (*Execution, error)

	// SearchExecutions runs a typed query, capped at
	// MaxSearchSize.
	SearchExecutions(ctx context.Context, q Query, from, size int, sort Sort) ([]*Execution, error)

	// Ping verifies connectivity, used by the readiness probe.
	Ping(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}
