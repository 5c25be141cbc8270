package store

import "jobcore/internal/status"

// Query is a typed predicate over executions, translated to the store's
// native query language at the storage adapter boundary. This replaces
// the source's hand-concatenated query strings so the core never builds
// query fragments itself.
type Query struct {
	JobID        *string
	Context      string // "ex" or "job"; empty means unconstrained
	Statuses     []status.Status
	StatusExcept []status.Status
}

// ExecutionQuery returns a Query scoped to executions ("_context:ex").
func ExecutionQuery() Query {
	return Query{Context: "ex"}
}

// WithJobID narrows the query to a single job.
func (q Query) WithJobID(jobID string) Query {
	q.JobID = &jobID
	return q
}

// WithStatus narrows the query to a disjunction of statuses.
func (q Query) WithStatus(statuses ...status.Status) Query {
	q.Statuses = append(q.Statuses[:0:0], statuses...)
	return q
}

// Sort is the ordering requested from SearchExecutions.
type Sort struct {
	Field      string // "created" or "updated"
	Descending bool
}

// CreatedAsc is the sort used by bootstrap to replay pending executions
// in submission order.
var CreatedAsc = Sort{Field: "created", Descending: false}

// MaxSearchSize is the ceiling on SearchExecutions result size.
const MaxSearchSize = 10000
