// Package validate implements the job-spec validator invoked before
// admission, a pure function with no store or cluster dependency.
package validate

import (
	"encoding/json"
	"fmt"
)

// Error reports a job spec rejected by the validator.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return fmt.Sprintf("validation: %s", e.Reason) }

// Spec is the subset of a submitted job spec the validator inspects.
type Spec struct {
	Name     string
	Pipeline json.RawMessage
	Workers  int
}

// JobSpec validates a resolved job spec (assets already substituted),
// returning a *Error on rejection.
func JobSpec(s Spec) error {
	if s.Name == "" {
		return &Error{Reason: "name is required"}
	}
	if s.Workers < 0 {
		return &Error{Reason: "workers must be non-negative"}
	}
	if len(s.Pipeline) == 0 {
		return &Error{Reason: "pipeline is required"}
	}
	var ops []json.RawMessage
	if err := json.Unmarshal(s.Pipeline, &ops); err != nil {
		return &Error{Reason: fmt.Sprintf("pipeline must be a JSON array of operations: %v", err)}
	}
	if len(ops) == 0 {
		return &Error{Reason: "pipeline must declare at least one operation"}
	}
	return nil
}
