// Package lifecycle implements the Execution Lifecycle: the
// state machine that accepts commands and events, mutates execution
// status, and emits cluster notifications. Every public method enqueues
// a closure onto a single unbuffered command channel consumed by one
// goroutine, giving callers synchronous semantics while
// structurally preserving the "at most one transition per execution in
// flight" ordering invariant without locks.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"jobcore/internal/cluster"
	"jobcore/internal/events"
	"jobcore/internal/moderator"
	"jobcore/internal/queue"
	"jobcore/internal/status"
	"jobcore/internal/store"
	"jobcore/internal/validate"
)

// AssetResolver resolves human asset names to content IDs; satisfied by internal/assets.Resolver.
type AssetResolver interface {
	Resolve(ctx context.Context, names []string) (map[string]string, error)
}

// Deps are the engine's injected capabilities.
type Deps struct {
	Jobs          store.JobStore
	Cluster       cluster.Service
	Moderator     *moderator.Gate
	Assets        AssetResolver
	Pending       *queue.Queue
	ModeratorHeld *queue.Queue
	Logger        *slog.Logger
	// Wake, if set, is called every time an execution is appended to
	// Pending, so the allocator can drain immediately instead of
	// waiting for its next tick.
	Wake func()
}

// Engine is the Execution Lifecycle state machine.
type Engine struct {
	deps Deps
	cmds chan engineCmd
	stop chan struct{}
}

type engineCmd struct {
	run   func() (interface{}, error)
	reply chan engineResult
}

type engineResult struct {
	val interface{}
	err error
}

// New starts the engine's single consumer goroutine.
func New(deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	e := &Engine{
		deps: deps,
		cmds: make(chan engineCmd),
		stop: make(chan struct{}),
	}
	go e.loop()
	return e
}

// Close stops the consumer goroutine. A call the goroutine has already
// received still runs to completion; calls made after Close return an
// "engine is closed" error.
func (e *Engine) Close() {
	close(e.stop)
}

func (e *Engine) loop() {
	for {
		select {
		case cmd := <-e.cmds:
			val, err := cmd.run()
			cmd.reply <- engineResult{val: val, err: err}
		case <-e.stop:
			return
		}
	}
}

// call submits fn to the single consumer and blocks for its result,
// respecting ctx for both enqueue and reply waits.
func (e *Engine) call(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	reply := make(chan engineResult, 1)
	select {
	case e.cmds <- engineCmd{run: fn, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.stop:
		return nil, errors.New("lifecycle: engine is closed")
	}
	select {
	case res := <-reply:
		return res.val, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// JobSpec is the caller-supplied shape for SubmitJob/StartJob.
type JobSpec struct {
	Name      string
	Pipeline  json.RawMessage
	Workers   int
	Lifecycle store.JobLifecycle
	Assets    []string
	Moderator store.ConnectionMap
}

// SubmitResult is returned by SubmitJob/StartJob.
type SubmitResult struct {
	JobID uuid.UUID
}

// SubmitJob resolves assets, validates, persists the Job, and — if
// shouldRun — creates its first Execution.
func (e *Engine) SubmitJob(ctx context.Context, spec JobSpec, shouldRun bool) (*SubmitResult, error) {
	val, err := e.call(ctx, func() (interface{}, error) { return e.submitJob(ctx, spec, shouldRun) })
	return asSubmitResult(val, err)
}

func asSubmitResult(val interface{}, err error) (*SubmitResult, error) {
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, nil
	}
	return val.(*SubmitResult), nil
}

func (e *Engine) submitJob(ctx context.Context, spec JobSpec, shouldRun bool) (*SubmitResult, error) {
	resolved, err := e.deps.Assets.Resolve(ctx, spec.Assets)
	if err != nil {
		return nil, &AssetResolutionError{Err: err}
	}

	if err := validate.JobSpec(validate.Spec{Name: spec.Name, Pipeline: spec.Pipeline, Workers: spec.Workers}); err != nil {
		return nil, &ValidationError{Err: err}
	}

	job := &store.Job{
		Name:      spec.Name,
		Pipeline:  spec.Pipeline,
		Workers:   spec.Workers,
		Lifecycle: spec.Lifecycle,
		Assets:    spec.Assets,
		Moderator: spec.Moderator,
	}
	created, err := e.deps.Jobs.CreateJob(ctx, job)
	if err != nil {
		return nil, &StorageError{Err: err}
	}

	if !shouldRun {
		return &SubmitResult{JobID: created.ID}, nil
	}
	return e.createExecutionContext(ctx, created, resolved)
}

// createExecutionContext persists the Execution at status pending and
// consults the Moderator Gate concurrently with that write.
func (e *Engine) createExecutionContext(ctx context.Context, job *store.Job, resolvedAssets map[string]string) (*SubmitResult, error) {
	execution := &store.Execution{
		JobID:          job.ID,
		Pipeline:       job.Pipeline,
		Workers:        job.Workers,
		Status:         status.Pending,
		ResolvedAssets: resolvedAssets,
		Moderator:      job.Moderator,
	}

	type createOutcome struct {
		execution *store.Execution
		err       error
	}
	createCh := make(chan createOutcome, 1)
	go func() {
		created, err := e.deps.Jobs.CreateExecution(ctx, execution)
		createCh <- createOutcome{created, err}
	}()

	allow, modErr := e.deps.Moderator.Allow(ctx, job.Moderator)
	outcome := <-createCh

	if outcome.err != nil {
		return nil, &StorageError{Err: outcome.err}
	}
	if modErr != nil {
		return nil, &ClusterError{Err: modErr}
	}

	if allow {
		e.deps.Pending.Enqueue(outcome.execution.ID)
		e.wake()
	} else {
		e.deps.ModeratorHeld.Enqueue(outcome.execution.ID)
	}
	return &SubmitResult{JobID: job.ID}, nil
}

// StartJob fetches the job spec, resolves assets, and creates a fresh
// execution context.
func (e *Engine) StartJob(ctx context.Context, jobID uuid.UUID) (*SubmitResult, error) {
	val, err := e.call(ctx, func() (interface{}, error) {
		job, err := e.deps.Jobs.GetJob(ctx, jobID)
		if err != nil {
			return nil, wrapStoreErr(err, jobID)
		}
		resolved, err := e.deps.Assets.Resolve(ctx, job.Assets)
		if err != nil {
			return nil, &AssetResolutionError{Err: err}
		}
		return e.createExecutionContext(ctx, job, resolved)
	})
	return asSubmitResult(val, err)
}

// RestartExecution re-enqueues ex for allocation with
// _recover_execution set, appending to the tail of pending.
func (e *Engine) RestartExecution(ctx context.Context, exID uuid.UUID) error {
	_, err := e.call(ctx, func() (interface{}, error) {
		execution, err := e.deps.Jobs.GetExecution(ctx, exID)
		if err != nil {
			return nil, wrapStoreErr(err, exID)
		}
		switch execution.Status {
		case status.Completed:
			return nil, &CompletedNotRestartableError{ExecutionID: exID.String()}
		case status.Scheduling:
			return nil, &AlreadySchedulingError{ExecutionID: exID.String()}
		}

		recover := true
		if _, err := e.deps.Jobs.UpdateExecution(ctx, exID, store.ExecutionPatch{RecoverExecution: &recover}); err != nil {
			return nil, &StorageError{Err: err}
		}
		e.deps.Pending.Enqueue(exID)
		e.wake()
		return nil, nil
	})
	return err
}

// Notify validates command against the notify set, fans the mapped
// cluster message out to the relevant nodes, and writes the resulting
// status.
func (e *Engine) Notify(ctx context.Context, exID uuid.UUID, cmd status.Command) (status.Status, error) {
	val, err := e.call(ctx, func() (interface{}, error) {
		resultStatus, ok := status.ResultingStatus(cmd)
		if !ok {
			return nil, &InvalidCommandError{Command: string(cmd)}
		}
		msg, slicerOnly, mapErr := status.ClusterMessageFor(cmd)
		if mapErr != nil {
			return nil, &InvalidCommandError{Command: string(cmd)}
		}

		nodes, err := e.deps.Cluster.FindNodesForJob(ctx, exID, slicerOnly)
		if err != nil {
			return nil, &ClusterError{Err: err}
		}
		var notifyErrs []error
		for _, n := range nodes {
			if err := e.deps.Cluster.NotifyNode(ctx, n.ID, string(msg), nil); err != nil {
				notifyErrs = append(notifyErrs, err)
			}
		}
		if len(notifyErrs) > 0 {
			return nil, &ClusterError{Err: errors.Join(notifyErrs...)}
		}

		if _, err := e.deps.Jobs.UpdateExecution(ctx, exID, store.ExecutionPatch{Status: &resultStatus}); err != nil {
			return nil, &StorageError{Err: err}
		}
		return resultStatus, nil
	})
	if err != nil {
		return "", err
	}
	return val.(status.Status), nil
}

// SetStatus verifies s is a member of the status set and merges it (with
// optional metadata) into the execution record.
func (e *Engine) SetStatus(ctx context.Context, exID uuid.UUID, s status.Status, metadata store.ExecutionPatch) error {
	_, err := e.call(ctx, func() (interface{}, error) {
		if !status.IsValid(s) {
			return nil, &InvalidStatusError{Status: string(s)}
		}
		metadata.Status = &s
		if _, err := e.deps.Jobs.UpdateExecution(ctx, exID, metadata); err != nil {
			return nil, &StorageError{Err: err}
		}
		return nil, nil
	})
	return err
}

// UpdateJob merges mutate into the job record.
func (e *Engine) UpdateJob(ctx context.Context, jobID uuid.UUID, mutate func(*store.Job)) (*store.Job, error) {
	val, err := e.call(ctx, func() (interface{}, error) {
		job, err := e.deps.Jobs.UpdateJob(ctx, jobID, mutate)
		if err != nil {
			return nil, wrapStoreErr(err, jobID)
		}
		return job, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*store.Job), nil
}

// UpdateExecution merges patch into the execution record.
func (e *Engine) UpdateExecution(ctx context.Context, exID uuid.UUID, patch store.ExecutionPatch) error {
	_, err := e.call(ctx, func() (interface{}, error) {
		if _, err := e.deps.Jobs.UpdateExecution(ctx, exID, patch); err != nil {
			return nil, wrapStoreErr(err, exID)
		}
		return nil, nil
	})
	return err
}

// GetJob fetches a job by ID.
func (e *Engine) GetJob(ctx context.Context, jobID uuid.UUID) (*store.Job, error) {
	val, err := e.call(ctx, func() (interface{}, error) {
		job, err := e.deps.Jobs.GetJob(ctx, jobID)
		if err != nil {
			return nil, wrapStoreErr(err, jobID)
		}
		return job, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*store.Job), nil
}

// GetJobs lists jobs matching q.
func (e *Engine) GetJobs(ctx context.Context, q store.Query, from, size int) ([]*store.Job, error) {
	val, err := e.call(ctx, func() (interface{}, error) {
		jobs, err := e.deps.Jobs.GetJobs(ctx, q, from, size)
		if err != nil {
			return nil, &StorageError{Err: err}
		}
		return jobs, nil
	})
	if err != nil {
		return nil, err
	}
	return val.([]*store.Job), nil
}

// GetExecutionContext fetches an execution by ID.
func (e *Engine) GetExecutionContext(ctx context.Context, exID uuid.UUID) (*store.Execution, error) {
	val, err := e.call(ctx, func() (interface{}, error) {
		execution, err := e.deps.Jobs.GetExecution(ctx, exID)
		if err != nil {
			return nil, wrapStoreErr(err, exID)
		}
		return execution, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*store.Execution), nil
}

// GetExecutions searches executions matching q.
func (e *Engine) GetExecutions(ctx context.Context, q store.Query, from, size int, sort store.Sort) ([]*store.Execution, error) {
	val, err := e.call(ctx, func() (interface{}, error) {
		executions, err := e.deps.Jobs.SearchExecutions(ctx, q, from, size, sort)
		if err != nil {
			return nil, &StorageError{Err: err}
		}
		return executions, nil
	})
	if err != nil {
		return nil, err
	}
	return val.([]*store.Execution), nil
}

// GetLatestExecution returns the most recently created execution of
// jobID. If onlyIfActive is set, a latest execution that is not active
// is reported as absent rather than erroring.
func (e *Engine) GetLatestExecution(ctx context.Context, jobID uuid.UUID, onlyIfActive bool) (uuid.UUID, bool, error) {
	val, err := e.call(ctx, func() (interface{}, error) {
		jobIDStr := jobID.String()
		executions, err := e.deps.Jobs.SearchExecutions(ctx,
			store.Query{JobID: &jobIDStr}, 0, 1,
			store.Sort{Field: "created", Descending: true})
		if err != nil {
			return nil, &StorageError{Err: err}
		}
		if len(executions) == 0 {
			if onlyIfActive {
				return latestResult{found: false}, nil
			}
			return nil, &NotFoundError{ID: jobID.String()}
		}
		latest := executions[0]
		if onlyIfActive && !status.IsActive(latest.Status) {
			return latestResult{found: false}, nil
		}
		return latestResult{id: latest.ID, found: true}, nil
	})
	if err != nil {
		return uuid.UUID{}, false, err
	}
	r := val.(latestResult)
	return r.id, r.found, nil
}

type latestResult struct {
	id    uuid.UUID
	found bool
}

// HandleCleanupJob implements the cluster_service:cleanup_job event: only
// executions currently {running, failing, paused} are restarted; anything
// else is ignored. The status read and the restart are each their own
// serialized call rather than one nested call, since RestartExecution
// submits to the same single-consumer channel HandleCleanupJob would
// otherwise still be occupying.
func (e *Engine) HandleCleanupJob(ctx context.Context, exID uuid.UUID) error {
	execution, err := e.GetExecutionContext(ctx, exID)
	if err != nil {
		return err
	}
	switch execution.Status {
	case status.Running, status.Failing, status.Paused:
		return e.RestartExecution(ctx, exID)
	default:
		return nil
	}
}

// HandleModeratePause implements moderate_jobs:pause: every
// execution in {running, failing} that depends on any of conns is
// notified moderator_paused.
func (e *Engine) HandleModeratePause(ctx context.Context, conns []events.ConnectionRef) error {
	executions, err := e.GetExecutions(ctx, store.Query{Statuses: []status.Status{status.Running, status.Failing}}, 0, store.MaxSearchSize, store.CreatedAsc)
	if err != nil {
		return err
	}
	var errs []error
	for _, ex := range executions {
		if !touchesAny(ex.Moderator, conns) {
			continue
		}
		if _, err := e.Notify(ctx, ex.ID, status.CmdModeratorPaused); err != nil {
			errs = append(errs, fmt.Errorf("execution %s: %w", ex.ID, err))
		}
	}
	return errors.Join(errs...)
}

// HandleModerateResume implements moderate_jobs:resume:
// re-scans moderatorHeld, promoting passing executions to the front of
// pending, and resumes every moderator_paused execution touching conns.
func (e *Engine) HandleModerateResume(ctx context.Context, conns []events.ConnectionRef) error {
	var toPromote []uuid.UUID
	e.deps.ModeratorHeld.Each(func(id uuid.UUID) bool {
		toPromote = append(toPromote, id)
		return true
	})

	var errs []error
	for _, id := range toPromote {
		execution, err := e.GetExecutionContext(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		allow, err := e.deps.Moderator.Allow(ctx, execution.Moderator)
		if err != nil {
			errs = append(errs, &ClusterError{Err: err})
			continue
		}
		if allow {
			e.deps.ModeratorHeld.Remove(id)
			e.deps.Pending.EnqueueFront(id)
			e.wake()
		}
	}

	paused, err := e.GetExecutions(ctx, store.Query{Statuses: []status.Status{status.ModeratorPaused}}, 0, store.MaxSearchSize, store.CreatedAsc)
	if err != nil {
		errs = append(errs, err)
		return errors.Join(errs...)
	}
	for _, ex := range paused {
		if !touchesAny(ex.Moderator, conns) {
			continue
		}
		if _, err := e.Notify(ctx, ex.ID, status.CmdResume); err != nil {
			errs = append(errs, fmt.Errorf("execution %s: %w", ex.ID, err))
		}
	}
	return errors.Join(errs...)
}

func touchesAny(conns store.ConnectionMap, refs []events.ConnectionRef) bool {
	for _, ref := range refs {
		if ref.Touches(conns) {
			return true
		}
	}
	return false
}

// Bootstrap reconstitutes the in-memory admission queues from persisted
// state at startup. Executions already `running` are re-verified against
// the live cluster; any with no nodes reporting are treated like a
// cluster_service:cleanup_job and restarted. Executions still `pending`,
// up to store.MaxSearchSize ordered by creation, are re-enqueued, and
// executions left `moderator_paused` are re-enqueued onto moderatorHeld
// the same way — the persisted status column is the crash-safe record
// of queue membership for both queues, so no separate table is needed.
func (e *Engine) Bootstrap(ctx context.Context) error {
	running, err := e.GetExecutions(ctx, store.Query{Statuses: []status.Status{status.Running}}, 0, store.MaxSearchSize, store.CreatedAsc)
	if err != nil {
		return err
	}
	var errs []error
	for _, ex := range running {
		nodes, err := e.deps.Cluster.FindNodesForJob(ctx, ex.ID, false)
		if err != nil {
			errs = append(errs, fmt.Errorf("bootstrap: liveness check for execution %s: %w", ex.ID, err))
			continue
		}
		if len(nodes) == 0 {
			if err := e.RestartExecution(ctx, ex.ID); err != nil {
				errs = append(errs, fmt.Errorf("bootstrap: restart stale execution %s: %w", ex.ID, err))
			}
		}
	}

	pending, err := e.GetExecutions(ctx, store.Query{Statuses: []status.Status{status.Pending}}, 0, store.MaxSearchSize, store.CreatedAsc)
	if err != nil {
		errs = append(errs, err)
		return errors.Join(errs...)
	}

	moderatorHeld, err := e.GetExecutions(ctx, store.Query{Statuses: []status.Status{status.ModeratorPaused}}, 0, store.MaxSearchSize, store.CreatedAsc)
	if err != nil {
		errs = append(errs, err)
		return errors.Join(errs...)
	}

	_, err = e.call(ctx, func() (interface{}, error) {
		for _, ex := range pending {
			e.deps.Pending.Enqueue(ex.ID)
		}
		for _, ex := range moderatorHeld {
			e.deps.ModeratorHeld.Enqueue(ex.ID)
		}
		return nil, nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	e.wake()
	return errors.Join(errs...)
}

// Shutdown terminalizes every execution in an active status: status becomes terminated, not stopped, to
// distinguish controller-initiated shutdown from a user stop.
func (e *Engine) Shutdown(ctx context.Context) error {
	_, err := e.call(ctx, func() (interface{}, error) {
		executions, err := e.deps.Jobs.SearchExecutions(ctx,
			store.Query{Statuses: activeStatuses}, 0, store.MaxSearchSize, store.CreatedAsc)
		if err != nil {
			return nil, &StorageError{Err: err}
		}
		var errs []error
		for _, ex := range executions {
			if err := e.terminateExecution(ctx, ex.ID); err != nil {
				errs = append(errs, err)
			}
		}
		return nil, errors.Join(errs...)
	})
	return err
}

var activeStatuses = []status.Status{
	status.Pending, status.Scheduling, status.Initializing, status.Running,
	status.Failing, status.Paused, status.ModeratorPaused,
}

func (e *Engine) terminateExecution(ctx context.Context, exID uuid.UUID) error {
	nodes, err := e.deps.Cluster.FindNodesForJob(ctx, exID, false)
	if err != nil {
		return &ClusterError{Err: err}
	}
	var errs []error
	for _, n := range nodes {
		if err := e.deps.Cluster.NotifyNode(ctx, n.ID, string(status.MsgJobStop), nil); err != nil {
			errs = append(errs, err)
		}
	}
	terminated := status.Terminated
	if _, err := e.deps.Jobs.UpdateExecution(ctx, exID, store.ExecutionPatch{Status: &terminated}); err != nil {
		errs = append(errs, &StorageError{Err: err})
	}
	return errors.Join(errs...)
}

// PendingLen reports the current size of the pending admission queue.
// The allocator calls this instead of touching the queue directly,
// since the queue is owned by the engine's single consumer goroutine.
func (e *Engine) PendingLen(ctx context.Context) (int, error) {
	val, err := e.call(ctx, func() (interface{}, error) {
		return e.deps.Pending.Size(), nil
	})
	if err != nil {
		return 0, err
	}
	return val.(int), nil
}

// DequeuePending pops the front of the pending admission queue. ok is
// false when the queue is empty.
func (e *Engine) DequeuePending(ctx context.Context) (uuid.UUID, bool, error) {
	val, err := e.call(ctx, func() (interface{}, error) {
		id, ok := e.deps.Pending.Dequeue()
		return dequeueResult{id: id, ok: ok}, nil
	})
	if err != nil {
		return uuid.UUID{}, false, err
	}
	r := val.(dequeueResult)
	return r.id, r.ok, nil
}

type dequeueResult struct {
	id uuid.UUID
	ok bool
}

func (e *Engine) wake() {
	if e.deps.Wake != nil {
		e.deps.Wake()
	}
}

func wrapStoreErr(err error, id fmt.Stringer) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{ID: id.String()}
	}
	return &StorageError{Err: err}
}
