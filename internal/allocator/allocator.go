// Package allocator implements the Allocator Loop: a single
// cooperative loop that drains the pending admission queue whenever
// cluster capacity exists, allocating a slicer then workers for one
// execution at a time.
package allocator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"jobcore/internal/cluster"
	"jobcore/internal/status"
	"jobcore/internal/store"
)

// MinAvailableWorkers is the admission threshold: "slicer + at least
// one worker".
const MinAvailableWorkers = 2

// Lifecycle is the subset of internal/lifecycle.Engine the loop drives.
type Lifecycle interface {
	PendingLen(ctx context.Context) (int, error)
	DequeuePending(ctx context.Context) (uuid.UUID, bool, error)
	GetExecutionContext(ctx context.Context, exID uuid.UUID) (*store.Execution, error)
	SetStatus(ctx context.Context, exID uuid.UUID, s status.Status, metadata store.ExecutionPatch) error
}

// Loop is the allocator: a single goroutine owning the busy flag, fed
// by a ~1Hz ticker and a wake channel for self-drain. The allocation
// sequence itself (allocateSlicer, allocateWorkers) runs on a helper
// goroutine, since concurrency here comes from overlapping I/O: the
// loop goroutine stays free to observe stop/ctx while busy is held, and
// is the only goroutine that ever flips busy, doing so from the
// completion signal it waits on.
type Loop struct {
	lifecycle Lifecycle
	cluster   cluster.Service
	log       *slog.Logger
	tick      time.Duration

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// New constructs a Loop. tick defaults to one second if zero.
func New(lifecycle Lifecycle, clusterSvc cluster.Service, log *slog.Logger, tick time.Duration) *Loop {
	if log == nil {
		log = slog.Default()
	}
	if tick <= 0 {
		tick = time.Second
	}
	return &Loop{
		lifecycle: lifecycle,
		cluster:   clusterSvc,
		log:       log,
		tick:      tick,
		// wake is buffered 1: a pending wake collapses with any already
		// queued, since the loop always re-checks pending.size on drain.
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Wake requests an immediate drain attempt, called by the lifecycle
// engine every time an execution is appended to pending.
func (l *Loop) Wake() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Start runs the loop until ctx is cancelled or Stop is called.
func (l *Loop) Start(ctx context.Context) {
	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()
	defer close(l.done)

	busy := false
	released := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		case <-released:
			busy = false
			l.Wake()
			continue
		case <-ticker.C:
		case <-l.wake:
		}

		if busy {
			continue
		}

		started, err := l.admitOne(ctx, released)
		if err != nil {
			l.log.Error("allocator: admission check failed", "error", err)
			continue
		}
		if started {
			busy = true
		}
	}
}

// Stop halts the loop and waits for it to exit.
func (l *Loop) Stop() {
	close(l.stop)
	<-l.done
}

// admitOne checks capacity and, if an execution is dequeued, launches
// its allocation sequence in its own goroutine, signalling released on
// completion. started is true iff an execution
// was actually dequeued and handed off.
func (l *Loop) admitOne(ctx context.Context, released chan<- struct{}) (started bool, err error) {
	size, err := l.lifecycle.PendingLen(ctx)
	if err != nil {
		return false, err
	}
	if size == 0 {
		return false, nil
	}

	available, err := l.cluster.AvailableWorkers(ctx)
	if err != nil {
		return false, err
	}
	if available < MinAvailableWorkers {
		return false, nil
	}

	exID, ok, err := l.lifecycle.DequeuePending(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	go l.allocate(ctx, exID, released)
	return true, nil
}

// allocate runs the scheduling -> allocateSlicer -> initializing ->
// allocateWorkers sequence for a single execution.
func (l *Loop) allocate(ctx context.Context, exID uuid.UUID, released chan<- struct{}) {
	defer func() { released <- struct{}{} }()

	execution, err := l.lifecycle.GetExecutionContext(ctx, exID)
	if err != nil {
		l.log.Error("allocator: fetch execution failed", "execution_id", exID, "error", err)
		return
	}
	recover := execution.RecoverExecution

	if err := l.lifecycle.SetStatus(ctx, exID, status.Scheduling, store.ExecutionPatch{}); err != nil {
		l.log.Error("allocator: setStatus(scheduling) failed", "execution_id", exID, "error", err)
		return
	}

	if err := l.cluster.AllocateSlicer(ctx, execution, recover); err != nil {
		l.log.Error("allocator: allocateSlicer failed", "execution_id", exID, "error", err)
		if sErr := l.lifecycle.SetStatus(ctx, exID, status.Failed, store.ExecutionPatch{}); sErr != nil {
			l.log.Error("allocator: setStatus(failed) after slicer failure failed", "execution_id", exID, "error", sErr)
		}
		return
	}

	if err := l.lifecycle.SetStatus(ctx, exID, status.Initializing, store.ExecutionPatch{}); err != nil {
		l.log.Error("allocator: setStatus(initializing) failed", "execution_id", exID, "error", err)
		return
	}

	if err := l.cluster.AllocateWorkers(ctx, execution, execution.Workers); err != nil {
		// Worker allocation failure is logged and swallowed, not
		// escalated to failed: the execution stays in initializing and
		// cluster events will either advance or fail it.
		l.log.Error("allocator: allocateWorkers failed", "execution_id", exID, "error", err)
		return
	}
}
