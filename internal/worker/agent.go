// Package worker implements the process agent spawned by
// internal/cluster.Service for a slicer or worker node: the binary that
// internal/worker/runtime actually launches, one process per allocated
// role. It is deliberately "dumb muscle" — bare log.Printf, no
// structured logging — mirroring the split between the controller
// process (structured slog) and the worker process in this codebase.
package worker

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"jobcore/internal/eventbus"
	"jobcore/internal/events"
)

// Role distinguishes the slicer, which owns the execution's reported
// lifecycle, from a plain worker, which the slicer coordinates but which
// never talks to the event bus itself.
type Role string

const (
	RoleSlicer Role = "slicer"
	RoleWorker Role = "worker"
)

// AgentConfig configures one spawned process, populated from the
// JOBCORE_EXECUTION_ID / JOBCORE_NODE_ID / JOBCORE_ROLE / JOBCORE_RECOVER
// environment variables internal/cluster.Service sets on Start.
type AgentConfig struct {
	ExecutionID uuid.UUID
	NodeID      string
	Role        Role
	Recover     bool
	// UpdateEvery is how often a slicer reports a pipeline snapshot over
	// slicer:job:update. Defaults to 5s.
	UpdateEvery time.Duration
	// Steps is how many update ticks a simulated slicer run takes before
	// reporting cluster:job_finished. Defaults to 5.
	Steps int
}

// Agent runs one spawned node's process-level behavior: a slicer
// announces readiness, periodically reports progress, reacts to
// soft pause/resume signals on its own node subject, and reports a
// terminal event; a plain worker simply runs until the cluster stops
// the process directly.
type Agent struct {
	bus    eventbus.Bus
	config AgentConfig

	mu     sync.Mutex
	paused bool
}

// New returns an Agent bound to bus, ready for Run.
func New(bus eventbus.Bus, config AgentConfig) *Agent {
	if config.UpdateEvery <= 0 {
		config.UpdateEvery = 5 * time.Second
	}
	if config.Steps <= 0 {
		config.Steps = 5
	}
	return &Agent{bus: bus, config: config}
}

// Run executes the node's role until ctx is cancelled or, for a slicer,
// the simulated pipeline run completes.
func (a *Agent) Run(ctx context.Context) error {
	if a.config.Role != RoleSlicer {
		log.Printf("worker %s idling for execution %s", a.config.NodeID, a.config.ExecutionID)
		<-ctx.Done()
		return ctx.Err()
	}
	return a.runSlicer(ctx)
}

func (a *Agent) runSlicer(ctx context.Context) error {
	nodeSubject := "cluster.node." + a.config.NodeID
	sub, err := a.bus.Subscribe(nodeSubject, a.handleNodeMessage)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	log.Printf("slicer %s initializing execution %s (recover=%t)", a.config.NodeID, a.config.ExecutionID, a.config.Recover)
	if err := a.bus.Publish(string(events.SlicerInitialized), events.SlicerInitializedPayload{ExecutionID: a.config.ExecutionID}); err != nil {
		return err
	}

	ticker := time.NewTicker(a.config.UpdateEvery)
	defer ticker.Stop()

	processed := 0
	for processed < a.config.Steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if a.isPaused() {
				continue
			}
			processed++
			a.reportProgress(processed)
		}
	}

	log.Printf("slicer %s finished execution %s", a.config.NodeID, a.config.ExecutionID)
	return a.bus.Publish(string(events.ClusterJobFinished), events.JobFinishedPayload{
		ExecutionID: a.config.ExecutionID,
		Recovered:   a.config.Recover,
	})
}

func (a *Agent) reportProgress(processed int) {
	stats, _ := json.Marshal(map[string]int{"processed": processed, "total": a.config.Steps})
	if err := a.bus.Publish(string(events.SlicerJobUpdate), events.JobUpdatePayload{
		ExecutionID: a.config.ExecutionID,
		Pipeline:    stats,
	}); err != nil {
		log.Printf("slicer %s: publish job update: %v", a.config.NodeID, err)
	}

	// Simulated transient hiccup: occasionally surface a non-terminal
	// processing error so the controller-side failing/running bounce
	// path gets exercised by a real run, not just tests.
	if rand.Intn(20) == 0 {
		log.Printf("slicer %s: transient processing error", a.config.NodeID)
		if err := a.bus.Publish(string(events.SlicerProcessingError), events.ProcessingErrorPayload{ExecutionID: a.config.ExecutionID}); err != nil {
			log.Printf("slicer %s: publish processing error: %v", a.config.NodeID, err)
		}
	}
}

// handleNodeMessage reacts to the soft pause/resume signals
// internal/cluster.Service.NotifyNode publishes to this node's subject
// (hard stop/restart instead kill the process directly, so they never
// reach here).
func (a *Agent) handleNodeMessage(subject string, payload json.RawMessage) {
	var msg struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("slicer %s: malformed node message on %s: %v", a.config.NodeID, subject, err)
		return
	}
	switch msg.Message {
	case "cluster:job:pause":
		a.setPaused(true)
	case "cluster:job:resume":
		a.setPaused(false)
	}
}

func (a *Agent) setPaused(p bool) {
	a.mu.Lock()
	a.paused = p
	a.mu.Unlock()
}

func (a *Agent) isPaused() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.paused
}
