package cluster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"golang.org/x/time/rate"

	"jobcore/internal/eventbus"
	"jobcore/internal/moderator"
	"jobcore/internal/store"
	"jobcore/internal/worker/runtime"
)

// Config parameterizes the concrete cluster Service.
type Config struct {
	// WorkerCapacity is the total number of worker slots the cluster can
	// host concurrently.
	WorkerCapacity int
	// SlicerImage/WorkerImage select the container image launched for
	// each role; unused by the exec runtime.
	SlicerImage string
	WorkerImage string
	// ConnRateLimit/ConnBurst size the per-connection token bucket
	// backing CheckModerator (see internal/controller/middleware/ratelimit.go
	// for the same token-bucket pattern applied per caller IP to the HTTP API).
	ConnRateLimit rate.Limit
	ConnBurst     int
	// KafkaBrokers enriches moderator checks for kafka-typed
	// connections with a live broker reachability check.
	KafkaBrokers []string
}

// registeredNode tracks a spawned slicer/worker process.
type registeredNode struct {
	id        string
	isSlicer  bool
	execution uuid.UUID
	handle    runtime.Handle
}

// service is the concrete cluster.Service: Docker/K8s/exec allocation,
// NATS node notification, and rate-limit/kafka-backed moderator checks.
type service struct {
	rt  runtime.Runtime
	bus eventbus.Bus
	cfg Config

	mu            sync.Mutex
	activeWorkers int
	nodes         map[string]*registeredNode

	limiters sync.Map // connType+"/"+name -> *rate.Limiter
}

// New composes a concrete cluster.Service over a container runtime and
// the process-wide event bus.
func New(rt runtime.Runtime, bus eventbus.Bus, cfg Config) *service {
	if cfg.ConnRateLimit == 0 {
		cfg.ConnRateLimit = rate.Limit(5)
	}
	if cfg.ConnBurst == 0 {
		cfg.ConnBurst = 5
	}
	return &service{
		rt:    rt,
		bus:   bus,
		cfg:   cfg,
		nodes: make(map[string]*registeredNode),
	}
}

// AvailableWorkers reports free worker capacity.
func (s *service) AvailableWorkers(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.WorkerCapacity - s.activeWorkers, nil
}

// AllocateSlicer launches the slicer process for execution. Readiness is
// reported asynchronously by the slicer over the event bus
// (slicer:initialized), not by this call.
func (s *service) AllocateSlicer(ctx context.Context, execution *store.Execution, recover bool) error {
	nodeID := fmt.Sprintf("slicer-%s", execution.ID)
	handle, err := s.rt.Start(ctx, runtime.StartOptions{
		Image:   s.cfg.SlicerImage,
		Command: []string{"jobcore-worker", "slicer"},
		Env: map[string]string{
			"JOBCORE_EXECUTION_ID": execution.ID.String(),
			"JOBCORE_NODE_ID":      nodeID,
			"JOBCORE_ROLE":         "slicer",
			"JOBCORE_RECOVER":      fmt.Sprintf("%t", recover),
		},
	})
	if err != nil {
		return fmt.Errorf("allocate slicer: %w", err)
	}

	s.mu.Lock()
	s.nodes[nodeID] = &registeredNode{id: nodeID, isSlicer: true, execution: execution.ID, handle: handle}
	s.mu.Unlock()
	return nil
}

// AllocateWorkers launches count worker processes for execution.
func (s *service) AllocateWorkers(ctx context.Context, execution *store.Execution, count int) error {
	s.mu.Lock()
	if s.activeWorkers+count > s.cfg.WorkerCapacity {
		s.mu.Unlock()
		return fmt.Errorf("allocate workers: %w", ErrNoCapacity)
	}
	s.mu.Unlock()

	started := make([]*registeredNode, 0, count)
	for i := 0; i < count; i++ {
		nodeID := fmt.Sprintf("worker-%s-%d", execution.ID, i)
		handle, err := s.rt.Start(ctx, runtime.StartOptions{
			Image:   s.cfg.WorkerImage,
			Command: []string{"jobcore-worker", "worker"},
			Env: map[string]string{
				"JOBCORE_EXECUTION_ID": execution.ID.String(),
				"JOBCORE_NODE_ID":      nodeID,
				"JOBCORE_ROLE":         "worker",
			},
		})
		if err != nil {
			for _, n := range started {
				_ = n.handle.Stop(ctx)
			}
			return fmt.Errorf("allocate workers: %w", err)
		}
		started = append(started, &registeredNode{id: nodeID, execution: execution.ID, handle: handle})
	}

	s.mu.Lock()
	for _, n := range started {
		s.nodes[n.id] = n
	}
	s.activeWorkers += count
	s.mu.Unlock()
	return nil
}

// FindNodesForJob returns the nodes currently running executionID.
func (s *service) FindNodesForJob(ctx context.Context, executionID uuid.UUID, slicerOnly bool) ([]Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Node
	for _, n := range s.nodes {
		if n.execution != executionID {
			continue
		}
		if slicerOnly && !n.isSlicer {
			continue
		}
		out = append(out, Node{ID: n.id, IsSlicer: n.isSlicer, Execution: n.execution})
	}
	return out, nil
}

// NotifyNode delivers message to nodeID. Hard-termination messages stop
// the underlying process directly; soft signals (pause/resume) are
// published to the node's own subject so the in-process worker agent can
// react without being torn down.
func (s *service) NotifyNode(ctx context.Context, nodeID string, message string, payload interface{}) error {
	s.mu.Lock()
	node, ok := s.nodes[nodeID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("notify node: unknown node %q", nodeID)
	}

	switch message {
	case "cluster:job:stop", "cluster:job:restart":
		if err := node.handle.Stop(ctx); err != nil {
			return fmt.Errorf("notify node %s: stop: %w", nodeID, err)
		}
		s.forgetNode(nodeID)
		return nil
	default:
		return s.bus.Publish(fmt.Sprintf("cluster.node.%s", nodeID), map[string]interface{}{
			"message": message,
			"payload": payload,
		})
	}
}

func (s *service) forgetNode(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[nodeID]
	if !ok {
		return
	}
	if !node.isSlicer {
		s.activeWorkers--
	}
	delete(s.nodes, nodeID)
}

// CheckModerator reports the throttle state of each declared connection,
// backed by a per-connection token bucket, enriched with a live broker
// check for kafka-typed connections.
func (s *service) CheckModerator(ctx context.Context, connections store.ConnectionMap) ([]moderator.ConnectionCheck, error) {
	var out []moderator.ConnectionCheck
	for connType, names := range connections {
		for _, name := range names {
			canRun := s.limiterFor(connType, name).Allow()
			if canRun && connType == "kafka" && len(s.cfg.KafkaBrokers) > 0 {
				canRun = s.kafkaReachable(ctx)
			}
			out = append(out, moderator.ConnectionCheck{Type: connType, Connection: name, CanRun: canRun})
		}
	}
	return out, nil
}

func (s *service) limiterFor(connType, name string) *rate.Limiter {
	key := connType + "/" + name
	if l, ok := s.limiters.Load(key); ok {
		return l.(*rate.Limiter)
	}
	l := rate.NewLimiter(s.cfg.ConnRateLimit, s.cfg.ConnBurst)
	actual, _ := s.limiters.LoadOrStore(key, l)
	return actual.(*rate.Limiter)
}

func (s *service) kafkaReachable(ctx context.Context) bool {
	dialCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	dialer := &kafka.Dialer{Timeout: 2 * time.Second}
	conn, err := dialer.DialContext(dialCtx, "tcp", s.cfg.KafkaBrokers[0])
	if err != nil {
		return false
	}
	defer conn.Close()

	if _, err := conn.ReadPartitions(); err != nil {
		return false
	}
	return true
}
