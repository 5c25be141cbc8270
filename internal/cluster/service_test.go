package cluster

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"

	"jobcore/internal/eventbus"
	"jobcore/internal/store"
	"jobcore/internal/worker/runtime"
)

type fakeHandle struct {
	stopped bool
}

func (h *fakeHandle) Wait(ctx context.Context) (runtime.ExitResult, error) { return runtime.ExitResult{}, nil }
func (h *fakeHandle) Stop(ctx context.Context) error                      { h.stopped = true; return nil }
func (h *fakeHandle) StreamLogs(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(nil), nil
}

type fakeRuntime struct {
	startErr error
	handles  []*fakeHandle
}

func (r *fakeRuntime) Start(ctx context.Context, opts runtime.StartOptions) (runtime.Handle, error) {
	if r.startErr != nil {
		return nil, r.startErr
	}
	h := &fakeHandle{}
	r.handles = append(r.handles, h)
	return h, nil
}

type fakeBus struct {
	published []string
}

func (b *fakeBus) Publish(subject string, payload interface{}) error {
	b.published = append(b.published, subject)
	return nil
}
func (b *fakeBus) Subscribe(subject string, handler func(string, json.RawMessage)) (eventbus.Subscription, error) {
	return nil, nil
}
func (b *fakeBus) Request(ctx context.Context, subject string, payload interface{}, reply interface{}) error {
	return nil
}
func (b *fakeBus) Close() {}

func TestAllocateSlicerThenWorkers(t *testing.T) {
	rt := &fakeRuntime{}
	svc := New(rt, nil, Config{WorkerCapacity: 4})
	execution := &store.Execution{ID: uuid.New()}

	if err := svc.AllocateSlicer(context.Background(), execution, false); err != nil {
		t.Fatalf("AllocateSlicer() error = %v", err)
	}
	if err := svc.AllocateWorkers(context.Background(), execution, 2); err != nil {
		t.Fatalf("AllocateWorkers() error = %v", err)
	}

	available, _ := svc.AvailableWorkers(context.Background())
	if available != 2 {
		t.Fatalf("AvailableWorkers() = %d, want 2", available)
	}

	nodes, err := svc.FindNodesForJob(context.Background(), execution.ID, false)
	if err != nil || len(nodes) != 3 {
		t.Fatalf("FindNodesForJob() = %v, %v; want 3 nodes", nodes, err)
	}

	slicerNodes, _ := svc.FindNodesForJob(context.Background(), execution.ID, true)
	if len(slicerNodes) != 1 || !slicerNodes[0].IsSlicer {
		t.Fatalf("expected exactly one slicer node, got %v", slicerNodes)
	}
}

func TestAllocateWorkersOverCapacityFails(t *testing.T) {
	rt := &fakeRuntime{}
	svc := New(rt, nil, Config{WorkerCapacity: 1})
	execution := &store.Execution{ID: uuid.New()}

	if err := svc.AllocateWorkers(context.Background(), execution, 2); err == nil {
		t.Fatal("expected error when requesting more workers than capacity")
	}
}

func TestCheckModeratorTokenBucket(t *testing.T) {
	rt := &fakeRuntime{}
	svc := New(rt, nil, Config{WorkerCapacity: 1, ConnRateLimit: 1, ConnBurst: 1})

	checks, err := svc.CheckModerator(context.Background(), store.ConnectionMap{"elasticsearch": {"primary"}})
	if err != nil {
		t.Fatalf("CheckModerator() error = %v", err)
	}
	if len(checks) != 1 || !checks[0].CanRun {
		t.Fatalf("expected first check to pass, got %v", checks)
	}

	checks, err = svc.CheckModerator(context.Background(), store.ConnectionMap{"elasticsearch": {"primary"}})
	if err != nil {
		t.Fatalf("CheckModerator() error = %v", err)
	}
	if checks[0].CanRun {
		t.Fatal("expected second immediate check to be throttled")
	}
}

func TestNotifyNodeStopRemovesNode(t *testing.T) {
	rt := &fakeRuntime{}
	svc := New(rt, &fakeBus{}, Config{WorkerCapacity: 2})
	execution := &store.Execution{ID: uuid.New()}
	_ = svc.AllocateSlicer(context.Background(), execution, false)

	nodes, _ := svc.FindNodesForJob(context.Background(), execution.ID, true)
	if len(nodes) != 1 {
		t.Fatalf("expected 1 slicer node, got %d", len(nodes))
	}

	if err := svc.NotifyNode(context.Background(), nodes[0].ID, "cluster:job:stop", nil); err != nil {
		t.Fatalf("NotifyNode() error = %v", err)
	}
	if !rt.handles[0].stopped {
		t.Fatal("expected handle to be stopped")
	}

	after, _ := svc.FindNodesForJob(context.Background(), execution.ID, true)
	if len(after) != 0 {
		t.Fatalf("expected node removed after stop, got %v", after)
	}
}
