package handlers

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"jobcore/internal/cluster"
	"jobcore/internal/lifecycle"
	"jobcore/internal/moderator"
	"jobcore/internal/queue"
	"jobcore/internal/store"
)

// fakeJobStore is an in-memory store.JobStore good enough to drive the
// lifecycle engine under test, without a real database.
type fakeJobStore struct {
	mu         sync.Mutex
	jobs       map[uuid.UUID]*store.Job
	executions map[uuid.UUID]*store.Execution
	pingErr    error
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		jobs:       map[uuid.UUID]*store.Job{},
		executions: map[uuid.UUID]*store.Execution{},
	}
}

func (s *fakeJobStore) CreateJob(ctx context.Context, job *store.Job) (*store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return &cp, nil
}

func (s *fakeJobStore) UpdateJob(ctx context.Context, id uuid.UUID, mutate func(*store.Job)) (*store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	mutate(j)
	cp := *j
	return &cp, nil
}

func (s *fakeJobStore) GetJob(ctx context.Context, id uuid.UUID) (*store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *fakeJobStore) GetJobs(ctx context.Context, q store.Query, from, size int) ([]*store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.Job
	for _, j := range s.jobs {
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (s *fakeJobStore) CreateExecution(ctx context.Context, execution *store.Execution) (*store.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if execution.ID == uuid.Nil {
		execution.ID = uuid.New()
	}
	cp := *execution
	s.executions[execution.ID] = &cp
	return &cp, nil
}

func (s *fakeJobStore) UpdateExecution(ctx context.Context, id uuid.UUID, patch store.ExecutionPatch) (*store.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, ok := s.executions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if patch.Status != nil {
		ex.Status = *patch.Status
	}
	if patch.FailureReason != nil {
		ex.FailureReason = *patch.FailureReason
	}
	if patch.SlicerStats != nil {
		ex.SlicerStats = patch.SlicerStats
	}
	if patch.HasErrors != nil {
		ex.HasErrors = *patch.HasErrors
	}
	if patch.RecoverExecution != nil {
		ex.RecoverExecution = *patch.RecoverExecution
	}
	if patch.ResolvedAssets != nil {
		ex.ResolvedAssets = patch.ResolvedAssets
	}
	if patch.Pipeline != nil {
		ex.Pipeline = patch.Pipeline
	}
	cp := *ex
	return &cp, nil
}

func (s *fakeJobStore) GetExecution(ctx context.Context, id uuid.UUID) (*store.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, ok := s.executions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *ex
	return &cp, nil
}

func (s *fakeJobStore) SearchExecutions(ctx context.Context, q store.Query, from, size int, sort store.Sort) ([]*store.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.Execution
	for _, ex := range s.executions {
		if q.JobID != nil && ex.JobID.String() != *q.JobID {
			continue
		}
		cp := *ex
		out = append(out, &cp)
	}
	return out, nil
}

func (s *fakeJobStore) Ping(ctx context.Context) error { return s.pingErr }

func (s *fakeJobStore) Close() error { return nil }

// fakeCluster is a no-op cluster.Service used where handler tests never
// reach a notify/allocate path.
type fakeCluster struct{}

func (fakeCluster) AvailableWorkers(ctx context.Context) (int, error) { return 16, nil }
func (fakeCluster) AllocateSlicer(ctx context.Context, execution *store.Execution, recover bool) error {
	return nil
}
func (fakeCluster) AllocateWorkers(ctx context.Context, execution *store.Execution, count int) error {
	return nil
}
func (fakeCluster) FindNodesForJob(ctx context.Context, executionID uuid.UUID, slicerOnly bool) ([]cluster.Node, error) {
	return nil, nil
}
func (fakeCluster) NotifyNode(ctx context.Context, nodeID, message string, payload interface{}) error {
	return nil
}
func (fakeCluster) CheckModerator(ctx context.Context, conns store.ConnectionMap) ([]moderator.ConnectionCheck, error) {
	return nil, nil
}

type fakeAssets struct{}

func (fakeAssets) Resolve(ctx context.Context, names []string) (map[string]string, error) {
	out := map[string]string{}
	for _, n := range names {
		out[n] = "content-" + n
	}
	return out, nil
}

// newTestHandlers builds Handlers fronting a real lifecycle.Engine wired
// to in-memory fakes, so handler tests exercise the actual engine
// validation/state-machine logic instead of a stub.
func newTestHandlers(t testingT) (*Handlers, *fakeJobStore) {
	jobs := newFakeJobStore()
	engine := lifecycle.New(lifecycle.Deps{
		Jobs:          jobs,
		Cluster:       fakeCluster{},
		Moderator:     moderator.New(fakeCluster{}, ""),
		Assets:        fakeAssets{},
		Pending:       queue.New(),
		ModeratorHeld: queue.New(),
	})
	t.Cleanup(engine.Close)
	return New(engine, jobs), jobs
}

// testingT is the subset of *testing.T newTestHandlers needs, so it can
// be called from Cleanup-capable tests only.
type testingT interface {
	Cleanup(func())
}

func newUUIDString() string {
	return uuid.New().String()
}
