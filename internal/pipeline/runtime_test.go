package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/candidate-profiler/internal/status"
)

// fakeStage is a scriptable Stage[int, int].
type fakeStage struct {
	mu        sync.Mutex
	items     []int
	fetchErr  error
	failOn    map[int]error
	panicOn   int
	updateErr error
	block     chan struct{}

	fetches   atomic.Int32
	processed []int
	updated   [][]int
	failures  map[int]error
	limits    []int
}

func newFakeStage(items ...int) *fakeStage {
	return &fakeStage{items: items, failOn: map[int]error{}, failures: map[int]error{}, panicOn: -1}
}

func (f *fakeStage) FetchInput(_ context.Context, limit int) ([]int, error) {
	f.fetches.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]int, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeStage) Process(_ context.Context, item int) (int, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, item)
	if item == f.panicOn {
		panic("boom")
	}
	if err, ok := f.failOn[item]; ok {
		return 0, err
	}
	return item * 10, nil
}

func (f *fakeStage) UpdateOutput(_ context.Context, results []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, results)
	return f.updateErr
}

func (f *fakeStage) HandleFailure(_ context.Context, item int, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[item] = cause
	return errors.New("handler trouble is ignored")
}

func testDescriptor(name string) Descriptor {
	return Descriptor{
		Name:            name,
		BatchSize:       10,
		ProcessInterval: time.Hour,
		IdleBackoff:     time.Hour,
	}
}

func newTestRuntime(t *testing.T, desc Descriptor, stage Stage[int, int]) (*Runtime[int, int], *status.Registry) {
	t.Helper()
	reg := status.NewRegistry()
	rt, err := NewRuntime(desc, stage, reg)
	require.NoError(t, err)
	return rt, reg
}

func TestDescriptor_Validate(t *testing.T) {
	tests := []struct {
		name    string
		desc    Descriptor
		wantErr bool
	}{
		{name: "valid", desc: testDescriptor("p")},
		{name: "no name", desc: Descriptor{BatchSize: 1, ProcessInterval: time.Second, IdleBackoff: time.Second}, wantErr: true},
		{name: "zero batch", desc: Descriptor{Name: "p", ProcessInterval: time.Second, IdleBackoff: time.Second}, wantErr: true},
		{name: "zero interval", desc: Descriptor{Name: "p", BatchSize: 1, IdleBackoff: time.Second}, wantErr: true},
		{name: "zero backoff", desc: Descriptor{Name: "p", BatchSize: 1, ProcessInterval: time.Second}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewRuntime_RequiresCollaborators(t *testing.T) {
	_, err := NewRuntime[int, int](testDescriptor("p"), nil, status.NewRegistry())
	assert.Error(t, err)
	_, err = NewRuntime[int, int](testDescriptor("p"), newFakeStage(), nil)
	assert.Error(t, err)
}

func TestRunOnce_IsolatesItemFailures(t *testing.T) {
	stage := newFakeStage(1, 2, 3, 4)
	itemErr := errors.New("profile not found")
	stage.failOn[3] = itemErr
	rt, reg := newTestRuntime(t, testDescriptor("github_scraping"), stage)

	require.NoError(t, rt.RunOnce(context.Background()))

	assert.Equal(t, []int{1, 2, 3, 4}, stage.processed)
	require.Len(t, stage.updated, 1)
	assert.Equal(t, []int{10, 20, 40}, stage.updated[0])
	assert.Equal(t, map[int]error{3: itemErr}, stage.failures)

	st, ok := reg.Get("github_scraping")
	require.True(t, ok)
	assert.Equal(t, status.Idle, st.Status)
	assert.Equal(t, "batch processing completed", st.Message)
	assert.Equal(t, 4, st.Details[status.DetailInputRecords])
	assert.Equal(t, 3, st.Details[status.DetailOutputRecords])
	assert.Equal(t, 1, st.Details[status.DetailFailedRecords])
}

func TestRunOnce_PanicInItemIsIsolated(t *testing.T) {
	stage := newFakeStage(1, 2, 3)
	stage.panicOn = 2
	rt, _ := newTestRuntime(t, testDescriptor("p"), stage)

	require.NoError(t, rt.RunOnce(context.Background()))
	assert.Equal(t, []int{10, 30}, stage.updated[0])
	require.Contains(t, stage.failures, 2)
	assert.Contains(t, stage.failures[2].Error(), "panic")
}

func TestRunOnce_EmptyBatchStillPersists(t *testing.T) {
	stage := newFakeStage()
	rt, reg := newTestRuntime(t, testDescriptor("p"), stage)

	require.NoError(t, rt.RunOnce(context.Background()))
	require.Len(t, stage.updated, 1)
	assert.Empty(t, stage.updated[0])

	st, _ := reg.Get("p")
	assert.Equal(t, 0, st.Details[status.DetailInputRecords])
}

func TestRunOnce_PassesBatchSizeAndTruncates(t *testing.T) {
	stage := newFakeStage(1, 2, 3, 4, 5)
	desc := testDescriptor("p")
	desc.BatchSize = 2
	rt, _ := newTestRuntime(t, desc, stage)

	require.NoError(t, rt.RunOnce(context.Background()))
	assert.Equal(t, []int{2}, stage.limits)
	assert.Equal(t, []int{1, 2}, stage.processed)
}

func TestRunOnce_FetchErrorFailsCycle(t *testing.T) {
	stage := newFakeStage()
	stage.fetchErr = errors.New("store unreachable")
	rt, reg := newTestRuntime(t, testDescriptor("p"), stage)

	err := rt.RunOnce(context.Background())
	require.Error(t, err)
	assert.Empty(t, stage.updated)

	st, _ := reg.Get("p")
	assert.Equal(t, status.Error, st.Status)
	assert.Contains(t, st.ErrorMessage, "store unreachable")
}

func TestRunOnce_UpdateErrorFailsCycle(t *testing.T) {
	stage := newFakeStage(1)
	stage.updateErr = errors.New("write failed")
	rt, reg := newTestRuntime(t, testDescriptor("p"), stage)

	require.Error(t, rt.RunOnce(context.Background()))
	st, _ := reg.Get("p")
	assert.Equal(t, status.Error, st.Status)
	assert.Contains(t, st.ErrorMessage, "write failed")
}

func TestStart_AlreadyRunning(t *testing.T) {
	stage := newFakeStage()
	rt, reg := newTestRuntime(t, testDescriptor("p"), stage)

	require.NoError(t, rt.Start())
	t.Cleanup(func() { rt.Stop(time.Second) })

	assert.True(t, rt.Running())
	assert.ErrorIs(t, rt.Start(), ErrAlreadyRunning)

	_, ok := reg.Get("p")
	assert.True(t, ok)
}

func TestLoop_RecoversFromCycleErrorsAfterBackoff(t *testing.T) {
	stage := newFakeStage(1)
	stage.fetchErr = errors.New("transient")
	desc := testDescriptor("p")
	desc.IdleBackoff = 10 * time.Millisecond
	rt, reg := newTestRuntime(t, desc, stage)

	require.NoError(t, rt.Start())
	t.Cleanup(func() { rt.Stop(time.Second) })

	require.Eventually(t, func() bool { return stage.fetches.Load() >= 3 }, time.Second, 5*time.Millisecond)

	stage.mu.Lock()
	stage.fetchErr = nil
	stage.mu.Unlock()

	require.Eventually(t, func() bool {
		st, _ := reg.Get("p")
		return st.Status == status.Idle && st.Message == "batch processing completed"
	}, time.Second, 5*time.Millisecond)
	assert.True(t, rt.Running())
}

func TestLoop_WaitsProcessIntervalAfterSuccess(t *testing.T) {
	stage := newFakeStage()
	desc := testDescriptor("p")
	desc.IdleBackoff = time.Millisecond
	rt, _ := newTestRuntime(t, desc, stage)

	require.NoError(t, rt.Start())
	require.Eventually(t, func() bool { return stage.fetches.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), stage.fetches.Load())
	rt.Stop(time.Second)
}

func TestStop_InterruptsSleepAndRecordsStopped(t *testing.T) {
	stage := newFakeStage()
	rt, reg := newTestRuntime(t, testDescriptor("p"), stage)

	require.NoError(t, rt.Start())
	require.Eventually(t, func() bool { return stage.fetches.Load() == 1 }, time.Second, time.Millisecond)

	start := time.Now()
	rt.Stop(time.Second)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.False(t, rt.Running())

	st, _ := reg.Get("p")
	assert.Equal(t, status.Stopped, st.Status)
}

func TestStop_BoundedByTimeout(t *testing.T) {
	stage := newFakeStage(1)
	stage.block = make(chan struct{})
	rt, reg := newTestRuntime(t, testDescriptor("p"), stage)

	require.NoError(t, rt.Start())
	require.Eventually(t, func() bool { return stage.fetches.Load() == 1 }, time.Second, time.Millisecond)

	start := time.Now()
	rt.Stop(50 * time.Millisecond)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond)

	st, _ := reg.Get("p")
	assert.Equal(t, status.Stopped, st.Status)
	assert.True(t, rt.Running())
	assert.ErrorIs(t, rt.Start(), ErrAlreadyRunning)

	close(stage.block)
	require.Eventually(t, func() bool { return !rt.Running() }, time.Second, 5*time.Millisecond)
}

func TestStop_LateCycleDoesNotOverwriteStopped(t *testing.T) {
	stage := newFakeStage(1, 2)
	stage.failOn[2] = errors.New("bad item")
	stage.block = make(chan struct{})
	rt, reg := newTestRuntime(t, testDescriptor("p"), stage)

	require.NoError(t, rt.Start())
	require.Eventually(t, func() bool { return stage.fetches.Load() == 1 }, time.Second, time.Millisecond)

	rt.Stop(10 * time.Millisecond)
	close(stage.block)
	require.Eventually(t, func() bool { return !rt.Running() }, time.Second, 5*time.Millisecond)

	stage.mu.Lock()
	require.Len(t, stage.updated, 1, "cycle ran to completion")
	stage.mu.Unlock()

	st, _ := reg.Get("p")
	assert.Equal(t, status.Stopped, st.Status)
	assert.Equal(t, "pipeline stopped", st.Message)

	require.NoError(t, rt.RunOnce(context.Background()))
	st, _ = reg.Get("p")
	assert.Equal(t, status.Idle, st.Status, "manual cycles after stop still report")
}

func TestStop_Idempotent(t *testing.T) {
	rt, reg := newTestRuntime(t, testDescriptor("p"), newFakeStage())

	rt.Stop(10 * time.Millisecond)
	require.NoError(t, rt.Start())
	rt.Stop(time.Second)
	rt.Stop(time.Second)

	st, _ := reg.Get("p")
	assert.Equal(t, status.Stopped, st.Status)
	assert.False(t, rt.Running())
}

func TestStart_AfterStopRestarts(t *testing.T) {
	stage := newFakeStage()
	rt, _ := newTestRuntime(t, testDescriptor("p"), stage)

	require.NoError(t, rt.Start())
	rt.Stop(time.Second)
	require.NoError(t, rt.Start())
	t.Cleanup(func() { rt.Stop(time.Second) })

	require.Eventually(t, func() bool { return stage.fetches.Load() == 2 }, time.Second, time.Millisecond)
}
