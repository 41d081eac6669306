package pipeline

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/candidate-profiler/internal/status"
)

type fakeRunner struct {
	name     string
	startErr error
	stopWait time.Duration

	started atomic.Int32
	stopped atomic.Int32
	runs    atomic.Int32
	ran     chan struct{}
	once    sync.Once
}

func (f *fakeRunner) Name() string           { return f.name }
func (f *fakeRunner) Descriptor() Descriptor { return Descriptor{Name: f.name} }
func (f *fakeRunner) Running() bool          { return f.started.Load() > f.stopped.Load() }

func (f *fakeRunner) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started.Add(1)
	return nil
}

func (f *fakeRunner) Stop(timeout time.Duration) {
	wait := f.stopWait
	if wait > timeout {
		wait = timeout
	}
	time.Sleep(wait)
	f.stopped.Add(1)
}

func (f *fakeRunner) RunOnce(context.Context) error {
	f.runs.Add(1)
	if f.ran != nil {
		f.once.Do(func() { close(f.ran) })
	}
	return nil
}

func TestSupervisor_RegisterDuplicate(t *testing.T) {
	s := NewSupervisor()
	require.NoError(t, s.Register(&fakeRunner{name: "a"}))
	err := s.Register(&fakeRunner{name: "a"})
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.Equal(t, []string{"a"}, s.Names())
}

func TestSupervisor_GetAndNamesOrder(t *testing.T) {
	s := NewSupervisor()
	for _, n := range []string{"text_extraction", "google_scraping", "profile_creation"} {
		require.NoError(t, s.Register(&fakeRunner{name: n}))
	}
	assert.Equal(t, []string{"text_extraction", "google_scraping", "profile_creation"}, s.Names())

	r, ok := s.Get("google_scraping")
	require.True(t, ok)
	assert.Equal(t, "google_scraping", r.Name())

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestSupervisor_StartAllContinuesPastFailures(t *testing.T) {
	s := NewSupervisor()
	a := &fakeRunner{name: "a"}
	b := &fakeRunner{name: "b", startErr: errors.New("cannot start")}
	c := &fakeRunner{name: "c"}
	for _, r := range []*fakeRunner{a, b, c} {
		require.NoError(t, s.Register(r))
	}

	assert.Equal(t, 2, s.StartAll())
	assert.Equal(t, int32(1), a.started.Load())
	assert.Equal(t, int32(0), b.started.Load())
	assert.Equal(t, int32(1), c.started.Load())
}

func TestSupervisor_StartAllConcurrentWithRegister(t *testing.T) {
	s := NewSupervisor()
	require.NoError(t, s.Register(&fakeRunner{name: "seed"}))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 50 {
			_ = s.Register(&fakeRunner{name: "r" + strconv.Itoa(i)})
		}
	}()
	go func() {
		defer wg.Done()
		for range 50 {
			assert.Positive(t, s.StartAll())
		}
	}()
	wg.Wait()

	assert.Len(t, s.Names(), 51)
}

func TestSupervisor_StopAllIsBoundedAndParallel(t *testing.T) {
	s := NewSupervisor()
	var runners []*fakeRunner
	for _, n := range []string{"a", "b", "c", "d"} {
		r := &fakeRunner{name: n, stopWait: time.Hour}
		runners = append(runners, r)
		require.NoError(t, s.Register(r))
	}

	start := time.Now()
	s.StopAll(50 * time.Millisecond)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 150*time.Millisecond)
	for _, r := range runners {
		assert.Equal(t, int32(1), r.stopped.Load(), r.name)
	}
}

func TestSupervisor_StopAllWithRealRuntimes(t *testing.T) {
	reg := status.NewRegistry()
	s := NewSupervisor()
	for _, n := range []string{"a", "b"} {
		rt, err := NewRuntime[int, int](testDescriptor(n), newFakeStage(), reg)
		require.NoError(t, err)
		require.NoError(t, s.Register(rt))
	}

	assert.Equal(t, 2, s.StartAll())
	s.StopAll(time.Second)

	for _, n := range []string{"a", "b"} {
		st, ok := reg.Get(n)
		require.True(t, ok)
		assert.Equal(t, status.Stopped, st.Status)
		r, _ := s.Get(n)
		assert.False(t, r.Running())
	}
}

func TestSupervisor_Trigger(t *testing.T) {
	s := NewSupervisor()
	r := &fakeRunner{name: "profile_creation", ran: make(chan struct{})}
	require.NoError(t, s.Register(r))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Trigger(ctx, "profile_creation"))
	cancel()

	select {
	case <-r.ran:
	case <-time.After(time.Second):
		t.Fatal("triggered cycle did not run")
	}
	assert.Equal(t, int32(1), r.runs.Load())

	assert.ErrorIs(t, s.Trigger(context.Background(), "nope"), ErrUnknownPipeline)
}
