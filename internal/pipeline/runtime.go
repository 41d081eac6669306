// Package pipeline runs stages on a poll loop and supervises their lifecycles.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-profiler/internal/status"
)

// ErrAlreadyRunning is returned by Start while a previous loop is still alive.
var ErrAlreadyRunning = eris.New("pipeline: already running")

// Runtime runs one stage on its own schedule and reports every phase to a
// status registry. Cycles of one runtime never overlap.
type Runtime[I, R any] struct {
	desc     Descriptor
	stage    Stage[I, R]
	registry *status.Registry
	log      *zap.Logger

	mu     sync.Mutex
	stopCh chan struct{}
	done   chan struct{}
	cancel context.CancelFunc

	cycleMu sync.Mutex

	// reportMu orders registry writes from cycles against Stop. A cycle only
	// reports while gen still matches the value it started with.
	reportMu sync.Mutex
	gen      uint64
}

// NewRuntime validates desc and binds it to a stage and registry.
func NewRuntime[I, R any](desc Descriptor, stage Stage[I, R], registry *status.Registry) (*Runtime[I, R], error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if stage == nil {
		return nil, eris.Errorf("pipeline: %s: stage is required", desc.Name)
	}
	if registry == nil {
		return nil, eris.Errorf("pipeline: %s: status registry is required", desc.Name)
	}
	return &Runtime[I, R]{
		desc:     desc,
		stage:    stage,
		registry: registry,
		log: zap.L().With(
			zap.String("component", "pipeline.runtime"),
			zap.String("pipeline", desc.Name),
		),
	}, nil
}

// Name returns the descriptor name.
func (r *Runtime[I, R]) Name() string { return r.desc.Name }

// Descriptor returns the runtime's descriptor.
func (r *Runtime[I, R]) Descriptor() Descriptor { return r.desc }

// Running reports whether the background loop is alive.
func (r *Runtime[I, R]) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aliveLocked()
}

func (r *Runtime[I, R]) aliveLocked() bool {
	if r.done == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Start launches the run loop in the background and returns immediately.
func (r *Runtime[I, R]) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.aliveLocked() {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.stopCh = make(chan struct{})
	r.done = make(chan struct{})
	r.cancel = cancel

	go r.loop(ctx, r.stopCh, r.done)

	r.registry.Set(r.desc.Name, status.Running, status.Update{Message: "pipeline started"})
	r.log.Info("pipeline started",
		zap.Int("batch_size", r.desc.BatchSize),
		zap.Duration("process_interval", r.desc.ProcessInterval),
		zap.Duration("idle_backoff", r.desc.IdleBackoff),
	)
	return nil
}

// Stop signals the loop to exit after its current cycle and waits up to
// timeout for it. Stopped is recorded whether or not the loop exited in time.
// A cycle still running after timeout has its context cancelled, and it no
// longer writes to the registry, so Stopped stays the last recorded state.
func (r *Runtime[I, R]) Stop(timeout time.Duration) {
	r.reportMu.Lock()
	r.gen++
	r.reportMu.Unlock()

	r.mu.Lock()
	stopCh, done, cancel := r.stopCh, r.done, r.cancel
	r.stopCh = nil
	r.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}

	if done != nil {
		timer := time.NewTimer(timeout)
		select {
		case <-done:
			timer.Stop()
		case <-timer.C:
			r.log.Warn("pipeline did not stop within timeout", zap.Duration("timeout", timeout))
		}
	}
	if cancel != nil {
		cancel()
	}

	r.registry.Set(r.desc.Name, status.Stopped, status.Update{Message: "pipeline stopped"})
	r.log.Info("pipeline stopped")
}

// RunOnce executes a single cycle synchronously, outside the schedule.
func (r *Runtime[I, R]) RunOnce(ctx context.Context) error {
	return r.runCycle(ctx)
}

func (r *Runtime[I, R]) loop(ctx context.Context, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		wait := r.desc.ProcessInterval
		if err := r.runCycle(ctx); err != nil {
			wait = r.desc.IdleBackoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// runCycle fetches, processes and persists one batch. Errors from a single
// item are isolated; fetch or persist errors fail the whole cycle.
func (r *Runtime[I, R]) runCycle(ctx context.Context) error {
	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()

	start := time.Now()
	report := r.reporter()
	report(status.Idle, status.Update{Message: "starting batch processing"})

	items, err := r.fetch(ctx)
	if err != nil {
		return r.fail(report, err)
	}
	report(status.ProcessingStarted, status.Update{
		Message: fmt.Sprintf("processing %d records", len(items)),
		Details: map[string]any{status.DetailInputRecords: len(items)},
	})

	results := make([]R, 0, len(items))
	failed := 0
	for i, item := range items {
		res, err := r.process(ctx, item)
		if err != nil {
			failed++
			r.log.Error("item processing failed", zap.Int("index", i), zap.Error(err))
			if herr := r.handleFailure(ctx, item, err); herr != nil {
				r.log.Error("item failure handler failed", zap.Int("index", i), zap.Error(herr))
			}
			continue
		}
		results = append(results, res)
	}

	report(status.ProcessingCompleted, status.Update{
		Message: fmt.Sprintf("processed %d of %d records", len(results), len(items)),
		Details: map[string]any{
			status.DetailOutputRecords: len(results),
			status.DetailFailedRecords: failed,
		},
	})

	if err := r.update(ctx, results); err != nil {
		return r.fail(report, err)
	}

	elapsed := time.Since(start)
	report(status.Idle, status.Update{
		Message: "batch processing completed",
		Details: map[string]any{
			status.DetailInputRecords:  len(items),
			status.DetailOutputRecords: len(results),
			status.DetailFailedRecords: failed,
			status.DetailDurationMs:    elapsed.Milliseconds(),
		},
	})
	if len(items) > 0 {
		r.log.Info("batch processed",
			zap.Int("input", len(items)),
			zap.Int("output", len(results)),
			zap.Int("failed", failed),
			zap.Duration("elapsed", elapsed),
		)
	}
	return nil
}

// reporter returns a registry writer bound to the current stop generation.
func (r *Runtime[I, R]) reporter() func(status.Status, status.Update) {
	r.reportMu.Lock()
	gen := r.gen
	r.reportMu.Unlock()

	return func(s status.Status, u status.Update) {
		r.reportMu.Lock()
		defer r.reportMu.Unlock()
		if r.gen != gen {
			return
		}
		r.registry.Set(r.desc.Name, s, u)
	}
}

func (r *Runtime[I, R]) fail(report func(status.Status, status.Update), err error) error {
	r.log.Error("batch processing failed", zap.Error(err))
	report(status.Error, status.Update{
		Message: "batch processing failed",
		Error:   err.Error(),
	})
	return err
}

func (r *Runtime[I, R]) fetch(ctx context.Context) (items []I, err error) {
	defer recoverAs(&err, "fetch input")
	items, err = r.stage.FetchInput(ctx, r.desc.BatchSize)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: fetch input")
	}
	if len(items) > r.desc.BatchSize {
		items = items[:r.desc.BatchSize]
	}
	return items, nil
}

func (r *Runtime[I, R]) process(ctx context.Context, item I) (res R, err error) {
	defer recoverAs(&err, "process item")
	return r.stage.Process(ctx, item)
}

func (r *Runtime[I, R]) update(ctx context.Context, results []R) (err error) {
	defer recoverAs(&err, "update output")
	if err := r.stage.UpdateOutput(ctx, results); err != nil {
		return eris.Wrap(err, "pipeline: update output")
	}
	return nil
}

func (r *Runtime[I, R]) handleFailure(ctx context.Context, item I, cause error) (err error) {
	defer recoverAs(&err, "handle failure")
	return r.stage.HandleFailure(ctx, item, cause)
}

func recoverAs(err *error, step string) {
	if p := recover(); p != nil {
		*err = eris.Errorf("pipeline: panic in %s: %v", step, p)
	}
}
