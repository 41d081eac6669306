package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Supervisor errors.
var (
	ErrDuplicateName   = eris.New("pipeline: duplicate pipeline name")
	ErrUnknownPipeline = eris.New("pipeline: unknown pipeline")
)

// Supervisor owns the named runtimes of a process and starts and stops
// them together. Runtimes are kept in registration order.
type Supervisor struct {
	mu      sync.RWMutex
	runners map[string]Runner
	order   []string
}

// NewSupervisor creates an empty supervisor.
func NewSupervisor() *Supervisor {
	return &Supervisor{runners: make(map[string]Runner)}
}

// Register adds a runtime. Names must be unique.
func (s *Supervisor) Register(r Runner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := r.Name()
	if _, ok := s.runners[name]; ok {
		return eris.Wrapf(ErrDuplicateName, "register %q", name)
	}
	s.runners[name] = r
	s.order = append(s.order, name)
	return nil
}

// Get returns the runtime registered under name.
func (s *Supervisor) Get(name string) (Runner, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runners[name]
	return r, ok
}

// Names returns the registered names in registration order.
func (s *Supervisor) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Supervisor) all() []Runner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Runner, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.runners[name])
	}
	return out
}

// StartAll starts every runtime. A failure is logged and does not prevent
// the others from starting. It returns the number started.
func (s *Supervisor) StartAll() int {
	log := zap.L().With(zap.String("component", "pipeline.supervisor"))
	runners := s.all()
	started := 0
	for _, r := range runners {
		if err := r.Start(); err != nil {
			log.Error("failed to start pipeline", zap.String("pipeline", r.Name()), zap.Error(err))
			continue
		}
		started++
	}
	log.Info("pipelines started", zap.Int("started", started), zap.Int("registered", len(runners)))
	return started
}

// StopAll stops every runtime in parallel, each bounded by timeout, so the
// call returns in roughly one timeout regardless of how many are registered.
func (s *Supervisor) StopAll(timeout time.Duration) {
	log := zap.L().With(zap.String("component", "pipeline.supervisor"))

	var g errgroup.Group
	for _, r := range s.all() {
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					log.Error("panic while stopping pipeline", zap.String("pipeline", r.Name()), zap.Any("panic", p))
				}
			}()
			r.Stop(timeout)
			return nil
		})
	}
	_ = g.Wait()
	log.Info("pipelines stopped")
}

// Trigger runs one out-of-schedule cycle of the named runtime in the
// background. The cycle is not tied to ctx's cancellation.
func (s *Supervisor) Trigger(ctx context.Context, name string) error {
	r, ok := s.Get(name)
	if !ok {
		return eris.Wrapf(ErrUnknownPipeline, "trigger %q", name)
	}
	go func() {
		if err := r.RunOnce(context.WithoutCancel(ctx)); err != nil {
			zap.L().Error("triggered cycle failed",
				zap.String("component", "pipeline.supervisor"),
				zap.String("pipeline", name),
				zap.Error(err),
			)
		}
	}()
	return nil
}
