// Package resilience provides retry and circuit breaking for calls to the
// external enrichment APIs.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned while a breaker is rejecting calls.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// BreakerState is the state of a Breaker.
type BreakerState int

// Breaker states.
const (
	Closed BreakerState = iota
	Open
	HalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker stops calling a service after Threshold consecutive transient
// failures and lets one probe through once Cooldown has passed.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
	now      func() time.Time
}

// NewBreaker creates a closed breaker. Non-positive values get defaults of
// 5 failures and 30s.
func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{name: name, threshold: threshold, cooldown: cooldown, now: time.Now}
}

// State returns the current state, moving Open to HalfOpen once the
// cooldown has elapsed.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshLocked()
	return b.state
}

func (b *Breaker) refreshLocked() {
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cooldown {
		b.state = HalfOpen
		b.probing = false
	}
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshLocked()

	switch b.state {
	case Open:
		return eris.Wrapf(ErrCircuitOpen, "%s", b.name)
	case HalfOpen:
		if b.probing {
			return eris.Wrapf(ErrCircuitOpen, "%s: probe in flight", b.name)
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || !IsTransient(err) {
		if b.state != Closed {
			zap.L().Info("circuit closed", zap.String("component", "resilience.breaker"), zap.String("service", b.name))
		}
		b.state = Closed
		b.failures = 0
		b.probing = false
		return
	}

	b.failures++
	if b.state == HalfOpen || b.failures >= b.threshold {
		if b.state != Open {
			zap.L().Warn("circuit opened",
				zap.String("component", "resilience.breaker"),
				zap.String("service", b.name),
				zap.Int("failures", b.failures),
				zap.Error(err),
			)
		}
		b.state = Open
		b.openedAt = b.now()
		b.probing = false
	}
}

// Call runs fn through the breaker. A nil breaker calls fn directly.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	if b == nil {
		return fn(ctx)
	}
	var zero T
	if err := b.allow(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	b.record(err)
	return val, err
}
