// Package stages implements the five candidate enrichment stages on top of
// the pipeline runtime.
package stages

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-profiler/internal/candidate"
	"github.com/sells-group/candidate-profiler/internal/events"
	"github.com/sells-group/candidate-profiler/internal/store"
)

// Stage errors.
var (
	ErrNoHandle = eris.New("stages: no profile handle for candidate")
	ErrNoResume = eris.New("stages: candidate has no résumé")
)

// Result is the outcome of processing one candidate successfully.
type Result struct {
	CandidateID string
	Patch       *candidate.Enrichment
	// Status, when set, replaces the candidate's recruiting status.
	Status candidate.Status
}

// Deps are the collaborators every stage shares.
type Deps struct {
	Store     store.Store
	Publisher events.Publisher
	// Owner identifies this process in claim leases. Defaults to a new UUID.
	Owner string
	Lease time.Duration
}

// Base implements the store-facing half of the stage contract for the stage
// whose target state is state: claiming input, advancing on success and
// applying the failure policy. Concrete stages embed it and add Process.
type Base struct {
	state     candidate.State
	store     store.Store
	publisher events.Publisher
	owner     string
	lease     time.Duration
	now       func() time.Time
	log       *zap.Logger
}

// NewBase creates the shared stage plumbing for state.
func NewBase(state candidate.State, deps Deps) (*Base, error) {
	if _, err := candidate.TransitionFor(state); err != nil {
		return nil, err
	}
	if deps.Store == nil {
		return nil, eris.Errorf("stages: %s: store is required", state)
	}
	pub := deps.Publisher
	if pub == nil {
		pub = events.NopPublisher{}
	}
	owner := deps.Owner
	if owner == "" {
		owner = uuid.NewString()
	}
	lease := deps.Lease
	if lease <= 0 {
		lease = 15 * time.Minute
	}
	return &Base{
		state:     state,
		store:     deps.Store,
		publisher: pub,
		owner:     owner,
		lease:     lease,
		now:       time.Now,
		log: zap.L().With(
			zap.String("component", "stages"),
			zap.String("stage", string(state)),
		),
	}, nil
}

// State returns the target state this stage claims from.
func (b *Base) State() candidate.State { return b.state }

// FetchInput leases up to limit candidates waiting at this stage.
func (b *Base) FetchInput(ctx context.Context, limit int) ([]candidate.Candidate, error) {
	return b.store.ClaimBatch(ctx, b.state, limit, b.owner, b.lease)
}

// UpdateOutput advances each result to the stage's success state. A result
// that cannot be written keeps its state and has its lease released so a
// later cycle claims it again; the cycle reports an error if any write failed.
func (b *Base) UpdateOutput(ctx context.Context, results []Result) error {
	to, err := candidate.NextState(b.state, candidate.Success)
	if err != nil {
		return err
	}

	failed := 0
	var firstErr error
	for _, r := range results {
		err := b.store.Advance(ctx, store.Transition{
			ID:     r.CandidateID,
			From:   b.state,
			To:     to,
			Patch:  r.Patch,
			Status: r.Status,
		})
		switch {
		case err == nil:
			b.publish(ctx, r.CandidateID, candidate.Success, to, "")
		case errors.Is(err, store.ErrStaleState), errors.Is(err, store.ErrNotFound):
			b.log.Warn("candidate moved before result was saved",
				zap.String("candidate_id", r.CandidateID), zap.Error(err))
		default:
			failed++
			if firstErr == nil {
				firstErr = err
			}
			b.log.Error("saving stage result failed",
				zap.String("candidate_id", r.CandidateID), zap.Error(err))
			if rerr := b.store.Release(ctx, r.CandidateID, b.owner); rerr != nil {
				b.log.Warn("lease not released; candidate is claimable once it expires",
					zap.String("candidate_id", r.CandidateID), zap.Error(rerr))
			}
		}
	}
	if failed > 0 {
		return eris.Wrapf(firstErr, "stages: %s: %d of %d results not saved", b.state, failed, len(results))
	}
	return nil
}

// HandleFailure applies the stage's failure policy to one candidate. Items
// interrupted by shutdown are released instead so they are retried later.
func (b *Base) HandleFailure(ctx context.Context, c candidate.Candidate, cause error) error {
	if ctx.Err() != nil && errors.Is(cause, context.Canceled) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return b.store.Release(rctx, c.ID, b.owner)
	}
	return b.fail(ctx, c.ID, cause)
}

func (b *Base) fail(ctx context.Context, id string, cause error) error {
	to, err := candidate.NextState(b.state, candidate.Failure)
	if err != nil {
		return err
	}
	msg := cause.Error()
	err = b.store.Advance(ctx, store.Transition{
		ID:    id,
		From:  b.state,
		To:    to,
		Error: msg,
	})
	if errors.Is(err, store.ErrStaleState) {
		b.log.Warn("candidate moved before failure was recorded", zap.String("candidate_id", id))
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "stages: %s: record failure for %s", b.state, id)
	}
	b.publish(ctx, id, candidate.Failure, to, msg)
	return nil
}

func (b *Base) publish(ctx context.Context, id string, outcome candidate.Outcome, to candidate.State, msg string) {
	ev := events.Event{
		CandidateID: id,
		Stage:       string(b.state),
		Outcome:     string(outcome),
		From:        string(b.state),
		To:          string(to),
		Error:       msg,
		At:          b.now().UTC(),
	}
	if err := b.publisher.Publish(ctx, ev); err != nil {
		b.log.Warn("publish transition event failed", zap.String("candidate_id", id), zap.Error(err))
	}
}
