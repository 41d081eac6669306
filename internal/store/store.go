// Package store persists candidates, their enrichment state and the jobs
// they apply to.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/candidate-profiler/internal/candidate"
)

// Store errors.
var (
	ErrNotFound     = eris.New("store: not found")
	ErrStaleState   = eris.New("store: enrichment state changed concurrently")
	ErrNotRetryable = eris.New("store: candidate is not in a failed state")
)

// Store is the persistence boundary for candidates and jobs.
type Store interface {
	CreateCandidate(ctx context.Context, c *candidate.Candidate) error
	GetCandidate(ctx context.Context, id string) (*candidate.Candidate, error)
	ListCandidates(ctx context.Context, filter CandidateFilter) ([]candidate.Candidate, error)
	CountByState(ctx context.Context) (map[candidate.State]int, error)

	// ClaimBatch leases up to limit candidates waiting in state to owner.
	// Candidates with a live lease held by anyone are skipped. The
	// enrichment state itself is not changed.
	ClaimBatch(ctx context.Context, state candidate.State, limit int, owner string, lease time.Duration) ([]candidate.Candidate, error)

	// Advance moves a candidate from t.From to t.To and releases its lease.
	// It returns ErrStaleState if the stored state is no longer t.From.
	Advance(ctx context.Context, t Transition) error

	// Release drops owner's lease without changing state.
	Release(ctx context.Context, id, owner string) error

	// Retry moves a failed candidate back to the stage it failed in.
	Retry(ctx context.Context, id string) (candidate.State, error)

	UpsertJob(ctx context.Context, j *candidate.Job) error
	GetJob(ctx context.Context, id string) (*candidate.Job, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Transition is a conditional enrichment-state write.
type Transition struct {
	ID    string
	From  candidate.State
	To    candidate.State
	Patch *candidate.Enrichment
	// Status, when set, replaces the candidate's recruiting status.
	Status candidate.Status
	// Error is recorded as the candidate's last error. Empty clears it.
	Error string
}

// CandidateFilter controls candidate listing.
type CandidateFilter struct {
	State  candidate.State
	JobID  string
	Limit  int
	Offset int
}

func (f CandidateFilter) limit() int {
	if f.Limit <= 0 {
		return 100
	}
	return f.Limit
}

// patchJSON encodes only the sections set on p.
func patchJSON(p *candidate.Enrichment) ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal enrichment patch")
	}
	return b, nil
}

func retryTarget(current candidate.State) (candidate.State, error) {
	target, ok := current.FailedStage()
	if !ok {
		return "", eris.Wrapf(ErrNotRetryable, "state %s", current)
	}
	return target, nil
}

func prepareCandidate(c *candidate.Candidate, newID func() string, now time.Time) {
	if c.ID == "" {
		c.ID = newID()
	}
	if c.Status == "" {
		c.Status = candidate.Applied
	}
	if c.State == "" {
		c.State = candidate.ExtractText
	}
	c.CreatedAt = now
	c.UpdatedAt = now
}
