package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/candidate-profiler/internal/candidate"
	"github.com/sells-group/candidate-profiler/internal/status"
)

// Snapshot is a point-in-time view of pipeline and candidate health.
type Snapshot struct {
	Pipelines        map[string]status.State `json:"pipelines"`
	Candidates       map[candidate.State]int `json:"candidates,omitempty"`
	FailedCandidates int                     `json:"failed_candidates"`
	CollectedAt      time.Time               `json:"collected_at"`
}

// StateCounter counts candidates per enrichment state.
type StateCounter interface {
	CountByState(ctx context.Context) (map[candidate.State]int, error)
}

// Collector gathers snapshots from the status registry and the store.
type Collector struct {
	registry *status.Registry
	counter  StateCounter
}

// NewCollector creates a collector. counter may be nil, in which case
// snapshots carry pipeline states only.
func NewCollector(registry *status.Registry, counter StateCounter) *Collector {
	return &Collector{registry: registry, counter: counter}
}

// Collect takes a snapshot.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Pipelines:   c.registry.All(),
		CollectedAt: time.Now().UTC(),
	}
	if c.counter == nil {
		return snap, nil
	}

	counts, err := c.counter.CountByState(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count candidates")
	}
	snap.Candidates = counts
	for st, n := range counts {
		if st.IsFailed() {
			snap.FailedCandidates += n
		}
	}
	return snap, nil
}
