package stages

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/candidate-profiler/internal/candidate"
	"github.com/sells-group/candidate-profiler/internal/events"
	"github.com/sells-group/candidate-profiler/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "stages.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedCandidate(t *testing.T, st store.Store, c candidate.Candidate) string {
	t.Helper()
	if c.Name == "" {
		c.Name = "Ada Lovelace"
	}
	require.NoError(t, st.CreateCandidate(context.Background(), &c))
	return c.ID
}

func loadCandidate(t *testing.T, st store.Store, id string) *candidate.Candidate {
	t.Helper()
	c, err := st.GetCandidate(context.Background(), id)
	require.NoError(t, err)
	return c
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) all() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

func testDeps(st store.Store, pub events.Publisher) Deps {
	return Deps{Store: st, Publisher: pub, Owner: "test-owner", Lease: time.Minute}
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
