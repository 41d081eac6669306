// Package status tracks the latest observable state of each named pipeline.
package status

import (
	"sync"
	"time"
)

// Status is the phase a pipeline last reported.
type Status string

// Pipeline statuses.
const (
	Idle                Status = "idle"
	Running             Status = "running"
	ProcessingStarted   Status = "processing_started"
	ProcessingCompleted Status = "processing_completed"
	Error               Status = "error"
	Stopped             Status = "stopped"
)

// Detail keys recorded by pipeline runtimes.
const (
	DetailInputRecords  = "inputRecords"
	DetailOutputRecords = "outputRecords"
	DetailFailedRecords = "failedRecords"
	DetailDurationMs    = "durationMs"
)

// State is the point-in-time record for one pipeline.
type State struct {
	Status       Status         `json:"status"`
	Message      string         `json:"message"`
	ErrorMessage string         `json:"error_message,omitempty"`
	LastUpdated  time.Time      `json:"last_updated"`
	Details      map[string]any `json:"details"`
}

// Update is the set of fields a caller supplies when recording a state.
type Update struct {
	Message string
	Error   string
	Details map[string]any
}

// Registry is a concurrency-safe map from pipeline name to its latest State.
// The zero value is not usable; construct with NewRegistry.
type Registry struct {
	mu     sync.Mutex
	states map[string]State
	now    func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		states: make(map[string]State),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Set overwrites the record for name with a fresh timestamp.
// The error text is kept only when s is Error.
func (r *Registry) Set(name string, s Status, u Update) {
	st := State{
		Status:  s,
		Message: u.Message,
		Details: copyDetails(u.Details),
	}
	if s == Error {
		st.ErrorMessage = u.Error
	}

	r.mu.Lock()
	st.LastUpdated = r.now()
	r.states[name] = st
	r.mu.Unlock()
}

// Get returns a copy of the state for name.
func (r *Registry) Get(name string) (State, bool) {
	r.mu.Lock()
	st, ok := r.states[name]
	r.mu.Unlock()
	if !ok {
		return State{}, false
	}
	st.Details = copyDetails(st.Details)
	return st, true
}

// All returns a snapshot of every recorded state.
func (r *Registry) All() map[string]State {
	r.mu.Lock()
	out := make(map[string]State, len(r.states))
	for k, v := range r.states {
		out[k] = v
	}
	r.mu.Unlock()

	for k, v := range out {
		v.Details = copyDetails(v.Details)
		out[k] = v
	}
	return out
}

// Names returns the recorded pipeline names.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.states))
	for k := range r.states {
		names = append(names, k)
	}
	return names
}

func copyDetails(d map[string]any) map[string]any {
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
