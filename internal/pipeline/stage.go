package pipeline

import (
	"context"
	"time"
)

// Stage is the work a runtime drives on every cycle. I is the work item
// fetched from the store and R is the result of processing one item.
type Stage[I, R any] interface {
	// FetchInput returns at most limit items waiting at this stage.
	FetchInput(ctx context.Context, limit int) ([]I, error)

	// Process enriches one item. It must not write shared state; the
	// result is handed to UpdateOutput.
	Process(ctx context.Context, item I) (R, error)

	// UpdateOutput persists the successful results of one cycle. Items that
	// failed in Process are absent from results.
	UpdateOutput(ctx context.Context, results []R) error

	// HandleFailure applies the stage's failure policy to one item. Errors
	// are logged by the runtime and otherwise ignored.
	HandleFailure(ctx context.Context, item I, cause error) error
}

// Runner is the type-erased control surface of a runtime.
type Runner interface {
	Name() string
	Descriptor() Descriptor
	Start() error
	Stop(timeout time.Duration)
	RunOnce(ctx context.Context) error
	Running() bool
}
