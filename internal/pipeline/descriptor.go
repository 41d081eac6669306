package pipeline

import (
	"time"

	"github.com/rotisserie/eris"
)

// Descriptor identifies and tunes one pipeline runtime. It is immutable
// once the runtime is constructed.
type Descriptor struct {
	Name            string
	BatchSize       int
	ProcessInterval time.Duration
	IdleBackoff     time.Duration
}

// Validate reports the first invalid field.
func (d Descriptor) Validate() error {
	switch {
	case d.Name == "":
		return eris.New("pipeline: descriptor name is required")
	case d.BatchSize <= 0:
		return eris.Errorf("pipeline: %s: batch size must be positive, got %d", d.Name, d.BatchSize)
	case d.ProcessInterval <= 0:
		return eris.Errorf("pipeline: %s: process interval must be positive, got %s", d.Name, d.ProcessInterval)
	case d.IdleBackoff <= 0:
		return eris.Errorf("pipeline: %s: idle backoff must be positive, got %s", d.Name, d.IdleBackoff)
	}
	return nil
}
