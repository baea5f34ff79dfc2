package connectors

import (
	"context"
	"fmt"

	"github.com/piotr-liszka/open-dev-activity/internal/domain"
)

// Connector pulls raw events from one upstream source for a sync window.
// Implementations fetch entities touched inside the window and return the
// full event history of each touched entity; windowing happens downstream.
type Connector interface {
	Name() string
	Fetch(ctx context.Context, window domain.Window) ([]domain.RawEvent, error)
}

// SourceError wraps a connector failure with the source name so the
// orchestrator can report per-source outcomes.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
