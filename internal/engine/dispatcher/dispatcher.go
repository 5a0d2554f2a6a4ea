package dispatcher

import (
	"context"
	"encoding/json"

	"github.com/portfolioos/quantd/internal/engine/sidecar"
)

type Dispatcher interface {
	// Send dispatches a request to an engine and returns the result
	Send(ctx context.Context, method string, params map[string]any) (json.RawMessage, error)

	// Start starts the dispatcher and its engines
	Start(context.Context) error

	// Shutdown stops the dispatcher and waits for all engines to finish.
	Shutdown(context.Context) error

	// Stats reports the lifecycle state of every live engine.
	Stats() []sidecar.Stats
}

type SupervisorFactory func(sidecar.Params) (sidecar.Supervisor, error)

func defaultSupervisorFactory(params sidecar.Params) (sidecar.Supervisor, error) {
	s, err := sidecar.New(params)
	if err != nil {
		return nil, err
	}

	return s, nil
}
