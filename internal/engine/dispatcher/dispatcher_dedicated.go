package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/portfolioos/quantd/internal/engine/sidecar"
)

// DedicatedDispatcher serves all requests from a single persistent
// engine. The engine's own restart policy keeps it alive.
type DedicatedDispatcher struct {
	supervisor sidecar.Supervisor
	log        *zap.Logger
}

var _ Dispatcher = (*DedicatedDispatcher)(nil)

type DedicatedDispatcherConfig struct {
	// Engine is the configuration to use for the supervised engine
	Engine sidecar.Config `conf:"engine,squash"`
}

type DedicatedDispatcherParams struct {
	// Config is the config for the dispatcher and the underlying engine
	Config DedicatedDispatcherConfig

	// SupervisorFactory is the factory function to create a new supervisor
	SupervisorFactory SupervisorFactory

	// Log is the logger to use for the dispatcher
	Log *zap.Logger
}

func NewDedicatedDispatcher(params DedicatedDispatcherParams) (Dispatcher, error) {
	if params.SupervisorFactory == nil {
		params.SupervisorFactory = defaultSupervisorFactory
	}

	supervisor, err := params.SupervisorFactory(sidecar.Params{
		Config: params.Config.Engine,
		Log:    params.Log,
	})
	if err != nil {
		return nil, err
	}

	return &DedicatedDispatcher{
		supervisor: supervisor,
		log:        params.Log.Named("dispatcher_dedicated"),
	}, nil
}

func (m *DedicatedDispatcher) Start(ctx context.Context) error {
	m.log.Debug("booting")

	if err := m.supervisor.Start(ctx); err != nil {
		m.log.Error("error booting", zap.Error(err))
		return err
	}

	m.log.Debug("done booting")

	return nil
}

func (m *DedicatedDispatcher) Send(
	ctx context.Context,
	method string,
	params map[string]any,
) (json.RawMessage, error) {
	m.log.Debug("dispatching request", zap.String("method", method))

	res, err := m.supervisor.Send(ctx, method, params)
	if err != nil {
		m.log.Error("error dispatching request", zap.Error(err))
		return nil, fmt.Errorf("error dispatching request: %w", err)
	}

	m.log.Debug("request dispatched")

	return res, nil
}

// Shutdown stops the dispatcher and waits for the engine to finish.
func (m *DedicatedDispatcher) Shutdown(ctx context.Context) error {
	m.log.Debug("shutting down")

	if err := m.supervisor.Stop(ctx); err != nil {
		m.log.Error("error shutting down", zap.Error(err))
		return err
	}

	m.log.Debug("shut down")

	return nil
}

func (m *DedicatedDispatcher) Stats() []sidecar.Stats {
	return []sidecar.Stats{m.supervisor.Stats()}
}
