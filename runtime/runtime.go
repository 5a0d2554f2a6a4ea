package runtime

import (
	"context"
	"encoding/json"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/portfolioos/quantd/internal/engine"
	"github.com/portfolioos/quantd/internal/engine/sidecar"
)

// Runtime is the interface for a runtime.
type Runtime interface {
	Handle(context.Context, EvalRequest) (json.RawMessage, error)

	Start(context.Context) error

	Shutdown(context.Context) error

	// Stats reports the lifecycle state of the underlying engines.
	Stats() []sidecar.Stats
}

// Params is the runtime-specific params type.
type Params = engine.Params

// Dispatcher is the runtime-specific dispatcher type.
type Dispatcher = engine.Dispatcher

// Config is the runtime-specific type for the config.
type Config = engine.Config

// EngineRuntime is a runtime backed by the engine dispatcher.
type EngineRuntime struct {
	dispatcher Dispatcher

	log *zap.Logger
}

var _ Runtime = (*EngineRuntime)(nil)

// RuntimeParams defines the dependencies for the runtime.
type RuntimeParams struct {
	fx.In

	// Context is the context to use for the underlying runtime
	Context context.Context

	// Config is the config for the underlying engine dispatcher
	Config Config

	// Log is the logger to use for the runtime
	Log *zap.Logger
}

// NewRuntime creates a new runtime.
func NewRuntime(params RuntimeParams) (Runtime, error) {
	dispatcher, err := engine.NewDispatcher(Params{
		Context: params.Context,
		Config:  params.Config,
		Log:     params.Log,
	})
	if err != nil {
		return nil, err
	}

	return &EngineRuntime{
		dispatcher: dispatcher,
		log:        params.Log.Named("runtime"),
	}, nil
}

// NewLifecycleRuntime creates a new runtime whose engines are started
// and stopped with the fx lifecycle.
func NewLifecycleRuntime(params RuntimeParams, lc fx.Lifecycle) (Runtime, error) {
	r, err := NewRuntime(params)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return r.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return r.Shutdown(ctx)
		},
	})

	return r, nil
}

func (r *EngineRuntime) Start(ctx context.Context) error {
	return r.dispatcher.Start(ctx)
}

func (r *EngineRuntime) Handle(
	ctx context.Context,
	request EvalRequest,
) (json.RawMessage, error) {
	return r.dispatcher.Send(ctx, request.Method.String(), request.Params)
}

func (r *EngineRuntime) Shutdown(ctx context.Context) error {
	return r.dispatcher.Shutdown(ctx)
}

func (r *EngineRuntime) Stats() []sidecar.Stats {
	return r.dispatcher.Stats()
}
