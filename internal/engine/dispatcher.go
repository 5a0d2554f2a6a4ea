// Package engine wires the supervised quant engine into the rest of
// the daemon. It selects between a single dedicated engine and a pool
// of engines based on configuration.
package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/portfolioos/quantd/internal/engine/dispatcher"
	"github.com/portfolioos/quantd/internal/engine/sidecar"
)

type Dispatcher = dispatcher.Dispatcher

type Config struct {
	// Pooled serves requests from a pool of engines instead of a
	// single persistent one.
	Pooled bool `conf:"pooled"`

	// MaxWorkers is the maximum number of concurrent engines
	// when employing a pooled dispatcher.
	MaxWorkers int `conf:"max_workers"`

	// Supervisor is the configuration to use for the engine supervisor
	Supervisor sidecar.Config `conf:",squash"`
}

type Params struct {
	// Context is the context to use for the dispatcher
	Context context.Context

	// Config is the config for the dispatcher and the underlying engines
	Config Config

	// Log is the logger to use for the dispatcher
	Log *zap.Logger
}

func NewDispatcher(params Params) (dispatcher.Dispatcher, error) {
	if params.Config.Pooled {
		return dispatcher.NewPooledDispatcher(
			dispatcher.PooledDispatcherParams{
				Config: dispatcher.PooledDispatcherConfig{
					Engine:     params.Config.Supervisor,
					MaxWorkers: params.Config.MaxWorkers,
				},
				Context: params.Context,
				Log:     params.Log,
			},
		)
	}

	return dispatcher.NewDedicatedDispatcher(
		dispatcher.DedicatedDispatcherParams{
			Config: dispatcher.DedicatedDispatcherConfig{
				Engine: params.Config.Supervisor,
			},
			Log: params.Log,
		},
	)
}
