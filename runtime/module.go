package runtime

import "go.uber.org/fx"

// Module wires the engine runtime and its request handler. The
// runtime starts and stops with the app lifecycle.
func Module(config Config) fx.Option {
	return fx.Module(
		"runtime",

		// provide runtime config
		fx.Supply(config),

		// provide the runtime, tied to the app lifecycle
		fx.Provide(NewLifecycleRuntime),

		// provide the request handler
		fx.Provide(NewRuntimeHandler),
	)
}
