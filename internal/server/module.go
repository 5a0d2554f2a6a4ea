package server

import "go.uber.org/fx"

// Module provides the HTTP server, started with the app lifecycle.
func Module(config HttpConfig) fx.Option {
	return fx.Module("server",
		// provide server config
		fx.Supply(config),
		// provide the server, tied to the app lifecycle
		fx.Provide(NewLifecycleServer),
		// instantiate the server eagerly
		fx.Invoke(func(*HttpServer) {}),
	)
}
