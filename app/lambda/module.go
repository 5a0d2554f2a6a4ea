package lambda

import (
	"go.uber.org/fx"

	"github.com/portfolioos/quantd/handler"
	"github.com/portfolioos/quantd/util/logging"
)

// Module exposes the eval API through the AWS Lambda runtime instead
// of a listening socket.
func Module(config Config) fx.Option {
	return fx.Module(
		"lambda",
		// provide lambda config
		fx.Supply(config),
		// rename logger for module
		logging.DecorateLogger("lambda"),
		// provide handlers
		handler.Module(),
		// provide the runtime interface client
		fx.Provide(NewLifecycleProxy),
		// invoke the proxy
		fx.Invoke(func(*EventProxy) {}),
	)
}
