package standalone

import (
	"go.uber.org/fx"

	"github.com/portfolioos/quantd/handler"
	"github.com/portfolioos/quantd/internal/server"
	"github.com/portfolioos/quantd/util/logging"
)

// Module exposes the eval API over a listening HTTP server.
func Module(config Config) fx.Option {
	return fx.Module(
		"serve",
		// rename logger for module
		logging.DecorateLogger("serve"),
		// provide handlers
		handler.Module(),
		// provide the http server
		server.Module(config.HttpConfig),
	)
}
