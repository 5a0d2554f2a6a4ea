package standalone

import "github.com/portfolioos/quantd/internal/server"

type Config struct {
	// HttpConfig is the listener configuration for the HTTP server.
	// It is built from cli flags rather than the conf layers.
	HttpConfig server.HttpConfig
}
