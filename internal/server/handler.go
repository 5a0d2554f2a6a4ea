package server

import (
	"net/http"

	"go.uber.org/fx"
)

// HttpHandler is a route contributed to the server's mux.
type HttpHandler struct {
	// Pattern is the mux pattern the handler is mounted at.
	Pattern string

	// Handler serves requests matching the pattern.
	Handler http.Handler
}

type HttpHandlerResult struct {
	fx.Out

	Handler *HttpHandler `group:"handlers"`
}

// AsHttpHandler wraps a handler for the "handlers" value group. Both
// the HTTP server and the Lambda event proxy collect the group into
// their mux.
func AsHttpHandler(pattern string, handler http.Handler) HttpHandlerResult {
	return HttpHandlerResult{
		Handler: &HttpHandler{
			Pattern: pattern,
			Handler: handler,
		},
	}
}
