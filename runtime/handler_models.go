package runtime

import "net/http"

// Request is a transport-agnostic eval request. Both the HTTP server
// and the Lambda event proxy reduce their inputs to this shape before
// handing them to the handler.
type Request struct {
	// Path is the request path.
	Path string

	// Method is the HTTP verb. The engine method being invoked is
	// named in the request body, not here.
	Method string

	// Body is the raw JSON request body.
	Body []byte

	// Header carries the incoming request headers.
	Header http.Header
}

// Response is the transport-agnostic result of handling a Request.
type Response struct {
	// StatusCode is the HTTP status code to respond with.
	StatusCode int

	// Body is the JSON-encoded response body.
	Body []byte

	// Header carries the response headers.
	Header http.Header
}
