package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/portfolioos/quantd/config"
	"github.com/portfolioos/quantd/runtime"
)

// maxRequestBytes caps inbound eval payloads. Reply lines from the
// engine are capped by the engine config.
const maxRequestBytes = 4 << 20

type EvalHandlerParams struct {
	fx.In

	Handler runtime.Handler
	Config  config.Config
	Log     *zap.Logger
}

func NewEvalHandler(params EvalHandlerParams) *EvalHandler {
	return &EvalHandler{
		handler: params.Handler,
		config:  params.Config,
		log:     params.Log,
	}
}

// EvalHandler exposes the runtime handler over HTTP. It owns the
// transport concerns, auth and body framing, and leaves request
// semantics to the runtime.
type EvalHandler struct {
	handler runtime.Handler
	config  config.Config
	log     *zap.Logger
}

func (h *EvalHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
	)

	// Check for authorization
	if h.config.Auth.ApiKey != "" && r.Header.Get("X-API-Key") != h.config.Auth.ApiKey {
		log.Debug("unauthorized request")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			log.Debug("request body too large", zap.Int64("limit", maxBytesErr.Limit))
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}

		log.Debug("failed to read body", zap.Error(err))
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	request := runtime.Request{
		Path:   r.URL.Path,
		Method: r.Method,
		Header: r.Header,
		Body:   body,
	}

	// Handle the request
	start := time.Now()
	response := h.handler.Handle(r.Context(), request)

	log.Debug("request handled",
		zap.Int("status", response.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	// Map response headers
	for k, v := range response.Header {
		for _, vv := range v {
			w.Header().Add(k, vv)
		}
	}

	// Write response headers and status code
	w.WriteHeader(response.StatusCode)

	// Write response body
	if _, err := w.Write(response.Body); err != nil {
		log.Debug("failed to write response", zap.Error(err))
	}
}
