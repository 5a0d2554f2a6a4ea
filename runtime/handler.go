package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/portfolioos/quantd/models"
	"github.com/portfolioos/quantd/runtime/schema"
)

var (
	ErrInvalidMethod    = errors.New("invalid method")
	ErrInvalidBody      = errors.New("invalid request body")
	ErrMissingCommand   = errors.New("missing engine method")
	ErrCommandNotFound  = errors.New("unknown engine method")
	ErrSchemaNotFound   = errors.New("schema not found")
	ErrValidationFailed = errors.New("validation failed")
)

// HandlerParams defines the dependencies for the runtime handler.
type HandlerParams struct {
	fx.In

	Runtime Runtime

	Log *zap.Logger
}

// Handler is the interface for handling runtime requests.
type Handler interface {
	Handle(ctx context.Context, request Request) Response
}

// RuntimeHandler parses evaluation requests, validates them, and
// hands them to the runtime.
type RuntimeHandler struct {
	runtime Runtime

	schema *schema.Schema

	log *zap.Logger
}

// NewRuntimeHandler creates a new runtime handler.
func NewRuntimeHandler(params HandlerParams) (Handler, error) {
	requestSchema, err := schema.NewRequestSchema()
	if err != nil {
		return nil, err
	}

	return &RuntimeHandler{
		runtime: params.Runtime,
		schema:  requestSchema,
		log:     params.Log,
	}, nil
}

// evalEnvelope is the wire shape of an evaluation request body.
type evalEnvelope struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

// Handle handles a runtime request.
func (h *RuntimeHandler) Handle(ctx context.Context, req Request) Response {
	log := h.log.With(
		zap.String("path", req.Path),
		zap.String("method", req.Method),
	)

	if req.Method != http.MethodPost {
		log.Debug("invalid method")
		return newErrorResponse(ErrInvalidMethod)
	}

	var envelope evalEnvelope
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		log.Debug("invalid request body", zap.Error(err))
		return newErrorResponse(ErrInvalidBody)
	}

	if envelope.Method == "" {
		log.Debug("missing engine method")
		return newErrorResponse(ErrMissingCommand)
	}

	log = log.With(zap.String("engine_method", envelope.Method))

	// Parse the raw method string into a Method type
	method, ok := models.ParseMethod(envelope.Method)
	if !ok {
		log.Debug("unknown engine method")
		return newErrorResponse(ErrCommandNotFound)
	}

	// Validate the request params against the method's schema
	if err := h.validate(method, envelope.Params); err != nil {
		return newErrorResponse(err)
	}

	// Let the runtime handle the evaluation request
	res, err := h.runtime.Handle(ctx, NewEvalRequest(method, envelope.Params))
	if err != nil {
		log.Debug("failed to handle request", zap.Error(err))
		return newErrorResponse(err)
	}

	// Return the raw engine result
	return newResponse(http.StatusOK, res)
}
