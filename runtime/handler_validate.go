package runtime

import (
	"errors"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/portfolioos/quantd/models"
	"github.com/portfolioos/quantd/runtime/schema"
)

// validationError is an error that occurs during validation.
type validationError struct {
	Method models.Method
	Result *gojsonschema.Result
}

// newValidationError creates a new validation error.
func newValidationError(method models.Method, result *gojsonschema.Result) *validationError {
	return &validationError{
		Method: method,
		Result: result,
	}
}

func (e *validationError) Error() string {
	return "invalid params: " + strings.Join(e.details(), "; ")
}

// details lists the individual schema violations.
func (e *validationError) details() []string {
	errs := e.Result.Errors()

	details := make([]string, 0, len(errs))
	for _, desc := range errs {
		details = append(details, desc.String())
	}

	return details
}

// validate validates the params against the schema for the given method.
func (h *RuntimeHandler) validate(
	method models.Method,
	params map[string]any,
) error {
	log := h.log.With(zap.String("engine_method", method.String()))

	if params == nil {
		// a request without params validates like an empty object
		params = map[string]any{}
	}

	res, err := h.schema.Validate(method, params)
	if errors.Is(err, schema.ErrSchemaNotFound) {
		// every dispatchable method has an embedded schema, a miss here
		// is a host bug and not the caller's fault
		log.Error("no schema for method", zap.Error(err))
		return ErrSchemaNotFound
	}
	if err != nil {
		log.Debug("validation failed", zap.Error(err))
		return ErrValidationFailed
	}

	if res.Valid() {
		return nil
	}

	log.Debug("invalid params", zap.Any("errors", res.Errors()))

	return newValidationError(method, res)
}
