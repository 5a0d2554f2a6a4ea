package runtime

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/portfolioos/quantd/internal/engine/sidecar"
)

// wellKnownErrors maps handler and engine lifecycle errors to status
// codes. Errors may arrive wrapped, so lookups go through errors.Is.
var wellKnownErrors = map[error]int{
	ErrInvalidMethod:          http.StatusMethodNotAllowed,
	ErrInvalidBody:            http.StatusBadRequest,
	ErrMissingCommand:         http.StatusBadRequest,
	ErrCommandNotFound:        http.StatusNotFound,
	ErrSchemaNotFound:         http.StatusInternalServerError,
	ErrValidationFailed:       http.StatusBadRequest,
	sidecar.ErrRequestTimeout: http.StatusGatewayTimeout,
	sidecar.ErrNotRunning:     http.StatusServiceUnavailable,
	sidecar.ErrProcessExited:  http.StatusBadGateway,
}

// getErrorStatusCode returns the status code for the given error.
func getErrorStatusCode(err error) int {
	for wellKnown, status := range wellKnownErrors {
		if errors.Is(err, wellKnown) {
			return status
		}
	}

	var engineErr *sidecar.EngineError
	if errors.As(err, &engineErr) {
		return http.StatusUnprocessableEntity
	}

	var valErr *validationError
	if errors.As(err, &valErr) {
		return http.StatusUnprocessableEntity
	}

	return http.StatusInternalServerError
}

type responseError struct {
	Message   string   `json:"message"`
	Traceback string   `json:"traceback,omitempty"`
	Details   []string `json:"details,omitempty"`
}

// newErrorResponse creates a new error response.
func newErrorResponse(err error) Response {
	statusCode := getErrorStatusCode(err)

	responseErr := responseError{
		Message: err.Error(),
	}

	var engineErr *sidecar.EngineError
	if errors.As(err, &engineErr) {
		// surface the engine's own message and traceback
		responseErr.Message = engineErr.Message
		responseErr.Traceback = engineErr.Traceback
	}

	var valErr *validationError
	if errors.As(err, &valErr) {
		responseErr.Message = "validation failed"
		responseErr.Details = valErr.details()
	}

	body, err := json.Marshal(struct {
		Error responseError `json:"error"`
	}{
		Error: responseErr,
	})
	if err != nil {
		return Response{StatusCode: http.StatusInternalServerError}
	}

	return newResponse(statusCode, body)
}

// newResponse creates a new response.
func newResponse(status int, body []byte) Response {
	header := make(http.Header)
	header.Add("Content-Type", "application/json")

	return Response{
		StatusCode: status,
		Body:       body,
		Header:     header,
	}
}
