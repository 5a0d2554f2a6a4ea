package runtime

import (
	"github.com/portfolioos/quantd/models"
)

// EvalRequest is a single analytics request bound for the engine.
type EvalRequest struct {
	Method models.Method  `json:"method"`
	Params map[string]any `json:"params"`
}

func NewEvalRequest(
	method models.Method,
	params map[string]any,
) EvalRequest {
	return EvalRequest{
		Method: method,
		Params: params,
	}
}
