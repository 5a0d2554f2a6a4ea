package sidecar

import (
	"encoding/json"
	"errors"
	"fmt"
)

// request is the envelope written to the engine's stdin, one JSON
// object per line.
type request struct {
	ID     string         `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

// response is the envelope read from the engine's stdout. Exactly one
// of Result and Error is expected to be set.
type response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *EngineError    `json:"error,omitempty"`
}

var errMissingID = errors.New("response has no id")

// encodeRequest marshals a request to a single newline-terminated
// JSON line. json.Marshal escapes newlines inside string values, so
// the result never spans more than one line.
func encodeRequest(req request) ([]byte, error) {
	buf, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	return append(buf, '\n'), nil
}

// decodeResponse parses a single line into a response envelope. A
// response without an id cannot be correlated and is rejected here.
// A response carrying neither result nor error is treated as a null
// result, matching the engine's lenient output contract.
func decodeResponse(line []byte) (response, error) {
	var res response

	if err := json.Unmarshal(line, &res); err != nil {
		return res, fmt.Errorf("failed to decode response: %w", err)
	}

	if res.ID == "" {
		return res, errMissingID
	}

	return res, nil
}
