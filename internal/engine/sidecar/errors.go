package sidecar

import "errors"

var (
	// ErrNotRunning is returned when a request is submitted while the
	// supervisor is stopped, was never started, or has permanently
	// failed after exhausting its restart budget.
	ErrNotRunning = errors.New("engine not running")

	// ErrRequestTimeout is returned when the engine does not reply to
	// a request within its timeout. The request id is abandoned and a
	// late reply is dropped.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrProcessExited is returned for requests that were pending or
	// queued when the engine process died.
	ErrProcessExited = errors.New("engine process exited")

	// ErrKillTimeout is returned when the process does not exit even
	// after receiving SIGKILL.
	ErrKillTimeout = errors.New("kill timeout")
)

// EngineError is an error reply sent by the engine itself. Message is
// the human-readable error text, Traceback optionally carries the
// engine-side stack trace for diagnostics.
type EngineError struct {
	Message   string `json:"message"`
	Traceback string `json:"traceback,omitempty"`
}

func (e *EngineError) Error() string {
	return e.Message
}
