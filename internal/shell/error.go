package shell

import "fmt"

// ExitError carries the process exit code the shell finished with.
// The cli layer unwraps it to decide the exit code of the process.
type ExitError struct {
	ExitCode int
}

func NewExitError(exitCode int) *ExitError {
	return &ExitError{ExitCode: exitCode}
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("shell exited with %d", e.ExitCode)
}
