package util

import (
	"os/exec"
	"strconv"
)

// IsProcessAlive reports whether a process with the given pid exists.
// It shells out to ps, which is portable across the unix platforms we
// run tests on.
func IsProcessAlive(pid int) bool {
	cmd := exec.Command("ps", "-p", strconv.Itoa(pid))

	err := cmd.Run()
	if err, ok := err.(*exec.ExitError); ok {
		// ps exits 0 if the process exists, non-zero otherwise
		return err.ProcessState.ExitCode() == 0
	}
	if err != nil {
		return false
	}

	return true
}
