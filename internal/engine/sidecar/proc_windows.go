package sidecar

import "os/exec"

func (p *proc) sendKillSignal(_ bool) error {
	return p.cmd.Process.Kill()
}

func initCmd(cmd *exec.Cmd) {
	// No-op on Windows.
}
