package sidecar

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// killWaitTimeout bounds the wait for a process to disappear after
// SIGKILL. If this expires something is seriously wrong.
const killWaitTimeout = 5 * time.Second

// ExitEvent describes how an engine process exited.
type ExitEvent struct {
	// Code is the exit code of the process, if it exited on its own.
	Code *int

	// Signal is the signal that terminated the process, if any.
	Signal *int

	// Stderr is the tail of the process's stderr output.
	Stderr string
}

// Process is the supervisor's view of a running engine process.
type Process interface {
	Pid() int
	StdinPipe() io.WriteCloser
	StdoutPipe() io.ReadCloser
	StderrPipe() io.ReadCloser

	// Done is closed once the process has exited.
	Done() <-chan struct{}

	// ExitErr returns the error reported by the process on exit.
	// Only valid after Done is closed.
	ExitErr() error

	// Terminate stops the process: close stdin, SIGTERM, and after
	// the grace period SIGKILL. It blocks until the process is gone.
	Terminate(grace time.Duration) error
}

type proc struct {
	pid int
	cmd *exec.Cmd

	done    chan struct{}
	waitErr error

	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	closeStdin sync.Once

	log *zap.Logger
}

var _ Process = (*proc)(nil)

// startProc spawns the engine process with stdin, stdout and stderr
// pipes attached, in its own process group.
func startProc(config Config, log *zap.Logger) (*proc, error) {
	cmd := exec.Command(config.Cmd, config.Args...)

	if len(config.Env) > 0 {
		cmd.Env = append(os.Environ(), config.Env...)
	}

	if config.Cwd != "" {
		cmd.Dir = config.Cwd
	}

	// plain os pipes instead of cmd.StdinPipe and friends: Wait closes
	// those the moment the process exits, racing the readers against
	// output still buffered in the pipe
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return nil, err
	}

	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		return nil, err
	}

	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	initCmd(cmd)

	if err := cmd.Start(); err != nil {
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return nil, err
	}

	// the child holds its own copies of these ends now, drop ours so
	// the readers see EOF once the process is gone
	stdinR.Close()
	stdoutW.Close()
	stderrW.Close()

	log = log.Named("proc").With(zap.Int("pid", cmd.Process.Pid))

	process := &proc{
		pid:    cmd.Process.Pid,
		cmd:    cmd,
		done:   make(chan struct{}),
		stdin:  stdinW,
		stdout: stdoutR,
		stderr: stderrR,
		log:    log,
	}

	go func() {
		// block until the process exits
		process.waitErr = cmd.Wait()
		process.shutStdin()
		close(process.done)
	}()

	return process, nil
}

func (p *proc) Pid() int {
	return p.pid
}

func (p *proc) StdinPipe() io.WriteCloser {
	return p.stdin
}

func (p *proc) StdoutPipe() io.ReadCloser {
	return p.stdout
}

func (p *proc) StderrPipe() io.ReadCloser {
	return p.stderr
}

func (p *proc) Done() <-chan struct{} {
	return p.done
}

func (p *proc) ExitErr() error {
	return p.waitErr
}

func (p *proc) Terminate(grace time.Duration) error {
	// report success if the process is already gone
	select {
	case <-p.done:
		return nil
	default:
	}

	p.signal(false)

	if err := p.waitForExit(grace); err == nil {
		return nil
	}

	p.log.Warn("process did not exit in time, killing",
		zap.Duration("grace", grace),
	)

	p.signal(true)

	if err := p.waitForExit(killWaitTimeout); err != nil {
		return fmt.Errorf("process survived SIGKILL: %w", err)
	}

	return nil
}

// waitForExit blocks until the process exits or the timeout elapses.
// A timeout <= 0 waits indefinitely.
func (p *proc) waitForExit(timeout time.Duration) error {
	if timeout <= 0 {
		<-p.done
		return nil
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(timeout):
		return ErrKillTimeout
	}
}

// signal closes stdin and delivers a termination signal to the
// process group. force selects SIGKILL over SIGTERM.
func (p *proc) signal(force bool) {
	// close stdin first, to avoid the process hanging on input
	p.shutStdin()

	p.log.Info("sending signal", zap.Bool("force", force))

	// best effort, the process may already be gone
	if err := p.sendKillSignal(force); err != nil {
		p.log.Debug("signal failed", zap.Error(err))
	}
}

func (p *proc) shutStdin() {
	p.closeStdin.Do(func() {
		if err := p.stdin.Close(); err != nil {
			p.log.Debug("close stdin failed", zap.Error(err))
		}
	})
}

// exitEvent derives an ExitEvent from the error returned by Wait.
func exitEvent(err error, stderr string) ExitEvent {
	var cell int
	var exitStatus *int
	var signo *int

	if err == nil {
		// the process exited successfully, set the exit code to 0
		exitStatus = &cell
	} else if exitError, ok := err.(*exec.ExitError); ok {
		if status, ok := exitError.Sys().(syscall.WaitStatus); ok {
			if code := status.ExitStatus(); code >= 0 {
				// the process exited with an exit code
				cell = code
				exitStatus = &cell
			} else {
				// the process was terminated by a signal
				cell = int(status.Signal())
				signo = &cell
			}
		}
	}

	if signo == nil && exitStatus == nil {
		// could not determine the exit status or signal,
		// report a generic failure
		cell = 1
		exitStatus = &cell
	}

	return ExitEvent{
		Code:   exitStatus,
		Signal: signo,
		Stderr: stderr,
	}
}
