package sidecar

import (
	"errors"
	"io"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/portfolioos/quantd/util"
)

func startTestProc(t *testing.T, config Config) *proc {
	t.Helper()

	process, err := startProc(config, zap.NewNop())
	require.NoError(t, err)

	return process
}

func waitDone(t *testing.T, process Process) {
	t.Helper()

	select {
	case <-process.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit in time")
	}
}

func TestStartProc_SpawnAndTerminate(t *testing.T) {
	process := startTestProc(t, Config{Cmd: "cat"})

	assert.True(t, util.IsProcessAlive(process.Pid()))

	require.NoError(t, process.Terminate(time.Second))
	waitDone(t, process)

	assert.Eventually(t, func() bool {
		return !util.IsProcessAlive(process.Pid())
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStartProc_BadCommand(t *testing.T) {
	_, err := startProc(Config{Cmd: "/nonexistent/quant-engine"}, zap.NewNop())
	assert.Error(t, err)
}

func TestStartProc_ExitCode(t *testing.T) {
	process := startTestProc(t, Config{Cmd: "sh", Args: []string{"-c", "exit 3"}})
	waitDone(t, process)

	event := exitEvent(process.ExitErr(), "")
	require.NotNil(t, event.Code)
	assert.Equal(t, 3, *event.Code)
	assert.Nil(t, event.Signal)
}

func TestStartProc_OutputReadableAfterExit(t *testing.T) {
	// output written just before death must still reach the reader
	process := startTestProc(t, Config{Cmd: "sh", Args: []string{"-c", "echo hello"}})
	waitDone(t, process)

	framer := newLineFramer(process.StdoutPipe(), 1<<20)

	line, err := framer.next()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(line))

	_, err = framer.next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStartProc_StdinRoundTrip(t *testing.T) {
	process := startTestProc(t, Config{Cmd: "cat"})
	defer process.Terminate(time.Second)

	_, err := process.StdinPipe().Write([]byte("ping\n"))
	require.NoError(t, err)

	framer := newLineFramer(process.StdoutPipe(), 1<<20)

	line, err := framer.next()
	require.NoError(t, err)
	assert.Equal(t, "ping", string(line))
}

func TestStartProc_StdinClosedAfterExit(t *testing.T) {
	process := startTestProc(t, Config{Cmd: "sh", Args: []string{"-c", "exit 0"}})
	waitDone(t, process)

	_, err := process.StdinPipe().Write([]byte("too late\n"))
	assert.Error(t, err)
}

func TestStartProc_StderrSeparated(t *testing.T) {
	process := startTestProc(t, Config{Cmd: "sh", Args: []string{"-c", "echo out; echo err >&2"}})
	waitDone(t, process)

	line, err := newLineFramer(process.StdoutPipe(), 1<<20).next()
	require.NoError(t, err)
	assert.Equal(t, "out", string(line))

	line, err = newLineFramer(process.StderrPipe(), 1<<20).next()
	require.NoError(t, err)
	assert.Equal(t, "err", string(line))
}

func TestStartProc_TermSignalDecoded(t *testing.T) {
	process := startTestProc(t, Config{
		Cmd:  "sh",
		Args: []string{"-c", "while :; do sleep 0.05; done"},
	})

	require.NoError(t, process.Terminate(2*time.Second))
	waitDone(t, process)

	event := exitEvent(process.ExitErr(), "")
	require.NotNil(t, event.Signal)
	assert.Equal(t, int(syscall.SIGTERM), *event.Signal)
	assert.Nil(t, event.Code)
}

func TestStartProc_KillEscalation(t *testing.T) {
	// the shell ignores SIGTERM, Terminate has to escalate
	process := startTestProc(t, Config{
		Cmd:  "sh",
		Args: []string{"-c", `trap '' TERM; echo ready; while :; do sleep 0.05; done`},
	})

	// don't signal until the trap is installed, or SIGTERM kills the
	// shell before it can ignore it
	line, err := newLineFramer(process.StdoutPipe(), 1<<20).next()
	require.NoError(t, err)
	require.Equal(t, "ready", string(line))

	require.NoError(t, process.Terminate(200*time.Millisecond))
	waitDone(t, process)

	event := exitEvent(process.ExitErr(), "")
	require.NotNil(t, event.Signal)
	assert.Equal(t, int(syscall.SIGKILL), *event.Signal)
}

func TestStartProc_CustomEnv(t *testing.T) {
	process := startTestProc(t, Config{
		Cmd:  "sh",
		Args: []string{"-c", `printf "%s" "$QUANTD_PROC_TEST"`},
		Env:  []string{"QUANTD_PROC_TEST=inherited"},
	})
	waitDone(t, process)

	line, err := newLineFramer(process.StdoutPipe(), 1<<20).next()
	require.NoError(t, err)
	assert.Equal(t, "inherited", string(line))
}

func TestStartProc_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()

	process := startTestProc(t, Config{
		Cmd:  "sh",
		Args: []string{"-c", "pwd"},
		Cwd:  dir,
	})
	waitDone(t, process)

	expected, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	line, err := newLineFramer(process.StdoutPipe(), 1<<20).next()
	require.NoError(t, err)
	assert.Equal(t, expected, string(line))
}

func TestExitEvent(t *testing.T) {
	event := exitEvent(nil, "")
	require.NotNil(t, event.Code)
	assert.Equal(t, 0, *event.Code)
	assert.Nil(t, event.Signal)

	event = exitEvent(errors.New("wait: something else"), "tail")
	require.NotNil(t, event.Code)
	assert.Equal(t, 1, *event.Code)
	assert.Equal(t, "tail", event.Stderr)
}
