// Package sidecar supervises the quant engine subprocess. It spawns
// the engine, frames its stdout into JSON lines, correlates replies
// to requests by id, serializes dispatch so at most one request is in
// flight, and restarts the engine with bounded backoff when it dies.
package sidecar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// stderrTailLines is the number of stderr lines retained for exit
// diagnostics.
const stderrTailLines = 32

type Supervisor interface {
	// Start spawns the engine process. Starting a running supervisor
	// is a no-op. Starting resets the restart budget.
	Start(ctx context.Context) error

	// Stop gracefully shuts the engine down and blocks until the
	// process is gone. Pending and queued requests are rejected, and
	// no restart is attempted afterwards.
	Stop(ctx context.Context) error

	// Restart stops and starts the engine.
	Restart(ctx context.Context) error

	// Send submits a request with the default timeout and blocks
	// until the engine replies, the timeout elapses, or the engine
	// dies.
	Send(ctx context.Context, method string, params map[string]any) (json.RawMessage, error)

	// SendWithTimeout is Send with an explicit per-request timeout.
	// A timeout <= 0 selects the configured default.
	SendWithTimeout(ctx context.Context, method string, params map[string]any, timeout time.Duration) (json.RawMessage, error)

	// Running reports whether a live engine process is attached.
	Running() bool

	// Stats reports lifecycle counters for health reporting.
	Stats() Stats
}

// Stats is a snapshot of the supervisor's lifecycle state.
type Stats struct {
	Running           bool
	PermanentlyFailed bool
	Restarts          int
	Pid               int
	Uptime            time.Duration
}

// ProcFactory spawns an engine process. It is injectable for tests.
type ProcFactory func(config Config, log *zap.Logger) (Process, error)

func defaultProcFactory(config Config, log *zap.Logger) (Process, error) {
	return startProc(config, log)
}

// Params describes the dependencies for a supervisor.
type Params struct {
	// Config is the engine configuration.
	Config Config

	// ProcFactory overrides how engine processes are spawned.
	ProcFactory ProcFactory

	// Log is the logger to use for the supervisor.
	Log *zap.Logger
}

type supervisorState int

const (
	// stateIdle: never started, or explicitly stopped.
	stateIdle supervisorState = iota

	// stateRunning: a live engine process is attached.
	stateRunning

	// stateBackoff: the engine died unexpectedly, a respawn is
	// scheduled.
	stateBackoff

	// stateFailed: the restart budget is exhausted, no further
	// respawns.
	stateFailed
)

type result struct {
	data json.RawMessage
	err  error
}

// pendingRequest is a submitted request. It sits in the queue until
// dispatched, then in the pending map until replied, timed out, or
// rejected. Whoever removes it from queue or pending map completes it,
// exactly once.
type pendingRequest struct {
	id      string
	method  string
	params  map[string]any
	timeout time.Duration
	ctx     context.Context

	// timer is the timeout timer, armed once the request has been
	// written to the engine.
	timer *time.Timer

	done chan result
}

func (r *pendingRequest) complete(res result) {
	// done is buffered, the single completer never blocks
	r.done <- res
}

// EngineSupervisor implements Supervisor over a single engine
// process. One mutex guards the queue, the pending map and the
// lifecycle state; stdin writes happen outside the lock, made safe by
// the one-in-flight invariant.
type EngineSupervisor struct {
	config Config

	procFactory ProcFactory

	mu        sync.Mutex
	state     supervisorState
	process   Process
	gen       int
	startedAt time.Time

	queue   []*pendingRequest
	pending map[string]*pendingRequest

	attempts int
	restarts int

	restartTimer *time.Timer
	healthyTimer *time.Timer

	stderrTail []string

	log *zap.Logger
}

var _ Supervisor = (*EngineSupervisor)(nil)

func New(params Params) (*EngineSupervisor, error) {
	config := params.Config.withDefaults()

	if params.ProcFactory == nil {
		if config.Cmd == "" {
			return nil, fmt.Errorf("engine command not configured")
		}
		params.ProcFactory = defaultProcFactory
	}

	if params.Log == nil {
		params.Log = zap.NewNop()
	}

	return &EngineSupervisor{
		config:      config,
		procFactory: params.ProcFactory,
		pending:     make(map[string]*pendingRequest),
		log:         params.Log.Named("supervisor"),
	}, nil
}

// MARK: - Lifecycle

func (s *EngineSupervisor) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("failed to start engine: %w", ctx.Err())
	}

	s.mu.Lock()

	if s.state == stateRunning {
		s.mu.Unlock()
		return nil
	}

	s.cancelRestartLocked()

	// an explicit start resets the restart budget
	s.attempts = 0

	err := s.spawnLocked()
	var rejected []*pendingRequest
	if err != nil {
		// requests queued during a backoff were waiting for the respawn
		// this start just cancelled, nothing will dispatch them now
		s.state = stateIdle
		rejected = s.drainLocked()
	}
	s.mu.Unlock()

	if err != nil {
		completeAll(rejected, fmt.Errorf("engine failed to start: %w", ErrNotRunning))
		return fmt.Errorf("failed to start engine: %w", err)
	}

	// serve requests that queued up while the engine was down
	s.pump()

	return nil
}

func (s *EngineSupervisor) Stop(context.Context) error {
	s.mu.Lock()

	s.cancelRestartLocked()

	// bump the generation so callbacks and goroutines of the current
	// incarnation recognize themselves as stale
	s.gen++

	process := s.process
	s.process = nil
	s.state = stateIdle
	s.startedAt = time.Time{}

	rejected := s.drainLocked()
	s.mu.Unlock()

	completeAll(rejected, fmt.Errorf("supervisor stopped: %w", ErrNotRunning))

	if process == nil {
		return nil
	}

	s.log.Info("stopping engine", zap.Int("pid", process.Pid()))

	return process.Terminate(s.config.StopTimeout)
}

func (s *EngineSupervisor) Restart(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil {
		return err
	}

	return s.Start(ctx)
}

func (s *EngineSupervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state == stateRunning
}

func (s *EngineSupervisor) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		Running:           s.state == stateRunning,
		PermanentlyFailed: s.state == stateFailed,
		Restarts:          s.restarts,
	}

	if s.process != nil {
		stats.Pid = s.process.Pid()
	}

	if !s.startedAt.IsZero() {
		stats.Uptime = time.Since(s.startedAt)
	}

	return stats
}

// spawnLocked starts a new engine incarnation. Must be called with
// the lock held.
func (s *EngineSupervisor) spawnLocked() error {
	process, err := s.procFactory(s.config, s.log)
	if err != nil {
		return err
	}

	s.gen++
	gen := s.gen

	s.process = process
	s.state = stateRunning
	s.startedAt = time.Now()
	s.stderrTail = nil

	s.log.Info("engine started",
		zap.Int("pid", process.Pid()),
		zap.String("cmd", s.config.Cmd),
	)

	stderrDone := make(chan struct{})

	go s.readLoop(process, gen)
	go s.stderrLoop(process, stderrDone)
	go s.waitLoop(process, gen, stderrDone)

	s.armHealthyResetLocked(gen)

	return nil
}

// armHealthyResetLocked resets the respawn attempt counter once the
// engine has stayed up for the configured window.
func (s *EngineSupervisor) armHealthyResetLocked(gen int) {
	if s.healthyTimer != nil {
		s.healthyTimer.Stop()
		s.healthyTimer = nil
	}

	if s.attempts == 0 {
		return
	}

	s.healthyTimer = time.AfterFunc(s.config.HealthyReset, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.gen == gen && s.state == stateRunning {
			s.log.Debug("engine healthy, resetting restart budget")
			s.attempts = 0
		}
	})
}

func (s *EngineSupervisor) cancelRestartLocked() {
	if s.restartTimer != nil {
		s.restartTimer.Stop()
		s.restartTimer = nil
	}
	if s.healthyTimer != nil {
		s.healthyTimer.Stop()
		s.healthyTimer = nil
	}
}

// MARK: - Requests

func (s *EngineSupervisor) Send(
	ctx context.Context,
	method string,
	params map[string]any,
) (json.RawMessage, error) {
	return s.SendWithTimeout(ctx, method, params, 0)
}

func (s *EngineSupervisor) SendWithTimeout(
	ctx context.Context,
	method string,
	params map[string]any,
	timeout time.Duration,
) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = s.config.SendTimeout
	}

	if params == nil {
		// the engine expects a params object, not null
		params = map[string]any{}
	}

	req := &pendingRequest{
		id:      uuid.NewString(),
		method:  method,
		params:  params,
		timeout: timeout,
		ctx:     ctx,
		done:    make(chan result, 1),
	}

	s.mu.Lock()
	if s.state != stateRunning && s.state != stateBackoff {
		s.mu.Unlock()
		return nil, ErrNotRunning
	}
	s.queue = append(s.queue, req)
	s.mu.Unlock()

	s.pump()

	select {
	case res := <-req.done:
		return res.data, res.err
	case <-ctx.Done():
		s.abandon(req)
		return nil, ctx.Err()
	}
}

// pump dispatches the next queued request if the engine is running
// and nothing is in flight. The pending map holding at most one entry
// is what serializes requests; the write below is therefore the only
// writer to the engine's stdin.
func (s *EngineSupervisor) pump() {
	for {
		s.mu.Lock()

		if s.state != stateRunning || len(s.pending) > 0 || len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}

		req := s.queue[0]
		s.queue = s.queue[1:]

		// skip requests whose caller gave up while queued
		if req.ctx != nil && req.ctx.Err() != nil {
			s.mu.Unlock()
			req.complete(result{err: req.ctx.Err()})
			continue
		}

		s.pending[req.id] = req
		gen := s.gen
		stdin := s.process.StdinPipe()
		s.mu.Unlock()

		line, err := encodeRequest(request{
			ID:     req.id,
			Method: req.method,
			Params: req.params,
		})
		if err != nil {
			s.failDispatch(req, err)
			continue
		}

		s.log.Debug("dispatching request",
			zap.String("id", req.id),
			zap.String("method", req.method),
		)

		if _, err := stdin.Write(line); err != nil {
			// the engine is likely dying, exit handling will take
			// over the rest
			s.failDispatch(req, fmt.Errorf("failed to write request: %w", err))
			continue
		}

		s.armTimeout(req, gen)

		return
	}
}

// failDispatch completes a request that could not be written and
// frees the in-flight slot.
func (s *EngineSupervisor) failDispatch(req *pendingRequest, err error) {
	s.mu.Lock()
	if s.pending[req.id] != req {
		// someone else already completed it (exit handling)
		s.mu.Unlock()
		return
	}
	delete(s.pending, req.id)
	s.mu.Unlock()

	req.complete(result{err: err})
}

// armTimeout starts the request's timeout timer, unless the reply
// already arrived.
func (s *EngineSupervisor) armTimeout(req *pendingRequest, gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen || s.pending[req.id] != req {
		return
	}

	req.timer = time.AfterFunc(req.timeout, func() {
		s.onTimeout(req)
	})
}

func (s *EngineSupervisor) onTimeout(req *pendingRequest) {
	s.mu.Lock()
	if s.pending[req.id] != req {
		// the reply won the race
		s.mu.Unlock()
		return
	}
	delete(s.pending, req.id)
	s.mu.Unlock()

	s.log.Warn("request timed out",
		zap.String("id", req.id),
		zap.String("method", req.method),
		zap.Duration("timeout", req.timeout),
	)

	req.complete(result{err: fmt.Errorf("%s after %v: %w", req.method, req.timeout, ErrRequestTimeout)})

	// the id stays abandoned, a late reply is dropped as unknown
	s.pump()
}

// abandon removes a request from the queue after its caller gave up.
// An in-flight request is left to drain on reply or timeout, the wire
// has no cancel message.
func (s *EngineSupervisor) abandon(req *pendingRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, queued := range s.queue {
		if queued == req {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// drainLocked removes every queued and pending request and returns
// them for completion outside the lock. Must be called with the lock
// held.
func (s *EngineSupervisor) drainLocked() []*pendingRequest {
	drained := make([]*pendingRequest, 0, len(s.queue)+len(s.pending))

	for _, req := range s.pending {
		if req.timer != nil {
			req.timer.Stop()
		}
		drained = append(drained, req)
	}
	s.pending = make(map[string]*pendingRequest)

	drained = append(drained, s.queue...)
	s.queue = nil

	return drained
}

func completeAll(reqs []*pendingRequest, err error) {
	for _, req := range reqs {
		req.complete(result{err: err})
	}
}

// MARK: - Engine output

// readLoop frames the engine's stdout into lines and routes replies.
// One readLoop runs per engine incarnation and exits when the stream
// does.
func (s *EngineSupervisor) readLoop(process Process, gen int) {
	// the read end is ours to close once the stream is finished
	defer process.StdoutPipe().Close()

	framer := newLineFramer(process.StdoutPipe(), s.config.MaxLineBytes)

	for {
		line, err := framer.next()
		if errors.Is(err, io.EOF) {
			// the engine is gone, waitLoop takes it from here
			return
		}
		if err != nil {
			// the stream cannot be resynced after a framing failure,
			// recycle the engine and let exit handling clean up
			s.log.Error("engine stdout stream failed, terminating engine", zap.Error(err))
			if termErr := process.Terminate(s.config.StopTimeout); termErr != nil {
				s.log.Error("failed to terminate engine", zap.Error(termErr))
			}
			return
		}

		s.handleLine(line, gen)
	}
}

func (s *EngineSupervisor) handleLine(line []byte, gen int) {
	res, err := decodeResponse(line)
	if err != nil {
		// transport noise never fails requests, log and drop
		s.log.Warn("dropping unparseable engine output",
			zap.Error(err),
			zap.ByteString("line", truncateLine(line)),
		)
		return
	}

	s.mu.Lock()

	if s.gen != gen {
		s.mu.Unlock()
		return
	}

	req, ok := s.pending[res.ID]
	if !ok {
		s.mu.Unlock()
		s.log.Warn("dropping reply with unknown id", zap.String("id", res.ID))
		return
	}

	delete(s.pending, res.ID)
	if req.timer != nil {
		req.timer.Stop()
	}

	s.mu.Unlock()

	s.log.Debug("request completed",
		zap.String("id", req.id),
		zap.String("method", req.method),
		zap.Bool("error", res.Error != nil),
	)

	if res.Error != nil {
		req.complete(result{err: res.Error})
	} else {
		req.complete(result{data: res.Result})
	}

	s.pump()
}

// stderrLoop drains the engine's stderr, logging each line and
// keeping a bounded tail for exit diagnostics.
func (s *EngineSupervisor) stderrLoop(process Process, done chan<- struct{}) {
	defer close(done)
	defer process.StderrPipe().Close()

	framer := newLineFramer(process.StderrPipe(), s.config.MaxLineBytes)

	for {
		line, err := framer.next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				// keep draining so the engine cannot block on a full
				// stderr pipe
				s.log.Warn("engine stderr stream failed", zap.Error(err))
				io.Copy(io.Discard, process.StderrPipe())
			}
			return
		}

		text := string(line)

		s.mu.Lock()
		s.stderrTail = append(s.stderrTail, text)
		if len(s.stderrTail) > stderrTailLines {
			s.stderrTail = s.stderrTail[1:]
		}
		s.mu.Unlock()

		s.log.Debug("engine stderr", zap.String("line", text))
	}
}

// MARK: - Exit handling

// waitLoop waits for the process to exit and for stderr to be fully
// drained, then hands over to exit handling.
func (s *EngineSupervisor) waitLoop(process Process, gen int, stderrDone <-chan struct{}) {
	<-process.Done()
	<-stderrDone

	s.handleExit(process, gen)
}

func (s *EngineSupervisor) handleExit(process Process, gen int) {
	s.mu.Lock()

	if s.gen != gen || s.process != process {
		// an exit of a previous incarnation must not touch the
		// current one
		s.mu.Unlock()
		return
	}

	event := exitEvent(process.ExitErr(), strings.Join(s.stderrTail, "\n"))

	s.process = nil
	s.startedAt = time.Time{}

	rejected := s.drainLocked()

	log := s.log.With(zap.Int("pid", process.Pid()))
	if event.Code != nil {
		log = log.With(zap.Int("code", *event.Code))
	}
	if event.Signal != nil {
		log = log.With(zap.Int("signal", *event.Signal))
	}
	if event.Stderr != "" {
		log = log.With(zap.String("stderr", event.Stderr))
	}

	log.Error("engine exited unexpectedly", zap.Int("rejected", len(rejected)))

	s.scheduleRestartLocked()

	s.mu.Unlock()

	completeAll(rejected, fmt.Errorf("request aborted: %w", ErrProcessExited))
}

// scheduleRestartLocked decides between scheduling a respawn and
// giving up for good. Must be called with the lock held.
func (s *EngineSupervisor) scheduleRestartLocked() {
	if s.attempts >= s.config.MaxRestarts {
		s.state = stateFailed
		s.log.Error("restart budget exhausted, engine permanently failed",
			zap.Int("attempts", s.attempts),
		)
		return
	}

	s.attempts++
	s.state = stateBackoff

	delay := backoffDelay(s.config.Backoff, s.attempts)
	gen := s.gen

	s.log.Info("scheduling engine restart",
		zap.Int("attempt", s.attempts),
		zap.Int("max_attempts", s.config.MaxRestarts),
		zap.Duration("backoff", delay),
	)

	s.restartTimer = time.AfterFunc(delay, func() {
		s.respawn(gen)
	})
}

// respawn is the restart timer callback.
func (s *EngineSupervisor) respawn(gen int) {
	s.mu.Lock()

	if s.gen != gen || s.state != stateBackoff {
		// stopped or restarted in the meantime
		s.mu.Unlock()
		return
	}

	err := s.spawnLocked()
	if err != nil {
		s.log.Error("engine respawn failed", zap.Error(err))

		// a failed spawn burns a restart attempt like a crash does
		rejected := s.scheduleRestartOrFailLocked()
		s.mu.Unlock()

		completeAll(rejected, fmt.Errorf("request aborted: %w", ErrProcessExited))
		return
	}

	s.restarts++
	s.mu.Unlock()

	// serve requests that queued up during the backoff
	s.pump()
}

// scheduleRestartOrFailLocked re-enters the restart decision after a
// failed spawn. When the budget is exhausted it also drains requests
// that queued up during the backoff. Must be called with the lock
// held.
func (s *EngineSupervisor) scheduleRestartOrFailLocked() []*pendingRequest {
	s.scheduleRestartLocked()

	if s.state == stateFailed {
		return s.drainLocked()
	}

	return nil
}

// backoffDelay computes the non-decreasing restart delay for the
// given attempt (1-based).
func backoffDelay(config BackoffConfig, attempt int) time.Duration {
	delay := time.Duration(float64(config.Base) * math.Pow(config.Multiplier, float64(attempt-1)))

	if delay <= 0 || delay > config.Cap {
		// <= 0 guards against overflow for large attempt counts
		delay = config.Cap
	}

	return delay
}

func truncateLine(line []byte) []byte {
	const max = 256
	if len(line) <= max {
		return line
	}
	return line[:max]
}
