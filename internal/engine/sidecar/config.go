package sidecar

import "time"

const (
	defaultSendTimeout  = 30 * time.Second
	defaultStopTimeout  = 5 * time.Second
	defaultMaxRestarts  = 5
	defaultBackoffBase  = 200 * time.Millisecond
	defaultBackoffMult  = 2.0
	defaultBackoffCap   = 10 * time.Second
	defaultHealthyReset = 30 * time.Second
	defaultMaxLineBytes = 8 * 1024 * 1024
)

// BackoffConfig describes the delay between consecutive respawn
// attempts: base * multiplier^(attempt-1), capped at cap. The delay
// never decreases across consecutive attempts.
type BackoffConfig struct {
	// Base is the delay before the first respawn attempt.
	Base time.Duration `conf:"base"`

	// Multiplier scales the delay for each further attempt.
	Multiplier float64 `conf:"multiplier"`

	// Cap is the upper bound for the delay.
	Cap time.Duration `conf:"cap"`
}

type Config struct {
	// Cmd is the path or name of the engine binary to execute.
	Cmd string `conf:"cmd"`

	// Args is the list of arguments to pass to the engine.
	Args []string `conf:"args"`

	// Cwd is the working directory the engine is executed in.
	Cwd string `conf:"cwd"`

	// Env is extra environment for the engine, in KEY=VALUE form.
	// The supervisor's own environment is inherited either way.
	Env []string `conf:"env"`

	// SendTimeout is the default per-request timeout.
	SendTimeout time.Duration `conf:"send_timeout"`

	// StopTimeout is the grace period between SIGTERM and SIGKILL
	// when stopping the engine.
	StopTimeout time.Duration `conf:"stop_timeout"`

	// MaxRestarts is the number of consecutive failed respawn
	// attempts after which the supervisor gives up for good.
	MaxRestarts int `conf:"max_restarts"`

	// Backoff configures the delay between respawn attempts.
	Backoff BackoffConfig `conf:"backoff"`

	// HealthyReset is the uptime after which the consecutive
	// respawn attempt counter is reset.
	HealthyReset time.Duration `conf:"healthy_reset"`

	// MaxLineBytes bounds the size of a single engine output line.
	MaxLineBytes int `conf:"max_line_bytes"`
}

// withDefaults fills unset fields with their default values.
func (c Config) withDefaults() Config {
	if c.SendTimeout <= 0 {
		c.SendTimeout = defaultSendTimeout
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = defaultStopTimeout
	}
	if c.MaxRestarts <= 0 {
		c.MaxRestarts = defaultMaxRestarts
	}
	if c.Backoff.Base <= 0 {
		c.Backoff.Base = defaultBackoffBase
	}
	if c.Backoff.Multiplier < 1 {
		c.Backoff.Multiplier = defaultBackoffMult
	}
	if c.Backoff.Cap <= 0 {
		c.Backoff.Cap = defaultBackoffCap
	}
	if c.HealthyReset <= 0 {
		c.HealthyReset = defaultHealthyReset
	}
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = defaultMaxLineBytes
	}

	return c
}
