package config

import (
	"github.com/portfolioos/quantd/internal/engine"
	"github.com/portfolioos/quantd/util/conf"
)

// AuthConfig configures API-key auth for the HTTP surface.
type AuthConfig struct {
	// ApiKey guards the eval route. Auth is disabled when empty.
	ApiKey string `conf:"api_key"`
}

type Config struct {
	// LogLevel is the log level for the application
	LogLevel string `conf:"log_level"`

	// LogFormat is the log format for the application
	LogFormat string `conf:"log_format"`

	// Auth is the auth configuration for the HTTP surface
	Auth AuthConfig `conf:"auth"`

	// Engine is the configuration for the quant engine
	Engine engine.Config `conf:"engine"`
}

// DefaultConfig is the base layer of the config, overridden by files,
// environment and flags. Engine timeouts and backoff defaults live in
// the sidecar package and apply to zero values after unmarshalling.
var DefaultConfig = conf.MergeDefaults("engine", conf.DefaultConfig{
	"pooled":      true,
	"max_workers": 1,
})
