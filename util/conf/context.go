package conf

import (
	"context"
	"errors"
)

type configKey struct{}

// ErrNoConfigInContext is returned when a context carries no config
// value, or a config value of a different type.
var ErrNoConfigInContext = errors.New("no config in context")

// ContextWithConfig returns a copy of ctx carrying the config value.
func ContextWithConfig[C any](ctx context.Context, config C) context.Context {
	return context.WithValue(ctx, configKey{}, config)
}

// ConfigFromContext returns the config value of type C carried by ctx.
func ConfigFromContext[C any](ctx context.Context) (C, error) {
	config, ok := ctx.Value(configKey{}).(C)
	if !ok {
		return config, ErrNoConfigInContext
	}

	return config, nil
}
