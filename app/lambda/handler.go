package lambda

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/portfolioos/quantd/internal/server"
)

// EventProxyParams represents the dependencies of the event proxy.
type EventProxyParams struct {
	fx.In

	// Config is the configuration for the event proxy.
	Config Config

	// Handlers is the set of HTTP handlers to expose to Lambda events.
	Handlers []*server.HttpHandler `group:"handlers"`

	// Context is the base context for the runtime interface client.
	Context context.Context

	// Logger is the logger for the event proxy.
	Logger *zap.Logger

	// Shutdowner is used to stop the app when the runtime loop ends.
	Shutdowner fx.Shutdowner
}

// EventProxy bridges AWS Lambda events onto the same HTTP handlers the
// standalone server mounts. Events are translated into plain requests
// by the adapter matching the configured proxy source.
type EventProxy struct {
	config     Config
	ctx        context.Context
	cancel     context.CancelFunc
	mux        *http.ServeMux
	log        *zap.Logger
	shutdowner fx.Shutdowner
}

// NewEventProxy creates a new EventProxy with the given parameters.
func NewEventProxy(params EventProxyParams) *EventProxy {
	ctx, cancel := context.WithCancel(params.Context)

	mux := http.NewServeMux()

	for _, handler := range params.Handlers {
		mux.Handle(handler.Pattern, handler.Handler)
	}

	return &EventProxy{
		config:     params.Config,
		ctx:        ctx,
		cancel:     cancel,
		mux:        mux,
		log:        params.Logger,
		shutdowner: params.Shutdowner,
	}
}

// NewLifecycleProxy creates a new EventProxy and attaches lifecycle
// hooks to start and stop it.
func NewLifecycleProxy(params EventProxyParams, lc fx.Lifecycle) *EventProxy {
	proxy := NewEventProxy(params)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return proxy.Start()
		},
		OnStop: func(context.Context) error {
			proxy.Shutdown()
			return nil
		},
	})
	return proxy
}

// Start launches the runtime interface client in a new goroutine. An
// error is returned if no adapter exists for the configured proxy
// source. SIGTERM is enabled for the runtime environment so container
// spindown flows through the regular shutdown path and stops the
// engines.
func (p *EventProxy) Start() error {
	adapter, err := p.adapter()
	if err != nil {
		return err
	}

	p.log.Debug("starting lambda event proxy", zap.Stringer("proxy_source", p.config.ProxySource))

	go func() {
		// blocks for the lifetime of the runtime loop
		lambda.StartWithOptions(adapter,
			lambda.WithContext(p.ctx),
			lambda.WithEnableSIGTERM(func() {
				p.log.Info("lambda environment is spinning down")
			}),
		)
		_ = p.shutdowner.Shutdown(fx.ExitCode(1))
	}()

	return nil
}

// Shutdown cancels the runtime interface client.
func (p *EventProxy) Shutdown() {
	p.cancel()
}

// adapter returns the event adapter matching the configured proxy
// source.
func (p *EventProxy) adapter() (any, error) {
	switch p.config.ProxySource {
	case ProxySourceApiGatewayV1:
		return httpadapter.New(p.mux).ProxyWithContext, nil
	case ProxySourceApiGatewayV2:
		return httpadapter.NewV2(p.mux).ProxyWithContext, nil
	case ProxySourceAlb:
		return httpadapter.NewALB(p.mux).ProxyWithContext, nil
	default:
		return nil, fmt.Errorf("no event adapter for proxy source: %s", p.config.ProxySource)
	}
}
