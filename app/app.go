package app

import (
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"

	"github.com/portfolioos/quantd/config"
	"github.com/portfolioos/quantd/internal/shell"
	"github.com/portfolioos/quantd/runtime"
	"github.com/portfolioos/quantd/util/conf"
	"github.com/portfolioos/quantd/util/logging"
)

// New assembles the part of the application every command shares:
// the config and the supervised engine runtime. Transport surfaces
// are layered on per command via shell.Run options.
func New(ctx *cli.Context) (*shell.Shell, error) {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return nil, err
	}

	cfg, err := conf.ConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return nil, err
	}

	sharedModule := fx.Module(
		"shared",
		// provide global config
		fx.Supply(cfg),
		// provide the engine runtime
		runtime.Module(cfg.Engine),
	)

	return shell.New(log, sharedModule), nil
}
