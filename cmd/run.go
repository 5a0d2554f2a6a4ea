package cmd

import (
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"

	"github.com/portfolioos/quantd/app"
	"github.com/portfolioos/quantd/runtime"
)

var (
	runCmdDescription = `The run command starts the engine under supervision without
exposing any transport. The engine is respawned on crashes
with the configured backoff, and the process blocks until it
is interrupted.

This is useful for smoke-testing an engine build, or when the
engine serves its own transport and only needs supervision.`
	runCmd = &cli.Command{
		Name:        "run",
		Usage:       "Supervise the engine without serving requests.",
		Description: runCmdDescription,
		Action:      runAction,
	}
)

func runAction(ctx *cli.Context) error {
	app, err := app.New(ctx)
	if err != nil {
		return err
	}

	// instantiate the runtime so its lifecycle hooks run
	return app.Run(ctx.Context, fx.Invoke(func(runtime.Runtime) {}))
}

func init() {
	rootApp.Commands = append(rootApp.Commands, runCmd)
}
