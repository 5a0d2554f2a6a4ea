package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/portfolioos/quantd/config"
	"github.com/portfolioos/quantd/internal/engine"
	"github.com/portfolioos/quantd/models"
	"github.com/portfolioos/quantd/util/conf"
	"github.com/portfolioos/quantd/util/logging"
)

var (
	callCmdDescription = `The call command spawns a dedicated engine, sends it a single
method call, prints the JSON reply to stdout and exits. Params
are passed as a JSON object.

Example:

   quantd call -c ./engine analysis.cagr \
       --params '{"start_value":100000,"end_value":180000,"n_years":6}'`
	callCmd = &cli.Command{
		Name:        "call",
		Usage:       "Send a single method call to the engine and print the reply.",
		ArgsUsage:   "<method>",
		Description: callCmdDescription,
		Action:      callAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "params",
				Aliases: []string{"p"},
				Usage:   "JSON object with the method params.",
				Value:   "{}",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Maximum time to wait for the reply.",
			},
		},
	}
)

func callAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	cfg, err := conf.ConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return err
	}

	methodName := ctx.Args().First()
	if methodName == "" {
		return fmt.Errorf("missing method argument")
	}

	method, ok := models.ParseMethod(methodName)
	if !ok {
		return fmt.Errorf("unknown engine method: %s", methodName)
	}

	var params map[string]any
	if err := json.Unmarshal([]byte(ctx.String("params")), &params); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}

	// one-shots always get their own dedicated engine
	engineConfig := cfg.Engine
	engineConfig.Pooled = false

	if timeout := ctx.Duration("timeout"); timeout > 0 {
		engineConfig.Supervisor.SendTimeout = timeout
	}

	dispatcher, err := engine.NewDispatcher(engine.Params{
		Context: ctx.Context,
		Config:  engineConfig,
		Log:     log,
	})
	if err != nil {
		return err
	}

	if err := dispatcher.Start(ctx.Context); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	defer dispatcher.Shutdown(context.Background())

	res, err := dispatcher.Send(ctx.Context, method.String(), params)
	if err != nil {
		return err
	}

	fmt.Println(string(res))

	return nil
}

func init() {
	rootApp.Commands = append(rootApp.Commands, callCmd)
}
