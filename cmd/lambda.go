package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/portfolioos/quantd/app"
	"github.com/portfolioos/quantd/app/lambda"
	"github.com/portfolioos/quantd/util/conf"
	"github.com/portfolioos/quantd/util/logging"
)

var (
	lambdaCmdDescription = `The lambda command starts the daemon as an AWS Lambda runtime
interface client, which allows it to be directly invoked by
the AWS Lambda runtime without any additional dependencies.
This is intended as the entrypoint of a dockerized deployment
of the quant engine.

The command starts the AWS runtime interface client and blocks
indefinitely, processing incoming AWS Lambda events.`
	lambdaCmd = &cli.Command{
		Name:        "lambda",
		Usage:       "Run the AWS Lambda handler",
		Description: lambdaCmdDescription,
		Action:      lambdaAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "lambda-proxy-source",
				Usage:    "the source of the AWS Lambda event. Options: API_GW_V1, API_GW_V2, ALB.",
				Value:    lambda.DefaultProxySource.String(),
				EnvVars:  []string{"QUANTD_LAMBDA_PROXY_SOURCE", "LAMBDA_PROXY_SOURCE"},
				Category: "lambda",
			},
		},
	}
)

func lambdaAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	app, err := app.New(ctx)
	if err != nil {
		return err
	}

	cfg, err := conf.Parse[lambda.Config](conf.ParseOptions{
		Log:       log,
		Cli:       ctx,
		EnvPrefix: "QUANTD_",
		Defaults: conf.DefaultConfig{
			"lambda_proxy_source": lambda.DefaultProxySource.String(),
		},
	})
	if err != nil {
		return err
	}

	log.Info("starting AWS Lambda handler")

	return app.Run(ctx.Context, lambda.Module(cfg))
}

func init() {
	rootApp.Commands = append(rootApp.Commands, lambdaCmd)
}
