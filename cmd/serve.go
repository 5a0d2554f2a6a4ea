package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/portfolioos/quantd/app"
	"github.com/portfolioos/quantd/app/standalone"
	"github.com/portfolioos/quantd/internal/server"
)

var (
	serveCmdDescription = `The serve command starts a http server and exposes the quant
engine over it. The engine pool is warmed on startup and kept
alive across engine crashes.

The command launches the http server and blocks indefinitely,
processing incoming eval requests.`
	serveCmd = &cli.Command{
		Name:        "serve",
		Usage:       "Start a http server and listen for eval requests.",
		Description: serveCmdDescription,
		Action:      serveAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "host",
				Aliases:  []string{"H"},
				Usage:    "The host to listen on.",
				Value:    "localhost",
				Category: "http",
				EnvVars:  []string{"QUANTD_HTTP_HOST"},
			},
			&cli.IntFlag{
				Name:     "port",
				Aliases:  []string{"P"},
				Usage:    "The port to listen on.",
				Value:    8080,
				Category: "http",
				EnvVars:  []string{"QUANTD_HTTP_PORT"},
			},
			&cli.BoolFlag{
				Name:     "h2c",
				Usage:    "Enable HTTP/2 cleartext upgrade.",
				Value:    false,
				Category: "http",
				EnvVars:  []string{"QUANTD_HTTP_H2C"},
			},
		},
	}
)

func serveAction(ctx *cli.Context) error {
	app, err := app.New(ctx)
	if err != nil {
		return err
	}

	serveConfig := standalone.Config{
		HttpConfig: server.HttpConfig{
			Host: ctx.String("host"),
			Port: ctx.Int("port"),
			H2c:  ctx.Bool("h2c"),
		},
	}

	return app.Run(ctx.Context, standalone.Module(serveConfig))
}

func init() {
	rootApp.Commands = append(rootApp.Commands, serveCmd)
}
