package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/portfolioos/quantd/config"
	"github.com/portfolioos/quantd/internal/shell"
	"github.com/portfolioos/quantd/util/conf"
	"github.com/portfolioos/quantd/util/logging"
)

var (
	appName  = "quantd"
	appUsage = `Supervisor daemon for the portfolio quant engine. Runs the
engine as a child process, keeps it alive across crashes, and
exposes its simulation and analysis methods over HTTP or AWS
Lambda.`

	// rootCliMap maps root flag names to config keys.
	rootCliMap = map[string]string{
		"engine-cmd":  "engine.cmd",
		"engine-arg":  "engine.args",
		"engine-cwd":  "engine.cwd",
		"max-workers": "engine.max_workers",
	}

	rootApp = &cli.App{
		Name:            appName,
		Usage:           appUsage,
		HideHelpCommand: true,
		Args:            true,
		Flags: []cli.Flag{
			// general flags
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "set the log level. Options: debug, info, warn, error, panic, fatal.",
				EnvVars: []string{"QUANTD_LOG_LEVEL", "LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "set the log format. Options: production, development.",
				EnvVars: []string{"QUANTD_LOG_FORMAT", "LOG_FORMAT"},
			},
			&cli.PathFlag{
				Name:    "env-file",
				Usage:   "load environment variables from a dotenv file.",
				EnvVars: []string{"QUANTD_ENV_FILE"},
			},
			&cli.PathFlag{
				Name:    "config",
				Usage:   "load configuration from a json file.",
				EnvVars: []string{"QUANTD_CONFIG"},
			},
			// engine flags
			&cli.StringFlag{
				Name:     "engine-cmd",
				Usage:    "the command to invoke in order to start the engine process.",
				Aliases:  []string{"c"},
				Category: "engine",
				EnvVars:  []string{"QUANTD_ENGINE__CMD"},
			},
			&cli.StringSliceFlag{
				Name:     "engine-arg",
				Usage:    "additional arguments to pass to the engine process.",
				Aliases:  []string{"a"},
				Category: "engine",
				EnvVars:  []string{"QUANTD_ENGINE__ARGS"},
			},
			&cli.StringFlag{
				Name:     "engine-cwd",
				Usage:    "the working directory to start the engine process in.",
				Category: "engine",
				EnvVars:  []string{"QUANTD_ENGINE__CWD"},
			},
			&cli.IntFlag{
				Name:     "max-workers",
				Usage:    "the maximum number of concurrent engine processes.",
				Aliases:  []string{"n"},
				Category: "engine",
				EnvVars:  []string{"QUANTD_ENGINE__MAX_WORKERS"},
			},
		},
		Before: func(ctx *cli.Context) error {
			// create the logger
			log, err := createLogger(ctx)
			if err != nil {
				return err
			}

			// inject logger into cli context
			ctx.Context = logging.ContextWithLogger(ctx.Context, log)

			// parse config from defaults, files, env and flags
			cfg, err := conf.Parse[config.Config](conf.ParseOptions{
				Cli:       ctx,
				CliMap:    rootCliMap,
				Defaults:  config.DefaultConfig,
				EnvPrefix: "QUANTD_",
				EnvFile:   ctx.Path("env-file"),
				FileName:  ctx.Path("config"),
				Log:       log,
			})
			if err != nil {
				return err
			}

			// inject the config into the cli context
			ctx.Context = conf.ContextWithConfig(ctx.Context, cfg)

			return nil
		},
		After: func(ctx *cli.Context) error {
			log, err := logging.LoggerFromContext(ctx.Context)
			if err != nil {
				return err
			}

			log.Sync()

			return nil
		},
	}
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:               "version",
		Usage:              "print the version",
		DisableDefaultText: true,
	}
}

type ExecuteParams struct {
	Version  string
	Compiled time.Time
}

// Execute runs the cli app and returns the process exit code.
func Execute(params ExecuteParams) int {
	rootApp.Version = params.Version
	rootApp.Compiled = params.Compiled

	return run(context.Background(), os.Args)
}

func run(ctx context.Context, args []string) int {
	err := rootApp.RunContext(ctx, args)

	if err == nil {
		return 0
	}

	var exitErr *shell.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode
	}

	fmt.Fprintf(os.Stderr, "error: %s\n", err)

	return 1
}

func createLogger(ctx *cli.Context) (*zap.Logger, error) {
	level := getLogLevelFromCLI(ctx)
	format := getLogFormatFromCLI(ctx)

	var config zap.Config
	if format == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	config.InitialFields = map[string]any{
		"app": appName,
	}

	config.Level = level

	return config.Build()
}

func getLogFormatFromCLI(ctx *cli.Context) string {
	format := ctx.String("log-format")
	if format != "" {
		return format
	}

	return "production"
}

func getLogLevelFromCLI(ctx *cli.Context) zap.AtomicLevel {
	lvl := ctx.String("log-level")

	if atom, err := zap.ParseAtomicLevel(lvl); err == nil {
		return atom
	}

	return zap.NewAtomicLevelAt(zap.InfoLevel)
}
