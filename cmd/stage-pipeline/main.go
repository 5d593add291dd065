package main

import (
	"context"
	"os"

	"github.com/savaki/stage-pipeline/cmd/stage-pipeline/commands"
	"github.com/savaki/stage-pipeline/internal/di"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:  "stage-pipeline",
		Usage: "Operate one stage of a file processing pipeline",
		Description: `Operator tooling for a pipeline stage.

This tool provides commands for:
  - Serving the trigger endpoint locally
  - Dispatching and running work items by hand
  - Finding and requeueing work items left behind by failed runs
  - Checking that the stage's AWS resources are in place`,
		Commands: []*cli.Command{
			commands.ServeCommand(&logger),
			commands.DispatchCommand(&logger),
			commands.RunStageCommand(&logger),
			commands.ReconcileCommand(&logger),
			commands.RequeueCommand(&logger),
			commands.HistoryCommand(&logger),
			commands.PreflightCommand(&logger),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
