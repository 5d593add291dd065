package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/savaki/stage-pipeline/internal/di"
	"github.com/savaki/stage-pipeline/internal/dispatcher"
	"github.com/savaki/stage-pipeline/internal/models"
	"github.com/savaki/stage-pipeline/internal/worker"
	"github.com/urfave/cli/v2"
)

// DispatchCommand claims a work item and launches its worker task, skipping
// origin validation
func DispatchCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "dispatch",
		Usage: "Dispatch a work item without going through the trigger endpoint",
		Description: `Moves the key to InProgress and starts one worker task for it.

Examples:
  stage-pipeline dispatch --env stg --key ToDo/batch-001.csv`,
		Flags: stageFlags(
			&cli.StringFlag{
				Name:     "key",
				Aliases:  []string{"k"},
				Usage:    "Key of the work item, e.g. ToDo/batch-001.csv",
				Required: true,
			},
		),
		Action: func(c *cli.Context) error {
			container, err := newContainer(c, logger)
			if err != nil {
				return err
			}

			body, err := json.Marshal(models.TriggerRequest{InputFile: c.String("key")})
			if err != nil {
				return err
			}

			d := di.MustGet[*dispatcher.Dispatcher](container)
			code, resp := d.Dispatch(c.Context, body)
			if err := printJSON(resp); err != nil {
				return err
			}
			if code != http.StatusOK {
				return fmt.Errorf("dispatch failed with status %d", code)
			}
			return nil
		},
	}
}

// RunStageCommand processes one InProgress item in the current process
func RunStageCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "run-stage",
		Usage: "Process an InProgress work item locally",
		Description: `Runs the worker for one key, the same way the launched task does.

Examples:
  stage-pipeline run-stage --env stg --key InProgress/batch-001.csv`,
		Flags: stageFlags(
			&cli.StringFlag{
				Name:     "key",
				Aliases:  []string{"k"},
				Usage:    "Key of the work item, e.g. InProgress/batch-001.csv",
				Required: true,
				EnvVars:  []string{"INFILE"},
			},
			&cli.StringFlag{
				Name:    "dispatch-id",
				Usage:   "Ledger id of the dispatch being completed",
				EnvVars: []string{dispatcher.DispatchIDVar},
			},
			&cli.StringFlag{
				Name:    "transform",
				Usage:   "Transformation to apply (csv or identity)",
				EnvVars: []string{"TRANSFORM"},
			},
		),
		Action: func(c *cli.Context) error {
			// the container reads both from the process environment
			if err := os.Setenv(dispatcher.DispatchIDVar, c.String("dispatch-id")); err != nil {
				return err
			}
			if err := os.Setenv("TRANSFORM", c.String("transform")); err != nil {
				return err
			}

			container, err := newContainer(c, logger)
			if err != nil {
				return err
			}

			w := di.MustGet[*worker.Worker](container)
			return w.RunStage(c.Context, c.String("key"))
		},
	}
}
