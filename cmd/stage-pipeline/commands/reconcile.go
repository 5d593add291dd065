package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog"
	"github.com/savaki/stage-pipeline/internal/dao/itemdao"
	"github.com/savaki/stage-pipeline/internal/di"
	"github.com/savaki/stage-pipeline/internal/reconcile"
	"github.com/urfave/cli/v2"
)

// ReconcileCommand lists stuck and leaked work items
func ReconcileCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "reconcile",
		Usage: "Find work items left InProgress by failed runs",
		Description: `Lists InProgress items older than --older-than, and items that exist under
InProgress as well as ToDo, or as well as a Done copy at least as new.
Nothing is changed; use requeue to retry.

Examples:
  stage-pipeline reconcile --env prd --older-than 2h
  stage-pipeline reconcile --env prd --json`,
		Flags: stageFlags(
			&cli.DurationFlag{
				Name:  "older-than",
				Usage: "Age after which an InProgress item is considered stuck",
				Value: time.Hour,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output as JSON",
			},
		),
		Action: func(c *cli.Context) error {
			container, err := newContainer(c, logger)
			if err != nil {
				return err
			}

			bucket, _ := buckets(container)
			r := di.MustGet[*reconcile.Reconciler](container)
			findings, err := r.Scan(c.Context, bucket, c.Duration("older-than"))
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(findings)
			}
			if len(findings) == 0 {
				fmt.Printf("No stuck work items in %s\n", bucket)
				return nil
			}

			fmt.Println(findingsTable(findings))
			return nil
		},
	}
}

// RequeueCommand moves an InProgress item back to ToDo
func RequeueCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "requeue",
		Usage: "Move InProgress/<file> back to ToDo/<file>",
		Flags: stageFlags(
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "File name of the work item, e.g. batch-001.csv",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite ToDo/<file> if an upload is already waiting there",
			},
		),
		Action: func(c *cli.Context) error {
			container, err := newContainer(c, logger)
			if err != nil {
				return err
			}

			bucket, _ := buckets(container)
			r := di.MustGet[*reconcile.Reconciler](container)
			if err := r.Requeue(c.Context, bucket, c.String("file"), c.Bool("force")); err != nil {
				return err
			}
			fmt.Printf("Requeued %s in %s\n", c.String("file"), bucket)
			return nil
		},
	}
}

// HistoryCommand prints the ledger entries of one file
func HistoryCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show every dispatch attempt recorded for a file",
		Flags: stageFlags(
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "File name of the work item, e.g. batch-001.csv",
				Required: true,
			},
		),
		Action: func(c *cli.Context) error {
			container, err := newContainer(c, logger)
			if err != nil {
				return err
			}

			bucket, _ := buckets(container)
			dao := di.MustGet[*itemdao.DAO](container)
			records, err := dao.QueryByFile(c.Context, bucket, c.String("file"))
			if err != nil {
				return err
			}
			return printJSON(records)
		},
	}
}

// findingsTable renders findings for a terminal
func findingsTable(findings []reconcile.Finding) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Kind", "Key", "Age", "Other copy"})
	for _, f := range findings {
		tw.AppendRow(table.Row{f.Kind, f.Key, f.Age.Round(time.Second).String(), f.Sibling})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
