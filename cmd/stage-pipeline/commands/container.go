package commands

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/savaki/stage-pipeline/internal/di"
	"github.com/savaki/stage-pipeline/internal/environment"
	"github.com/savaki/stage-pipeline/internal/services"
	"github.com/urfave/cli/v2"
)

// stageFlags are accepted by every command that builds a container
func stageFlags(extra ...cli.Flag) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "env",
			Aliases:  []string{"e"},
			Usage:    "Environment (dev, stg, prd or a custom label)",
			Required: true,
			EnvVars:  []string{"ENV", "ENVIRONMENT"},
		},
		&cli.StringFlag{
			Name:    "endpoint",
			Usage:   "AWS endpoint override (e.g. http://localhost:4566)",
			EnvVars: []string{"AWS_ENDPOINT"},
		},
		&cli.BoolFlag{
			Name:  "local",
			Usage: "Use an in-memory bucket instead of S3",
		},
		&cli.BoolFlag{
			Name:    "disable-ssm",
			Usage:   "Disable AWS Systems Manager Parameter Store (use environment variables)",
			EnvVars: []string{"DISABLE_SSM"},
		},
	}
	return append(flags, extra...)
}

func newContainer(c *cli.Context, logger *zerolog.Logger) (di.Container, error) {
	container, err := di.New(c.String("env"),
		di.WithLogger(*logger),
		di.WithLocal(c.Bool("local")),
		di.WithEndpoint(c.String("endpoint")),
		di.WithDisableSSM(c.Bool("disable-ssm")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to setup DI container: %w", err)
	}
	return container, nil
}

// buckets returns this stage's bucket and the next stage's bucket
func buckets(container di.Container) (bucket, next string) {
	config := di.MustGet[*services.Config](container)
	env := di.MustGet[environment.Environment](container)
	return environment.BucketName(config.AppName, env), environment.BucketName(config.NextAppName, env)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
