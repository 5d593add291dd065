package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog"
	"github.com/savaki/stage-pipeline/internal/di"
	"github.com/savaki/stage-pipeline/internal/trigger"
	"github.com/urfave/cli/v2"
)

func setupContainer(env string, logger zerolog.Logger, opts ...di.Option) (di.Container, error) {
	return di.New(env, append(opts, di.WithLogger(logger))...)
}

// newRouter builds the trigger routes from container
func newRouter(container di.Container, env string) http.Handler {
	logger := di.MustGet[zerolog.Logger](container)
	handler := di.MustGet[*trigger.Handler](container)
	return handler.Router(logger, env)
}

// serveAction starts a local HTTP server for testing
func serveAction(logger zerolog.Logger) cli.ActionFunc {
	return func(c *cli.Context) error {
		addr := fmt.Sprintf(":%s", c.String("port"))
		env := c.String("env")

		container, err := setupContainer(env, logger,
			di.WithLocal(c.Bool("local")),
			di.WithEndpoint(c.String("endpoint")),
			di.WithDisableSSM(c.Bool("disable-ssm")),
		)
		if err != nil {
			return fmt.Errorf("failed to setup DI container: %w", err)
		}

		logger.Info().
			Str("addr", addr).
			Str("env", env).
			Bool("local", c.Bool("local")).
			Bool("disable_ssm", c.Bool("disable-ssm")).
			Msg("Starting HTTP server")

		server := &http.Server{
			Addr:    addr,
			Handler: newRouter(container, ""),
		}
		return server.ListenAndServe()
	}
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "trigger").Logger()

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		env := os.Getenv("ENV")
		if env == "" {
			env = os.Getenv("ENVIRONMENT")
		}
		if env == "" {
			logger.Error().Msg("ENV or ENVIRONMENT variable is required")
			os.Exit(1)
		}

		container, err := setupContainer(env, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to setup DI container")
			os.Exit(1)
		}

		logger.Info().Str("env", env).Msg("Initializing Lambda handler")

		// Use AWS Lambda HTTP adapter for API Gateway V2
		lambda.Start(httpadapter.NewV2(newRouter(container, env)).ProxyWithContext)
		return
	}

	// CLI mode for local testing
	app := &cli.App{
		Name:  "trigger",
		Usage: "Stage trigger endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Environment name (dev, stg, prd or a custom label)",
				EnvVars: []string{"ENV", "ENVIRONMENT"},
				Value:   "dev",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start local HTTP server for testing",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "port",
						Usage: "Port to listen on",
						Value: "8080",
					},
					&cli.BoolFlag{
						Name:  "local",
						Usage: "Use an in-memory bucket instead of S3",
					},
					&cli.StringFlag{
						Name:    "endpoint",
						Usage:   "AWS endpoint override (e.g. http://localhost:4566)",
						EnvVars: []string{"AWS_ENDPOINT"},
					},
					&cli.BoolFlag{
						Name:    "disable-ssm",
						Usage:   "Disable AWS Systems Manager Parameter Store (use environment variables)",
						EnvVars: []string{"DISABLE_SSM"},
					},
				},
				Action: serveAction(logger),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
