package main

import (
	"os"

	"github.com/savaki/stage-pipeline/internal/di"
	"github.com/savaki/stage-pipeline/internal/orchestrator"
	"github.com/savaki/stage-pipeline/internal/worker"
)

func main() {
	logger := di.ProvideLogger().With().Str("task", "worker").Logger()

	env := os.Getenv("ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		logger.Error().Msg("ENV or ENVIRONMENT variable is required")
		os.Exit(1)
	}

	key := os.Getenv(orchestrator.InputFileVar)
	if key == "" {
		logger.Error().Str("var", orchestrator.InputFileVar).Msg("no input file provided")
		os.Exit(1)
	}

	container, err := di.New(env, di.WithLogger(logger))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to setup DI container")
		os.Exit(1)
	}

	w := di.MustGet[*worker.Worker](container)
	ctx := di.ProvideContext(logger)
	if err := w.RunStage(ctx, key); err != nil {
		logger.Error().Err(err).Str("key", key).Msg("stage failed")
		os.Exit(1)
	}
}
