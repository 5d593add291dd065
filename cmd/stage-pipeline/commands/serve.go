package commands

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/savaki/stage-pipeline/internal/di"
	"github.com/savaki/stage-pipeline/internal/trigger"
	"github.com/urfave/cli/v2"
)

// ServeCommand runs the trigger endpoint as a local HTTP server
func ServeCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the trigger endpoint locally",
		Flags: stageFlags(
			&cli.StringFlag{
				Name:  "port",
				Usage: "Port to listen on",
				Value: "8080",
			},
		),
		Action: func(c *cli.Context) error {
			container, err := newContainer(c, logger)
			if err != nil {
				return err
			}

			addr := fmt.Sprintf(":%s", c.String("port"))
			handler := di.MustGet[*trigger.Handler](container)

			logger.Info().
				Str("addr", addr).
				Str("env", c.String("env")).
				Bool("local", c.Bool("local")).
				Msg("Starting HTTP server")

			server := &http.Server{
				Addr:    addr,
				Handler: handler.Router(*logger, ""),
			}
			return server.ListenAndServe()
		},
	}
}
