package commands

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"
	"github.com/savaki/stage-pipeline/internal/di"
	"github.com/savaki/stage-pipeline/internal/objectstore"
	"github.com/savaki/stage-pipeline/internal/orchestrator"
	"github.com/savaki/stage-pipeline/internal/pipeline"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

// PreflightCommand checks that everything a dispatch needs is reachable
func PreflightCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "preflight",
		Usage: "Verify the stage's task definition, security group and buckets",
		Flags: stageFlags(),
		Action: func(c *cli.Context) error {
			container, err := newContainer(c, logger)
			if err != nil {
				return err
			}

			ctx := c.Context
			identity, err := di.MustGet[*sts.Client](container).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
			if err != nil {
				return fmt.Errorf("failed to get caller identity: %w", err)
			}
			fmt.Printf("Account: %s\n", aws.ToString(identity.Account))
			fmt.Printf("Caller:  %s\n", aws.ToString(identity.Arn))

			bucket, next := buckets(container)
			return preflight(ctx,
				di.MustGet[*orchestrator.Orchestrator](container),
				di.MustGet[objectstore.Store](container),
				bucket, next,
			)
		},
	}
}

func preflight(ctx context.Context, orch *orchestrator.Orchestrator, store objectstore.Lister, bucket, next string) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		taskDef, err := orch.TaskDefinition(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("✓ task definition %s\n", taskDef)
		return nil
	})

	g.Go(func() error {
		network, err := orch.NetworkConfiguration(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("✓ security group %v\n", network.AwsvpcConfiguration.SecurityGroups)
		return nil
	})

	for _, b := range []string{bucket, next} {
		g.Go(func() error {
			objects, err := store.List(ctx, b, string(pipeline.StateToDo)+"/")
			if err != nil {
				return fmt.Errorf("bucket %s: %w", b, err)
			}
			fmt.Printf("✓ bucket %s (%d waiting)\n", b, len(objects))
			return nil
		})
	}

	return g.Wait()
}
