package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/rs/zerolog"
	"github.com/savaki/stage-pipeline/internal/errors"
	"github.com/savaki/stage-pipeline/internal/utils"
)

// InputFileVar is the container environment variable carrying the work item key.
const InputFileVar = "INFILE"

// ECSAPI is the subset of the ECS client used to launch stage tasks
type ECSAPI interface {
	ListTaskDefinitions(ctx context.Context, params *ecs.ListTaskDefinitionsInput, optFns ...func(*ecs.Options)) (*ecs.ListTaskDefinitionsOutput, error)
	RunTask(ctx context.Context, params *ecs.RunTaskInput, optFns ...func(*ecs.Options)) (*ecs.RunTaskOutput, error)
}

// EC2API is the subset of the EC2 client used to resolve network placement
type EC2API interface {
	DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
}

// Config names the ECS resources owned by one stage deployment
type Config struct {
	Project string // cluster name and prefix of every derived resource name
	VPCID   string
	SubnetA string
	SubnetB string
}

func (c Config) Cluster() string       { return c.Project }
func (c Config) Family() string        { return c.Project + "-def" }
func (c Config) Container() string     { return c.Project + "Container" }
func (c Config) SecurityGroup() string { return c.Project + "-fargate-sg" }

// Orchestrator launches the stage worker as a Fargate task
type Orchestrator struct {
	ecs ECSAPI
	ec2 EC2API
	cfg Config
}

// New creates a new Orchestrator instance
func New(ecsClient ECSAPI, ec2Client EC2API, cfg Config) *Orchestrator {
	return &Orchestrator{
		ecs: ecsClient,
		ec2: ec2Client,
		cfg: cfg,
	}
}

// TaskDefinition returns the ARN of the latest task definition revision in
// the stage's family
func (o *Orchestrator) TaskDefinition(ctx context.Context) (string, error) {
	out, err := o.ecs.ListTaskDefinitions(ctx, &ecs.ListTaskDefinitionsInput{
		FamilyPrefix: aws.String(o.cfg.Family()),
		Sort:         ecstypes.SortOrderDesc,
		MaxResults:   aws.Int32(1),
	})
	if err != nil {
		return "", fmt.Errorf("failed to list task definitions for %s: %w", o.cfg.Family(), err)
	}
	if len(out.TaskDefinitionArns) == 0 {
		return "", fmt.Errorf("%w: family %s", errors.ErrNoTaskDefinition, o.cfg.Family())
	}
	return out.TaskDefinitionArns[0], nil
}

// NetworkConfiguration returns the awsvpc placement for stage tasks: both
// private subnets and the stage's security group
func (o *Orchestrator) NetworkConfiguration(ctx context.Context) (*ecstypes.NetworkConfiguration, error) {
	out, err := o.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{o.cfg.VPCID}},
			{Name: aws.String("group-name"), Values: []string{o.cfg.SecurityGroup()}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe security groups in %s: %w", o.cfg.VPCID, err)
	}
	if len(out.SecurityGroups) == 0 || aws.ToString(out.SecurityGroups[0].GroupId) == "" {
		return nil, fmt.Errorf("%w: %s in %s", errors.ErrNoSecurityGroup, o.cfg.SecurityGroup(), o.cfg.VPCID)
	}

	return &ecstypes.NetworkConfiguration{
		AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{
			Subnets:        []string{o.cfg.SubnetA, o.cfg.SubnetB},
			SecurityGroups: []string{aws.ToString(out.SecurityGroups[0].GroupId)},
		},
	}, nil
}

// StartTask launches exactly one worker task for key and returns its ARN
// without waiting for it to run. env is added to the container environment;
// INFILE is always set to key.
func (o *Orchestrator) StartTask(ctx context.Context, key string, env map[string]string) (string, error) {
	logger := zerolog.Ctx(ctx).With().
		Str("cluster", o.cfg.Cluster()).
		Str("key", key).
		Logger()

	defer func(begin time.Time) {
		logger.Debug().Dur("elapsed", time.Since(begin)).Msg("start task")
	}(time.Now())

	taskDef, err := o.TaskDefinition(ctx)
	if err != nil {
		return "", err
	}

	network, err := o.NetworkConfiguration(ctx)
	if err != nil {
		return "", err
	}

	out, err := o.ecs.RunTask(ctx, &ecs.RunTaskInput{
		Cluster:              aws.String(o.cfg.Cluster()),
		TaskDefinition:       aws.String(taskDef),
		Count:                aws.Int32(1),
		LaunchType:           ecstypes.LaunchTypeFargate,
		NetworkConfiguration: network,
		Overrides: &ecstypes.TaskOverride{
			ContainerOverrides: []ecstypes.ContainerOverride{
				{
					Name:        aws.String(o.cfg.Container()),
					Environment: utils.MergeEnvironment(env, map[string]string{InputFileVar: key}),
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to run task %s: %w", taskDef, err)
	}
	if len(out.Tasks) == 0 {
		var reasons []string
		for _, f := range out.Failures {
			reasons = append(reasons, fmt.Sprintf("%s: %s", aws.ToString(f.Arn), aws.ToString(f.Reason)))
		}
		return "", fmt.Errorf("run task %s started no tasks: %s", taskDef, strings.Join(reasons, "; "))
	}

	taskArn := aws.ToString(out.Tasks[0].TaskArn)
	logger.Info().
		Str("task_definition", taskDef).
		Str("task_arn", taskArn).
		Msg("started task")

	return taskArn, nil
}
