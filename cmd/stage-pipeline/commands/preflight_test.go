package commands

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/savaki/stage-pipeline/internal/errors"
	"github.com/savaki/stage-pipeline/internal/objectstore"
	"github.com/savaki/stage-pipeline/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeECS struct {
	taskDefs []string
}

func (f fakeECS) ListTaskDefinitions(context.Context, *ecs.ListTaskDefinitionsInput, ...func(*ecs.Options)) (*ecs.ListTaskDefinitionsOutput, error) {
	return &ecs.ListTaskDefinitionsOutput{TaskDefinitionArns: f.taskDefs}, nil
}

func (f fakeECS) RunTask(context.Context, *ecs.RunTaskInput, ...func(*ecs.Options)) (*ecs.RunTaskOutput, error) {
	return &ecs.RunTaskOutput{}, nil
}

type fakeEC2 struct{}

func (fakeEC2) DescribeSecurityGroups(context.Context, *ec2.DescribeSecurityGroupsInput, ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	return &ec2.DescribeSecurityGroupsOutput{
		SecurityGroups: []ec2types.SecurityGroup{{GroupId: aws.String("sg-1")}},
	}, nil
}

func TestPreflight(t *testing.T) {
	cfg := orchestrator.Config{Project: "extract", VPCID: "vpc-1", SubnetA: "a", SubnetB: "b"}
	store := objectstore.NewMemory()

	err := preflight(context.Background(), orchestrator.New(fakeECS{taskDefs: []string{"arn:extract-def:3"}}, fakeEC2{}, cfg), store, "extract-data-stg", "index-data-stg")
	require.NoError(t, err)

	err = preflight(context.Background(), orchestrator.New(fakeECS{}, fakeEC2{}, cfg), store, "extract-data-stg", "index-data-stg")
	assert.ErrorIs(t, err, errors.ErrNoTaskDefinition)
}
