package orchestrator

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/savaki/stage-pipeline/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeECS struct {
	taskDefs []string
	listErr  error
	runErr   error
	failures []ecstypes.Failure

	listInput *ecs.ListTaskDefinitionsInput
	runInputs []*ecs.RunTaskInput
}

func (f *fakeECS) ListTaskDefinitions(_ context.Context, params *ecs.ListTaskDefinitionsInput, _ ...func(*ecs.Options)) (*ecs.ListTaskDefinitionsOutput, error) {
	f.listInput = params
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &ecs.ListTaskDefinitionsOutput{TaskDefinitionArns: f.taskDefs}, nil
}

func (f *fakeECS) RunTask(_ context.Context, params *ecs.RunTaskInput, _ ...func(*ecs.Options)) (*ecs.RunTaskOutput, error) {
	f.runInputs = append(f.runInputs, params)
	if f.runErr != nil {
		return nil, f.runErr
	}
	if len(f.failures) > 0 {
		return &ecs.RunTaskOutput{Failures: f.failures}, nil
	}
	return &ecs.RunTaskOutput{
		Tasks: []ecstypes.Task{{TaskArn: aws.String("arn:aws:ecs:us-west-2:123:task/stage/abc")}},
	}, nil
}

type fakeEC2 struct {
	groupIDs []string
	input    *ec2.DescribeSecurityGroupsInput
}

func (f *fakeEC2) DescribeSecurityGroups(_ context.Context, params *ec2.DescribeSecurityGroupsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	f.input = params
	var groups []ec2types.SecurityGroup
	for _, id := range f.groupIDs {
		groups = append(groups, ec2types.SecurityGroup{GroupId: aws.String(id)})
	}
	return &ec2.DescribeSecurityGroupsOutput{SecurityGroups: groups}, nil
}

var testConfig = Config{
	Project: "stage",
	VPCID:   "vpc-1",
	SubnetA: "subnet-a",
	SubnetB: "subnet-b",
}

func TestConfigNames(t *testing.T) {
	assert.Equal(t, "stage", testConfig.Cluster())
	assert.Equal(t, "stage-def", testConfig.Family())
	assert.Equal(t, "stageContainer", testConfig.Container())
	assert.Equal(t, "stage-fargate-sg", testConfig.SecurityGroup())
}

func TestStartTask(t *testing.T) {
	ecsClient := &fakeECS{taskDefs: []string{"arn:stage-def:7", "arn:stage-def:6"}}
	ec2Client := &fakeEC2{groupIDs: []string{"sg-123"}}
	o := New(ecsClient, ec2Client, testConfig)

	taskArn, err := o.StartTask(context.Background(), "InProgress/x.csv", map[string]string{
		"DISPATCH_ID": "2HFj3kLmNoPqRsTuVwXy",
		InputFileVar:  "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:ecs:us-west-2:123:task/stage/abc", taskArn)

	// latest revision by family
	require.NotNil(t, ecsClient.listInput)
	assert.Equal(t, "stage-def", aws.ToString(ecsClient.listInput.FamilyPrefix))
	assert.Equal(t, ecstypes.SortOrderDesc, ecsClient.listInput.Sort)

	// security group looked up by name within the vpc
	require.NotNil(t, ec2Client.input)
	require.Len(t, ec2Client.input.Filters, 2)
	assert.Equal(t, []string{"vpc-1"}, ec2Client.input.Filters[0].Values)
	assert.Equal(t, []string{"stage-fargate-sg"}, ec2Client.input.Filters[1].Values)

	require.Len(t, ecsClient.runInputs, 1)
	in := ecsClient.runInputs[0]
	assert.Equal(t, "stage", aws.ToString(in.Cluster))
	assert.Equal(t, "arn:stage-def:7", aws.ToString(in.TaskDefinition))
	assert.Equal(t, int32(1), aws.ToInt32(in.Count))
	assert.Equal(t, ecstypes.LaunchTypeFargate, in.LaunchType)
	assert.Equal(t, []string{"subnet-a", "subnet-b"}, in.NetworkConfiguration.AwsvpcConfiguration.Subnets)
	assert.Equal(t, []string{"sg-123"}, in.NetworkConfiguration.AwsvpcConfiguration.SecurityGroups)

	require.Len(t, in.Overrides.ContainerOverrides, 1)
	override := in.Overrides.ContainerOverrides[0]
	assert.Equal(t, "stageContainer", aws.ToString(override.Name))

	env := map[string]string{}
	for _, kv := range override.Environment {
		env[aws.ToString(kv.Name)] = aws.ToString(kv.Value)
	}
	assert.Equal(t, map[string]string{
		"DISPATCH_ID": "2HFj3kLmNoPqRsTuVwXy",
		"INFILE":      "InProgress/x.csv",
	}, env)
}

func TestStartTaskNoTaskDefinition(t *testing.T) {
	ecsClient := &fakeECS{}
	o := New(ecsClient, &fakeEC2{groupIDs: []string{"sg-123"}}, testConfig)

	_, err := o.StartTask(context.Background(), "InProgress/x.csv", nil)
	assert.ErrorIs(t, err, errors.ErrNoTaskDefinition)
	assert.Empty(t, ecsClient.runInputs)
}

func TestStartTaskNoSecurityGroup(t *testing.T) {
	ecsClient := &fakeECS{taskDefs: []string{"arn:stage-def:1"}}
	o := New(ecsClient, &fakeEC2{}, testConfig)

	_, err := o.StartTask(context.Background(), "InProgress/x.csv", nil)
	assert.ErrorIs(t, err, errors.ErrNoSecurityGroup)
	assert.Empty(t, ecsClient.runInputs)
}

func TestStartTaskErrors(t *testing.T) {
	tests := []struct {
		name string
		ecs  *fakeECS
	}{
		{
			name: "list fails",
			ecs:  &fakeECS{listErr: fmt.Errorf("throttled")},
		},
		{
			name: "run fails",
			ecs:  &fakeECS{taskDefs: []string{"arn:stage-def:1"}, runErr: fmt.Errorf("access denied")},
		},
		{
			name: "run reports failures",
			ecs: &fakeECS{
				taskDefs: []string{"arn:stage-def:1"},
				failures: []ecstypes.Failure{{Arn: aws.String("arn:x"), Reason: aws.String("RESOURCE:MEMORY")}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(tt.ecs, &fakeEC2{groupIDs: []string{"sg-123"}}, testConfig)

			_, err := o.StartTask(context.Background(), "InProgress/x.csv", nil)
			require.Error(t, err)
			assert.NotErrorIs(t, err, errors.ErrNoTaskDefinition)
			assert.NotErrorIs(t, err, errors.ErrNoSecurityGroup)
		})
	}
}
