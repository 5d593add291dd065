package services

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	params map[string]string
	pages  int
	gets   int
}

func (f *fakeSSM) GetParameter(_ context.Context, params *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.gets++
	v, ok := f.params[aws.ToString(params.Name)]
	if !ok {
		return nil, fmt.Errorf("ParameterNotFound")
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Name: params.Name, Value: aws.String(v)}}, nil
}

// GetParametersByPath returns one parameter per page to exercise pagination.
func (f *fakeSSM) GetParametersByPath(_ context.Context, params *ssm.GetParametersByPathInput, _ ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error) {
	f.pages++

	var names []string
	for name := range f.params {
		names = append(names, name)
	}
	sort.Strings(names)

	start := 0
	if token := aws.ToString(params.NextToken); token != "" {
		fmt.Sscanf(token, "%d", &start)
	}
	if start >= len(names) {
		return &ssm.GetParametersByPathOutput{}, nil
	}

	out := &ssm.GetParametersByPathOutput{
		Parameters: []ssmtypes.Parameter{{Name: aws.String(names[start]), Value: aws.String(f.params[names[start]])}},
	}
	if start+1 < len(names) {
		out.NextToken = aws.String(fmt.Sprintf("%d", start+1))
	}
	return out, nil
}

func TestSSMParameterStore_GetConfig(t *testing.T) {
	client := &fakeSSM{params: map[string]string{
		"/stg/stage-pipeline/app-name":            "extract",
		"/stg/stage-pipeline/next-app-name":       "index",
		"/stg/stage-pipeline/vpc-id":              "vpc-1",
		"/stg/stage-pipeline/private-subnet-a-id": "subnet-a",
		"/stg/stage-pipeline/private-subnet-b-id": "subnet-b",
		"/prd/stage-pipeline/app-name":            "wrong-env",
	}}
	store := NewSSMParameterStore(client, "stg")

	config, err := store.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Greater(t, client.pages, 1)

	assert.Equal(t, "extract", config.AppName)
	assert.Equal(t, "index", config.NextAppName)
	assert.Equal(t, "vpc-1", config.VPCID)
	assert.Equal(t, "subnet-a", config.PrivateSubnetAID)
	assert.Equal(t, "subnet-b", config.PrivateSubnetBID)

	// defaults
	assert.Equal(t, "extract", config.ProjectName)
	assert.Equal(t, "extract", config.Subdomain)
	assert.Equal(t, "index", config.NextAppSubdomain)
	assert.Equal(t, "rll", config.ServiceAlias)
	assert.Equal(t, "byu.edu", config.Domain)
	assert.Equal(t, "stage-pipeline/stg/github", config.GitHubSecretName)
	assert.NoError(t, config.Validate())

	// cached by GetConfig
	value, err := store.GetParameter(context.Background(), "/stg/stage-pipeline/vpc-id")
	require.NoError(t, err)
	assert.Equal(t, "vpc-1", value)
	assert.Equal(t, 0, client.gets)
}

func TestEnvParameterStore_GetConfig(t *testing.T) {
	t.Setenv("APP_NAME", "extract")
	t.Setenv("NEXT_APP_NAME", "index")
	t.Setenv("SERVICE_ALIAS", "lab")
	t.Setenv("PROJECT_NAME", "extract-stage")
	t.Setenv("LEDGER_TABLE", "extract-ledger")

	config, err := NewEnvParameterStore("dev").GetConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "extract", config.AppName)
	assert.Equal(t, "lab", config.ServiceAlias)
	assert.Equal(t, "extract-stage", config.ProjectName)
	assert.Equal(t, "extract-ledger", config.LedgerTable)
	assert.Equal(t, "byuawsfhtl/extract-stage", config.BugReportRepo)
	assert.Equal(t, "stage-pipeline/dev/github", config.GitHubSecretName)
}

func TestConfig_Validate(t *testing.T) {
	config := &Config{AppName: "extract"}
	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "next-app-name")

	config.NextAppName = "index"
	assert.NoError(t, config.Validate())
}
