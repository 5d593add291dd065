package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Config holds all stage configuration values from Parameter Store
type Config struct {
	AppName          string
	NextAppName      string
	Subdomain        string
	NextAppSubdomain string
	ServiceAlias     string
	Domain           string
	ProjectName      string
	VPCID            string
	PrivateSubnetAID string
	PrivateSubnetBID string
	LedgerTable      string
	BugReportRepo    string
	GitHubSecretName string
}

// parameter binds a config field to its Parameter Store name (relative to
// /<env>/stage-pipeline) and its environment variable.
type parameter struct {
	name   string
	envVar string
	field  func(*Config) *string
}

var parameters = []parameter{
	{"app-name", "APP_NAME", func(c *Config) *string { return &c.AppName }},
	{"next-app-name", "NEXT_APP_NAME", func(c *Config) *string { return &c.NextAppName }},
	{"subdomain", "SUBDOMAIN", func(c *Config) *string { return &c.Subdomain }},
	{"next-app-subdomain", "NEXT_APP_SUBDOMAIN", func(c *Config) *string { return &c.NextAppSubdomain }},
	{"service-alias", "SERVICE_ALIAS", func(c *Config) *string { return &c.ServiceAlias }},
	{"domain", "DOMAIN", func(c *Config) *string { return &c.Domain }},
	{"project-name", "PROJECT_NAME", func(c *Config) *string { return &c.ProjectName }},
	{"vpc-id", "VPC_ID", func(c *Config) *string { return &c.VPCID }},
	{"private-subnet-a-id", "PRIVATE_SUBNET_A_ID", func(c *Config) *string { return &c.PrivateSubnetAID }},
	{"private-subnet-b-id", "PRIVATE_SUBNET_B_ID", func(c *Config) *string { return &c.PrivateSubnetBID }},
	{"ledger-table", "LEDGER_TABLE", func(c *Config) *string { return &c.LedgerTable }},
	{"bug-report-repo", "BUG_REPORT_REPO", func(c *Config) *string { return &c.BugReportRepo }},
	{"github-secret-name", "GITHUB_SECRET_NAME", func(c *Config) *string { return &c.GitHubSecretName }},
}

// Normalize fills in derived defaults for env
func (c *Config) Normalize(env string) {
	if c.ProjectName == "" {
		c.ProjectName = c.AppName
	}
	if c.Subdomain == "" {
		c.Subdomain = c.AppName
	}
	if c.NextAppSubdomain == "" {
		c.NextAppSubdomain = c.NextAppName
	}
	if c.ServiceAlias == "" {
		c.ServiceAlias = "rll"
	}
	if c.Domain == "" {
		c.Domain = "byu.edu"
	}
	if c.BugReportRepo == "" && c.ProjectName != "" {
		c.BugReportRepo = "byuawsfhtl/" + c.ProjectName
	}
	if c.GitHubSecretName == "" {
		c.GitHubSecretName = fmt.Sprintf("stage-pipeline/%s/github", env)
	}
}

// Validate reports the first required value that is missing
func (c *Config) Validate() error {
	required := map[string]string{
		"app-name":      c.AppName,
		"next-app-name": c.NextAppName,
	}
	for _, p := range parameters {
		if v, ok := required[p.name]; ok && v == "" {
			return fmt.Errorf("missing required configuration %s (%s)", p.name, p.envVar)
		}
	}
	return nil
}

// ParameterStore defines the interface for accessing configuration parameters
type ParameterStore interface {
	// GetParameter retrieves a single parameter by name
	GetParameter(ctx context.Context, name string) (string, error)

	// GetConfig loads all stage configuration
	GetConfig(ctx context.Context) (*Config, error)
}

// SSMAPI is the subset of the SSM client used by SSMParameterStore
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// SSMParameterStore implements ParameterStore using AWS Systems Manager Parameter Store
type SSMParameterStore struct {
	client SSMAPI
	env    string
	mu     sync.RWMutex
	cache  map[string]string
}

// NewSSMParameterStore creates a new SSM-backed parameter store
func NewSSMParameterStore(client SSMAPI, env string) *SSMParameterStore {
	return &SSMParameterStore{
		client: client,
		env:    env,
		cache:  make(map[string]string),
	}
}

func (s *SSMParameterStore) path() string {
	return fmt.Sprintf("/%s/stage-pipeline", s.env)
}

// GetParameter retrieves a single parameter from SSM Parameter Store
func (s *SSMParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	if value, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return value, nil
	}
	s.mu.RUnlock()

	result, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get parameter %s: %w", name, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s not found", name)
	}

	value := *result.Parameter.Value

	s.mu.Lock()
	s.cache[name] = value
	s.mu.Unlock()

	return value, nil
}

// GetConfig loads all stage configuration beneath /<env>/stage-pipeline
func (s *SSMParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	path := s.path()

	params := make(map[string]string)
	paginator := ssm.NewGetParametersByPathPaginator(s.client, &ssm.GetParametersByPathInput{
		Path:           aws.String(path),
		Recursive:      aws.Bool(true),
		WithDecryption: aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get parameters by path %s: %w", path, err)
		}
		for _, param := range page.Parameters {
			if param.Name != nil && param.Value != nil {
				params[*param.Name] = *param.Value
			}
		}
	}

	s.mu.Lock()
	for k, v := range params {
		s.cache[k] = v
	}
	s.mu.Unlock()

	config := &Config{}
	for _, p := range parameters {
		*p.field(config) = strings.TrimSpace(params[path+"/"+p.name])
	}
	config.Normalize(s.env)

	return config, nil
}

// EnvParameterStore implements ParameterStore using environment variables
// for local development without an AWS connection
type EnvParameterStore struct {
	env string
}

// NewEnvParameterStore creates a new environment variable-backed parameter store
func NewEnvParameterStore(env string) *EnvParameterStore {
	return &EnvParameterStore{
		env: env,
	}
}

// GetParameter retrieves a parameter from environment variables
func (e *EnvParameterStore) GetParameter(_ context.Context, name string) (string, error) {
	return os.Getenv(name), nil
}

// GetConfig loads all stage configuration from environment variables
func (e *EnvParameterStore) GetConfig(_ context.Context) (*Config, error) {
	config := &Config{}
	for _, p := range parameters {
		*p.field(config) = strings.TrimSpace(os.Getenv(p.envVar))
	}
	config.Normalize(e.env)

	return config, nil
}
