package di

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/savaki/stage-pipeline/internal/objectstore"
	"github.com/savaki/stage-pipeline/internal/orchestrator"
	"github.com/savaki/stage-pipeline/internal/services"
)

// ProvideAWSConfig loads the default AWS configuration. When endpoint is set
// every client talks to it with static credentials.
func ProvideAWSConfig(ctx context.Context, endpoint Endpoint) (aws.Config, error) {
	if endpoint == "" {
		return config.LoadDefaultConfig(ctx)
	}

	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")),
	)
	if err != nil {
		return aws.Config{}, err
	}
	cfg.BaseEndpoint = aws.String(string(endpoint))
	return cfg, nil
}

func ProvideS3Client(cfg aws.Config, endpoint Endpoint) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = endpoint != ""
	})
}

func ProvideECSClient(cfg aws.Config) *ecs.Client {
	return ecs.NewFromConfig(cfg)
}

func ProvideEC2Client(cfg aws.Config) *ec2.Client {
	return ec2.NewFromConfig(cfg)
}

func ProvideSTSClient(cfg aws.Config) *sts.Client {
	return sts.NewFromConfig(cfg)
}

func ProvideDynamoDB(cfg aws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg)
}

func ProvideSecretsManager(cfg aws.Config) *services.SecretsManagerService {
	return services.NewSecretsManagerService(secretsmanager.NewFromConfig(cfg))
}

// ProvideStore returns the bucket backend: S3, or an in-memory store in
// local mode
func ProvideStore(local Local, client *s3.Client) objectstore.Store {
	if local {
		return objectstore.NewMemory()
	}
	return objectstore.NewS3Gateway(client)
}

func ProvideOrchestrator(ecsClient *ecs.Client, ec2Client *ec2.Client, config *services.Config) *orchestrator.Orchestrator {
	return orchestrator.New(ecsClient, ec2Client, orchestrator.Config{
		Project: config.ProjectName,
		VPCID:   config.VPCID,
		SubnetA: config.PrivateSubnetAID,
		SubnetB: config.PrivateSubnetBID,
	})
}
