package config

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// Bootstrap performs cold-start loading for a binary. The SDK config is
// built first from the ambient environment so SSM pointers can be resolved;
// it is then re-pointed at the validated region and endpoint.
func Bootstrap(ctx context.Context) (*Config, aws.Config, error) {
	awsCfg, err := NewAWSConfig(ctx, os.Getenv("AWS_REGION"), os.Getenv("AWS_ENDPOINT_URL"))
	if err != nil {
		return nil, aws.Config{}, err
	}

	cfg, err := LoadConfig(NewSSMProviderFromConfig(awsCfg))
	if err != nil {
		return nil, aws.Config{}, err
	}

	awsCfg.Region = cfg.AWS.Region
	if cfg.AWS.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
	}
	return cfg, awsCfg, nil
}

// NewAWSConfig loads the default SDK chain. A non-empty endpointURL routes
// every client to it (LocalStack).
func NewAWSConfig(ctx context.Context, region, endpointURL string, opts ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	if endpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(endpointURL)
	}
	return awsCfg, nil
}
