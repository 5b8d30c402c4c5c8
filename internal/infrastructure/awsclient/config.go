// Package awsclient loads the shared AWS SDK configuration used by the S3
// feed source, the Lambda dispatcher, the SNS notifier and Secrets Manager.
package awsclient

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	infraconfig "github.com/erp/catalogsync/internal/infrastructure/config"
)

// Load builds an aws.Config from settings. Static credentials are used only
// when both keys are set; otherwise the default chain (function role, env,
// shared profile) applies.
func Load(ctx context.Context, cfg infraconfig.AWSConfig) (aws.Config, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to create AWS config: %w", err)
	}
	return awsCfg, nil
}

// Endpoint returns the endpoint override for service clients, or nil when
// the SDK should resolve the endpoint itself.
func Endpoint(cfg infraconfig.AWSConfig) (*string, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid AWS endpoint %q", cfg.Endpoint)
	}
	return aws.String(cfg.Endpoint), nil
}
