package aws

import (
	"context"
	"fmt"
	"os"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// LoadAWSConfig loads the default AWS config. When AWS_ENDPOINT is set (e.g.
// a LocalStack edge port) every client built from the config targets it.
func LoadAWSConfig(ctx context.Context) (sdkaws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return cfg, fmt.Errorf("failed to load aws config: %w", err)
	}

	if cfg.Region == "" {
		cfg.Region = os.Getenv("AWS_REGION")
	}

	if endpoint := os.Getenv("AWS_ENDPOINT"); endpoint != "" {
		cfg.BaseEndpoint = sdkaws.String(endpoint)
	}

	return cfg, nil
}
