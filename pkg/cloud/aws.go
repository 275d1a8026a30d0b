// Package cloud builds the shared AWS SDK configuration used by storage, queues and MediaConvert.
package cloud

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"go.uber.org/zap"
)

// Credentials holds optional static AWS credentials. Empty values fall back to the default chain.
type Credentials struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// LoadConfig loads an aws.Config using static credentials from config or env
// (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY) when present, otherwise the default chain.
func LoadConfig(ctx context.Context, c Credentials, logger *zap.Logger) (aws.Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	accessKey := c.AccessKeyID
	secretKey := c.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(c.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("aws config using static credentials", zap.String("region", c.Region))
	} else {
		logger.Warn("aws config using default credential chain", zap.String("region", c.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}
