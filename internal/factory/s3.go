package factory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/logging"
	"github.com/go-logr/logr"

	"github.com/openshift-assisted/fleet-telemetry/internal/config"
	"github.com/openshift-assisted/fleet-telemetry/internal/log"
)

var ErrMissingBucket = errors.New("missing s3 bucket")

// CreateS3Client builds a client for one bucket usage: dead letters or archive.
// Static credentials are used when both keys are set, the default aws chain otherwise.
func CreateS3Client(ctx context.Context, usage string, conf config.S3) (*s3.Client, error) {
	if conf.Bucket == "" {
		return nil, fmt.Errorf("%w for %s", ErrMissingBucket, usage)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(conf.Region),
		awsconfig.WithLogger(smithyLogger{log.Component("s3").WithValues("usage", usage)}),
	}

	if conf.Creds.AccessKeyID != "" && conf.Creds.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.Creds.AccessKeyID, conf.Creds.SecretAccessKey, ""),
		))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config for %s: %w", usage, err)
	}

	if conf.BaseEndpoint != "" {
		awsConfig.BaseEndpoint = aws.String(normalizeEndpoint(conf.BaseEndpoint))
	}

	return s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		o.UsePathStyle = conf.UsePathStyle
	}), nil
}

// normalizeEndpoint defaults to https when no scheme is given.
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimRight(endpoint, "/")

	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}

	return "https://" + endpoint
}

// smithyLogger sends aws sdk warnings at V(0) and debug at V(3).
type smithyLogger struct {
	logger logr.Logger
}

func (l smithyLogger) Logf(classification logging.Classification, format string, v ...any) {
	switch classification {
	case logging.Warn:
		l.logger.Info(fmt.Sprintf(format, v...), "classification", string(classification))
	case logging.Debug:
		l.logger.V(3).Info(fmt.Sprintf(format, v...))
	}
}
