package factory

import (
	"context"
	"testing"

	"github.com/aws/smithy-go/logging"
	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshift-assisted/fleet-telemetry/internal/config"
)

func TestNormalizeEndpoint(t *testing.T) {
	testCases := []struct {
		endpoint string
		expected string
	}{
		{endpoint: "minio:9000", expected: "https://minio:9000"},
		{endpoint: "http://localhost:9000/", expected: "http://localhost:9000"},
		{endpoint: "https://s3.eu-west-1.amazonaws.com", expected: "https://s3.eu-west-1.amazonaws.com"},
	}

	for _, tc := range testCases {
		t.Run(tc.endpoint, func(t *testing.T) {
			assert.Equal(t, tc.expected, normalizeEndpoint(tc.endpoint))
		})
	}
}

func TestCreateS3ClientMissingBucket(t *testing.T) {
	_, err := CreateS3Client(context.Background(), "archive", config.S3{Region: "us-east-1"})
	assert.ErrorIs(t, err, ErrMissingBucket)
}

func TestCreateS3Client(t *testing.T) {
	client, err := CreateS3Client(context.Background(), "dlq", config.S3{
		Bucket:       "dlq",
		Region:       "us-east-1",
		BaseEndpoint: "localhost:9000",
		UsePathStyle: true,
		Creds:        config.AWSCreds{AccessKeyID: "key", SecretAccessKey: "secret"},
	})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestSmithyLogger(t *testing.T) {
	var lines []string

	logger := funcr.New(func(prefix, args string) {
		lines = append(lines, args)
	}, funcr.Options{Verbosity: 0})

	l := smithyLogger{logger}
	l.Logf(logging.Warn, "checksum %s", "skipped")
	l.Logf(logging.Debug, "request %d", 1)

	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "checksum skipped")
}
