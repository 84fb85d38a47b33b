package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshift-assisted/fleet-telemetry/internal/config"
)

func TestParseDefaults(t *testing.T) {
	conf, err := config.Parse("")
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, conf.Gateway.MinSpacing)
	assert.Equal(t, uint(3), conf.Gateway.MaxRetries)
	assert.Equal(t, 5, conf.Gateway.BreakerThreshold)
	assert.Equal(t, 5*time.Minute, conf.Gateway.BreakerCooldown)
	assert.Equal(t, 10012, conf.Upstream.RateLimitStatus)
	assert.Equal(t, "default", conf.Polling.SessionID)
	assert.Equal(t, 30*time.Second, conf.Polling.Interval)
	assert.Equal(t, 3, conf.Polling.FallbackRetryEvery)
	assert.Equal(t, 100*time.Millisecond, conf.EventBus.TickInterval)
	assert.Equal(t, uint(3), conf.Sink.MaxAttempt)
	assert.Equal(t, config.EncoderTypeConsole, conf.Logs.Encoder)
	assert.Equal(t, 0.9, conf.Runtime.MemLimitRatio)
}

func TestParseFileAndEnv(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")

	err := os.WriteFile(file, []byte(`
upstream:
  url: https://upstream.example.com/api
  creds:
    account: fleet
gateway:
  minSpacing: 5s
polling:
  entityIDs: [a, b]
`), 0o600)
	require.NoError(t, err)

	t.Setenv("FLEETTELEMETRY_UPSTREAM_CREDS_PASSWORD", "secret")
	t.Setenv("FLEETTELEMETRY_KAFKA_BROKER_URLS", "kafka:9092")

	conf, err := config.Parse(file)
	require.NoError(t, err)

	assert.Equal(t, "https://upstream.example.com/api", conf.Upstream.URL)
	assert.Equal(t, config.UpstreamCreds{Account: "fleet", Password: "secret"}, conf.Upstream.Creds)
	assert.Equal(t, 5*time.Second, conf.Gateway.MinSpacing)
	assert.Equal(t, []string{"a", "b"}, conf.Polling.EntityIDs)
	assert.Equal(t, "kafka:9092", conf.Kafka.Broker.URLs)
	assert.Equal(t, "creds set", conf.Upstream.Creds.String())
}

func TestParseMissingFile(t *testing.T) {
	_, err := config.Parse(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
