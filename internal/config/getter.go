package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const prefix = "FLEETTELEMETRY"

var conf Config

// Parse reads the configuration file given as parameter.
func Parse(confFile string) (*Config, error) {
	setDefault()

	viper.SetEnvPrefix(prefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	if len(confFile) > 0 {
		viper.SetConfigFile(confFile)

		err := viper.ReadInConfig()
		if err != nil {
			return &conf, fmt.Errorf("failed to read config file %v: %w", confFile, err)
		}
	}

	err := viper.Unmarshal(&conf)
	if err != nil {
		return &conf, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &conf, nil
}

func setDefault() {
	viper.SetDefault("logs.level", 0)
	viper.SetDefault("logs.encoder", EncoderTypeConsole)
	viper.SetDefault("defaultTimeout", "8s")
	viper.SetDefault("gracefulDuration", "20s")
	viper.SetDefault("runtime.memLimitRatio", 0.9)
	viper.SetDefault("metrics.port", 7777)
	viper.SetDefault("admin.port", 7778)

	// keys without a meaningful default are declared so env variables can set them
	viper.SetDefault("upstream.url", "")
	viper.SetDefault("upstream.creds.account", "")
	viper.SetDefault("upstream.creds.password", "")
	viper.SetDefault("polling.entityIDs", []string{})
	viper.SetDefault("kafka.broker.urls", "")
	viper.SetDefault("kafka.producer.topic", "")
	viper.SetDefault("mqtt.url", "")
	viper.SetDefault("valkey.url", "")
	viper.SetDefault("archive.bucket", "")
	viper.SetDefault("deadLetterQueue.bucket", "")

	viper.SetDefault("upstream.timeout", "15s")
	viper.SetDefault("upstream.rateLimitStatus", 10012)
	viper.SetDefault("upstream.authStatuses", []int{10004, 10005})

	viper.SetDefault("gateway.minSpacing", "3s")
	viper.SetDefault("gateway.maxRetries", 3)
	viper.SetDefault("gateway.backoffBase", "1s")
	viper.SetDefault("gateway.breakerThreshold", 5)
	viper.SetDefault("gateway.breakerCooldown", "5m")
	viper.SetDefault("gateway.liveTTL", "20s")
	viper.SetDefault("gateway.referenceTTL", "5m")
	viper.SetDefault("gateway.cacheSize", 100)

	viper.SetDefault("health.window", 20)
	viper.SetDefault("health.historySize", 100)
	viper.SetDefault("health.latencyWeight", 0.1)
	viper.SetDefault("health.rateLimitCooldown", "5m")
	viper.SetDefault("health.fallbackThreshold", 3)
	viper.SetDefault("health.successRateFloor", 0.8)
	viper.SetDefault("health.latencyCeiling", "10s")

	viper.SetDefault("activity.activeWindow", "5m")
	viper.SetDefault("activity.idleWindow", "30m")
	viper.SetDefault("activity.movingSpeed", 1.0)
	viper.SetDefault("activity.fastInterval", "10s")
	viper.SetDefault("activity.mediumInterval", "15s")
	viper.SetDefault("activity.slowInterval", "30s")
	viper.SetDefault("activity.highActivityRatio", 0.5)
	viper.SetDefault("activity.mediumActivityRatio", 0.2)

	viper.SetDefault("polling.sessionID", "default")
	viper.SetDefault("polling.interval", "30s")
	viper.SetDefault("polling.fetchTimeout", "2m")
	viper.SetDefault("polling.topic", "telemetry.positions")
	viper.SetDefault("polling.fallbackRetryEvery", 3)

	viper.SetDefault("eventBus.tickInterval", "100ms")
	viper.SetDefault("eventBus.historySize", 1000)
	viper.SetDefault("eventBus.maxQueueSize", 10000)
	viper.SetDefault("eventBus.maxConcurrentHandlers", 16)
	viper.SetDefault("eventBus.handlerTimeout", "30s")

	viper.SetDefault("sink.timeout", "30s")
	viper.SetDefault("sink.maxAttempt", 3)
	viper.SetDefault("sink.retryDelay", "500ms")
	viper.SetDefault("sink.staleAfter", "30m")

	viper.SetDefault("deadLetterQueue.keyPrefix", "dlq")
	viper.SetDefault("archive.keyPrefix", "telemetry")

	viper.SetDefault("kafka.broker.version", "3.6.0")
	viper.SetDefault("kafka.broker.creds.mechanism", "SCRAM-SHA-512")
	viper.SetDefault("kafka.producer.retryMax", 3)

	viper.SetDefault("mqtt.clientID", "fleet-telemetry")
	viper.SetDefault("mqtt.topicTemplate", "fleet/{entity_id}/telemetry")
	viper.SetDefault("mqtt.qos", 1)

	viper.SetDefault("valkey.key", "fleet-telemetry:state")
	viper.SetDefault("valkey.expiration", "168h")
}
