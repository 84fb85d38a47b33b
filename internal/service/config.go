package service

import (
	"github.com/openshift-assisted/fleet-telemetry/internal/activity"
	"github.com/openshift-assisted/fleet-telemetry/internal/config"
	"github.com/openshift-assisted/fleet-telemetry/internal/polling"
	"github.com/openshift-assisted/fleet-telemetry/internal/upstream"
	"github.com/openshift-assisted/fleet-telemetry/pkg/eventbus"
	"github.com/openshift-assisted/fleet-telemetry/pkg/gateway"
	"github.com/openshift-assisted/fleet-telemetry/pkg/health"
)

func gatewayConfig(conf config.Gateway) gateway.Config {
	return gateway.Config{
		MinSpacing:       conf.MinSpacing,
		MaxRetries:       conf.MaxRetries,
		BackoffBase:      conf.BackoffBase,
		BreakerThreshold: conf.BreakerThreshold,
		BreakerCooldown:  conf.BreakerCooldown,
		CacheTTL:         conf.LiveTTL,
		CacheSize:        conf.CacheSize,
	}
}

func healthConfig(conf config.Health) health.Config {
	return health.Config{
		Window:            conf.Window,
		HistorySize:       conf.HistorySize,
		LatencyWeight:     conf.LatencyWeight,
		RateLimitCooldown: conf.RateLimitCooldown,
		FallbackThreshold: conf.FallbackThreshold,
		SuccessRateFloor:  conf.SuccessRateFloor,
		LatencyCeiling:    conf.LatencyCeiling,
	}
}

func activityConfig(conf config.Activity) activity.Config {
	return activity.Config{
		ActiveWindow:        conf.ActiveWindow,
		IdleWindow:          conf.IdleWindow,
		MovingSpeed:         conf.MovingSpeed,
		FastInterval:        conf.FastInterval,
		MediumInterval:      conf.MediumInterval,
		SlowInterval:        conf.SlowInterval,
		HighActivityRatio:   conf.HighActivityRatio,
		MediumActivityRatio: conf.MediumActivityRatio,
	}
}

func busConfig(conf config.EventBus) eventbus.Config {
	return eventbus.Config{
		TickInterval:          conf.TickInterval,
		HistorySize:           conf.HistorySize,
		MaxQueueSize:          conf.MaxQueueSize,
		MaxConcurrentHandlers: conf.MaxConcurrentHandlers,
		HandlerTimeout:        conf.HandlerTimeout,
	}
}

func pollingConfig(conf config.Polling) polling.Config {
	return polling.Config{
		Topic:              conf.Topic,
		FetchTimeout:       conf.FetchTimeout,
		FallbackRetryEvery: conf.FallbackRetryEvery,
	}
}

func sourceConfig(conf config.Config) upstream.SourceConfig {
	return upstream.SourceConfig{
		Creds:        conf.Upstream.Creds,
		LiveTTL:      conf.Gateway.LiveTTL,
		ReferenceTTL: conf.Gateway.ReferenceTTL,
	}
}
