package factory

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/openshift-assisted/fleet-telemetry/internal/config"
	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
	"github.com/openshift-assisted/fleet-telemetry/internal/processing"
	"github.com/openshift-assisted/fleet-telemetry/pkg/pipeline"
)

const metricNamespace = "fleet"

/*
 * DecorateProcessing decorates the sink processing as follow:
 *
 * recover --> duration --> [timeout] --> retry --> stale count --> count --> main (kafka + mqtt + s3)
 */
func DecorateProcessing(mainProcessing pipeline.Processing[entity.TelemetryBatch], registry prometheus.Registerer, clock clockwork.Clock, conf config.Sink, logger logr.Logger) (pipeline.Processing[entity.TelemetryBatch], error) {
	metrics := pipeline.MetricsConfig{Namespace: metricNamespace, Subsystem: "sink"}

	counted, err := processing.NewCountData(mainProcessing, registry, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create data count processing: %w", err)
	}

	counted, err = processing.NewCountStaleData(counted, registry, clock, conf.StaleAfter, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create stale data count processing: %w", err)
	}

	ret, err := pipeline.Chain(counted,
		pipeline.Recover[entity.TelemetryBatch](),
		pipeline.Duration[entity.TelemetryBatch](registry, clock, metrics),
		pipeline.Timeout[entity.TelemetryBatch](conf.Timeout),
		pipeline.Retry[entity.TelemetryBatch](retryConfig(conf, clock), logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to decorate sink processing: %w", err)
	}

	return ret, nil
}

/*
 * DecorateErrorProcessing decorates the dead letter processing as follow:
 *
 *                                    ---> retry --> main (dlq)
 *  recover --> duration --> fanout --|
 *                                    ---> error count
 */
func DecorateErrorProcessing(mainProcessing pipeline.ErrorProcessing, registry prometheus.Registerer, clock clockwork.Clock, conf config.Sink, logger logr.Logger) (pipeline.ErrorProcessing, error) {
	metrics := pipeline.MetricsConfig{Namespace: metricNamespace, Subsystem: "dlq"}

	deadLetter, err := pipeline.Chain[pipeline.ErrProcessingError](mainProcessing,
		pipeline.Retry[pipeline.ErrProcessingError](retryConfig(conf, clock), logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to decorate dead letter processing: %w", err)
	}

	errorCount, err := pipeline.NewErrorCount(registry, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create error count processing: %w", err)
	}

	fanOut := pipeline.NewFanOut(
		pipeline.Branch[pipeline.ErrProcessingError]{Name: "dlq", Processing: deadLetter},
		pipeline.Branch[pipeline.ErrProcessingError]{Name: "count", Processing: errorCount},
	)

	ret, err := pipeline.Chain[pipeline.ErrProcessingError](fanOut,
		pipeline.Recover[pipeline.ErrProcessingError](),
		pipeline.Duration[pipeline.ErrProcessingError](registry, clock, metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to decorate dead letter processing: %w", err)
	}

	return ret, nil
}

func retryConfig(conf config.Sink, clock clockwork.Clock) pipeline.RetryConfig {
	return pipeline.RetryConfig{
		MaxAttempt: conf.MaxAttempt,
		Delay:      conf.RetryDelay,
		Clock:      clock,
	}
}
