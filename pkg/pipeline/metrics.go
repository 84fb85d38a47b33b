package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

type MetricsConfig struct {
	Namespace string
	Subsystem string
	Buckets   []float64
}

const (
	outcomeSuccess   = "success"
	outcomeRetryable = "retryable"
	outcomeFailure   = "failure"
)

// Duration observes every call in seconds, labelled by outcome: success, retryable or failure.
func Duration[Payload any](registry prometheus.Registerer, clock clockwork.Clock, config MetricsConfig) Decorator[Payload] {
	return func(next Processing[Payload]) (Processing[Payload], error) {
		buckets := config.Buckets
		if len(buckets) == 0 {
			buckets = prometheus.DefBuckets
		}

		histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "processing_duration_seconds",
			Help:      "Time taken to process a payload, by outcome.",
			Buckets:   buckets,
		}, []string{"outcome"})

		err := registry.Register(histogram)
		if err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}

		return ProcessingFunc[Payload](func(ctx context.Context, payload Payload) error {
			start := clock.Now()

			err := next.Process(ctx, payload)

			histogram.WithLabelValues(outcome(err)).Observe(clock.Since(start).Seconds())

			return err
		}), nil
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, ErrRetryableError):
		return outcomeRetryable
	default:
		return outcomeFailure
	}
}

// ErrorCount counts processing errors by category and retryability. It never fails.
type ErrorCount struct {
	counter *prometheus.CounterVec
}

func NewErrorCount(registry prometheus.Registerer, config MetricsConfig) (ErrorCount, error) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "processing_errors_total",
		Help:      "Processing errors by category.",
	}, []string{"category", "retryable"})

	err := registry.Register(counter)
	if err != nil {
		return ErrorCount{}, fmt.Errorf("failed to register metric: %w", err)
	}

	return ErrorCount{counter: counter}, nil
}

func (c ErrorCount) Process(_ context.Context, pErr ErrProcessingError) error {
	category := pErr.Category
	if category == "" {
		category = UnknownCategory
	}

	c.counter.WithLabelValues(category, fmt.Sprintf("%t", errors.Is(pErr, ErrRetryableError))).Inc()

	return nil
}
