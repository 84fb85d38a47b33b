package processing

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
	"github.com/openshift-assisted/fleet-telemetry/pkg/pipeline"
)

// CountStaleData counts written positions older than maxAge, by tier.
type CountStaleData struct {
	counter *prometheus.CounterVec
	clock   clockwork.Clock
	maxAge  time.Duration
	inner   pipeline.Processing[entity.TelemetryBatch]
}

func NewCountStaleData(p pipeline.Processing[entity.TelemetryBatch], registry prometheus.Registerer, clock clockwork.Clock, maxAge time.Duration, config pipeline.MetricsConfig) (pipeline.Processing[entity.TelemetryBatch], error) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "stale_positions_total",
		Help:      "Stale position counter by tier.",
	}, []string{"tier"})

	err := registry.Register(counter)
	if err != nil {
		return nil, fmt.Errorf("failed to register metric: %w", err)
	}

	ret := CountStaleData{
		counter: counter,
		clock:   clock,
		maxAge:  maxAge,
		inner:   p,
	}

	return ret, nil
}

func (p CountStaleData) Process(ctx context.Context, batch entity.TelemetryBatch) error {
	err := p.inner.Process(ctx, batch)
	if err != nil {
		return err // Count only successfully processed data
	}

	deadline := p.computeDeadline()

	for _, e := range batch.Entities {
		if e.Position == nil || e.Position.Timestamp.After(deadline) {
			continue
		}

		p.counter.WithLabelValues(string(e.Tier)).Inc()
	}

	return nil
}

// Positions reported at or before the deadline are stale.
func (p CountStaleData) computeDeadline() time.Time {
	return p.clock.Now().UTC().Add(-p.maxAge)
}
