package processing

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
	"github.com/openshift-assisted/fleet-telemetry/pkg/pipeline"
)

type CountData struct {
	counter *prometheus.CounterVec
	inner   pipeline.Processing[entity.TelemetryBatch]
}

func NewCountData(p pipeline.Processing[entity.TelemetryBatch], registry prometheus.Registerer, config pipeline.MetricsConfig) (pipeline.Processing[entity.TelemetryBatch], error) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "data_total",
		Help:      "Entity positions counter by session.",
	}, []string{"session", "stale"})

	err := registry.Register(counter)
	if err != nil {
		return nil, fmt.Errorf("failed to register metric: %w", err)
	}

	ret := CountData{
		counter: counter,
		inner:   p,
	}

	return ret, nil
}

func (p CountData) Process(ctx context.Context, batch entity.TelemetryBatch) error {
	defer p.counter.WithLabelValues(batch.SessionID, strconv.FormatBool(batch.Stale)).Add(float64(len(batch.Entities)))

	return p.inner.Process(ctx, batch)
}
