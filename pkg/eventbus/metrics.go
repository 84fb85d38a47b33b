package eventbus

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type busMetrics struct {
	emitted  *prometheus.CounterVec
	dropped  *prometheus.CounterVec
	duration prometheus.Histogram
}

func (b *Bus) RegisterMetrics(registry prometheus.Registerer, namespace string) error {
	m := &busMetrics{
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eventbus_emitted_total",
			Help:      "Events queued by priority.",
		}, []string{"priority"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eventbus_dropped_total",
			Help:      "Events never delivered, by reason.",
		}, []string{"reason"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "eventbus_dispatch_duration_milliseconds",
			Help:      "Time to fan an event out to its handlers.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		}),
	}

	for _, c := range []prometheus.Collector{m.emitted, m.dropped, m.duration} {
		err := registry.Register(c)
		if err != nil {
			return fmt.Errorf("failed to register metric: %w", err)
		}
	}

	b.metrics = m

	return nil
}

func (b *Bus) observeEmitted(p Priority) {
	if b.metrics == nil {
		return
	}

	b.metrics.emitted.WithLabelValues(p.String()).Inc()
}

func (b *Bus) observeDropped(reason string) {
	if b.metrics == nil {
		return
	}

	b.metrics.dropped.WithLabelValues(reason).Inc()
}

func (b *Bus) observeDispatch(d time.Duration) {
	if b.metrics == nil {
		return
	}

	b.metrics.duration.Observe(float64(d.Milliseconds()))
}
