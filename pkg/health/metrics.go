package health

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// RegisterMetrics exposes the rolling statistics as gauges evaluated at scrape time.
func (r *Recorder) RegisterMetrics(registry prometheus.Registerer, namespace string) error {
	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_success_rate",
			Help:      "Success ratio over the most recent upstream calls.",
		}, func() float64 { return r.Snapshot().SuccessRate }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_average_latency_seconds",
			Help:      "Exponentially weighted upstream latency.",
		}, func() float64 { return r.Snapshot().AverageLatency.Seconds() }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_consecutive_failures",
			Help:      "Upstream failures since the last success.",
		}, func() float64 { return float64(r.Snapshot().ConsecutiveFailures) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_degraded",
			Help:      "1 while upstream health is degraded.",
		}, func() float64 {
			if r.Snapshot().Status == StatusDegraded {
				return 1
			}

			return 0
		}),
	}

	for _, c := range collectors {
		err := registry.Register(c)
		if err != nil {
			return fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return nil
}
