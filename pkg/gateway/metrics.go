package gateway

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

type gatewayMetrics struct {
	attempts    *prometheus.CounterVec
	cache       *prometheus.CounterVec
	breakerOpen prometheus.Gauge
	queueLength prometheus.Gauge
}

// RegisterMetrics creates the gateway metrics in the given namespace.
// It must be called before Start.
func (g *Gateway[Response]) RegisterMetrics(registry prometheus.Registerer, namespace string) error {
	m := &gatewayMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_attempts_total",
			Help:      "Upstream attempts by action and outcome.",
		}, []string{"action", "outcome"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_cache_total",
			Help:      "Cache lookups by result.",
		}, []string{"result"}),
		breakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gateway_breaker_open",
			Help:      "1 while the circuit breaker is open.",
		}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gateway_queue_length",
			Help:      "Calls waiting for their turn.",
		}),
	}

	for _, c := range []prometheus.Collector{m.attempts, m.cache, m.breakerOpen, m.queueLength} {
		err := registry.Register(c)
		if err != nil {
			return fmt.Errorf("failed to register metric: %w", err)
		}
	}

	g.metrics = m

	return nil
}

func (g *Gateway[Response]) observeAttempt(action string, err error) {
	if g.metrics == nil {
		return
	}

	g.metrics.attempts.WithLabelValues(action, Kind(err)).Inc()
}

func (g *Gateway[Response]) observeCache(hit bool) {
	if g.metrics == nil {
		return
	}

	label := "miss"
	if hit {
		label = "hit"
	}

	g.metrics.cache.WithLabelValues(label).Inc()
}

func (g *Gateway[Response]) setQueueLength(length int) {
	if g.metrics == nil {
		return
	}

	g.metrics.queueLength.Set(float64(length))
}

func (g *Gateway[Response]) setBreakerGauge(status BreakerStatus) {
	if g.metrics == nil {
		return
	}

	value := 0.0
	if status.State == BreakerOpen {
		value = 1
	}

	g.metrics.breakerOpen.Set(value)
}
