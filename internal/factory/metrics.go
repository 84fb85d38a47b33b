package factory

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openshift-assisted/fleet-telemetry/internal/config"
	"github.com/openshift-assisted/fleet-telemetry/internal/log"
)

func CreatePrometheusServer(conf config.Metrics, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog:          promLogger{},
		EnableOpenMetrics: true,
	}))

	ret := &http.Server{
		Addr:              fmt.Sprintf(":%d", conf.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       5 * time.Second,
	}
	ret.SetKeepAlivesEnabled(true)

	return ret
}

// promLogger reports gathering errors through the component logger.
type promLogger struct{}

func (promLogger) Println(v ...any) {
	log.Component("metrics").Info(fmt.Sprint(v...))
}
