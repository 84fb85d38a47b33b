package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	promdto "github.com/prometheus/client_model/go"

	"github.com/openshift-assisted/fleet-telemetry/pkg/pipeline"
)

func TestPipeline(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Pipeline test suite")
}

type Data struct{}

var (
	data = Data{}

	errOneError = errors.New("error for testing purpose")
	oneCategory = "category1"

	errRetryable = pipeline.NewRetryableErrProcessingError(errOneError, oneCategory, nil)
)

// clockedProcessing advances a fake clock by Took then returns Err.
type clockedProcessing struct {
	clock clockwork.FakeClock
	Took  time.Duration
	Err   error
}

func (c *clockedProcessing) Process(context.Context, Data) error {
	c.clock.Advance(c.Took)

	return c.Err
}

func metricWithLabel(metrics []*promdto.Metric, name, value string) *promdto.Metric {
	for _, metric := range metrics {
		for _, label := range metric.GetLabel() {
			if label.GetName() == name && label.GetValue() == value {
				return metric
			}
		}
	}

	return nil
}
