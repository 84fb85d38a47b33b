package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	promdto "github.com/prometheus/client_model/go"
	"go.uber.org/mock/gomock"

	"github.com/openshift-assisted/fleet-telemetry/pkg/pipeline"
	"github.com/openshift-assisted/fleet-telemetry/pkg/pipeline/mock"
)

var _ = Describe("Chain", func() {
	It("should apply the first decorator outermost", func(ctx SpecContext) {
		var calls []string

		tag := func(name string) pipeline.Decorator[Data] {
			return func(next pipeline.Processing[Data]) (pipeline.Processing[Data], error) {
				return pipeline.ProcessingFunc[Data](func(ctx context.Context, d Data) error {
					calls = append(calls, name)

					return next.Process(ctx, d)
				}), nil
			}
		}

		inner := pipeline.ProcessingFunc[Data](func(context.Context, Data) error {
			calls = append(calls, "inner")

			return nil
		})

		p, err := pipeline.Chain[Data](inner, tag("outer"), tag("middle"))
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Process(ctx, data)).To(Succeed())
		Expect(calls).To(Equal([]string{"outer", "middle", "inner"}))
	})

	It("should stop on a failing decorator", func() {
		failing := func(pipeline.Processing[Data]) (pipeline.Processing[Data], error) {
			return nil, errOneError
		}

		_, err := pipeline.Chain[Data](pipeline.ProcessingFunc[Data](nil), failing)
		Expect(err).To(MatchError(errOneError))
	})
})

var _ = Describe("FanOut", func() {
	var ctrl *gomock.Controller
	var kafka, archive *mock.MockProcessing[Data]
	var fanOut pipeline.FanOut[Data]

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		kafka = mock.NewMockProcessing[Data](ctrl)
		archive = mock.NewMockProcessing[Data](ctrl)

		fanOut = pipeline.NewFanOut(
			pipeline.Branch[Data]{Name: "kafka", Processing: kafka},
			pipeline.Branch[Data]{Name: "archive", Processing: archive},
		)
	})

	It("should call every branch", func(ctx SpecContext) {
		kafka.EXPECT().Process(gomock.Any(), data).Return(nil).Times(1)
		archive.EXPECT().Process(gomock.Any(), data).Return(nil).Times(1)

		Expect(fanOut.Process(ctx, data)).To(Succeed())
	})

	It("should keep the category of a failing branch", func(ctx SpecContext) {
		kafka.EXPECT().Process(gomock.Any(), data).Return(errRetryable).Times(1)
		archive.EXPECT().Process(gomock.Any(), data).Return(nil).Times(1)

		err := fanOut.Process(ctx, data)
		Expect(err).To(MatchError(pipeline.ErrRetryableError))
		Expect(err.Error()).To(HavePrefix("kafka: "))

		pErr := pipeline.ErrProcessingError{}
		Expect(errors.As(err, &pErr)).To(BeTrue())
		Expect(pErr.Category).To(Equal(oneCategory))
	})

	It("should join the errors of all failing branches", func(ctx SpecContext) {
		errArchive := errors.New("bucket missing")

		kafka.EXPECT().Process(gomock.Any(), data).Return(errOneError).Times(1)
		archive.EXPECT().Process(gomock.Any(), data).Return(errArchive).Times(1)

		err := fanOut.Process(ctx, data)
		Expect(err).To(MatchError(errOneError))
		Expect(err).To(MatchError(errArchive))
		Expect(err.Error()).To(ContainSubstring("archive: bucket missing"))
	})
})

var _ = Describe("Recover", func() {
	It("should turn a panic into a panic category error", func(ctx SpecContext) {
		p, err := pipeline.Chain[Data](pipeline.ProcessingFunc[Data](func(context.Context, Data) error {
			panic("nil map")
		}), pipeline.Recover[Data]())
		Expect(err).NotTo(HaveOccurred())

		err = p.Process(ctx, data)
		Expect(err).To(MatchError(pipeline.ErrPanic))
		Expect(err.Error()).To(ContainSubstring("nil map"))

		pErr := pipeline.ErrProcessingError{}
		Expect(errors.As(err, &pErr)).To(BeTrue())
		Expect(pErr.Category).To(Equal(pipeline.PanicCategory))
		Expect(pErr.AdditionalInputs).To(ConsistOf(HaveField("Key", "stack")))
	})

	It("should pass errors through", func(ctx SpecContext) {
		ctrl := gomock.NewController(GinkgoT())
		inner := mock.NewMockProcessing[Data](ctrl)
		inner.EXPECT().Process(gomock.Any(), data).Return(errOneError).Times(1)

		p, err := pipeline.Chain[Data](inner, pipeline.Recover[Data]())
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Process(ctx, data)).To(MatchError(errOneError))
	})
})

var _ = Describe("Retry", func() {
	var ctrl *gomock.Controller
	var inner *mock.MockProcessing[Data]
	var p pipeline.Processing[Data]

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		inner = mock.NewMockProcessing[Data](ctrl)

		var err error

		p, err = pipeline.Chain[Data](inner, pipeline.Retry[Data](pipeline.RetryConfig{MaxAttempt: 3, Delay: time.Millisecond}, logr.Discard()))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should retry a wrapped retryable error", func(ctx SpecContext) {
		gomock.InOrder(
			inner.EXPECT().Process(gomock.Any(), data).Return(fmt.Errorf("kafka: %w", errRetryable)).Times(1),
			inner.EXPECT().Process(gomock.Any(), data).Return(nil).Times(1),
		)

		Expect(p.Process(ctx, data)).To(Succeed())
	})

	It("should not retry other errors", func(ctx SpecContext) {
		inner.EXPECT().Process(gomock.Any(), data).Return(errOneError).Times(1)

		Expect(p.Process(ctx, data)).To(MatchError(errOneError))
	})

	It("should give up after max attempts with the last error", func(ctx SpecContext) {
		inner.EXPECT().Process(gomock.Any(), data).Return(errRetryable).Times(3)

		err := p.Process(ctx, data)
		Expect(err).To(MatchError(pipeline.ErrRetryableError))
		Expect(pipeline.AsProcessingError(err).Category).To(Equal(oneCategory))
	})

	It("should call once when max attempt is zero", func(ctx SpecContext) {
		once, err := pipeline.Chain[Data](inner, pipeline.Retry[Data](pipeline.RetryConfig{}, logr.Discard()))
		Expect(err).NotTo(HaveOccurred())

		inner.EXPECT().Process(gomock.Any(), data).Return(errRetryable).Times(1)

		Expect(once.Process(ctx, data)).To(MatchError(pipeline.ErrRetryableError))
	})
})

var _ = Describe("Timeout", func() {
	blocking := pipeline.ProcessingFunc[Data](func(ctx context.Context, _ Data) error {
		<-ctx.Done()

		return fmt.Errorf("publish aborted: %w", ctx.Err())
	})

	It("should classify a deadline hit as a retryable timeout", func(ctx SpecContext) {
		p, err := pipeline.Chain[Data](blocking, pipeline.Timeout[Data](10*time.Millisecond))
		Expect(err).NotTo(HaveOccurred())

		err = p.Process(ctx, data)
		Expect(err).To(MatchError(pipeline.ErrRetryableError))
		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(pipeline.AsProcessingError(err).Category).To(Equal(pipeline.TimeoutCategory))
	})

	It("should keep an already classified deadline error", func(ctx SpecContext) {
		classified := pipeline.ProcessingFunc[Data](func(ctx context.Context, _ Data) error {
			<-ctx.Done()

			return pipeline.NewErrProcessingError(ctx.Err(), "kafka_producer", nil)
		})

		p, err := pipeline.Chain[Data](classified, pipeline.Timeout[Data](10*time.Millisecond))
		Expect(err).NotTo(HaveOccurred())

		err = p.Process(ctx, data)
		Expect(err).NotTo(MatchError(pipeline.ErrRetryableError))
		Expect(pipeline.AsProcessingError(err).Category).To(Equal("kafka_producer"))
	})

	It("should be a no-op without a duration", func() {
		p, err := pipeline.Chain[Data](blocking, pipeline.Timeout[Data](0))
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err = p.Process(ctx, data)
		Expect(err).To(MatchError(context.Canceled))
		Expect(err).NotTo(MatchError(pipeline.ErrRetryableError))
	})
})

var _ = Describe("Duration", func() {
	var registry *prometheus.Registry
	var inner *clockedProcessing
	var p pipeline.Processing[Data]

	BeforeEach(func() {
		registry = prometheus.NewPedanticRegistry()

		clock := clockwork.NewFakeClock()
		inner = &clockedProcessing{clock: clock}

		var err error

		p, err = pipeline.Chain[Data](inner, pipeline.Duration[Data](registry, clock, pipeline.MetricsConfig{
			Namespace: "fleet",
			Subsystem: "sink",
			Buckets:   []float64{0.1, 1, 10},
		}))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should observe each call by outcome", func(ctx SpecContext) {
		inner.Took = 50 * time.Millisecond
		Expect(p.Process(ctx, data)).To(Succeed())

		inner.Took = 2 * time.Second
		Expect(p.Process(ctx, data)).To(Succeed())

		inner.Took = 500 * time.Millisecond
		inner.Err = errRetryable
		Expect(p.Process(ctx, data)).NotTo(Succeed())

		inner.Err = errOneError
		Expect(p.Process(ctx, data)).NotTo(Succeed())

		families, err := registry.Gather()
		Expect(err).NotTo(HaveOccurred())
		Expect(families).To(HaveLen(1))
		Expect(families[0].GetName()).To(Equal("fleet_sink_processing_duration_seconds"))
		Expect(families[0].Metric).To(HaveLen(3))

		success := metricWithLabel(families[0].Metric, "outcome", "success")
		Expect(success).NotTo(BeNil())
		Expect(success.GetHistogram().GetSampleCount()).To(BeEquivalentTo(2))
		Expect(success.GetHistogram().GetBucket()[0].GetCumulativeCount()).To(BeEquivalentTo(1))
		Expect(success.GetHistogram().GetBucket()[2].GetCumulativeCount()).To(BeEquivalentTo(2))

		retryable := metricWithLabel(families[0].Metric, "outcome", "retryable")
		Expect(retryable).NotTo(BeNil())
		Expect(retryable.GetHistogram().GetSampleCount()).To(BeEquivalentTo(1))
		Expect(retryable.GetHistogram().GetBucket()[1].GetCumulativeCount()).To(BeEquivalentTo(1))

		failure := metricWithLabel(families[0].Metric, "outcome", "failure")
		Expect(failure).NotTo(BeNil())
		Expect(failure.GetHistogram().GetSampleCount()).To(BeEquivalentTo(1))
	})

	It("should fail when registered twice", func() {
		_, err := pipeline.Chain[Data](inner, pipeline.Duration[Data](registry, clockwork.NewFakeClock(), pipeline.MetricsConfig{Namespace: "fleet", Subsystem: "sink"}))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ErrorCount", func() {
	It("should count by category and retryability", func(ctx SpecContext) {
		registry := prometheus.NewPedanticRegistry()

		counter, err := pipeline.NewErrorCount(registry, pipeline.MetricsConfig{Namespace: "fleet", Subsystem: "dlq"})
		Expect(err).NotTo(HaveOccurred())

		for range 3 {
			Expect(counter.Process(ctx, errRetryable)).To(Succeed())
		}

		Expect(counter.Process(ctx, pipeline.NewErrProcessingError(errOneError, "", nil))).To(Succeed())

		families, err := registry.Gather()
		Expect(err).NotTo(HaveOccurred())
		Expect(families).To(HaveLen(1))
		Expect(families[0].GetName()).To(Equal("fleet_dlq_processing_errors_total"))

		retryable := metricWithLabel(families[0].Metric, "category", oneCategory)
		Expect(retryable).NotTo(BeNil())
		Expect(retryable.GetCounter().GetValue()).To(BeEquivalentTo(3))
		Expect(metricWithLabel([]*promdto.Metric{retryable}, "retryable", "true")).NotTo(BeNil())

		unknown := metricWithLabel(families[0].Metric, "category", pipeline.UnknownCategory)
		Expect(unknown).NotTo(BeNil())
		Expect(unknown.GetCounter().GetValue()).To(BeEquivalentTo(1))
		Expect(metricWithLabel([]*promdto.Metric{unknown}, "retryable", "false")).NotTo(BeNil())
	})
})
