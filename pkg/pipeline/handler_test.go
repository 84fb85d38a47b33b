package pipeline_test

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/openshift-assisted/fleet-telemetry/pkg/eventbus"
	"github.com/openshift-assisted/fleet-telemetry/pkg/pipeline"
	"github.com/openshift-assisted/fleet-telemetry/pkg/pipeline/mock"
)

var _ = Describe("Testing EventHandler", func() {
	var ctrl *gomock.Controller

	var proc *mock.MockProcessing[Data]
	var errProc *mock.MockErrorProcessing
	var handler pipeline.EventHandler[Data]

	event := eventbus.Event{ID: "1", Topic: "telemetry.positions", Payload: data}

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())

		proc = mock.NewMockProcessing[Data](ctrl)
		errProc = mock.NewMockErrorProcessing(ctrl)

		handler = pipeline.NewEventHandler[Data](proc, errProc)
	})

	When("the processing succeeds", func() {
		It("should not call the error processing", func(ctx SpecContext) {
			proc.EXPECT().Process(gomock.Any(), data).Return(nil).Times(1)

			Expect(handler.Handle(ctx, event)).To(Succeed())
		})

		It("should accept pointer payloads", func(ctx SpecContext) {
			proc.EXPECT().Process(gomock.Any(), data).Return(nil).Times(1)

			pointerEvent := event
			pointerEvent.Payload = &Data{}

			Expect(handler.Handle(ctx, pointerEvent)).To(Succeed())
		})
	})

	When("the payload has an unexpected type", func() {
		It("should send a decode error with the event", func(ctx SpecContext) {
			badEvent := event
			badEvent.Payload = "not a Data"

			errProc.EXPECT().Process(gomock.Any(), gomock.Any()).DoAndReturn(
				func(ctx context.Context, pErr pipeline.ErrProcessingError) error {
					Expect(pErr.Category).To(Equal(pipeline.DecodeCategory))
					Expect(pErr.Event).NotTo(BeNil())
					Expect(pErr.Event.ID).To(Equal("1"))

					return nil
				},
			).Times(1)

			Expect(handler.Handle(ctx, badEvent)).To(Succeed())
		})
	})

	When("the processing fails", func() {
		BeforeEach(func() {
			proc.EXPECT().Process(gomock.Any(), data).Return(pipeline.NewErrProcessingError(errOneError, oneCategory, nil)).Times(1)
		})

		It("should keep the error category", func(ctx SpecContext) {
			errProc.EXPECT().Process(gomock.Any(), gomock.Any()).DoAndReturn(
				func(ctx context.Context, pErr pipeline.ErrProcessingError) error {
					Expect(pErr.Category).To(Equal(oneCategory))
					Expect(pErr).To(MatchError(errOneError))

					return nil
				},
			).Times(1)

			Expect(handler.Handle(ctx, event)).To(Succeed())
		})

		It("should report when the error processing fails too", func(ctx SpecContext) {
			errProc.EXPECT().Process(gomock.Any(), gomock.Any()).Return(errors.New("dead letter unavailable")).Times(1)

			Expect(handler.Handle(ctx, event)).To(HaveOccurred())
		})
	})

	When("the context is cancelled", func() {
		It("should not archive the error", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			proc.EXPECT().Process(gomock.Any(), data).Return(context.Canceled).Times(1)

			Expect(handler.Handle(ctx, event)).To(Succeed())
		})
	})
})

var _ = Describe("Testing Runner", func() {
	var ctrl *gomock.Controller

	var subscriber *mock.MockSubscriber

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		subscriber = mock.NewMockSubscriber(ctrl)
	})

	It("should subscribe every topic until the context is cancelled", func() {
		proc := mock.NewMockProcessing[Data](ctrl)
		errProc := mock.NewMockErrorProcessing(ctrl)

		gomock.InOrder(
			subscriber.EXPECT().Subscribe("telemetry.*", gomock.Any()).Return("sub-1").Times(1),
			subscriber.EXPECT().Subscribe("health.*", gomock.Any()).Return("sub-2").Times(1),
			subscriber.EXPECT().Unsubscribe("sub-1").Return(true).Times(1),
			subscriber.EXPECT().Unsubscribe("sub-2").Return(true).Times(1),
		)

		runner := pipeline.NewRunner[Data](subscriber, []string{"telemetry.*", "health.*"}, proc, errProc)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)

		go func() {
			done <- runner.Start(ctx)
		}()

		cancel()

		Eventually(done).Should(Receive(MatchError(context.Canceled)))
	})

	It("should deliver bus events to the processing", func(ctx SpecContext) {
		bus := eventbus.New(clockwork.NewFakeClock(), eventbus.DefaultConfig())

		proc := mock.NewMockProcessing[Data](ctrl)
		proc.EXPECT().Process(gomock.Any(), data).Return(nil).Times(1)

		runner := pipeline.NewRunner[Data](bus, []string{"telemetry.*"}, proc, mock.NewMockErrorProcessing(ctrl))

		runCtx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		go func() {
			defer close(done)

			_ = runner.Start(runCtx)
		}()

		Eventually(func() int { return bus.Stats().Subscriptions }).Should(Equal(1))

		bus.Emit("telemetry.positions", data)
		bus.Emit("health.degraded", data)
		Expect(bus.Drain(ctx)).To(Equal(2))

		cancel()
		Eventually(done).Should(BeClosed())
		Expect(bus.Stats().Subscriptions).To(BeZero())
	})
})
