package pipeline_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/openshift-assisted/fleet-telemetry/pkg/eventbus"
	"github.com/openshift-assisted/fleet-telemetry/pkg/pipeline"
	"github.com/openshift-assisted/fleet-telemetry/pkg/pipeline/mock"
)

var _ = Describe("Runner", func() {
	It("should process subscribed events until cancelled", func() {
		ctrl := gomock.NewController(GinkgoT())

		subscriber := mock.NewMockSubscriber(ctrl)
		proc := mock.NewMockProcessing[Data](ctrl)
		errProc := mock.NewMockErrorProcessing(ctrl)

		handlers := make(chan eventbus.Handler, 2)

		subscriber.EXPECT().Subscribe("telemetry.*", gomock.Any()).DoAndReturn(func(_ string, h eventbus.Handler, _ ...eventbus.SubscribeOption) string {
			handlers <- h

			return "sub-1"
		}).Times(1)
		subscriber.EXPECT().Subscribe("health.degraded", gomock.Any()).Return("sub-2").Times(1)
		subscriber.EXPECT().Unsubscribe("sub-1").Return(true).Times(1)
		subscriber.EXPECT().Unsubscribe("sub-2").Return(true).Times(1)

		proc.EXPECT().Process(gomock.Any(), data).Return(nil).Times(1)

		runner := pipeline.NewRunner[Data](subscriber, []string{"telemetry.*", "health.degraded"}, proc, errProc)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)

		go func() {
			done <- runner.Start(ctx)
		}()

		var handler eventbus.Handler
		Eventually(handlers).Should(Receive(&handler))

		Expect(handler(ctx, eventbus.Event{ID: "1", Topic: "telemetry.positions", Payload: data})).To(Succeed())

		cancel()

		Eventually(done).Should(Receive(MatchError(context.Canceled)))
	})
})
