package pipeline

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/openshift-assisted/fleet-telemetry/pkg/eventbus"
)

// Runner subscribes a processing pipeline to bus topics for as long as it runs.
type Runner[Payload any] struct {
	subscriber Subscriber
	topics     []string
	options    []eventbus.SubscribeOption

	handler EventHandler[Payload]

	logger *logr.Logger
}

func NewRunner[Payload any](subscriber Subscriber, topics []string, processing Processing[Payload], errorProcessing ErrorProcessing, opts ...eventbus.SubscribeOption) Runner[Payload] {
	handler := NewEventHandler(processing, errorProcessing)

	return Runner[Payload]{
		subscriber: subscriber,
		topics:     topics,
		options:    opts,
		handler:    handler,
	}
}

func (r Runner[Payload]) WithLogger(logger logr.Logger) Runner[Payload] {
	r.logger = &logger
	r.handler = r.handler.WithLogger(logger)

	return r
}

// Start blocks until ctx is cancelled, then unsubscribes.
func (r Runner[Payload]) Start(ctx context.Context) error {
	ids := make([]string, 0, len(r.topics))

	for _, topic := range r.topics {
		id := r.subscriber.Subscribe(topic, r.handler.Handle, r.options...)
		ids = append(ids, id)

		r.logInfo(0, "Start consuming", "topic", topic, "subscription", id)
	}

	<-ctx.Done()

	for _, id := range ids {
		r.subscriber.Unsubscribe(id)
	}

	r.logInfo(0, "Context expired")

	return ctx.Err()
}

func (r Runner[Payload]) logInfo(level int, msg string, keysAndValues ...any) {
	if r.logger == nil {
		return
	}

	r.logger.V(level).Info(msg, keysAndValues...)
}
