package pipeline

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/openshift-assisted/fleet-telemetry/pkg/eventbus"
)

// EventHandler adapts a Processing to the event bus: it extracts the typed payload from an
// event, processes it, and sends failures to the error processing.
type EventHandler[Payload any] struct {
	logger *logr.Logger

	processing      Processing[Payload]
	errorProcessing ErrorProcessing
}

func NewEventHandler[Payload any](processing Processing[Payload], errProcessing ErrorProcessing) EventHandler[Payload] {
	return EventHandler[Payload]{
		processing:      processing,
		errorProcessing: errProcessing,
	}
}

func (h EventHandler[Payload]) WithLogger(logger logr.Logger) EventHandler[Payload] {
	h.logger = &logger

	return h
}

// Handle is an eventbus.Handler. It only returns an error when the error processing itself failed.
func (h EventHandler[Payload]) Handle(ctx context.Context, event eventbus.Event) error {
	h.logInfo(3, "Processing event", "topic", event.Topic, "id", event.ID, "priority", event.Priority.String())

	payload, err := decode[Payload](event)
	if err != nil { // Not retryable
		return h.processError(ctx, event, NewErrProcessingError(err, DecodeCategory, nil))
	}

	err = h.processing.Process(ctx, payload)
	if err != nil {
		return h.processError(ctx, event, err)
	}

	return nil
}

func (h EventHandler[Payload]) processError(ctx context.Context, event eventbus.Event, pipelineError error) error {
	// Cancelled during shutdown: nothing to archive
	if ctx.Err() != nil {
		h.logInfo(1, "Not processing error, context has been cancelled", "topic", event.Topic, "id", event.ID)

		return nil
	}

	h.logError(pipelineError, "Processing failed", "topic", event.Topic, "id", event.ID)

	processingError := AsProcessingError(pipelineError).WithEvent(event)

	err := h.errorProcessing.Process(ctx, processingError)
	if err != nil {
		h.logError(err, "Error pipeline failed")

		h.dumpErrorContext(processingError)

		return fmt.Errorf("error pipeline failed: %w", err)
	}

	return nil
}

func (h EventHandler[Payload]) dumpErrorContext(err ErrProcessingError) {
	if h.logger == nil || err.Event == nil {
		return
	}

	h.logger.Error(err,
		"Failed to process event",
		"event.topic", err.Event.Topic,
		"event.id", err.Event.ID,
		"event.source", err.Event.Source,
		"event.payload", err.Event.Payload,
		"additionalInputs", err.AdditionalInputs,
		"category", err.Category,
	)
}

func (h EventHandler[Payload]) logInfo(level int, msg string, keysAndValues ...any) {
	if h.logger == nil {
		return
	}

	h.logger.V(level).Info(msg, keysAndValues...)
}

func (h EventHandler[Payload]) logError(err error, msg string, keysAndValues ...any) {
	if h.logger == nil {
		return
	}

	h.logger.Error(err, msg, keysAndValues...)
}

func decode[Payload any](event eventbus.Event) (Payload, error) {
	switch p := event.Payload.(type) {
	case Payload:
		return p, nil
	case *Payload:
		if p != nil {
			return *p, nil
		}
	}

	var zero Payload

	return zero, fmt.Errorf("unexpected payload %T on topic %s", event.Payload, event.Topic)
}
