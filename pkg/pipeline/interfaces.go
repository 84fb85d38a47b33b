package pipeline

import (
	"context"

	"github.com/openshift-assisted/fleet-telemetry/pkg/eventbus"
)

//go:generate mockgen -source=interfaces.go -package=mock -destination=./mock/mock_pipeline.go

type Processing[Payload any] interface {
	Process(context.Context, Payload) error
}

type ErrorProcessing Processing[ErrProcessingError]

// Subscriber is the part of the event bus a Runner needs.
type Subscriber interface {
	Subscribe(pattern string, handler eventbus.Handler, opts ...eventbus.SubscribeOption) string
	Unsubscribe(id string) bool
}
