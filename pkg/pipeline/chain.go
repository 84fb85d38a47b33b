package pipeline

import "context"

// ProcessingFunc adapts a function to Processing.
type ProcessingFunc[Payload any] func(context.Context, Payload) error

func (f ProcessingFunc[Payload]) Process(ctx context.Context, payload Payload) error {
	return f(ctx, payload)
}

// Decorator adds one concern around a processing.
type Decorator[Payload any] func(Processing[Payload]) (Processing[Payload], error)

// Chain wraps inner with decorators. The first decorator is the outermost one:
//
//	Chain(p, Recover(), Timeout(d)) == Recover(Timeout(p))
func Chain[Payload any](inner Processing[Payload], decorators ...Decorator[Payload]) (Processing[Payload], error) {
	ret := inner

	for i := len(decorators) - 1; i >= 0; i-- {
		var err error

		ret, err = decorators[i](ret)
		if err != nil {
			return nil, err
		}
	}

	return ret, nil
}
