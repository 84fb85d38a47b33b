package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
)

var ErrPanic = errors.New("processing panicked")

// Recover turns a panic into an ErrProcessingError in the panic category, with the stack as input.
func Recover[Payload any]() Decorator[Payload] {
	return func(next Processing[Payload]) (Processing[Payload], error) {
		return ProcessingFunc[Payload](func(ctx context.Context, payload Payload) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				err = NewErrProcessingError(
					fmt.Errorf("%w: %v", ErrPanic, r),
					PanicCategory,
					[]Input{{Source: "runtime", Key: "stack", Value: debug.Stack()}},
				)
			}()

			return next.Process(ctx, payload)
		}), nil
	}
}
