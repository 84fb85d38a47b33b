package pipeline

import (
	"context"
	"errors"
	"time"
)

// Timeout bounds each call to d. A deadline hit that the inner processing did not classify
// becomes a retryable error in the timeout category. A zero d disables the decorator.
func Timeout[Payload any](d time.Duration) Decorator[Payload] {
	return func(next Processing[Payload]) (Processing[Payload], error) {
		if d <= 0 {
			return next, nil
		}

		return ProcessingFunc[Payload](func(ctx context.Context, payload Payload) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			err := next.Process(ctx, payload)
			if err == nil || !errors.Is(err, context.DeadlineExceeded) {
				return err
			}

			if errors.As(err, &ErrProcessingError{}) {
				return err
			}

			return NewRetryableErrProcessingError(err, TimeoutCategory, nil)
		}), nil
	}
}
