package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
)

type RetryConfig struct {
	// MaxAttempt counts the first call. 0 is read as 1.
	MaxAttempt uint
	// Delay is the first retry delay, doubled on each following attempt up to MaxDelay.
	Delay    time.Duration
	MaxDelay time.Duration
	Clock    clockwork.Clock
}

// Retry replays the inner processing while it fails with ErrRetryableError.
// Only the last error is returned.
func Retry[Payload any](config RetryConfig, logger logr.Logger) Decorator[Payload] {
	if config.MaxAttempt == 0 {
		config.MaxAttempt = 1
	}

	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}

	return func(next Processing[Payload]) (Processing[Payload], error) {
		return ProcessingFunc[Payload](func(ctx context.Context, payload Payload) error {
			opts := []retry.Option{
				retry.Context(ctx),
				retry.Attempts(config.MaxAttempt),
				retry.RetryIf(func(err error) bool {
					return errors.Is(err, ErrRetryableError)
				}),
				retry.Delay(config.Delay),
				retry.DelayType(retry.BackOffDelay),
				retry.WithTimer(config.Clock),
				retry.LastErrorOnly(true),
				retry.OnRetry(func(attempt uint, err error) {
					logger.V(1).Info("Processing failed, retrying", "attempt", attempt+1, "maxAttempt", config.MaxAttempt, "error", err.Error())
				}),
			}

			if config.MaxDelay > 0 {
				opts = append(opts, retry.MaxDelay(config.MaxDelay))
			}

			err := retry.Do(func() error { return next.Process(ctx, payload) }, opts...)
			if err != nil && config.MaxAttempt > 1 && errors.Is(err, ErrRetryableError) {
				logger.V(1).Info("Processing still failing, giving up", "maxAttempt", config.MaxAttempt)
			}

			return err
		}), nil
	}
}
