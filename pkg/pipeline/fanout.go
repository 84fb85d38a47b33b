package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

type Branch[Payload any] struct {
	Name       string
	Processing Processing[Payload]
}

// FanOut runs every branch concurrently on the same payload. A failing branch does not
// cancel the others. Errors are joined, each prefixed by its branch name.
type FanOut[Payload any] struct {
	branches []Branch[Payload]
}

func NewFanOut[Payload any](branches ...Branch[Payload]) FanOut[Payload] {
	return FanOut[Payload]{
		branches: branches,
	}
}

func (f FanOut[Payload]) Process(ctx context.Context, payload Payload) error {
	if len(f.branches) == 1 {
		return f.run(ctx, f.branches[0], payload)
	}

	group := errgroup.Group{}
	errs := make([]error, len(f.branches))

	for i, branch := range f.branches {
		group.Go(func() error {
			errs[i] = f.run(ctx, branch, payload)

			return nil
		})
	}

	_ = group.Wait()

	return errors.Join(errs...)
}

func (f FanOut[Payload]) run(ctx context.Context, branch Branch[Payload], payload Payload) error {
	err := branch.Processing.Process(ctx, payload)
	if err != nil {
		return fmt.Errorf("%s: %w", branch.Name, err)
	}

	return nil
}
