package common

import "context"

// CloseFunc releases a resource created by a factory. It should honor ctx deadline.
type CloseFunc func(ctx context.Context) error

func NoopCloseFunc(context.Context) error {
	return nil
}
