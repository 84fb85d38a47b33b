package common

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyStop(t *testing.T) {
	exited := make(chan struct{})

	ctx := notifyStop(context.Background(), logr.Discard(), func() { close(exited) }, syscall.SIGUSR1)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not cancelled on first signal")
	}

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("exit not called on second signal")
	}
}

func TestTuneRuntimeInvalidRatio(t *testing.T) {
	for _, ratio := range []float64{0, -0.5, 1.5} {
		_, err := TuneRuntime(logr.Discard(), ratio)
		assert.ErrorIs(t, err, ErrInvalidMemLimitRatio)
	}
}
