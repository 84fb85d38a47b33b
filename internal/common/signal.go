package common

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
)

// SetupSignalHandler cancels the returned context on the first SIGINT or SIGTERM.
// A second signal exits the process.
func SetupSignalHandler(ctx context.Context, logger logr.Logger) context.Context {
	return notifyStop(ctx, logger, func() { os.Exit(1) }, os.Interrupt, syscall.SIGTERM)
}

func notifyStop(ctx context.Context, logger logr.Logger, exit func(), signals ...os.Signal) context.Context {
	ret, cancel := context.WithCancel(ctx)

	c := make(chan os.Signal, 2)
	signal.Notify(c, signals...)

	go func() {
		sig := <-c
		logger.V(1).Info("Signal received, stopping", "signal", sig.String())
		cancel()

		sig = <-c
		logger.Info("Signal received again, exiting now", "signal", sig.String())
		signal.Stop(c)
		exit()
	}()

	return ret
}
