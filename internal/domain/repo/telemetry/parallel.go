package telemetry

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
	"github.com/openshift-assisted/fleet-telemetry/internal/domain/repo"
)

type ParallelWriter struct {
	writers []repo.TelemetryWriter
}

func NewParallelWriter(writers ...repo.TelemetryWriter) ParallelWriter {
	return ParallelWriter{
		writers: writers,
	}
}

func (p ParallelWriter) WriteTelemetry(ctx context.Context, batch entity.TelemetryBatch) error {
	group, ctx := errgroup.WithContext(ctx)

	for _, w := range p.writers {
		writer := w

		group.Go(func() error {
			return writer.WriteTelemetry(ctx, batch)
		})
	}

	return group.Wait()
}
