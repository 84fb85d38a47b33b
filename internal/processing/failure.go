package processing

import (
	"context"

	"github.com/openshift-assisted/fleet-telemetry/internal/domain/repo"
	"github.com/openshift-assisted/fleet-telemetry/pkg/pipeline"
)

// MainError archives failed events in the dead letter queue.
type MainError struct {
	writer repo.ProcessingErrorWriter
}

func NewMainError(writer repo.ProcessingErrorWriter) MainError {
	return MainError{
		writer: writer,
	}
}

func (m MainError) Process(ctx context.Context, pErr pipeline.ErrProcessingError) error {
	return m.writer.WriteProcessingError(ctx, pErr)
}
