package processing

import (
	"context"
	"errors"
	"fmt"

	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
	"github.com/openshift-assisted/fleet-telemetry/internal/domain/repo"
	"github.com/openshift-assisted/fleet-telemetry/pkg/pipeline"
)

var (
	errMissingSession = errors.New("missing session id")
	errMissingEntity  = errors.New("missing entity id")
)

const categoryErrInvalidBatch = "invalid_batch"

// Main republishes telemetry batches to the downstream writers.
type Main struct {
	writer repo.TelemetryWriter
}

func NewMain(writer repo.TelemetryWriter) Main {
	return Main{
		writer: writer,
	}
}

func (m Main) Process(ctx context.Context, batch entity.TelemetryBatch) error {
	err := validate(batch)
	if err != nil {
		return pipeline.NewErrProcessingError(err, categoryErrInvalidBatch, nil)
	}

	err = m.writer.WriteTelemetry(ctx, batch)
	if err != nil {
		return fmt.Errorf("failed to write batch of session %s: %w", batch.SessionID, err)
	}

	return nil
}

func validate(batch entity.TelemetryBatch) error {
	if batch.SessionID == "" {
		return errMissingSession
	}

	for i, e := range batch.Entities {
		if e.ID == "" {
			return fmt.Errorf("%w at index %d", errMissingEntity, i)
		}
	}

	return nil
}
