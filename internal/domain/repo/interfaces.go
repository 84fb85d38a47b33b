package repo

import (
	"context"

	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
	"github.com/openshift-assisted/fleet-telemetry/pkg/pipeline"
)

//go:generate mockgen -source=interfaces.go -package=mock -destination=./mock/mock_repo.go

type ProcessingErrorWriter interface {
	WriteProcessingError(ctx context.Context, pErr pipeline.ErrProcessingError) error
}

type ProcessingError interface {
	ProcessingErrorWriter
}

type TelemetryWriter interface {
	WriteTelemetry(ctx context.Context, batch entity.TelemetryBatch) error
}

type StateWriter interface {
	SaveState(ctx context.Context, state entity.State) error
}

type StateReader interface {
	// LoadState returns a zero State when nothing was saved yet.
	LoadState(ctx context.Context) (entity.State, error)
}

type State interface {
	StateWriter
	StateReader
}
