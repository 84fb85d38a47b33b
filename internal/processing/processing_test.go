package processing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	promdto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
	"github.com/openshift-assisted/fleet-telemetry/internal/domain/repo/mock"
	"github.com/openshift-assisted/fleet-telemetry/internal/processing"
	"github.com/openshift-assisted/fleet-telemetry/pkg/eventbus"
	"github.com/openshift-assisted/fleet-telemetry/pkg/pipeline"
	pipelinemock "github.com/openshift-assisted/fleet-telemetry/pkg/pipeline/mock"
)

var now = time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC)

func batchAt(ts ...time.Time) entity.TelemetryBatch {
	ret := entity.TelemetryBatch{SessionID: "default", FetchedAt: now}

	for i, t := range ts {
		ret.Entities = append(ret.Entities, entity.Entity{
			ID:       string(rune('a' + i)),
			Tier:     entity.TierIdle,
			Position: &entity.Position{Timestamp: t},
		})
	}

	return ret
}

func counterValues(t *testing.T, registry *prometheus.Registry, name string) map[string]float64 {
	t.Helper()

	families, err := registry.Gather()
	require.NoError(t, err)

	ret := map[string]float64{}

	for _, family := range families {
		if family.GetName() != name {
			continue
		}

		for _, metric := range family.GetMetric() {
			ret[labels(metric)] = metric.GetCounter().GetValue()
		}
	}

	return ret
}

func labels(metric *promdto.Metric) string {
	ret := ""

	for _, label := range metric.GetLabel() {
		if ret != "" {
			ret += ","
		}

		ret += label.GetName() + "=" + label.GetValue()
	}

	return ret
}

func TestMainProcessing(t *testing.T) {
	ctrl := gomock.NewController(t)
	writer := mock.NewMockTelemetryWriter(ctrl)

	batch := batchAt(now)
	writer.EXPECT().WriteTelemetry(gomock.Any(), batch).Return(nil).Times(1)

	err := processing.NewMain(writer).Process(context.Background(), batch)
	assert.NoError(t, err)
}

func TestMainProcessingInvalidBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	writer := mock.NewMockTelemetryWriter(ctrl)

	testCases := []struct {
		name  string
		batch entity.TelemetryBatch
	}{
		{name: "missing session", batch: entity.TelemetryBatch{}},
		{name: "missing entity id", batch: entity.TelemetryBatch{SessionID: "default", Entities: []entity.Entity{{}}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := processing.NewMain(writer).Process(context.Background(), tc.batch)
			require.Error(t, err)

			pErr := pipeline.AsProcessingError(err)
			assert.Equal(t, "invalid_batch", pErr.Category)
		})
	}
}

func TestMainProcessingWriteFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	writer := mock.NewMockTelemetryWriter(ctrl)

	writeErr := pipeline.NewRetryableErrProcessingError(errors.New("broker down"), "kafka_producer", nil)
	writer.EXPECT().WriteTelemetry(gomock.Any(), gomock.Any()).Return(writeErr).Times(1)

	err := processing.NewMain(writer).Process(context.Background(), batchAt(now))
	require.ErrorIs(t, err, pipeline.ErrRetryableError)
	assert.Equal(t, "kafka_producer", pipeline.AsProcessingError(err).Category)
}

func TestCountData(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := pipelinemock.NewMockProcessing[entity.TelemetryBatch](ctrl)
	inner.EXPECT().Process(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	registry := prometheus.NewRegistry()

	p, err := processing.NewCountData(inner, registry, pipeline.MetricsConfig{Namespace: "test"})
	require.NoError(t, err)

	require.NoError(t, p.Process(context.Background(), batchAt(now, now)))

	stale := batchAt(now)
	stale.Stale = true
	require.NoError(t, p.Process(context.Background(), stale))

	assert.Equal(t, map[string]float64{
		"session=default,stale=false": 2,
		"session=default,stale=true":  1,
	}, counterValues(t, registry, "test_data_total"))
}

func TestCountStaleData(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := pipelinemock.NewMockProcessing[entity.TelemetryBatch](ctrl)

	registry := prometheus.NewRegistry()
	clock := clockwork.NewFakeClockAt(now)

	p, err := processing.NewCountStaleData(inner, registry, clock, time.Hour, pipeline.MetricsConfig{Namespace: "test"})
	require.NoError(t, err)

	batch := batchAt(now.Add(-2*time.Hour), now.Add(-time.Minute), now.Add(-time.Hour))
	batch.Entities = append(batch.Entities, entity.Entity{ID: "no-position", Tier: entity.TierInactive})

	inner.EXPECT().Process(gomock.Any(), batch).Return(nil).Times(1)
	require.NoError(t, p.Process(context.Background(), batch))

	inner.EXPECT().Process(gomock.Any(), batch).Return(errors.New("failed")).Times(1)
	require.Error(t, p.Process(context.Background(), batch))

	assert.Equal(t, map[string]float64{"tier=idle": 2}, counterValues(t, registry, "test_stale_positions_total"))
}

func TestMainError(t *testing.T) {
	ctrl := gomock.NewController(t)
	writer := mock.NewMockProcessingErrorWriter(ctrl)

	pErr := pipeline.NewErrProcessingError(errors.New("failed"), "kafka_producer", nil).WithEvent(eventbus.Event{ID: "1", Topic: "telemetry.positions"})

	writer.EXPECT().WriteProcessingError(gomock.Any(), pErr).Return(nil).Times(1)

	assert.NoError(t, processing.NewMainError(writer).Process(context.Background(), pErr))
}
