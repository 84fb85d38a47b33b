package processingerror

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
	"github.com/openshift-assisted/fleet-telemetry/pkg/eventbus"
	"github.com/openshift-assisted/fleet-telemetry/pkg/pipeline"
)

var failedAt = time.Date(2025, 3, 3, 15, 10, 0, 0, time.UTC)

type fakeBucket struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeBucket) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}

	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.input = params
	f.body = body

	return &s3.PutObjectOutput{}, nil
}

func failedBatch(payload any) pipeline.ErrProcessingError {
	event := eventbus.Event{
		ID:        "0f8fad5b-d9cb-469f-a165-70867728950e",
		Topic:     "telemetry.positions",
		Source:    "polling/default",
		Priority:  eventbus.PriorityHigh,
		Timestamp: time.Date(2025, 3, 3, 15, 9, 54, 0, time.UTC),
		Payload:   payload,
	}

	err := pipeline.NewRetryableErrProcessingError(errors.New("kafka down"), "kafka_producer", []pipeline.Input{{Source: "kafka", Key: "partition", Value: []byte("3")}})

	return err.WithEvent(event)
}

func sampleBatch() entity.TelemetryBatch {
	return entity.TelemetryBatch{
		SessionID: "default",
		Entities:  []entity.Entity{{ID: "a"}, {ID: "b"}},
		FetchedAt: time.Date(2025, 3, 3, 15, 9, 50, 0, time.UTC),
		Stale:     true,
	}
}

func TestObjectKey(t *testing.T) {
	event := Event{ID: "e1", Topic: "telemetry.positions", EmittedAt: time.Date(2025, 12, 31, 23, 59, 0, 0, time.FixedZone("UTC+2", 7200))}

	assert.Equal(t, "dlq/2025/12/31/telemetry.positions/default/e1.json", objectKey("dlq", event, "default"))
	assert.Equal(t, "2025/12/31/telemetry.positions/_/e1.json", objectKey("", event, noSession))
}

func TestWriteDeadLetter(t *testing.T) {
	bucket := &fakeBucket{}
	repo := NewS3Writer(bucket, clockwork.NewFakeClockAt(failedAt), "dlq-bucket", "dlq")

	err := repo.WriteProcessingError(context.Background(), failedBatch(sampleBatch()))
	require.NoError(t, err)

	require.NotNil(t, bucket.input)
	assert.Equal(t, "dlq-bucket", *bucket.input.Bucket)
	assert.Equal(t, "dlq/2025/03/03/telemetry.positions/default/0f8fad5b-d9cb-469f-a165-70867728950e.json", *bucket.input.Key)
	assert.Equal(t, "application/json", *bucket.input.ContentType)
	assert.Equal(t, map[string]string{"category": "kafka_producer", "session": "default"}, bucket.input.Metadata)

	letter := DeadLetter{}
	require.NoError(t, json.Unmarshal(bucket.body, &letter))

	assert.Equal(t, failedAt, letter.FailedAt)
	assert.Equal(t, "kafka_producer", letter.Failure.Category)
	assert.Contains(t, letter.Failure.Error, "kafka down")
	assert.True(t, letter.Failure.Retryable)
	assert.Equal(t, "high", letter.Event.Priority)
	assert.Equal(t, "polling/default", letter.Event.Source)
	require.NotNil(t, letter.Batch)
	assert.Equal(t, []string{"a", "b"}, letter.Batch.EntityIDs)
	assert.True(t, letter.Batch.Stale)
	assert.Equal(t, []Input{{Source: "kafka", Key: "partition", Value: []byte("3")}}, letter.Inputs)
}

func TestWriteDeadLetterOtherPayload(t *testing.T) {
	bucket := &fakeBucket{}
	repo := NewS3Writer(bucket, clockwork.NewFakeClockAt(failedAt), "dlq-bucket", "dlq")

	err := repo.WriteProcessingError(context.Background(), failedBatch(map[string]string{"raw": "value"}))
	require.NoError(t, err)

	assert.Equal(t, "dlq/2025/03/03/telemetry.positions/_/0f8fad5b-d9cb-469f-a165-70867728950e.json", *bucket.input.Key)

	letter := DeadLetter{}
	require.NoError(t, json.Unmarshal(bucket.body, &letter))
	assert.Nil(t, letter.Batch)
	assert.JSONEq(t, `{"raw":"value"}`, string(letter.Event.Payload))
}

func TestWriteDeadLetterFailures(t *testing.T) {
	repo := NewS3Writer(&fakeBucket{err: errors.New("throttled")}, clockwork.NewFakeClockAt(failedAt), "dlq-bucket", "dlq")

	err := repo.WriteProcessingError(context.Background(), failedBatch(sampleBatch()))
	assert.ErrorIs(t, err, pipeline.ErrRetryableError)

	err = repo.WriteProcessingError(context.Background(), pipeline.ErrProcessingError{Category: "decode"})
	assert.ErrorIs(t, err, ErrNilEvent)
	assert.NotErrorIs(t, err, pipeline.ErrRetryableError)
}
