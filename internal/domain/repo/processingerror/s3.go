package processingerror

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/common/version"

	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
	"github.com/openshift-assisted/fleet-telemetry/internal/log"
	"github.com/openshift-assisted/fleet-telemetry/pkg/pipeline"
)

const (
	unknownHostname = "<unknown>"
	noSession       = "_"
)

var ErrNilEvent = errors.New("processing error without event")

type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Writer archives dead letters as one json object each, under
// <prefix>/<yyyy>/<mm>/<dd>/<topic>/<session>/<event id>.json
type S3Writer struct {
	s3client ObjectPutter
	clock    clockwork.Clock

	bucket string
	prefix string

	hostname string
}

func NewS3Writer(s3client ObjectPutter, clock clockwork.Clock, bucket string, prefix string) S3Writer {
	hostname, err := os.Hostname()
	if err != nil {
		log.Logger().Error(err, "Failed to get hostname, using "+unknownHostname)

		hostname = unknownHostname
	}

	return S3Writer{
		s3client: s3client,
		clock:    clock,
		bucket:   bucket,
		prefix:   prefix,
		hostname: hostname,
	}
}

func (r S3Writer) WriteProcessingError(ctx context.Context, pErr pipeline.ErrProcessingError) error {
	letter, err := r.deadLetter(pErr)
	if err != nil {
		return err
	}

	body, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter %s: %w", letter.Event.ID, err)
	}

	session := noSession
	if letter.Batch != nil && letter.Batch.SessionID != "" {
		session = letter.Batch.SessionID
	}

	key := objectKey(r.prefix, letter.Event, session)

	_, err = r.s3client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"category": letter.Failure.Category,
			"session":  session,
		},
	})
	if err != nil {
		return pipeline.NewErrRetryableError(fmt.Errorf("failed to put dead letter %s: %w", key, err))
	}

	return nil
}

func (r S3Writer) deadLetter(pErr pipeline.ErrProcessingError) (DeadLetter, error) {
	if pErr.Event == nil {
		return DeadLetter{}, fmt.Errorf("%w: %s", ErrNilEvent, pErr.Category)
	}

	event := pErr.Event

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		// keep a readable trace of what could not be encoded
		payload, _ = json.Marshal(fmt.Sprintf("%+v", event.Payload))
	}

	ret := DeadLetter{
		FailedAt: r.clock.Now().UTC(),
		Host:     r.hostname,
		Build: Build{
			Branch:   version.Branch,
			Revision: version.Revision,
		},
		Event: Event{
			ID:        event.ID,
			Topic:     event.Topic,
			Source:    event.Source,
			Priority:  event.Priority.String(),
			EmittedAt: event.Timestamp,
			Payload:   payload,
		},
		Batch: summarize(event.Payload),
		Failure: Failure{
			Category:  pErr.Category,
			Error:     pErr.Error(),
			Retryable: errors.Is(pErr, pipeline.ErrRetryableError),
		},
	}

	for _, in := range pErr.AdditionalInputs {
		ret.Inputs = append(ret.Inputs, Input{Source: in.Source, Key: in.Key, Value: in.Value})
	}

	return ret, nil
}

func summarize(payload any) *BatchSummary {
	batch, ok := payload.(entity.TelemetryBatch)
	if !ok {
		return nil
	}

	ids := make([]string, 0, len(batch.Entities))
	for _, e := range batch.Entities {
		ids = append(ids, e.ID)
	}

	return &BatchSummary{
		SessionID: batch.SessionID,
		EntityIDs: ids,
		FetchedAt: batch.FetchedAt,
		Stale:     batch.Stale,
		Forced:    batch.Forced,
	}
}

func objectKey(prefix string, event Event, session string) string {
	ts := event.EmittedAt.UTC()

	return path.Join(prefix, ts.Format("2006/01/02"), event.Topic, session, event.ID+".json")
}
