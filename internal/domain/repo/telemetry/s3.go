package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/openshift-assisted/fleet-telemetry/internal/common"
	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
)

const (
	categoryS3Internal = "s3_internal_error"
	categoryS3Client   = "s3_client"
)

var ErrInvalidSessionID = errors.New("invalid session id")

type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Writer archives every batch as one ndjson object.
type S3Writer struct {
	s3client ObjectPutter

	bucket string
	prefix string
}

func NewS3Writer(s3client ObjectPutter, bucket string, prefix string) S3Writer {
	return S3Writer{
		s3client: s3client,
		bucket:   bucket,
		prefix:   prefix,
	}
}

func (w S3Writer) WriteTelemetry(ctx context.Context, batch entity.TelemetryBatch) error {
	records := mapToRecords(batch)
	if len(records) == 0 {
		return nil
	}

	key, err := w.computeObjectKey(batch)
	if err != nil {
		return common.NewErrProcessingError(err, categoryS3Internal, nil, "failed to compute object key")
	}

	buf := bytes.Buffer{}
	encoder := json.NewEncoder(&buf)

	for _, record := range records {
		err := encoder.Encode(record)
		if err != nil {
			return common.NewErrProcessingError(err, categoryS3Internal, nil, "failed to marshal record %s", record.EntityID)
		}
	}

	params := &s3.PutObjectInput{
		Bucket: &w.bucket,
		Key:    &key,
		Body:   bytes.NewReader(buf.Bytes()),
	}

	_, err = w.s3client.PutObject(ctx, params)
	if err != nil {
		return common.NewRetryableErrProcessingError(err, categoryS3Client, nil, "failed to write %s", key)
	}

	return nil
}

// Object key is <prefix>/<yyyy-mm-dd>/<session id>/<fetch time ms>.ndjson
func (w S3Writer) computeObjectKey(batch entity.TelemetryBatch) (string, error) {
	if batch.SessionID == "" || strings.ContainsAny(batch.SessionID, "/ ") {
		return "", fmt.Errorf("%w: %q", ErrInvalidSessionID, batch.SessionID)
	}

	ts := batch.FetchedAt.UTC()

	return fmt.Sprintf("%s/%s/%s/%d.ndjson", w.prefix, ts.Format("2006-01-02"), batch.SessionID, ts.UnixMilli()), nil
}
