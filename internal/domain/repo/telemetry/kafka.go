package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/IBM/sarama"

	"github.com/openshift-assisted/fleet-telemetry/internal/common"
	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
)

const (
	categoryKafkaInternal = "kafka_internal_error"
	categoryKafkaProducer = "kafka_producer"
)

// KafkaWriter republishes every entity of a batch as one message keyed by entity id.
type KafkaWriter struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaWriter(producer sarama.SyncProducer, topic string) KafkaWriter {
	return KafkaWriter{
		producer: producer,
		topic:    topic,
	}
}

func (w KafkaWriter) WriteTelemetry(ctx context.Context, batch entity.TelemetryBatch) error {
	records := mapToRecords(batch)
	if len(records) == 0 {
		return nil
	}

	messages := make([]*sarama.ProducerMessage, 0, len(records))

	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			return common.NewErrProcessingError(err, categoryKafkaInternal, nil, "failed to marshal record %s", record.EntityID)
		}

		messages = append(messages, &sarama.ProducerMessage{
			Topic: w.topic,
			Key:   sarama.StringEncoder(record.EntityID),
			Value: sarama.ByteEncoder(data),
			Headers: []sarama.RecordHeader{
				{Key: []byte("session"), Value: []byte(batch.SessionID)},
				{Key: []byte("stale"), Value: []byte(strconv.FormatBool(batch.Stale))},
			},
			Timestamp: batch.FetchedAt,
		})
	}

	err := w.producer.SendMessages(messages)
	if err != nil {
		if isRetryable(err) {
			return common.NewRetryableErrProcessingError(err, categoryKafkaProducer, nil, "failed to produce %d messages", len(messages))
		}

		return common.NewErrProcessingError(err, categoryKafkaProducer, nil, "failed to produce %d messages", len(messages))
	}

	return nil
}

func isRetryable(err error) bool {
	var producerErrors sarama.ProducerErrors
	if errors.As(err, &producerErrors) {
		for _, pErr := range producerErrors {
			if !isRetryable(pErr.Err) {
				return false
			}
		}

		return len(producerErrors) > 0
	}

	var kErr sarama.KError
	if errors.As(err, &kErr) {
		switch kErr {
		case sarama.ErrMessageSizeTooLarge, sarama.ErrInvalidMessage, sarama.ErrTopicAuthorizationFailed:
			return false
		}
	}

	return true
}
