package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/openshift-assisted/fleet-telemetry/internal/common"
	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
)

const (
	categoryMQTTInternal = "mqtt_internal_error"
	categoryMQTTPublish  = "mqtt_publish"

	entityPlaceholder = "{entity_id}"
)

var ErrPublishTimeout = errors.New("publish not acknowledged")

// Publisher is the subset of mqtt.Client used to publish.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type MQTTConfig struct {
	// TopicTemplate may contain {entity_id}
	TopicTemplate string
	QoS           byte
	Retained      bool
}

// MQTTWriter publishes every entity of a batch on its own topic, for live dashboards.
type MQTTWriter struct {
	client Publisher
	config MQTTConfig
}

func NewMQTTWriter(client Publisher, config MQTTConfig) MQTTWriter {
	return MQTTWriter{
		client: client,
		config: config,
	}
}

func (w MQTTWriter) WriteTelemetry(ctx context.Context, batch entity.TelemetryBatch) error {
	for _, record := range mapToRecords(batch) {
		payload, err := json.Marshal(record)
		if err != nil {
			return common.NewErrProcessingError(err, categoryMQTTInternal, nil, "failed to marshal record %s", record.EntityID)
		}

		topic := formatTopic(w.config.TopicTemplate, record.EntityID)

		token := w.client.Publish(topic, w.config.QoS, w.config.Retained, payload)

		err = waitToken(ctx, token)
		if err != nil {
			return common.NewRetryableErrProcessingError(err, categoryMQTTPublish, nil, "failed to publish on %s", topic)
		}
	}

	return nil
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	timeout := 10 * time.Second

	deadline, ok := ctx.Deadline()
	if ok {
		timeout = time.Until(deadline)
	}

	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w after %s", ErrPublishTimeout, timeout)
	}

	return token.Error()
}

func formatTopic(template, entityID string) string {
	return strings.ReplaceAll(template, entityPlaceholder, entityID)
}
