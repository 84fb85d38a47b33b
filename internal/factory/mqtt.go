package factory

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/openshift-assisted/fleet-telemetry/internal/common"
	"github.com/openshift-assisted/fleet-telemetry/internal/config"
	"github.com/openshift-assisted/fleet-telemetry/internal/log"
)

const mqttDisconnectQuiesce = 250 // ms

func CreateMQTTClient(ctx context.Context, conf config.MQTT) (mqtt.Client, common.CloseFunc, error) {
	logger := log.Component("mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(conf.URL)
	opts.SetClientID(computeClientID(conf.ClientID))

	if conf.Creds.Username != "" {
		opts.SetUsername(conf.Creds.Username)
		opts.SetPassword(conf.Creds.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.V(1).Info("Connected to broker", "url", conf.URL)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Error(err, "Connection to broker lost")
	})

	ret := mqtt.NewClient(opts)

	token := ret.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		ret.Disconnect(0)

		return nil, nil, fmt.Errorf("failed to connect to mqtt broker: %w", ctx.Err())
	}

	err := token.Error()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mqtt broker: %w", err)
	}

	shutdown := func(context.Context) error {
		ret.Disconnect(mqttDisconnectQuiesce)

		return nil
	}

	return ret, shutdown, nil
}
