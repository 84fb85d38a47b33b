package factory

import (
	"context"
	"fmt"

	"github.com/valkey-io/valkey-go"

	"github.com/openshift-assisted/fleet-telemetry/internal/common"
	"github.com/openshift-assisted/fleet-telemetry/internal/config"
	"github.com/openshift-assisted/fleet-telemetry/internal/log"
)

// CreateValkeyClient connects to the state store and checks it answers before returning.
func CreateValkeyClient(ctx context.Context, conf config.Valkey) (valkey.Client, common.CloseFunc, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{conf.URL},
		Password:    conf.Creds.Password,
		ClientName:  "fleet-telemetry",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to valkey %s: %w", conf.URL, err)
	}

	err = client.Do(ctx, client.B().Ping().Build()).Error()
	if err != nil {
		client.Close()

		return nil, nil, fmt.Errorf("valkey %s did not answer ping: %w", conf.URL, err)
	}

	log.Component("valkey").V(1).Info("Connected", "addr", conf.URL, "key", conf.Key)

	return client, func(context.Context) error {
		client.Close()

		return nil
	}, nil
}
