package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/common/version"
	"github.com/spf13/cobra"

	"github.com/openshift-assisted/fleet-telemetry/internal/common"
	"github.com/openshift-assisted/fleet-telemetry/internal/config"
	"github.com/openshift-assisted/fleet-telemetry/internal/domain/repo"
	"github.com/openshift-assisted/fleet-telemetry/internal/domain/repo/processingerror"
	"github.com/openshift-assisted/fleet-telemetry/internal/domain/repo/state"
	"github.com/openshift-assisted/fleet-telemetry/internal/domain/repo/telemetry"
	"github.com/openshift-assisted/fleet-telemetry/internal/factory"
	"github.com/openshift-assisted/fleet-telemetry/internal/log"
	"github.com/openshift-assisted/fleet-telemetry/internal/processing"
	"github.com/openshift-assisted/fleet-telemetry/internal/service"
	"github.com/openshift-assisted/fleet-telemetry/internal/upstream"
)

var errMissingDeadLetterQueue = errors.New("deadLetterQueue.bucket is required when a telemetry sink is configured")

var conf *config.Config

// pollCmd represents the poll command
var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll the upstream API and publish telemetry to kafka, mqtt and s3",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		conf, err = config.Parse(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to parse config %s: %w", cfgFile, err)
		}

		// Init logger
		err = log.Init(conf.Logs)
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}

		logger := log.Logger()

		// Dump generic information
		logger.Info("Starting fleet telemetry",
			"version", version.Info(),
			"buildContext", version.BuildContext(),
		)
		logger.Info("Using config", "config", fmt.Sprintf("%+v", conf))

		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.Logger()

		_, err := common.TuneRuntime(log.Component("runtime"), conf.Runtime.MemLimitRatio)
		if err != nil {
			logger.Error(err, "failed to tune runtime")

			return
		}

		ctx := common.SetupSignalHandler(context.Background(), logger)

		err = run(ctx, *conf)
		if err != nil {
			logger.Error(err, "Polling failed")

			return
		}

		logger.V(2).Info("Polling stopped")
	},
}

func init() {
	rootCmd.AddCommand(pollCmd)
}

type closer struct {
	name  string
	close common.CloseFunc
}

func run(ctx context.Context, conf config.Config) error {
	logger := log.Logger()
	clock := clockwork.NewRealClock()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		versioncollector.NewCollector("fleet_telemetry"),
	)

	closers := []closer{}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), conf.DefaultTimeout)
		defer cancel()

		for i := len(closers) - 1; i >= 0; i-- {
			err := closers[i].close(closeCtx)
			if err != nil {
				logger.Error(err, "Failed to close resource", "resource", closers[i].name)
			}
		}
	}()

	deps, err := createDependencies(ctx, conf, registry, clock, func(name string, fn common.CloseFunc) {
		closers = append(closers, closer{name: name, close: fn})
	})
	if err != nil {
		return err
	}

	svc, err := service.New(conf, deps)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	metricsServer := factory.CreatePrometheusServer(conf.Metrics, registry)
	adminServer := factory.CreateAdminServer(conf.Admin, svc)

	go serve("metrics", metricsServer)
	go serve("admin", adminServer)

	err = svc.Start(ctx)
	if err != nil {
		logger.Error(err, "Failed to start service, shutting down")
	} else {
		<-ctx.Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.GracefulDuration)
	defer cancel()

	errs := []error{err}

	errs = append(errs, adminServer.Shutdown(shutdownCtx))
	errs = append(errs, svc.Shutdown(shutdownCtx))
	// metrics go last so the final values stay scrapable while stopping
	errs = append(errs, metricsServer.Shutdown(shutdownCtx))

	return errors.Join(errs...)
}

func createDependencies(ctx context.Context, conf config.Config, registry *prometheus.Registry, clock clockwork.Clock, onClose func(string, common.CloseFunc)) (service.Dependencies, error) {
	client, err := upstream.NewClient(conf.Upstream)
	if err != nil {
		return service.Dependencies{}, fmt.Errorf("failed to create upstream client: %w", err)
	}

	ret := service.Dependencies{
		Transport: client.WithLogger(log.Component("upstream")),
		Registry:  registry,
		Clock:     clock,
		Logger:    log.Logger(),
	}

	writers, err := createTelemetryWriters(ctx, conf, onClose)
	if err != nil {
		return service.Dependencies{}, err
	}

	if len(writers) > 0 {
		if conf.DeadLetterQueue.Bucket == "" {
			return service.Dependencies{}, errMissingDeadLetterQueue
		}

		main := processing.NewMain(telemetry.NewParallelWriter(writers...))

		ret.Processing, err = factory.DecorateProcessing(main, registry, clock, conf.Sink, log.Component("sink"))
		if err != nil {
			return service.Dependencies{}, fmt.Errorf("failed to create processing: %w", err)
		}

		dlqClient, err := factory.CreateS3Client(ctx, "dlq", conf.DeadLetterQueue)
		if err != nil {
			return service.Dependencies{}, fmt.Errorf("failed to create dead letter queue s3 client: %w", err)
		}

		mainError := processing.NewMainError(processingerror.NewS3Writer(dlqClient, clock, conf.DeadLetterQueue.Bucket, conf.DeadLetterQueue.KeyPrefix))

		ret.ErrorProcessing, err = factory.DecorateErrorProcessing(mainError, registry, clock, conf.Sink, log.Component("dlq"))
		if err != nil {
			return service.Dependencies{}, fmt.Errorf("failed to create error processing: %w", err)
		}
	} else {
		log.Logger().Info("No telemetry sink configured, telemetry only stays on the event bus")
	}

	if conf.Valkey.URL != "" {
		valkeyClient, closeFn, err := factory.CreateValkeyClient(ctx, conf.Valkey)
		if err != nil {
			return service.Dependencies{}, fmt.Errorf("failed to create valkey client: %w", err)
		}

		onClose("valkey", closeFn)

		ret.State = state.NewValkeyRepo(valkeyClient, conf.Valkey.Key, conf.Valkey.Expiration)
	}

	return ret, nil
}

func createTelemetryWriters(ctx context.Context, conf config.Config, onClose func(string, common.CloseFunc)) ([]repo.TelemetryWriter, error) {
	ret := []repo.TelemetryWriter{}

	if conf.Kafka.Broker.URLs != "" {
		producer, closeFn, err := factory.CreateKafkaProducer(conf.Kafka)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka producer: %w", err)
		}

		onClose("kafka", closeFn)

		ret = append(ret, telemetry.NewKafkaWriter(producer, conf.Kafka.Producer.Topic))
	}

	if conf.MQTT.URL != "" {
		mqttClient, closeFn, err := factory.CreateMQTTClient(ctx, conf.MQTT)
		if err != nil {
			return nil, fmt.Errorf("failed to create mqtt client: %w", err)
		}

		onClose("mqtt", closeFn)

		ret = append(ret, telemetry.NewMQTTWriter(mqttClient, telemetry.MQTTConfig{
			TopicTemplate: conf.MQTT.TopicTemplate,
			QoS:           conf.MQTT.QoS,
			Retained:      conf.MQTT.Retained,
		}))
	}

	if conf.Archive.Bucket != "" {
		archiveClient, err := factory.CreateS3Client(ctx, "archive", conf.Archive)
		if err != nil {
			return nil, fmt.Errorf("failed to create archive s3 client: %w", err)
		}

		ret = append(ret, telemetry.NewS3Writer(archiveClient, conf.Archive.Bucket, conf.Archive.KeyPrefix))
	}

	return ret, nil
}

func serve(name string, server *http.Server) {
	logger := log.Component(name)

	logger.Info("Listening", "addr", server.Addr)

	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(err, "Server stopped")
	}
}
