package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/openshift-assisted/fleet-telemetry/internal/activity"
	"github.com/openshift-assisted/fleet-telemetry/internal/config"
	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
	"github.com/openshift-assisted/fleet-telemetry/internal/domain/repo"
	"github.com/openshift-assisted/fleet-telemetry/internal/polling"
	"github.com/openshift-assisted/fleet-telemetry/internal/upstream"
	"github.com/openshift-assisted/fleet-telemetry/pkg/eventbus"
	"github.com/openshift-assisted/fleet-telemetry/pkg/gateway"
	"github.com/openshift-assisted/fleet-telemetry/pkg/health"
	"github.com/openshift-assisted/fleet-telemetry/pkg/pipeline"
)

const (
	TopicHealthDegraded  = "health.degraded"
	TopicHealthRecovered = "health.recovered"
	TopicBreaker         = "gateway.breaker"
	TopicDataError       = "gateway.data_error"

	sinkTopic       = "telemetry.*"
	metricNamespace = "fleet"
)

var ErrAlreadyStarted = errors.New("service already started")

// Dependencies are the outer resources built by the caller. Only Transport is mandatory.
type Dependencies struct {
	Transport gateway.Transport[upstream.Response]
	State     repo.State

	Processing      pipeline.Processing[entity.TelemetryBatch]
	ErrorProcessing pipeline.ErrorProcessing

	Registry prometheus.Registerer
	Clock    clockwork.Clock
	Logger   logr.Logger
}

type HealthReport struct {
	Health         health.Snapshot
	Breaker        gateway.BreakerStatus
	QueueLength    int
	CacheSize      int
	GlobalInterval string
}

// Service wires the gateway, health recorder, classifier, coordinator and bus, and owns their lifecycle.
type Service struct {
	conf   config.Config
	clock  clockwork.Clock
	logger logr.Logger

	gateway     *gateway.Gateway[upstream.Response]
	recorder    *health.Recorder
	source      *upstream.Source
	coordinator *polling.Coordinator
	bus         *eventbus.Bus
	runner      *pipeline.Runner[entity.TelemetryBatch]
	state       repo.State

	mu              sync.Mutex
	started         bool
	group           errgroup.Group
	stopCoordinator context.CancelFunc
	stopGateway     context.CancelFunc
	stopBus         context.CancelFunc
	coordinatorDone <-chan struct{}
	gatewayDone     <-chan struct{}
}

func New(conf config.Config, deps Dependencies) (*Service, error) {
	if deps.Transport == nil {
		return nil, errors.New("missing upstream transport")
	}

	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	logger := deps.Logger

	recorder := health.NewRecorder(deps.Clock, healthConfig(conf.Health)).WithLogger(logger.WithName("health"))

	gw := gateway.New(deps.Transport, deps.Clock, gatewayConfig(conf.Gateway)).
		WithLogger(logger.WithName("gateway")).
		WithRecorder(recorder)

	source := upstream.NewSource(gw, deps.Clock, sourceConfig(conf)).WithLogger(logger.WithName("source"))

	bus := eventbus.New(deps.Clock, busConfig(conf.EventBus)).WithLogger(logger.WithName("eventbus"))

	coordinator := polling.NewCoordinator(source, activity.New(activityConfig(conf.Activity)), bus, deps.Clock, pollingConfig(conf.Polling)).
		WithLogger(logger.WithName("polling")).
		WithAdvisor(recorder)

	ret := &Service{
		conf:        conf,
		clock:       deps.Clock,
		logger:      logger,
		gateway:     gw,
		recorder:    recorder,
		source:      source,
		coordinator: coordinator,
		bus:         bus,
		state:       deps.State,
	}

	if deps.Processing != nil && deps.ErrorProcessing != nil {
		runner := pipeline.NewRunner(bus, []string{sinkTopic}, deps.Processing, deps.ErrorProcessing).WithLogger(logger.WithName("sink"))
		ret.runner = &runner
	}

	if deps.Registry != nil {
		err := ret.registerMetrics(deps.Registry)
		if err != nil {
			return nil, err
		}
	}

	ret.forwardAlerts()

	return ret, nil
}

func (s *Service) registerMetrics(registry prometheus.Registerer) error {
	err := s.gateway.RegisterMetrics(registry, metricNamespace)
	if err != nil {
		return fmt.Errorf("failed to register gateway metrics: %w", err)
	}

	err = s.recorder.RegisterMetrics(registry, metricNamespace)
	if err != nil {
		return fmt.Errorf("failed to register health metrics: %w", err)
	}

	err = s.bus.RegisterMetrics(registry, metricNamespace)
	if err != nil {
		return fmt.Errorf("failed to register event bus metrics: %w", err)
	}

	return nil
}

// forwardAlerts republishes health transitions, breaker changes and data errors on the bus.
func (s *Service) forwardAlerts() {
	s.recorder.OnTransition(func(t health.Transition) {
		if t.To == health.StatusDegraded {
			s.bus.Emit(TopicHealthDegraded, t, eventbus.WithPriority(eventbus.PriorityCritical), eventbus.WithSource("health"))

			return
		}

		s.bus.Emit(TopicHealthRecovered, t, eventbus.WithPriority(eventbus.PriorityHigh), eventbus.WithSource("health"))
	})

	s.gateway.OnBreakerChange(func(status gateway.BreakerStatus) {
		s.bus.Emit(TopicBreaker, status, eventbus.WithPriority(eventbus.PriorityHigh), eventbus.WithSource("gateway"))
	})

	s.source.OnDataError(func(dataErr entity.DataError) {
		s.bus.Emit(TopicDataError, dataErr, eventbus.WithSource("gateway"))
	})
}

// Start restores the persisted state, starts every component and registers the default session.
// It does not block: use Wait and Shutdown. Shutdown must be called even when Start fails.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()

		return ErrAlreadyStarted
	}

	s.started = true

	base := context.WithoutCancel(ctx)

	busCtx, stopBus := context.WithCancel(base)
	gatewayCtx, stopGateway := context.WithCancel(base)
	coordinatorCtx, stopCoordinator := context.WithCancel(base)

	s.stopBus = stopBus
	s.stopGateway = stopGateway
	s.stopCoordinator = stopCoordinator
	s.mu.Unlock()

	s.restoreState(ctx)

	s.run("eventbus", func() error { return s.bus.Start(busCtx) })

	if s.runner != nil {
		s.run("sink", func() error { return s.runner.Start(busCtx) })
	}

	s.gatewayDone = s.run("gateway", func() error { return s.gateway.Start(gatewayCtx) })
	s.coordinatorDone = s.run("coordinator", func() error { return s.coordinator.Start(coordinatorCtx) })

	err := s.registerDefaultSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to register default session: %w", err)
	}

	s.logger.Info("Service started")

	return nil
}

// Wait blocks until every component stopped.
func (s *Service) Wait() error {
	return s.group.Wait()
}

// Shutdown stops polling first, cancels queued upstream calls, drains the bus so sinks get the last
// batches, saves the state, then stops the bus.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	if !started {
		return nil
	}

	var errs []error

	s.stopCoordinator()
	errs = append(errs, waitDone(ctx, s.coordinatorDone, "coordinator"))

	cancelled := s.gateway.CancelAll()
	s.stopGateway()
	errs = append(errs, waitDone(ctx, s.gatewayDone, "gateway"))

	drained := s.bus.Drain(ctx)

	s.logger.V(1).Info("Components stopped", "cancelledCalls", cancelled, "drainedEvents", drained)

	errs = append(errs, s.saveState(ctx))

	s.stopBus()

	done := make(chan error, 1)
	go func() {
		done <- s.group.Wait()
	}()

	select {
	case err := <-done:
		errs = append(errs, err)
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("components still running: %w", ctx.Err()))
	}

	err := errors.Join(errs...)
	if err != nil {
		s.logger.Error(err, "Service stopped with errors")

		return err
	}

	s.logger.Info("Service stopped")

	return nil
}

func (s *Service) Health() HealthReport {
	return HealthReport{
		Health:         s.recorder.Snapshot(),
		Breaker:        s.gateway.Breaker(),
		QueueLength:    s.gateway.QueueLength(),
		CacheSize:      s.gateway.CacheSize(),
		GlobalInterval: s.coordinator.GlobalInterval().String(),
	}
}

func (s *Service) Sessions() []polling.SessionInfo {
	return s.coordinator.Sessions()
}

func (s *Service) ForcePoll(ctx context.Context, sessionID string) (entity.TelemetryBatch, error) {
	return s.coordinator.ForcePoll(ctx, sessionID)
}

func (s *Service) ClearCache() {
	s.gateway.ClearCache()
}

func (s *Service) ResetMetrics() {
	s.recorder.Reset()
}

func (s *Service) EventStats() eventbus.Stats {
	return s.bus.Stats()
}

func (s *Service) EventHistory(topic string, limit int) []eventbus.Event {
	return s.bus.History(topic, limit)
}

func (s *Service) registerDefaultSession(ctx context.Context) error {
	conf := s.conf.Polling

	ids := conf.EntityIDs
	if len(ids) == 0 {
		entities, err := s.source.Entities(ctx)
		if err != nil {
			return fmt.Errorf("failed to list entities: %w", err)
		}

		for _, e := range entities {
			ids = append(ids, e.ID)
		}
	}

	return s.coordinator.RegisterSession(polling.Session{
		ID:        conf.SessionID,
		EntityIDs: ids,
		Interval:  conf.Interval,
		Priority:  eventbus.PriorityNormal,
	})
}

func (s *Service) restoreState(ctx context.Context) {
	if s.state == nil {
		return
	}

	state, err := s.state.LoadState(ctx)
	if err != nil {
		s.logger.Error(err, "Failed to load state, starting from scratch")

		return
	}

	s.coordinator.Restore(state.Entities)
	s.source.RestoreCursors(state.Cursors)

	s.logger.Info("State restored", "entities", len(state.Entities), "cursors", len(state.Cursors), "savedAt", state.SavedAt)
}

func (s *Service) saveState(ctx context.Context) error {
	if s.state == nil {
		return nil
	}

	entities := s.coordinator.Entities()

	state := entity.State{
		Entities: make(map[string]entity.Entity, len(entities)),
		Cursors:  s.source.Cursors(),
		SavedAt:  s.clock.Now().UTC(),
	}

	for _, e := range entities {
		state.Entities[e.ID] = e
	}

	err := s.state.SaveState(ctx, state)
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	s.logger.V(1).Info("State saved", "entities", len(state.Entities))

	return nil
}

func (s *Service) run(name string, fn func() error) <-chan struct{} {
	done := make(chan struct{})

	s.group.Go(func() error {
		defer close(done)

		err := fn()
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s stopped: %w", name, err)
		}

		return nil
	})

	return done
}

func waitDone(ctx context.Context, done <-chan struct{}, name string) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s did not stop: %w", name, ctx.Err())
	}
}
