package polling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"

	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
	"github.com/openshift-assisted/fleet-telemetry/pkg/eventbus"
	"github.com/openshift-assisted/fleet-telemetry/pkg/health"
)

// Source fetches the latest positions of the given entities. fresh bypasses any cache.
type Source interface {
	Positions(ctx context.Context, entityIDs []string, fresh bool) ([]entity.Entity, error)
}

type Classifier interface {
	Classify(e entity.Entity, now time.Time) entity.Tier
	RecommendedInterval(tiers []entity.Tier) time.Duration
}

type Publisher interface {
	Emit(topic string, payload any, opts ...eventbus.EmitOption) string
}

// Advisor tells the coordinator how hard it may call the upstream.
type Advisor interface {
	RecommendedAction() health.Recommendation
}

type Config struct {
	Topic              string
	FetchTimeout       time.Duration
	// FallbackRetryEvery makes every Nth scheduled tick spent in fallback call the upstream anyway,
	// so a recovered upstream can report a success. Defaults to DefaultFallbackRetryEvery.
	FallbackRetryEvery int
}

const DefaultFallbackRetryEvery = 3

// Coordinator owns polling sessions and a single global schedule: every session has its own
// next due time, one timer is armed at the earliest of them and every session due when it fires
// is served by a single deduplicated fetch.
type Coordinator struct {
	source     Source
	classifier Classifier
	publisher  Publisher
	advisor    Advisor
	clock      clockwork.Clock
	config     Config

	logger *logr.Logger

	mu          sync.Mutex
	sessions    map[string]*session
	entities    map[string]entity.Entity
	recommended time.Duration
	timer       clockwork.Timer
	generation  uint64
	running     bool
	runCtx      context.Context

	fallbackTicks int

	wg sync.WaitGroup
}

func NewCoordinator(source Source, classifier Classifier, publisher Publisher, clock clockwork.Clock, config Config) *Coordinator {
	return &Coordinator{
		source:     source,
		classifier: classifier,
		publisher:  publisher,
		clock:      clock,
		config:     config,
		sessions:   make(map[string]*session),
		entities:   make(map[string]entity.Entity),
	}
}

func (c *Coordinator) WithLogger(logger logr.Logger) *Coordinator {
	c.logger = &logger

	return c
}

func (c *Coordinator) WithAdvisor(advisor Advisor) *Coordinator {
	c.advisor = advisor

	return c
}

// RegisterSession creates or replaces a session. Its first poll is due immediately.
func (c *Coordinator) RegisterSession(s Session) error {
	if s.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidSession)
	}

	if s.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidSession)
	}

	s.EntityIDs = normalizeIDs(s.EntityIDs)

	c.mu.Lock()
	defer c.mu.Unlock()

	_, replaced := c.sessions[s.ID]

	c.sessions[s.ID] = &session{
		Session: s,
		nextDue: c.clock.Now(),
	}

	c.rearmLocked()

	c.logInfo(1, "Session registered", "session", s.ID, "entities", len(s.EntityIDs), "interval", s.Interval, "replaced", replaced)

	return nil
}

// UpdateSession patches a session in place. The next due time only moves earlier, when the new
// interval requires it.
func (c *Coordinator) UpdateSession(id string, update SessionUpdate) error {
	if update.Interval != nil && *update.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidSession)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}

	if update.EntityIDs != nil {
		s.EntityIDs = normalizeIDs(update.EntityIDs)
	}

	if update.Interval != nil {
		s.Interval = *update.Interval

		if !s.inFlight && !s.lastPoll.IsZero() {
			due := s.lastPoll.Add(effectiveInterval(s.Interval, c.recommended))
			if due.Before(s.nextDue) {
				s.nextDue = due
			}
		}
	}

	c.rearmLocked()

	c.logInfo(1, "Session updated", "session", id, "entities", len(s.EntityIDs), "interval", s.Interval)

	return nil
}

// UnregisterSession prevents future scheduled polls. An in-flight poll still completes.
func (c *Coordinator) UnregisterSession(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.sessions[id]
	if !ok {
		return false
	}

	delete(c.sessions, id)
	c.rearmLocked()

	c.logInfo(1, "Session unregistered", "session", id)

	return true
}

// ForcePoll fetches fresh data for a session right away, ignoring health recommendations.
// The session schedule is left untouched.
func (c *Coordinator) ForcePoll(ctx context.Context, id string) (entity.TelemetryBatch, error) {
	c.mu.Lock()

	s, ok := c.sessions[id]
	if !ok {
		c.mu.Unlock()

		return entity.TelemetryBatch{}, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}

	snapshot := s.Session
	c.mu.Unlock()

	if len(snapshot.EntityIDs) == 0 {
		return entity.TelemetryBatch{}, fmt.Errorf("%w: session %s", ErrNoEntityToFetch, id)
	}

	c.logInfo(1, "Forced poll", "session", id)

	ctx, cancel := c.withFetchTimeout(ctx)
	defer cancel()

	fetched, err := c.source.Positions(ctx, snapshot.EntityIDs, true)
	if err != nil {
		return entity.TelemetryBatch{}, fmt.Errorf("failed to force poll session %s: %w", id, err)
	}

	now := c.clock.Now()

	c.mu.Lock()
	transitions := c.applyLocked(snapshot.EntityIDs, fetched, now)
	c.recommended = c.classifier.RecommendedInterval(c.tiersLocked())
	batch := c.batchLocked(snapshot, transitions, now)
	c.mu.Unlock()

	batch.Forced = true

	c.publish(snapshot, batch)

	return batch, nil
}

// Start arms the schedule and blocks until ctx is cancelled, then stops the timer and waits for in-flight polls.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	c.running = true
	c.runCtx = ctx
	c.rearmLocked()
	c.mu.Unlock()

	c.logInfo(0, "Polling coordinator started")

	<-ctx.Done()

	c.mu.Lock()
	c.running = false
	c.generation++

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.wg.Wait()

	c.logInfo(0, "Polling coordinator stopped")

	return ctx.Err()
}

// GlobalInterval is the most aggressive effective interval across sessions. It is 0 without sessions.
func (c *Coordinator) GlobalInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	ret := time.Duration(0)

	for _, s := range c.sessions {
		interval := effectiveInterval(s.Interval, c.recommended)
		if ret == 0 || interval < ret {
			ret = interval
		}
	}

	return ret
}

func (c *Coordinator) Sessions() []SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	ret := make([]SessionInfo, 0, len(c.sessions))
	for _, s := range c.sessions {
		ret = append(ret, s.info(c.recommended))
	}

	sort.Slice(ret, func(i, j int) bool { return ret[i].ID < ret[j].ID })

	return ret
}

// Entities returns the tracked entities sorted by id.
func (c *Coordinator) Entities() []entity.Entity {
	c.mu.Lock()
	defer c.mu.Unlock()

	ret := make([]entity.Entity, 0, len(c.entities))
	for _, e := range c.entities {
		ret = append(ret, e)
	}

	sort.Slice(ret, func(i, j int) bool { return ret[i].ID < ret[j].ID })

	return ret
}

// Restore seeds the entity map, typically from persisted state, before the first poll.
func (c *Coordinator) Restore(entities map[string]entity.Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, e := range entities {
		e.ID = id
		c.entities[id] = e
	}

	c.recommended = c.classifier.RecommendedInterval(c.tiersLocked())

	c.logInfo(1, "Entities restored", "count", len(entities))
}

// rearmLocked arms the timer at the earliest next due time. Must be called with c.mu held.
func (c *Coordinator) rearmLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	c.generation++

	if !c.running {
		return
	}

	earliest := time.Time{}

	for _, s := range c.sessions {
		if s.inFlight {
			continue
		}

		if earliest.IsZero() || s.nextDue.Before(earliest) {
			earliest = s.nextDue
		}
	}

	if earliest.IsZero() {
		return
	}

	delay := earliest.Sub(c.clock.Now())
	if delay < 0 {
		delay = 0
	}

	generation := c.generation
	c.timer = c.clock.AfterFunc(delay, func() { c.fire(generation) })

	c.logInfo(2, "Schedule armed", "in", delay)
}

func (c *Coordinator) fire(generation uint64) {
	recommendation := health.Recommendation{Action: health.ActionNormal}
	if c.advisor != nil {
		recommendation = c.advisor.RecommendedAction()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || generation != c.generation {
		return
	}

	now := c.clock.Now()

	due := []Session{}

	for _, s := range c.sessions {
		if s.inFlight || s.nextDue.After(now) {
			continue
		}

		due = append(due, s.Session)
	}

	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })

	if recommendation.Action == health.ActionPause {
		for _, d := range due {
			c.sessions[d.ID].nextDue = now.Add(recommendation.WaitTime)
		}

		c.logInfo(1, "Polling paused", "wait", recommendation.WaitTime, "reason", recommendation.Reason, "sessions", len(due))
		c.rearmLocked()

		return
	}

	for _, d := range due {
		c.sessions[d.ID].inFlight = true
	}

	c.rearmLocked()

	if len(due) == 0 {
		return
	}

	retry := c.fallbackRetryLocked(recommendation)

	ctx := c.runCtx

	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		c.poll(ctx, due, recommendation, retry)
	}()
}

// fallbackRetryLocked counts the ticks spent in fallback and reports whether this one should
// reach the upstream anyway. Only the upstream calls feed the health recorder, so fallback would
// never clear without them.
func (c *Coordinator) fallbackRetryLocked(recommendation health.Recommendation) bool {
	if recommendation.Action != health.ActionFallback {
		c.fallbackTicks = 0

		return false
	}

	every := c.config.FallbackRetryEvery
	if every <= 0 {
		every = DefaultFallbackRetryEvery
	}

	c.fallbackTicks++
	if c.fallbackTicks < every {
		return false
	}

	c.fallbackTicks = 0

	return true
}

func (c *Coordinator) poll(ctx context.Context, due []Session, recommendation health.Recommendation, retry bool) {
	ids := []string{}
	for _, s := range due {
		ids = append(ids, s.EntityIDs...)
	}

	ids = normalizeIDs(ids)

	var fetched []entity.Entity
	var err, retryErr error

	stale := recommendation.Action == health.ActionFallback && !retry

	switch {
	case stale:
		c.logInfo(1, "Serving last known state", "reason", recommendation.Reason, "sessions", len(due))
	case len(ids) == 0:
		err = ErrNoEntityToFetch
	default:
		fetchCtx, cancel := c.withFetchTimeout(ctx)
		fetched, err = c.source.Positions(fetchCtx, ids, false)
		cancel()

		if err != nil && retry {
			c.logError(err, "Upstream still failing, serving last known state", "sessions", len(due))

			retryErr = err
			fetched, err, stale = nil, nil, true
		}
	}

	now := c.clock.Now()

	c.mu.Lock()

	if err != nil && !errors.Is(err, ErrNoEntityToFetch) {
		c.logError(err, "Scheduled poll failed", "entities", len(ids), "sessions", len(due))
	}

	transitions := []entity.TierTransition{}
	if err == nil {
		transitions = c.applyLocked(ids, fetched, now)
		c.recommended = c.classifier.RecommendedInterval(c.tiersLocked())
	}

	batches := make([]entity.TelemetryBatch, 0, len(due))

	for _, d := range due {
		s, ok := c.sessions[d.ID]
		if ok {
			interval := effectiveInterval(s.Interval, c.recommended)
			if recommendation.Action == health.ActionSlowDown {
				interval *= 2
			}

			s.inFlight = false
			s.nextDue = now.Add(interval)
			s.lastPoll = now
			s.lastError = ""

			if err != nil {
				s.lastError = err.Error()
			} else {
				s.polls++
			}

			if retryErr != nil {
				s.lastError = retryErr.Error()
			}

			c.logInfo(2, "Session rescheduled", "session", s.ID, "interval", interval, "action", recommendation.Action)
		}

		if err == nil {
			batch := c.batchLocked(d, transitions, now)
			batch.Stale = stale
			batches = append(batches, batch)
		}
	}

	c.rearmLocked()
	c.mu.Unlock()

	for i, batch := range batches {
		c.publish(due[i], batch)
	}
}

// applyLocked merges fetched entities into the entity map and reclassifies every entity in ids.
func (c *Coordinator) applyLocked(ids []string, fetched []entity.Entity, now time.Time) []entity.TierTransition {
	updates := make(map[string]entity.Entity, len(fetched))
	for _, e := range fetched {
		updates[e.ID] = e
	}

	for _, e := range fetched {
		found := false

		for _, id := range ids {
			if id == e.ID {
				found = true

				break
			}
		}

		if !found {
			ids = append(ids, e.ID)
		}
	}

	transitions := []entity.TierTransition{}

	for _, id := range ids {
		previous, known := c.entities[id]
		update, reported := updates[id]

		if !known && !reported {
			continue
		}

		current := previous
		current.ID = id

		if reported {
			if update.Name != "" {
				current.Name = update.Name
			}

			if update.Position != nil {
				position := *update.Position
				current.Position = &position
			}
		}

		current.Tier = c.classifier.Classify(current, now)
		c.entities[id] = current

		if current.Tier != previous.Tier {
			transitions = append(transitions, entity.TierTransition{EntityID: id, From: previous.Tier, To: current.Tier})
		}
	}

	return transitions
}

func (c *Coordinator) tiersLocked() []entity.Tier {
	ret := make([]entity.Tier, 0, len(c.entities))
	for _, e := range c.entities {
		ret = append(ret, e.Tier)
	}

	return ret
}

func (c *Coordinator) batchLocked(s Session, transitions []entity.TierTransition, now time.Time) entity.TelemetryBatch {
	batch := entity.TelemetryBatch{
		SessionID: s.ID,
		Entities:  []entity.Entity{},
		FetchedAt: now,
	}

	wanted := make(map[string]struct{}, len(s.EntityIDs))

	for _, id := range s.EntityIDs {
		wanted[id] = struct{}{}

		e, ok := c.entities[id]
		if ok {
			batch.Entities = append(batch.Entities, e)
		}
	}

	for _, t := range transitions {
		_, ok := wanted[t.EntityID]
		if ok {
			batch.Transitions = append(batch.Transitions, t)
		}
	}

	return batch
}

// publish emits a batch as high priority when an entity became active, normal otherwise.
func (c *Coordinator) publish(s Session, batch entity.TelemetryBatch) {
	priority := eventbus.PriorityNormal

	for _, t := range batch.Transitions {
		if t.To == entity.TierActive {
			priority = eventbus.PriorityHigh

			break
		}
	}

	if s.Priority > priority {
		priority = s.Priority
	}

	c.publisher.Emit(c.config.Topic, batch, eventbus.WithPriority(priority), eventbus.WithSource("polling/"+s.ID))

	c.logInfo(3, "Telemetry published", "session", s.ID, "entities", len(batch.Entities), "priority", priority.String(), "stale", batch.Stale)

	if s.Callback != nil {
		s.Callback(batch)
	}
}

func (c *Coordinator) withFetchTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.FetchTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.config.FetchTimeout)
}

func (c *Coordinator) logInfo(level int, msg string, keysAndValues ...any) {
	if c.logger == nil {
		return
	}

	c.logger.V(level).Info(msg, keysAndValues...)
}

func (c *Coordinator) logError(err error, msg string, keysAndValues ...any) {
	if c.logger == nil {
		return
	}

	c.logger.Error(err, msg, keysAndValues...)
}
