package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

var ErrHandlerPanic = errors.New("handler panicked")

type Config struct {
	TickInterval time.Duration
	HistorySize  int
	// MaxQueueSize bounds pending events. 0 means unbounded.
	MaxQueueSize int
	// MaxConcurrentHandlers bounds the fan-out of a single event. 0 means unbounded.
	MaxConcurrentHandlers int
	// HandlerTimeout is applied to the context given to handlers. 0 means none.
	HandlerTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		TickInterval:          100 * time.Millisecond,
		HistorySize:           1000,
		MaxQueueSize:          10000,
		MaxConcurrentHandlers: 16,
		HandlerTimeout:        30 * time.Second,
	}
}

type Stats struct {
	Emitted         int
	Dispatched      int
	Expired         int
	Overflowed      int
	HandlerFailures int
	PerTopic        map[string]int
	Subscriptions   int
	Pending         int
	// AverageProcessingTime is the mean fan-out duration of dispatched events.
	AverageProcessingTime time.Duration
}

// Bus is an in-process priority publish/subscribe bus.
// Events are queued by priority, FIFO within a priority, and dispatched one at a time.
type Bus struct {
	clock  clockwork.Clock
	config Config

	logger  *logr.Logger
	metrics *busMetrics

	mu            sync.Mutex
	queues        [priorityCount][]Event
	pending       int
	subscriptions map[string]*subscription
	sequence      uint64
	history       []Event
	stats         Stats
	totalDuration time.Duration

	// dispatchMu serializes dispatch between the loop and Drain.
	dispatchMu sync.Mutex
	urgent     chan struct{}
}

func New(clock clockwork.Clock, config Config) *Bus {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultConfig().TickInterval
	}

	if config.HistorySize < 0 {
		config.HistorySize = 0
	}

	return &Bus{
		clock:         clock,
		config:        config,
		subscriptions: make(map[string]*subscription),
		stats:         Stats{PerTopic: make(map[string]int)},
		urgent:        make(chan struct{}, 1),
	}
}

func (b *Bus) WithLogger(logger logr.Logger) *Bus {
	b.logger = &logger

	return b
}

// Emit queues an event and returns its id. Expired events are counted and never queued.
func (b *Bus) Emit(topic string, payload any, opts ...EmitOption) string {
	event := Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		Timestamp: b.clock.Now(),
		Payload:   payload,
		Priority:  PriorityNormal,
	}

	for _, opt := range opts {
		opt(&event)
	}

	if !event.Priority.valid() {
		event.Priority = PriorityNormal
	}

	b.mu.Lock()

	b.stats.Emitted++
	b.stats.PerTopic[topic]++
	b.appendHistoryLocked(event)

	if event.Expired(b.clock.Now()) {
		b.stats.Expired++
		b.mu.Unlock()

		b.observeDropped("expired")
		b.logInfo(3, "Dropped expired event", "topic", topic, "id", event.ID)

		return event.ID
	}

	dropped, accepted := b.enqueueLocked(event)
	b.mu.Unlock()

	b.observeEmitted(event.Priority)

	if dropped != nil {
		b.observeDropped("overflow")
		b.logInfo(1, "Event queue full, dropped event", "topic", dropped.Topic, "priority", dropped.Priority.String())
	}

	if accepted && event.Priority >= PriorityHigh {
		select {
		case b.urgent <- struct{}{}:
		default:
		}
	}

	return event.ID
}

func (b *Bus) Subscribe(pattern string, handler Handler, opts ...SubscribeOption) string {
	sub := &subscription{
		id:      uuid.NewString(),
		pattern: pattern,
		handler: handler,
	}

	for _, opt := range opts {
		opt(sub)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.sequence++
	sub.sequence = b.sequence
	b.subscriptions[sub.id] = sub

	b.logInfo(1, "Subscribed", "pattern", pattern, "id", sub.id)

	return sub.id
}

// Once subscribes for a single delivery.
func (b *Bus) Once(pattern string, handler Handler, opts ...SubscribeOption) string {
	return b.Subscribe(pattern, handler, append(opts, Once())...)
}

func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.subscriptions[id]
	delete(b.subscriptions, id)

	return ok
}

// Start dispatches one event per tick until ctx is cancelled.
// High and critical events are dispatched as soon as they are emitted.
func (b *Bus) Start(ctx context.Context) error {
	ticker := b.clock.NewTicker(b.config.TickInterval)
	defer ticker.Stop()

	b.logInfo(0, "Event bus started", "tick", b.config.TickInterval)

	for {
		select {
		case <-ctx.Done():
			b.logInfo(0, "Event bus stopped", "pending", b.Pending())

			return ctx.Err()
		case <-ticker.Chan():
			b.dispatchNext(ctx, PriorityLow)
		case <-b.urgent:
			for b.dispatchNext(ctx, PriorityHigh) {
			}
		}
	}
}

// Drain synchronously dispatches every pending event and returns how many were dispatched.
func (b *Bus) Drain(ctx context.Context) int {
	count := 0

	for ctx.Err() == nil && b.dispatchNext(ctx, PriorityLow) {
		count++
	}

	return count
}

func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.pending
}

// History returns up to limit most recent events matching topic, oldest first.
// An empty topic matches everything and limit <= 0 returns all retained events.
func (b *Bus) History(topic string, limit int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ret := make([]Event, 0, len(b.history))

	for _, e := range b.history {
		if topic == "" || MatchTopic(topic, e.Topic) {
			ret = append(ret, e)
		}
	}

	if limit > 0 && len(ret) > limit {
		ret = ret[len(ret)-limit:]
	}

	return ret
}

func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	ret := b.stats
	ret.PerTopic = make(map[string]int, len(b.stats.PerTopic))

	for k, v := range b.stats.PerTopic {
		ret.PerTopic[k] = v
	}

	ret.Subscriptions = len(b.subscriptions)
	ret.Pending = b.pending

	if b.stats.Dispatched > 0 {
		ret.AverageProcessingTime = b.totalDuration / time.Duration(b.stats.Dispatched)
	}

	return ret
}

// enqueueLocked returns the event dropped to make room, if any, and whether event was queued.
func (b *Bus) enqueueLocked(event Event) (*Event, bool) {
	var dropped *Event

	if b.config.MaxQueueSize > 0 && b.pending >= b.config.MaxQueueSize {
		lowest := b.lowestPendingLocked()

		if event.Priority < lowest {
			b.stats.Overflowed++

			return &event, false
		}

		victim := b.queues[lowest][0]
		b.queues[lowest] = b.queues[lowest][1:]
		b.pending--
		b.stats.Overflowed++
		dropped = &victim
	}

	b.queues[event.Priority] = append(b.queues[event.Priority], event)
	b.pending++

	return dropped, true
}

func (b *Bus) lowestPendingLocked() Priority {
	for p := PriorityLow; p <= PriorityCritical; p++ {
		if len(b.queues[p]) > 0 {
			return p
		}
	}

	return PriorityCritical
}

// popLocked returns the oldest event of the highest pending priority, if it is at least minimum.
func (b *Bus) popLocked(minimum Priority) (Event, bool) {
	for p := PriorityCritical; p >= minimum; p-- {
		if len(b.queues[p]) == 0 {
			continue
		}

		event := b.queues[p][0]
		b.queues[p][0] = Event{}
		b.queues[p] = b.queues[p][1:]
		b.pending--

		return event, true
	}

	return Event{}, false
}

func (b *Bus) appendHistoryLocked(event Event) {
	if b.config.HistorySize == 0 {
		return
	}

	b.history = append(b.history, event)

	if len(b.history) > b.config.HistorySize {
		b.history = b.history[len(b.history)-b.config.HistorySize:]
	}
}

// dispatchNext dispatches at most one event of priority >= minimum. It returns false when there was none.
func (b *Bus) dispatchNext(ctx context.Context, minimum Priority) bool {
	b.dispatchMu.Lock()
	defer b.dispatchMu.Unlock()

	b.mu.Lock()
	event, ok := b.popLocked(minimum)
	b.mu.Unlock()

	if !ok {
		return false
	}

	b.dispatch(ctx, event)

	return true
}

func (b *Bus) dispatch(ctx context.Context, event Event) {
	now := b.clock.Now()

	if event.Expired(now) {
		b.mu.Lock()
		b.stats.Expired++
		b.mu.Unlock()

		b.observeDropped("expired")
		b.logInfo(3, "Dropped expired event", "topic", event.Topic, "id", event.ID)

		return
	}

	matched := b.match(event, now)

	start := b.clock.Now()

	g := errgroup.Group{}
	if b.config.MaxConcurrentHandlers > 0 {
		g.SetLimit(b.config.MaxConcurrentHandlers)
	}

	failures := 0
	failuresMu := sync.Mutex{}

	for _, sub := range matched {
		g.Go(func() error {
			err := b.invoke(ctx, sub, event)
			if err != nil {
				failuresMu.Lock()
				failures++
				failuresMu.Unlock()

				b.logError(err, "Event handler failed", "topic", event.Topic, "subscription", sub.id, "pattern", sub.pattern)
			}

			return nil
		})
	}

	_ = g.Wait()

	duration := b.clock.Since(start)

	b.mu.Lock()
	b.stats.Dispatched++
	b.stats.HandlerFailures += failures
	b.totalDuration += duration
	b.mu.Unlock()

	b.observeDispatch(duration)
	b.logInfo(3, "Event dispatched", "topic", event.Topic, "id", event.ID, "handlers", len(matched), "failures", failures)
}

// match selects the subscriptions receiving event, books their trigger and removes
// the ones that are done: once subscriptions and exhausted max-triggers.
func (b *Bus) match(event Event, now time.Time) []*subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ret := []*subscription{}

	for id, sub := range b.subscriptions {
		if sub.exhausted() {
			delete(b.subscriptions, id)

			continue
		}

		if !sub.accept(event, now) {
			continue
		}

		if sub.once {
			delete(b.subscriptions, id)
		}

		ret = append(ret, sub)
	}

	sort.Slice(ret, func(i, j int) bool {
		if ret[i].priority != ret[j].priority {
			return ret[i].priority > ret[j].priority
		}

		return ret[i].sequence < ret[j].sequence
	})

	return ret
}

func (b *Bus) invoke(ctx context.Context, sub *subscription, event Event) (err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	if b.config.HandlerTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, b.config.HandlerTimeout)
		defer cancel()
	}

	return sub.handler(ctx, event)
}

func (b *Bus) logInfo(level int, msg string, keysAndValues ...any) {
	if b.logger == nil {
		return
	}

	b.logger.V(level).Info(msg, keysAndValues...)
}

func (b *Bus) logError(err error, msg string, keysAndValues ...any) {
	if b.logger == nil {
		return
	}

	b.logger.Error(err, msg, keysAndValues...)
}
