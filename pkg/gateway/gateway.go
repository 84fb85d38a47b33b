package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
)

// Transport performs a single network attempt.
type Transport[Response any] interface {
	Do(ctx context.Context, req Request) (Response, error)
}

// Recorder observes every network attempt.
type Recorder interface {
	RecordSuccess(latency time.Duration)
	RecordFailure(err error, isRateLimit bool)
}

type Config struct {
	// MinSpacing is the minimum gap between two attempts crossing the wire.
	MinSpacing time.Duration
	// MaxRetries is the number of retries after the first attempt for transient failures.
	MaxRetries uint
	// BackoffBase is the delay before the first retry, doubled for each following one.
	BackoffBase time.Duration

	BreakerThreshold int
	BreakerCooldown  time.Duration

	// CacheTTL is used for requests without their own TTL.
	CacheTTL  time.Duration
	CacheSize int
}

func DefaultConfig() Config {
	return Config{
		MinSpacing:       3 * time.Second,
		MaxRetries:       3,
		BackoffBase:      time.Second,
		BreakerThreshold: 5,
		BreakerCooldown:  5 * time.Minute,
		CacheTTL:         20 * time.Second,
		CacheSize:        100,
	}
}

type result[Response any] struct {
	response Response
	err      error
}

type job[Response any] struct {
	ctx    context.Context
	req    Request
	key    string
	result chan result[Response]
}

// Gateway serializes calls to the upstream API: one attempt at a time, spaced by MinSpacing,
// in FIFO order. Idempotent reads are cached by request signature, transient failures are
// retried with exponential backoff and a circuit breaker stops calls after sustained failure.
type Gateway[Response any] struct {
	transport Transport[Response]
	recorder  Recorder
	clock     clockwork.Clock
	config    Config

	logger  *logr.Logger
	metrics *gatewayMetrics

	mu               sync.Mutex
	queue            []*job[Response]
	cache            *responseCache[Response]
	breaker          breaker
	lastDispatch     time.Time
	closed           bool
	breakerListeners []func(BreakerStatus)

	notify chan struct{}
}

func New[Response any](transport Transport[Response], clock clockwork.Clock, config Config) *Gateway[Response] {
	if config.CacheSize <= 0 {
		config.CacheSize = DefaultConfig().CacheSize
	}

	return &Gateway[Response]{
		transport: transport,
		clock:     clock,
		config:    config,
		cache:     newResponseCache[Response](config.CacheSize),
		breaker: breaker{
			threshold: config.BreakerThreshold,
			cooldown:  config.BreakerCooldown,
		},
		notify: make(chan struct{}, 1),
	}
}

func (g *Gateway[Response]) WithLogger(logger logr.Logger) *Gateway[Response] {
	g.logger = &logger

	return g
}

func (g *Gateway[Response]) WithRecorder(recorder Recorder) *Gateway[Response] {
	g.recorder = recorder

	return g
}

// OnBreakerChange registers a listener called each time the breaker opens or closes.
func (g *Gateway[Response]) OnBreakerChange(listener func(BreakerStatus)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.breakerListeners = append(g.breakerListeners, listener)
}

// Call returns a cached response when possible, otherwise waits for its turn in the queue.
func (g *Gateway[Response]) Call(ctx context.Context, req Request) (Response, error) {
	var zero Response

	key := req.Signature()

	if !req.Fresh && !req.NoCache {
		resp, ok := g.cached(key)
		if ok {
			g.logInfo(3, "Cache hit", "action", req.Action)

			return resp, nil
		}
	}

	j := &job[Response]{
		ctx:    ctx,
		req:    req,
		key:    key,
		result: make(chan result[Response], 1),
	}

	err := g.enqueue(j)
	if err != nil {
		return zero, err
	}

	select {
	case res := <-j.result:
		return res.response, res.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Start runs the drain loop until ctx is cancelled. Pending calls are then cancelled.
func (g *Gateway[Response]) Start(ctx context.Context) error {
	g.logInfo(0, "Gateway started", "minSpacing", g.config.MinSpacing, "maxRetries", g.config.MaxRetries)

	defer func() {
		g.mu.Lock()
		g.closed = true
		g.mu.Unlock()

		g.CancelAll()

		g.logInfo(0, "Gateway stopped")
	}()

	for {
		j, ok := g.dequeue()
		if ok {
			g.dispatch(ctx, j)

			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.notify:
		}
	}
}

// CancelAll fails every queued call with ErrCancelled. The in-flight call is not affected.
func (g *Gateway[Response]) CancelAll() int {
	g.mu.Lock()
	pending := g.queue
	g.queue = nil
	g.mu.Unlock()

	g.setQueueLength(0)

	for _, j := range pending {
		j.result <- result[Response]{err: ErrCancelled}
	}

	if len(pending) > 0 {
		g.logInfo(1, "Cancelled queued calls", "count", len(pending))
	}

	return len(pending)
}

// ClearCache drops every cached response.
func (g *Gateway[Response]) ClearCache() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cache.clear()
}

func (g *Gateway[Response]) CacheSize() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.cache.len()
}

func (g *Gateway[Response]) QueueLength() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.queue)
}

func (g *Gateway[Response]) Breaker() BreakerStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.breaker.status(g.clock.Now())
}

func (g *Gateway[Response]) cached(key string) (Response, bool) {
	g.mu.Lock()
	resp, ok := g.cache.get(key, g.clock.Now())
	g.mu.Unlock()

	g.observeCache(ok)

	return resp, ok
}

func (g *Gateway[Response]) enqueue(j *job[Response]) error {
	g.mu.Lock()

	if g.closed {
		g.mu.Unlock()

		return ErrClosed
	}

	err := g.admitLocked(j.req.Action)
	if err != nil {
		g.mu.Unlock()

		return err
	}

	g.queue = append(g.queue, j)
	length := len(g.queue)
	g.mu.Unlock()

	g.setQueueLength(length)

	select {
	case g.notify <- struct{}{}:
	default:
	}

	return nil
}

func (g *Gateway[Response]) dequeue() (*job[Response], bool) {
	g.mu.Lock()

	if len(g.queue) == 0 {
		g.mu.Unlock()

		return nil, false
	}

	j := g.queue[0]
	g.queue[0] = nil
	g.queue = g.queue[1:]
	length := len(g.queue)
	g.mu.Unlock()

	g.setQueueLength(length)

	return j, true
}

// admitLocked fails fast while the breaker is open. Must be called with g.mu held.
func (g *Gateway[Response]) admitLocked(action string) error {
	allowed, closed := g.breaker.allow(g.clock.Now())
	if closed {
		g.breakerChangedLocked()
	}

	if !allowed {
		g.observeAttempt(action, ErrBreakerOpen)

		return ErrBreakerOpen
	}

	return nil
}

func (g *Gateway[Response]) dispatch(loopCtx context.Context, j *job[Response]) {
	if j.ctx.Err() != nil {
		j.result <- result[Response]{err: j.ctx.Err()}

		return
	}

	g.mu.Lock()

	// The breaker may have opened while the call was queued.
	err := g.admitLocked(j.req.Action)
	if err != nil {
		g.mu.Unlock()
		j.result <- result[Response]{err: err}

		return
	}

	// A call with the same signature may have been served while this one was waiting.
	if !j.req.Fresh && !j.req.NoCache {
		resp, ok := g.cache.get(j.key, g.clock.Now())
		if ok {
			g.mu.Unlock()
			g.observeCache(true)
			j.result <- result[Response]{response: resp}

			return
		}
	}

	g.mu.Unlock()

	ctx, cancel := context.WithCancel(j.ctx)
	defer cancel()

	stop := context.AfterFunc(loopCtx, cancel)
	defer stop()

	resp, attempts, err := g.execute(ctx, j.req)

	g.complete(j, resp, attempts, err)
}

func (g *Gateway[Response]) execute(ctx context.Context, req Request) (Response, int, error) {
	var resp Response

	attempts := 0

	err := retry.Do(
		func() error {
			err := g.waitSpacing(ctx)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			attempts++

			start := g.clock.Now()

			r, err := g.transport.Do(ctx, req)

			g.report(req, g.clock.Since(start), attempts, err)

			if err != nil {
				return err
			}

			resp = r

			return nil
		},
		retry.Context(ctx),
		retry.Attempts(g.config.MaxRetries+1),
		retry.Delay(g.config.BackoffBase),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(IsRetryable),
		retry.WithTimer(g.clock),
		retry.LastErrorOnly(true),
	)

	return resp, attempts, err
}

// waitSpacing blocks until MinSpacing elapsed since the previous attempt, then books the slot.
func (g *Gateway[Response]) waitSpacing(ctx context.Context) error {
	g.mu.Lock()
	last := g.lastDispatch
	g.mu.Unlock()

	if !last.IsZero() {
		remaining := g.config.MinSpacing - g.clock.Since(last)
		if remaining > 0 {
			select {
			case <-g.clock.After(remaining):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	g.mu.Lock()
	g.lastDispatch = g.clock.Now()
	g.mu.Unlock()

	return nil
}

func (g *Gateway[Response]) report(req Request, latency time.Duration, attempt int, err error) {
	g.observeAttempt(req.Action, err)

	if err == nil {
		g.logInfo(3, "Upstream call succeeded", "action", req.Action, "attempt", attempt, "latency", latency)

		if g.recorder != nil {
			g.recorder.RecordSuccess(latency)
		}

		return
	}

	g.logInfo(2, "Upstream call failed", "action", req.Action, "attempt", attempt, "kind", Kind(err), "error", err.Error())

	malformed := ErrMalformedResponse{}
	if errors.As(err, &malformed) {
		g.logError(err, "Malformed upstream response", "action", malformed.Action, "preview", malformed.Preview)
	}

	if g.recorder != nil && !errors.Is(err, context.Canceled) {
		g.recorder.RecordFailure(err, errors.Is(err, ErrRateLimit))
	}
}

func (g *Gateway[Response]) complete(j *job[Response], resp Response, attempts int, err error) {
	g.mu.Lock()

	now := g.clock.Now()

	switch {
	case err == nil:
		if g.breaker.success() {
			g.breakerChangedLocked()
		}

		if !j.req.NoCache {
			ttl := j.req.TTL
			if ttl == 0 {
				ttl = g.config.CacheTTL
			}

			g.cache.set(j.key, resp, now, ttl)
		}
	case countsAsFailure(err):
		if g.breaker.failure(now) {
			g.logInfo(0, "Circuit breaker opened", "failures", g.breaker.failures, "cooldown", g.config.BreakerCooldown)
			g.breakerChangedLocked()
		}
	}

	g.mu.Unlock()

	if err != nil {
		g.logInfo(1, "Call failed", "action", j.req.Action, "attempts", attempts, "kind", Kind(err))
	}

	j.result <- result[Response]{response: resp, err: err}
}

// breakerChangedLocked notifies listeners asynchronously. Must be called with g.mu held.
func (g *Gateway[Response]) breakerChangedLocked() {
	status := g.breaker.status(g.clock.Now())
	listeners := append([]func(BreakerStatus){}, g.breakerListeners...)

	g.setBreakerGauge(status)

	if status.State == BreakerClosed {
		g.logInfo(1, "Circuit breaker closed")
	}

	for _, l := range listeners {
		go l(status)
	}
}

func (g *Gateway[Response]) logInfo(level int, msg string, keysAndValues ...any) {
	if g.logger == nil {
		return
	}

	g.logger.V(level).Info(msg, keysAndValues...)
}

func (g *Gateway[Response]) logError(err error, msg string, keysAndValues ...any) {
	if g.logger == nil {
		return
	}

	g.logger.Error(err, msg, keysAndValues...)
}
