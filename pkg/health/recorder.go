package health

import (
	"errors"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
)

type Action string

const (
	ActionNormal   Action = "normal"
	ActionSlowDown Action = "slow_down"
	ActionPause    Action = "pause"
	ActionFallback Action = "fallback"
)

// Recommendation tells callers how to pace their next upstream call.
// WaitTime is only set for ActionPause.
type Recommendation struct {
	Action   Action
	WaitTime time.Duration
	Reason   string
}

type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
)

type Transition struct {
	From     Status
	To       Status
	At       time.Time
	Reason   string
	Snapshot Snapshot
}

// RequestMetric is one observed upstream attempt.
type RequestMetric struct {
	Start     time.Time
	End       time.Time
	Duration  time.Duration
	Success   bool
	RateLimit bool
	Err       error
}

type Snapshot struct {
	Status              Status
	Recommendation      Recommendation
	TotalRequests       int
	TotalFailures       int
	ConsecutiveFailures int
	SuccessRate         float64
	AverageLatency      time.Duration
	LastRateLimit       time.Time
}

type Config struct {
	// Window is the number of most recent calls used for the success rate.
	Window int
	// HistorySize bounds the request metric ring buffer.
	HistorySize int
	// LatencyWeight is the weight of a new sample in the latency moving average.
	LatencyWeight     float64
	RateLimitCooldown time.Duration
	FallbackThreshold int
	SuccessRateFloor  float64
	LatencyCeiling    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Window:            20,
		HistorySize:       100,
		LatencyWeight:     0.1,
		RateLimitCooldown: 5 * time.Minute,
		FallbackThreshold: 3,
		SuccessRateFloor:  0.8,
		LatencyCeiling:    10 * time.Second,
	}
}

// Recorder keeps rolling statistics over upstream attempts and derives a throttling
// recommendation from them. It is safe for concurrent use.
type Recorder struct {
	clock  clockwork.Clock
	config Config

	logger *logr.Logger

	delivery sync.Mutex

	mu                  sync.Mutex
	history             []RequestMetric
	next                int
	totalRequests       int
	totalFailures       int
	consecutiveFailures int
	averageLatency      time.Duration
	hasLatency          bool
	lastRateLimit       time.Time
	status              Status
	listeners           []func(Transition)
}

func NewRecorder(clock clockwork.Clock, config Config) *Recorder {
	defaults := DefaultConfig()

	if config.Window <= 0 {
		config.Window = defaults.Window
	}

	if config.HistorySize < config.Window {
		config.HistorySize = config.Window
	}

	if config.LatencyWeight <= 0 || config.LatencyWeight > 1 {
		config.LatencyWeight = defaults.LatencyWeight
	}

	return &Recorder{
		clock:   clock,
		config:  config,
		history: make([]RequestMetric, 0, config.HistorySize),
		status:  StatusHealthy,
	}
}

func (r *Recorder) WithLogger(logger logr.Logger) *Recorder {
	r.logger = &logger

	return r
}

// OnTransition registers a listener called once per health transition.
func (r *Recorder) OnTransition(listener func(Transition)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listeners = append(r.listeners, listener)
}

func (r *Recorder) RecordSuccess(latency time.Duration) {
	r.update(func(now time.Time) {
		r.totalRequests++
		r.consecutiveFailures = 0

		if !r.hasLatency {
			r.averageLatency = latency
			r.hasLatency = true
		} else {
			w := r.config.LatencyWeight
			r.averageLatency = time.Duration(float64(r.averageLatency)*(1-w) + float64(latency)*w)
		}

		r.appendLocked(RequestMetric{
			Start:    now.Add(-latency),
			End:      now,
			Duration: latency,
			Success:  true,
		})
	})
}

func (r *Recorder) RecordFailure(err error, isRateLimit bool) {
	r.update(func(now time.Time) {
		r.totalRequests++
		r.totalFailures++
		r.consecutiveFailures++

		if isRateLimit {
			r.lastRateLimit = now
		}

		r.appendLocked(RequestMetric{
			Start:     now,
			End:       now,
			RateLimit: isRateLimit,
			Err:       err,
		})
	})
}

// RecommendedAction returns pause, fallback, slow_down or normal, in that order of precedence.
func (r *Recorder) RecommendedAction() Recommendation {
	var ret Recommendation

	r.update(func(now time.Time) {
		ret = r.recommendLocked(now)
	})

	return ret
}

// update applies fn to the statistics and delivers the resulting transition, if any. The delivery
// lock is held until the listeners return: they see transitions in the order they happened and
// must not call back into Record* or RecommendedAction.
func (r *Recorder) update(fn func(now time.Time)) {
	r.delivery.Lock()
	defer r.delivery.Unlock()

	now := r.clock.Now()

	r.mu.Lock()
	fn(now)
	transition, changed := r.evaluateLocked(now)
	r.mu.Unlock()

	if changed {
		r.notify(transition)
	}
}

func (r *Recorder) SuccessRate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.successRateLocked()
}

func (r *Recorder) AverageLatency() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.averageLatency
}

func (r *Recorder) Snapshot() Snapshot {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshotLocked(now)
}

// History returns up to limit most recent request metrics, oldest first. limit <= 0 returns all of them.
func (r *Recorder) History(limit int) []RequestMetric {
	r.mu.Lock()
	defer r.mu.Unlock()

	ordered := r.orderedLocked()

	if limit > 0 && len(ordered) > limit {
		ordered = ordered[len(ordered)-limit:]
	}

	return ordered
}

// Reset drops every statistic. Listeners are kept and no transition is reported.
func (r *Recorder) Reset() {
	r.delivery.Lock()
	defer r.delivery.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.history = r.history[:0]
	r.next = 0
	r.totalRequests = 0
	r.totalFailures = 0
	r.consecutiveFailures = 0
	r.averageLatency = 0
	r.hasLatency = false
	r.lastRateLimit = time.Time{}
	r.status = StatusHealthy

	r.logInfo(0, "Health metrics reset")
}

func (r *Recorder) appendLocked(metric RequestMetric) {
	if len(r.history) < r.config.HistorySize {
		r.history = append(r.history, metric)

		return
	}

	r.history[r.next] = metric
	r.next = (r.next + 1) % r.config.HistorySize
}

func (r *Recorder) orderedLocked() []RequestMetric {
	ret := make([]RequestMetric, 0, len(r.history))

	if len(r.history) < r.config.HistorySize {
		return append(ret, r.history...)
	}

	ret = append(ret, r.history[r.next:]...)

	return append(ret, r.history[:r.next]...)
}

func (r *Recorder) successRateLocked() float64 {
	ordered := r.orderedLocked()
	if len(ordered) == 0 {
		return 1
	}

	if len(ordered) > r.config.Window {
		ordered = ordered[len(ordered)-r.config.Window:]
	}

	successes := 0

	for _, m := range ordered {
		if m.Success {
			successes++
		}
	}

	return float64(successes) / float64(len(ordered))
}

func (r *Recorder) recommendLocked(now time.Time) Recommendation {
	if !r.lastRateLimit.IsZero() {
		wait := r.lastRateLimit.Add(r.config.RateLimitCooldown).Sub(now)
		if wait > 0 {
			return Recommendation{Action: ActionPause, WaitTime: wait, Reason: "rate limited"}
		}
	}

	if r.config.FallbackThreshold > 0 && r.consecutiveFailures >= r.config.FallbackThreshold {
		return Recommendation{Action: ActionFallback, Reason: "consecutive failures"}
	}

	if r.successRateLocked() < r.config.SuccessRateFloor {
		return Recommendation{Action: ActionSlowDown, Reason: "low success rate"}
	}

	if r.config.LatencyCeiling > 0 && r.averageLatency > r.config.LatencyCeiling {
		return Recommendation{Action: ActionSlowDown, Reason: "high latency"}
	}

	return Recommendation{Action: ActionNormal}
}

func (r *Recorder) snapshotLocked(now time.Time) Snapshot {
	return Snapshot{
		Status:              r.status,
		Recommendation:      r.recommendLocked(now),
		TotalRequests:       r.totalRequests,
		TotalFailures:       r.totalFailures,
		ConsecutiveFailures: r.consecutiveFailures,
		SuccessRate:         r.successRateLocked(),
		AverageLatency:      r.averageLatency,
		LastRateLimit:       r.lastRateLimit,
	}
}

// evaluateLocked updates the health status and returns the transition, if any.
func (r *Recorder) evaluateLocked(now time.Time) (Transition, bool) {
	recommendation := r.recommendLocked(now)

	status := StatusHealthy
	if recommendation.Action != ActionNormal {
		status = StatusDegraded
	}

	if status == r.status {
		return Transition{}, false
	}

	transition := Transition{
		From:   r.status,
		To:     status,
		At:     now,
		Reason: recommendation.Reason,
	}

	r.status = status
	transition.Snapshot = r.snapshotLocked(now)

	return transition, true
}

func (r *Recorder) notify(transition Transition) {
	if transition.To == StatusDegraded {
		r.logError(errors.New(transition.Reason), "Upstream health degraded",
			"successRate", transition.Snapshot.SuccessRate,
			"averageLatency", transition.Snapshot.AverageLatency,
			"consecutiveFailures", transition.Snapshot.ConsecutiveFailures,
			"action", transition.Snapshot.Recommendation.Action,
		)
	} else {
		r.logInfo(0, "Upstream health recovered", "successRate", transition.Snapshot.SuccessRate)
	}

	r.mu.Lock()
	listeners := append([]func(Transition){}, r.listeners...)
	r.mu.Unlock()

	for _, l := range listeners {
		l(transition)
	}
}

func (r *Recorder) logInfo(level int, msg string, keysAndValues ...any) {
	if r.logger == nil {
		return
	}

	r.logger.V(level).Info(msg, keysAndValues...)
}

func (r *Recorder) logError(err error, msg string, keysAndValues ...any) {
	if r.logger == nil {
		return
	}

	r.logger.Error(err, msg, keysAndValues...)
}
