package eventbus

import (
	"context"
	"time"
)

type Handler func(ctx context.Context, event Event) error

type subscription struct {
	id       string
	pattern  string
	handler  Handler
	sequence uint64

	once        bool
	priority    int
	filter      func(Event) bool
	throttle    time.Duration
	maxTriggers int

	lastTriggered time.Time
	triggers      int
}

type SubscribeOption func(*subscription)

// Once removes the subscription after its first delivery.
func Once() SubscribeOption {
	return func(s *subscription) {
		s.once = true
	}
}

// HandlerPriority orders handlers of the same event, highest first.
func HandlerPriority(priority int) SubscribeOption {
	return func(s *subscription) {
		s.priority = priority
	}
}

// Filter skips events for which accept returns false. accept must not call back into the bus.
func Filter(accept func(Event) bool) SubscribeOption {
	return func(s *subscription) {
		s.filter = accept
	}
}

// Throttle skips events arriving less than interval after the previous delivery.
func Throttle(interval time.Duration) SubscribeOption {
	return func(s *subscription) {
		s.throttle = interval
	}
}

// MaxTriggers removes the subscription once it was delivered count events.
func MaxTriggers(count int) SubscribeOption {
	return func(s *subscription) {
		s.maxTriggers = count
	}
}

func (s *subscription) exhausted() bool {
	return s.maxTriggers > 0 && s.triggers >= s.maxTriggers
}

// accept decides delivery and books the trigger.
func (s *subscription) accept(event Event, now time.Time) bool {
	if !MatchTopic(s.pattern, event.Topic) {
		return false
	}

	if s.filter != nil && !s.filter(event) {
		return false
	}

	if s.throttle > 0 && !s.lastTriggered.IsZero() && now.Sub(s.lastTriggered) < s.throttle {
		return false
	}

	s.triggers++
	s.lastTriggered = now

	return true
}
