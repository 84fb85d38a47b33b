package gateway

import "time"

type BreakerState string

const (
	BreakerClosed BreakerState = "closed"
	BreakerOpen   BreakerState = "open"
)

// BreakerStatus is a snapshot of the circuit breaker.
type BreakerStatus struct {
	State               BreakerState
	ConsecutiveFailures int
	OpenUntil           time.Time
}

// breaker counts consecutive failed calls. Once open it rejects calls until openUntil,
// then closes optimistically while keeping its counter: one more failure re-opens it.
type breaker struct {
	threshold int
	cooldown  time.Duration

	failures  int
	open      bool
	openUntil time.Time
}

func (b *breaker) allow(now time.Time) (allowed bool, closed bool) {
	if !b.open {
		return true, false
	}

	if now.Before(b.openUntil) {
		return false, false
	}

	b.open = false

	return true, true
}

func (b *breaker) success() (closed bool) {
	closed = b.open
	b.failures = 0
	b.open = false

	return closed
}

func (b *breaker) failure(now time.Time) (opened bool) {
	b.failures++

	if b.open || b.threshold <= 0 || b.failures < b.threshold {
		return false
	}

	b.open = true
	b.openUntil = now.Add(b.cooldown)

	return true
}

func (b *breaker) status(now time.Time) BreakerStatus {
	ret := BreakerStatus{
		State:               BreakerClosed,
		ConsecutiveFailures: b.failures,
	}

	if b.open && now.Before(b.openUntil) {
		ret.State = BreakerOpen
		ret.OpenUntil = b.openUntil
	}

	return ret
}
