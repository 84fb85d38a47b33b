package eventbus

import (
	"strings"
	"time"
)

type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

const priorityCount = int(PriorityCritical) + 1

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

func (p Priority) valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

// Event is immutable once emitted. A nil TTL never expires.
type Event struct {
	ID        string
	Topic     string
	Timestamp time.Time
	Source    string
	Payload   any
	Priority  Priority
	TTL       *time.Duration
}

// Expired reports whether Timestamp + TTL is in the past.
func (e Event) Expired(now time.Time) bool {
	if e.TTL == nil {
		return false
	}

	return now.After(e.Timestamp.Add(*e.TTL))
}

type EmitOption func(*Event)

func WithPriority(p Priority) EmitOption {
	return func(e *Event) {
		e.Priority = p
	}
}

func WithTTL(ttl time.Duration) EmitOption {
	return func(e *Event) {
		e.TTL = &ttl
	}
}

func WithSource(source string) EmitOption {
	return func(e *Event) {
		e.Source = source
	}
}

// MatchTopic supports exact topics, "*", "prefix*" and "*suffix".
func MatchTopic(pattern string, topic string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(topic, strings.TrimSuffix(pattern, "*"))
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(topic, strings.TrimPrefix(pattern, "*"))
	default:
		return pattern == topic
	}
}
