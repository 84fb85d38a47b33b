package polling

import (
	"errors"
	"sort"
	"time"

	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
	"github.com/openshift-assisted/fleet-telemetry/pkg/eventbus"
)

var (
	ErrUnknownSession  = errors.New("unknown session")
	ErrInvalidSession  = errors.New("invalid session")
	ErrNotRunning      = errors.New("coordinator not running")
	ErrNoEntityToFetch = errors.New("no entity to fetch")
)

// Session is a named polling registration. Priority raises the priority of its telemetry events,
// Callback is optional and receives every batch published for the session.
type Session struct {
	ID        string
	EntityIDs []string
	Interval  time.Duration
	Priority  eventbus.Priority
	Callback  func(entity.TelemetryBatch)
}

// SessionUpdate patches a live session. Nil fields are left unchanged.
type SessionUpdate struct {
	EntityIDs []string
	Interval  *time.Duration
}

type SessionInfo struct {
	ID        string
	EntityIDs []string
	Interval  time.Duration
	// EffectiveInterval is the shorter of Interval and the classifier recommendation.
	EffectiveInterval time.Duration
	NextDue           time.Time
	LastPoll          time.Time
	LastError         string
	Polls             int
	InFlight          bool
}

type session struct {
	Session

	nextDue   time.Time
	lastPoll  time.Time
	lastError string
	polls     int
	inFlight  bool
}

func (s *session) info(recommended time.Duration) SessionInfo {
	return SessionInfo{
		ID:                s.ID,
		EntityIDs:         append([]string(nil), s.EntityIDs...),
		Interval:          s.Interval,
		EffectiveInterval: effectiveInterval(s.Interval, recommended),
		NextDue:           s.nextDue,
		LastPoll:          s.lastPoll,
		LastError:         s.lastError,
		Polls:             s.polls,
		InFlight:          s.inFlight,
	}
}

func effectiveInterval(declared time.Duration, recommended time.Duration) time.Duration {
	if recommended > 0 && recommended < declared {
		return recommended
	}

	return declared
}

func normalizeIDs(ids []string) []string {
	set := make(map[string]struct{}, len(ids))
	ret := make([]string, 0, len(ids))

	for _, id := range ids {
		if id == "" {
			continue
		}

		_, ok := set[id]
		if ok {
			continue
		}

		set[id] = struct{}{}
		ret = append(ret, id)
	}

	sort.Strings(ret)

	return ret
}
