package admin

import (
	"time"

	"github.com/openshift-assisted/fleet-telemetry/internal/polling"
	"github.com/openshift-assisted/fleet-telemetry/internal/service"
	"github.com/openshift-assisted/fleet-telemetry/pkg/eventbus"
)

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status              string          `json:"status"`
	Recommendation      recommendation  `json:"recommendation"`
	TotalRequests       int             `json:"totalRequests"`
	TotalFailures       int             `json:"totalFailures"`
	ConsecutiveFailures int             `json:"consecutiveFailures"`
	SuccessRate         float64         `json:"successRate"`
	AverageLatency      string          `json:"averageLatency"`
	LastRateLimit       *time.Time      `json:"lastRateLimit,omitempty"`
	Breaker             breakerResponse `json:"breaker"`
	QueueLength         int             `json:"queueLength"`
	CacheSize           int             `json:"cacheSize"`
	GlobalInterval      string          `json:"globalInterval"`
}

type recommendation struct {
	Action   string `json:"action"`
	WaitTime string `json:"waitTime,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type breakerResponse struct {
	State               string     `json:"state"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	OpenUntil           *time.Time `json:"openUntil,omitempty"`
}

type sessionResponse struct {
	ID                string     `json:"id"`
	EntityIDs         []string   `json:"entityIds"`
	Interval          string     `json:"interval"`
	EffectiveInterval string     `json:"effectiveInterval"`
	NextDue           time.Time  `json:"nextDue"`
	LastPoll          *time.Time `json:"lastPoll,omitempty"`
	LastError         string     `json:"lastError,omitempty"`
	Polls             int        `json:"polls"`
	InFlight          bool       `json:"inFlight"`
}

type statsResponse struct {
	Emitted               int            `json:"emitted"`
	Dispatched            int            `json:"dispatched"`
	Expired               int            `json:"expired"`
	Overflowed            int            `json:"overflowed"`
	HandlerFailures       int            `json:"handlerFailures"`
	PerTopic              map[string]int `json:"perTopic"`
	Subscriptions         int            `json:"subscriptions"`
	Pending               int            `json:"pending"`
	AverageProcessingTime string         `json:"averageProcessingTime"`
}

type eventResponse struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
	Priority  string    `json:"priority"`
	TTL       string    `json:"ttl,omitempty"`
	Payload   any       `json:"payload"`
}

func toHealthResponse(report service.HealthReport) healthResponse {
	snapshot := report.Health

	ret := healthResponse{
		Status: string(snapshot.Status),
		Recommendation: recommendation{
			Action: string(snapshot.Recommendation.Action),
			Reason: snapshot.Recommendation.Reason,
		},
		TotalRequests:       snapshot.TotalRequests,
		TotalFailures:       snapshot.TotalFailures,
		ConsecutiveFailures: snapshot.ConsecutiveFailures,
		SuccessRate:         snapshot.SuccessRate,
		AverageLatency:      snapshot.AverageLatency.String(),
		LastRateLimit:       optionalTime(snapshot.LastRateLimit),
		Breaker: breakerResponse{
			State:               string(report.Breaker.State),
			ConsecutiveFailures: report.Breaker.ConsecutiveFailures,
			OpenUntil:           optionalTime(report.Breaker.OpenUntil),
		},
		QueueLength:    report.QueueLength,
		CacheSize:      report.CacheSize,
		GlobalInterval: report.GlobalInterval,
	}

	if snapshot.Recommendation.WaitTime > 0 {
		ret.Recommendation.WaitTime = snapshot.Recommendation.WaitTime.String()
	}

	return ret
}

func toSessionResponse(info polling.SessionInfo) sessionResponse {
	return sessionResponse{
		ID:                info.ID,
		EntityIDs:         info.EntityIDs,
		Interval:          info.Interval.String(),
		EffectiveInterval: info.EffectiveInterval.String(),
		NextDue:           info.NextDue,
		LastPoll:          optionalTime(info.LastPoll),
		LastError:         info.LastError,
		Polls:             info.Polls,
		InFlight:          info.InFlight,
	}
}

func toStatsResponse(stats eventbus.Stats) statsResponse {
	return statsResponse{
		Emitted:               stats.Emitted,
		Dispatched:            stats.Dispatched,
		Expired:               stats.Expired,
		Overflowed:            stats.Overflowed,
		HandlerFailures:       stats.HandlerFailures,
		PerTopic:              stats.PerTopic,
		Subscriptions:         stats.Subscriptions,
		Pending:               stats.Pending,
		AverageProcessingTime: stats.AverageProcessingTime.String(),
	}
}

func toEventResponse(event eventbus.Event) eventResponse {
	ret := eventResponse{
		ID:        event.ID,
		Topic:     event.Topic,
		Timestamp: event.Timestamp,
		Source:    event.Source,
		Priority:  event.Priority.String(),
		Payload:   event.Payload,
	}

	if event.TTL != nil {
		ret.TTL = event.TTL.String()
	}

	return ret
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	return &t
}
