package admin_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshift-assisted/fleet-telemetry/internal/admin"
	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
	"github.com/openshift-assisted/fleet-telemetry/internal/polling"
	"github.com/openshift-assisted/fleet-telemetry/internal/service"
	"github.com/openshift-assisted/fleet-telemetry/pkg/eventbus"
	"github.com/openshift-assisted/fleet-telemetry/pkg/gateway"
	"github.com/openshift-assisted/fleet-telemetry/pkg/health"
)

var now = time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC)

type fakeBackend struct {
	report  service.HealthReport
	pollErr error

	clearedCache   int
	resetMetrics   int
	historyTopic   string
	historyLimit   int
	polledSessions []string
}

func (f *fakeBackend) Health() service.HealthReport { return f.report }

func (f *fakeBackend) Sessions() []polling.SessionInfo {
	return []polling.SessionInfo{{
		ID:                "default",
		EntityIDs:         []string{"a", "b"},
		Interval:          30 * time.Second,
		EffectiveInterval: 10 * time.Second,
		NextDue:           now.Add(10 * time.Second),
		LastPoll:          now,
		Polls:             3,
	}}
}

func (f *fakeBackend) ForcePoll(_ context.Context, id string) (entity.TelemetryBatch, error) {
	f.polledSessions = append(f.polledSessions, id)

	if f.pollErr != nil {
		return entity.TelemetryBatch{}, f.pollErr
	}

	return entity.TelemetryBatch{SessionID: id, Entities: []entity.Entity{{ID: "a"}}, Forced: true, FetchedAt: now}, nil
}

func (f *fakeBackend) ClearCache()   { f.clearedCache++ }
func (f *fakeBackend) ResetMetrics() { f.resetMetrics++ }

func (f *fakeBackend) EventStats() eventbus.Stats {
	return eventbus.Stats{Emitted: 4, Dispatched: 3, PerTopic: map[string]int{"telemetry.positions": 4}, AverageProcessingTime: 2 * time.Millisecond}
}

func (f *fakeBackend) EventHistory(topic string, limit int) []eventbus.Event {
	f.historyTopic = topic
	f.historyLimit = limit

	return []eventbus.Event{{ID: "e1", Topic: "gateway.breaker", Timestamp: now, Priority: eventbus.PriorityHigh, Payload: gateway.BreakerStatus{State: gateway.BreakerOpen}}}
}

func serve(t *testing.T, backend admin.Backend, method string, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	router := admin.NewRouter(backend, logr.Discard())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	if rec.Body.Len() == 0 || rec.Body.Bytes()[0] != '{' {
		return rec, nil
	}

	body := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return rec, body
}

func TestHealth(t *testing.T) {
	backend := &fakeBackend{report: service.HealthReport{
		Health: health.Snapshot{
			Status:         health.StatusHealthy,
			Recommendation: health.Recommendation{Action: health.ActionNormal},
			SuccessRate:    1,
			AverageLatency: 120 * time.Millisecond,
		},
		Breaker:        gateway.BreakerStatus{State: gateway.BreakerClosed},
		QueueLength:    2,
		GlobalInterval: "10s",
	}}

	rec, body := serve(t, backend, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "120ms", body["averageLatency"])
	assert.Equal(t, 2.0, body["queueLength"])
	assert.Equal(t, "closed", body["breaker"].(map[string]any)["state"])
	assert.NotContains(t, body, "lastRateLimit")

	backend.report.Health.Status = health.StatusDegraded
	backend.report.Health.Recommendation = health.Recommendation{Action: health.ActionPause, WaitTime: time.Minute, Reason: "rate limited"}

	rec, body = serve(t, backend, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, map[string]any{"action": "pause", "waitTime": "1m0s", "reason": "rate limited"}, body["recommendation"])
}

func TestSessions(t *testing.T) {
	rec := httptest.NewRecorder()
	admin.NewRouter(&fakeBackend{}, logr.Discard()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var sessions []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "default", sessions[0]["id"])
	assert.Equal(t, "30s", sessions[0]["interval"])
	assert.Equal(t, "10s", sessions[0]["effectiveInterval"])
	assert.Equal(t, 3.0, sessions[0]["polls"])
}

func TestForcePoll(t *testing.T) {
	backend := &fakeBackend{}

	rec, body := serve(t, backend, http.MethodPost, "/sessions/default/poll")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "default", body["sessionId"])
	assert.Equal(t, true, body["forced"])
	assert.Equal(t, []string{"default"}, backend.polledSessions)
}

func TestForcePollErrors(t *testing.T) {
	testCases := []struct {
		err      error
		expected int
	}{
		{err: fmt.Errorf("%w: nope", polling.ErrUnknownSession), expected: http.StatusNotFound},
		{err: polling.ErrNoEntityToFetch, expected: http.StatusConflict},
		{err: fmt.Errorf("failed to force poll session default: %w", gateway.ErrBreakerOpen), expected: http.StatusServiceUnavailable},
		{err: gateway.NewErrRateLimit(fmt.Errorf("too frequent")), expected: http.StatusServiceUnavailable},
		{err: gateway.NewErrTimeout(context.DeadlineExceeded), expected: http.StatusGatewayTimeout},
		{err: gateway.NewErrServer(fmt.Errorf("boom")), expected: http.StatusBadGateway},
	}

	for _, tc := range testCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			rec, body := serve(t, &fakeBackend{pollErr: tc.err}, http.MethodPost, "/sessions/default/poll")
			assert.Equal(t, tc.expected, rec.Code)
			assert.Equal(t, tc.err.Error(), body["error"])
		})
	}
}

func TestResetEndpoints(t *testing.T) {
	backend := &fakeBackend{}

	rec, _ := serve(t, backend, http.MethodDelete, "/cache")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, backend.clearedCache)

	rec, _ = serve(t, backend, http.MethodDelete, "/metrics")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, backend.resetMetrics)
}

func TestEventStats(t *testing.T) {
	rec, body := serve(t, &fakeBackend{}, http.MethodGet, "/events/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4.0, body["emitted"])
	assert.Equal(t, "2ms", body["averageProcessingTime"])
	assert.Equal(t, map[string]any{"telemetry.positions": 4.0}, body["perTopic"])
}

func TestEventHistory(t *testing.T) {
	backend := &fakeBackend{}

	rec, _ := serve(t, backend, http.MethodGet, "/events/history?topic=gateway.*&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gateway.*", backend.historyTopic)
	assert.Equal(t, 5, backend.historyLimit)

	var events []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "high", events[0]["priority"])
	assert.Equal(t, "open", events[0]["payload"].(map[string]any)["State"])

	_, _ = serve(t, backend, http.MethodGet, "/events/history")
	assert.Equal(t, "", backend.historyTopic)
	assert.Equal(t, 100, backend.historyLimit)

	rec, body := serve(t, backend, http.MethodGet, "/events/history?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "invalid limit")
}

func TestUnknownRoute(t *testing.T) {
	rec, _ := serve(t, &fakeBackend{}, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
