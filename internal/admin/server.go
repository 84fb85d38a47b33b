package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"

	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
	"github.com/openshift-assisted/fleet-telemetry/internal/polling"
	"github.com/openshift-assisted/fleet-telemetry/internal/service"
	"github.com/openshift-assisted/fleet-telemetry/pkg/eventbus"
	"github.com/openshift-assisted/fleet-telemetry/pkg/gateway"
	"github.com/openshift-assisted/fleet-telemetry/pkg/health"
)

const defaultHistoryLimit = 100

// Backend is what the admin API exposes. It is implemented by service.Service.
type Backend interface {
	Health() service.HealthReport
	Sessions() []polling.SessionInfo
	ForcePoll(ctx context.Context, sessionID string) (entity.TelemetryBatch, error)
	ClearCache()
	ResetMetrics()
	EventStats() eventbus.Stats
	EventHistory(topic string, limit int) []eventbus.Event
}

var _ Backend = (*service.Service)(nil)

type handlers struct {
	backend Backend
}

// NewRouter builds the admin HTTP API.
func NewRouter(backend Backend, logger logr.Logger) http.Handler {
	gin.SetMode(gin.ReleaseMode)

	h := handlers{backend: backend}

	router := gin.New()
	router.Use(recovery(logger), requestLogger(logger))

	router.GET("/health", h.health)
	router.GET("/sessions", h.sessions)
	router.POST("/sessions/:id/poll", h.forcePoll)
	router.DELETE("/cache", h.clearCache)
	router.DELETE("/metrics", h.resetMetrics)
	router.GET("/events/stats", h.eventStats)
	router.GET("/events/history", h.eventHistory)

	return router
}

// health answers 503 while degraded so it can back a readiness probe.
func (h handlers) health(c *gin.Context) {
	report := h.backend.Health()

	status := http.StatusOK
	if report.Health.Status == health.StatusDegraded {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, toHealthResponse(report))
}

func (h handlers) sessions(c *gin.Context) {
	sessions := h.backend.Sessions()

	ret := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		ret = append(ret, toSessionResponse(s))
	}

	c.JSON(http.StatusOK, ret)
}

func (h handlers) forcePoll(c *gin.Context) {
	batch, err := h.backend.ForcePoll(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(pollErrorStatus(err), errorResponse{Error: err.Error()})

		return
	}

	c.JSON(http.StatusOK, batch)
}

func (h handlers) clearCache(c *gin.Context) {
	h.backend.ClearCache()

	c.Status(http.StatusNoContent)
}

func (h handlers) resetMetrics(c *gin.Context) {
	h.backend.ResetMetrics()

	c.Status(http.StatusNoContent)
}

func (h handlers) eventStats(c *gin.Context) {
	c.JSON(http.StatusOK, toStatsResponse(h.backend.EventStats()))
}

func (h handlers) eventHistory(c *gin.Context) {
	limit := defaultHistoryLimit

	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid limit " + strconv.Quote(raw)})

			return
		}

		limit = parsed
	}

	events := h.backend.EventHistory(c.Query("topic"), limit)

	ret := make([]eventResponse, 0, len(events))
	for _, e := range events {
		ret = append(ret, toEventResponse(e))
	}

	c.JSON(http.StatusOK, ret)
}

func pollErrorStatus(err error) int {
	switch {
	case errors.Is(err, polling.ErrUnknownSession):
		return http.StatusNotFound
	case errors.Is(err, polling.ErrNoEntityToFetch):
		return http.StatusConflict
	case errors.Is(err, gateway.ErrBreakerOpen), errors.Is(err, gateway.ErrRateLimit), errors.Is(err, gateway.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, gateway.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
