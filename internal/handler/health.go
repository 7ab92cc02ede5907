package handler

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/bynd/onepager/internal/middleware"
	"github.com/bynd/onepager/internal/server"
	"github.com/labstack/echo/v4"
)

// pinger checks one dependency.
type pinger func(ctx context.Context) error

// HealthHandler serves /status. Each configured dependency is pinged and
// any failure turns the response into a 503.
type HealthHandler struct {
	Handler
	checks map[string]pinger
}

func NewHealthHandler(s *server.Server) *HealthHandler {
	h := &HealthHandler{Handler: NewHandler(s), checks: map[string]pinger{}}

	enabled := s.Config.Observability.HealthChecks.Checks
	if s.DB != nil && slices.Contains(enabled, "database") {
		h.checks["database"] = s.DB.Ping
	}
	if s.Redis != nil && slices.Contains(enabled, "redis") {
		h.checks["redis"] = func(ctx context.Context) error {
			return s.Redis.Ping(ctx).Err()
		}
	}
	return h
}

type checkResult struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time"`
	Error        string `json:"error,omitempty"`
}

type HealthResponse struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Environment string                 `json:"environment"`
	Checks      map[string]checkResult `json:"checks"`
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	start := time.Now()
	logger := middleware.GetLogger(c).With().Str("operation", "health_check").Logger()

	resp := HealthResponse{
		Status:      "healthy",
		Timestamp:   start.UTC(),
		Environment: h.server.Config.Primary.Env,
		Checks:      make(map[string]checkResult, len(h.checks)),
	}

	hc := h.server.Config.Observability.HealthChecks
	if !hc.Enabled {
		return c.JSON(http.StatusOK, resp)
	}

	for name, ping := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request().Context(), hc.Timeout)
		checkStart := time.Now()
		err := ping(ctx)
		cancel()

		result := checkResult{Status: "healthy", ResponseTime: time.Since(checkStart).String()}
		if err != nil {
			result.Status = "unhealthy"
			result.Error = err.Error()
			resp.Status = "unhealthy"

			logger.Error().Err(err).Str("check", name).Msg("health check failed")
			h.recordFailure(name, err, time.Since(checkStart))
		}
		resp.Checks[name] = result
	}

	if resp.Status != "healthy" {
		logger.Warn().Dur("total_duration", time.Since(start)).Msg("service unhealthy")
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *HealthHandler) recordFailure(check string, err error, elapsed time.Duration) {
	app := h.server.LoggerService.GetApplication()
	if app == nil {
		return
	}
	app.RecordCustomEvent("HealthCheckError", map[string]any{
		"check_type":       check,
		"error_type":       check + "_unhealthy",
		"response_time_ms": elapsed.Milliseconds(),
		"error_message":    err.Error(),
	})
}
