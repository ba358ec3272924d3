package http

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/1195214305/xhs-backend/pkg/httputil"
)

const healthTimeout = 5 * time.Second

// HealthCheck checks one component. Critical components make the service
// unhealthy when they fail; the rest only degrade it.
type HealthCheck struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents health status of a single component
type ComponentHealth struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the JSON response for health check
type HealthResponse struct {
	Status     HealthStatus      `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components []ComponentHealth `json:"components"`
}

// HealthHandler handles GET /health
type HealthHandler struct {
	checks []HealthCheck
	logger zerolog.Logger
}

// NewHealthHandler creates a health handler over checks
func NewHealthHandler(checks []HealthCheck, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		checks: checks,
		logger: logger,
	}
}

// Health runs every check and reports the overall status
func (h *HealthHandler) Health(ctx *fasthttp.RequestCtx) {
	checkCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	resp := h.evaluate(checkCtx)

	event := h.logger.Debug()
	if resp.Status != HealthStatusHealthy {
		event = h.logger.Warn()
	}
	event.Str("status", string(resp.Status)).Msg("Health check completed")

	httputil.WriteHealthResponse(ctx, resp, resp.Status != HealthStatusUnhealthy)
}

func (h *HealthHandler) evaluate(ctx context.Context) HealthResponse {
	resp := HealthResponse{
		Status:     HealthStatusHealthy,
		Timestamp:  time.Now().UTC(),
		Components: make([]ComponentHealth, 0, len(h.checks)),
	}

	for _, c := range h.checks {
		component := ComponentHealth{Name: c.Name, Healthy: true}
		if err := c.Check(ctx); err != nil {
			component.Healthy = false
			component.Message = err.Error()

			switch {
			case c.Critical:
				resp.Status = HealthStatusUnhealthy
			case resp.Status == HealthStatusHealthy:
				resp.Status = HealthStatusDegraded
			}
		}
		resp.Components = append(resp.Components, component)
	}

	return resp
}
