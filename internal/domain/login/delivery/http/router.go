package http

import (
	"github.com/fasthttp/router"
	"github.com/rs/zerolog"

	"github.com/1195214305/xhs-backend/pkg/httputil"
)

// Router registers login HTTP routes
type Router struct {
	handler *LoginHandler
	health  *HealthHandler
	logger  zerolog.Logger
}

// NewRouter creates a new login router
func NewRouter(handler *LoginHandler, health *HealthHandler, logger zerolog.Logger) *Router {
	return &Router{
		handler: handler,
		health:  health,
		logger:  logger,
	}
}

// RegisterRoutes registers login routes on the router
func (r *Router) RegisterRoutes(rt *router.Router) {
	rt.GET("/health", r.health.Health)

	api := httputil.NewMiddlewareGroup(rt.Group("/api/v1")).Use(httputil.RequestLogger(r.logger))

	qr := api.Group("/auth/qr")
	qr.POST("/start", r.handler.StartFlow)
	qr.GET("/{flow_id}/status", r.handler.GetStatus)
	qr.DELETE("/{flow_id}", r.handler.Cancel)

	credentials := api.Group("/credentials")
	credentials.GET("/current", r.handler.CurrentCredential)
	credentials.POST("/invalidate", r.handler.InvalidateCredentials)

	r.logger.Info().Msg("Login routes registered")
}
