// Package router assembles the echo instance: global middleware, the
// system routes and the versioned report API.
package router

import (
	"github.com/bynd/onepager/internal/handler"
	"github.com/bynd/onepager/internal/middleware"
	"github.com/bynd/onepager/internal/server"
	"github.com/labstack/echo/v4"
)

func NewRouter(s *server.Server, h *handler.Handlers) *echo.Echo {
	m := middleware.NewMiddlewares(s)

	r := echo.New()
	r.HideBanner = true
	r.HidePort = true
	r.HTTPErrorHandler = m.Global.GlobalErrorHandler

	r.Use(
		m.Global.Recover(),
		m.Global.Secure(),
		m.Global.CORS(),
		middleware.RequestID(),
		m.Tracing.NewRelicMiddleware(),
		m.Tracing.EnhanceTracing(),
		m.ContextEnhancer.EnhanceContext(),
		m.Global.RequestLogger(),
	)

	registerSystemRoutes(r, h)

	v1 := r.Group("/api/v1", m.RateLimit.Limit())
	registerReportRoutes(v1, h, m.Auth.RequireAuth)

	return r
}
