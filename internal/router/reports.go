package router

import (
	"github.com/bynd/onepager/internal/handler"
	"github.com/labstack/echo/v4"
)

// registerReportRoutes mounts the report API. write is applied to the
// routes that change records.
func registerReportRoutes(g *echo.Group, h *handler.Handlers, write ...echo.MiddlewareFunc) {
	reports := g.Group("/reports")
	reports.POST("", h.Reports.CreateReport(), write...)
	reports.GET("", h.Reports.ListRecentReports())
	reports.GET("/:id", h.Reports.GetReport())
	reports.PATCH("/:id", h.Reports.UpdateReport(), write...)
	reports.DELETE("/:id", h.Reports.DeleteReport(), write...)
	reports.GET("/by-request/:request_id", h.Reports.GetReportByRequestID())

	companies := g.Group("/companies/:company")
	companies.GET("/reports", h.Reports.ListCompanyReports())
	companies.GET("/reports/latest", h.Reports.GetLatestCompanyReport())
}
