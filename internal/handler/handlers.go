package handler

import (
	"github.com/bynd/onepager/internal/server"
	"github.com/bynd/onepager/internal/service"
)

type Handlers struct {
	Health  *HealthHandler
	Reports *ReportHandler
}

func NewHandlers(s *server.Server, services *service.Services) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(s),
		Reports: NewReportHandler(NewHandler(s), services.Reports),
	}
}
