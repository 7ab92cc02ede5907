package service

import (
	"github.com/bynd/onepager/internal/lib/job"
	"github.com/bynd/onepager/internal/repository"
	"github.com/bynd/onepager/internal/server"
)

type Services struct {
	Auth    *AuthService
	Job     *job.JobService
	Reports *ReportService
}

func NewService(s *server.Server, repos *repository.Repositories) (*Services, error) {
	return &Services{
		Auth:    NewAuthService(s),
		Job:     s.Job,
		Reports: NewReportService(s, repos.Reports),
	}, nil
}
