package repository

import (
	"github.com/bynd/onepager/internal/server"
	"github.com/bynd/onepager/internal/table"
)

// Repositories holds every repository of the application.
type Repositories struct {
	Reports *ReportRepository
}

// NewRepositories builds the repositories on top of the server's pool.
func NewRepositories(s *server.Server) *Repositories {
	return NewRepositoriesWithClient(table.NewPostgres(s.DB.Pool), s)
}

// NewRepositoriesWithClient builds the repositories on an explicit table
// client, such as table.Memory in tests.
func NewRepositoriesWithClient(client table.Client, s *server.Server) *Repositories {
	return &Repositories{
		Reports: NewReportRepository(client, s.Logger),
	}
}
