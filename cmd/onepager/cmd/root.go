package cmd

import (
	"fmt"

	"github.com/bynd/onepager/internal/config"
	"github.com/bynd/onepager/internal/logger"
	"github.com/bynd/onepager/internal/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var outputFormat string

var rootCmd = &cobra.Command{
	Use:   "onepager",
	Short: "One-pager report store",
	Long: `onepager stores the outcome of every one-pager generation attempt.

  onepager serve                      run the HTTP API and the stale-report sweeper
  onepager migrate                    apply database migrations
  onepager reports recent --limit 20  inspect stored reports

Configuration is read from ONEPAGER_* environment variables (and a .env
file when present), e.g. ONEPAGER_STORE__URL and ONEPAGER_STORE__KEY.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "output format: json or yaml")
}

// app is everything a command needs once configuration is loaded.
type app struct {
	cfg           *config.Config
	logger        *zerolog.Logger
	loggerService *logger.LoggerService
}

func loadApp() (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	loggerService := logger.NewLoggerService(cfg.Observability)
	log := logger.NewLoggerWithService(cfg.Observability, loggerService)
	return &app{cfg: cfg, logger: &log, loggerService: loggerService}, nil
}

// connect opens the database (and Redis when configured).
func (a *app) connect() (*server.Server, error) {
	return server.New(a.cfg, a.logger, a.loggerService)
}

func (a *app) close() {
	a.loggerService.Shutdown()
}
