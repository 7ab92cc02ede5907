package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bynd/onepager/internal/database"
	"github.com/bynd/onepager/internal/handler"
	"github.com/bynd/onepager/internal/repository"
	"github.com/bynd/onepager/internal/router"
	"github.com/bynd/onepager/internal/service"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var runMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if runMigrations {
			if err := database.Migrate(ctx, a.logger, a.cfg); err != nil {
				return err
			}
		}

		srv, err := a.connect()
		if err != nil {
			return err
		}

		services, err := service.NewService(srv, repository.NewRepositories(srv))
		if err != nil {
			return err
		}

		if srv.Job != nil {
			if err := srv.Job.Start(services.Reports); err != nil {
				a.logger.Error().Err(err).Msg("failed to start background jobs")
			}
		}

		srv.SetupHTTPServer(router.NewRouter(srv, handler.NewHandlers(srv, services)))

		errCh := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				a.logger.Error().Err(err).Msg("server stopped unexpectedly")
			}
		case <-ctx.Done():
			a.logger.Info().Msg("shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error().Err(err).Msg("server forced to shutdown")
			return err
		}

		a.logger.Info().Msg("server exited properly")
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&runMigrations, "migrate", false, "apply database migrations before starting")
	rootCmd.AddCommand(serveCmd)
}
