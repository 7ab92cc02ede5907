package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bynd/onepager/internal/repository"
	"github.com/bynd/onepager/internal/server"
	"github.com/bynd/onepager/internal/service"
	"github.com/spf13/cobra"
)

var (
	recentLimit       int
	companyInProgress bool
	companyLatest     bool
	expireOlderThan   time.Duration
	expireEnqueue     bool
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect and maintain stored one-pager reports",
}

// withReports connects to the store and hands fn a report service.
func withReports(cmd *cobra.Command, fn func(ctx context.Context, srv *server.Server, reports *service.ReportService) error) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	srv, err := a.connect()
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Shutdown(context.Background()); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close connections")
		}
	}()

	repos := repository.NewRepositories(srv)
	return fn(cmd.Context(), srv, service.NewReportService(srv, repos.Reports))
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid report id %q", arg)
	}
	return id, nil
}

var reportsGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show one report by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withReports(cmd, func(ctx context.Context, _ *server.Server, reports *service.ReportService) error {
			rec, err := reports.Get(ctx, id)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), outputFormat, rec)
		})
	},
}

var reportsByRequestCmd = &cobra.Command{
	Use:   "by-request [request_id]",
	Short: "Show the report created for a generation request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReports(cmd, func(ctx context.Context, _ *server.Server, reports *service.ReportService) error {
			rec, err := reports.GetByRequestID(ctx, args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), outputFormat, rec)
		})
	},
}

var reportsCompanyCmd = &cobra.Command{
	Use:   "company [name]",
	Short: "List a company's reports, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if companyLatest && companyInProgress {
			return fmt.Errorf("--latest and --in-progress cannot be combined")
		}
		return withReports(cmd, func(ctx context.Context, _ *server.Server, reports *service.ReportService) error {
			if companyLatest {
				rec, err := reports.GetMostRecentByCompany(ctx, args[0])
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), outputFormat, rec)
			}
			return writeOutput(cmd.OutOrStdout(), outputFormat, reports.ListByCompany(ctx, args[0], companyInProgress))
		})
	},
}

var reportsRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the most recent reports across all companies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReports(cmd, func(ctx context.Context, _ *server.Server, reports *service.ReportService) error {
			return writeOutput(cmd.OutOrStdout(), outputFormat, reports.ListRecent(ctx, recentLimit))
		})
	},
}

var reportsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withReports(cmd, func(ctx context.Context, _ *server.Server, reports *service.ReportService) error {
			if err := reports.Delete(ctx, id); err != nil {
				return err
			}
			cmd.Printf("deleted report %d\n", id)
			return nil
		})
	},
}

var reportsExpireCmd = &cobra.Command{
	Use:   "expire-stale",
	Short: "Fail in-progress reports that stopped updating",
	Long: `Marks every in-progress report not updated within --older-than as an
error with error_type "timeout". With --enqueue the sweep is handed to the
background workers instead of running in this process.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if expireOlderThan < 0 {
			return fmt.Errorf("--older-than must be positive")
		}
		return withReports(cmd, func(ctx context.Context, srv *server.Server, reports *service.ReportService) error {
			olderThan := expireOlderThan
			if olderThan == 0 {
				olderThan = srv.Config.Jobs.StaleAfter
			}

			if expireEnqueue {
				if srv.Job == nil {
					return fmt.Errorf("--enqueue needs redis (set ONEPAGER_REDIS__ADDRESS)")
				}
				info, err := srv.Job.EnqueueExpireStale(ctx, olderThan)
				if err != nil {
					return err
				}
				cmd.Printf("enqueued task %s on queue %s\n", info.ID, info.Queue)
				return nil
			}

			n, err := reports.ExpireStale(ctx, olderThan)
			if err != nil {
				return err
			}
			cmd.Printf("expired %d stale reports\n", n)
			return nil
		})
	},
}

func init() {
	reportsRecentCmd.Flags().IntVar(&recentLimit, "limit", repository.DefaultRecentLimit, "maximum number of reports")
	reportsCompanyCmd.Flags().BoolVar(&companyInProgress, "in-progress", false, "only reports still generating")
	reportsCompanyCmd.Flags().BoolVar(&companyLatest, "latest", false, "only the most recent report")
	reportsExpireCmd.Flags().DurationVar(&expireOlderThan, "older-than", 0, "age after which an in-progress report is stale (default jobs.stale_after)")
	reportsExpireCmd.Flags().BoolVar(&expireEnqueue, "enqueue", false, "run the sweep on the background workers")

	reportsCmd.AddCommand(
		reportsGetCmd,
		reportsByRequestCmd,
		reportsCompanyCmd,
		reportsRecentCmd,
		reportsDeleteCmd,
		reportsExpireCmd,
	)
	rootCmd.AddCommand(reportsCmd)
}
