package cmd

import (
	"github.com/bynd/onepager/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		return database.Migrate(cmd.Context(), a.logger, a.cfg)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
