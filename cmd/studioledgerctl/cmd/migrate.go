package cmd

import (
	"context"
	"fmt"

	"github.com/smallbiznis/studioledger/internal/config"
	"github.com/smallbiznis/studioledger/internal/migration"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply the embedded SQL migrations on postgres, or AutoMigrate every
table on other dialects.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	var (
		conn *gorm.DB
		cfg  config.Config
	)
	return runApp(cmd, func(ctx context.Context) error {
		if err := migration.Migrate(conn.WithContext(ctx), true); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", cfg.DBType)
		return nil
	}, &conn, &cfg)
}
