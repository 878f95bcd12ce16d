package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clynto/backend/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := repository.Connect(ctx, cfg.DSN(), cfg.DB.MaxConns)
		if err != nil {
			return err
		}
		defer pool.Close()

		statusOnly, _ := cmd.Flags().GetBool("status")
		if !statusOnly {
			if err := repository.Migrate(ctx, pool); err != nil {
				return err
			}
		}
		v, err := repository.MigrationStatus(ctx, pool)
		if err != nil {
			return err
		}
		logger.Info("database schema", "version", v)
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
		return nil
	},
}

func init() {
	migrateCmd.Flags().Bool("status", false, "only print the current schema version")
}
