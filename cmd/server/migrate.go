package main

import (
	"github.com/spf13/cobra"

	"civicpulse/internal/db"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			conn, err := db.Open(cfg.DatabaseURL, log)
			if err != nil {
				return err
			}
			defer db.Close(conn)
			return db.Migrate(conn, log)
		},
	}
}
