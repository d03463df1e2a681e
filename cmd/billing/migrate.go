package main

import (
	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewConfig()
		if err != nil {
			return err
		}
		log, err := logger.NewLogger(cfg)
		if err != nil {
			return err
		}

		log.Infow("connecting to database", "host", cfg.Postgres.Host, "dbname", cfg.Postgres.DBName)
		db, err := postgres.NewDB(cfg, log)
		if err != nil {
			return err
		}
		defer db.Close()

		return db.RunMigrations()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
