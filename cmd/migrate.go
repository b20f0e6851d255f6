package cmd

import (
	"github.com/SundayYogurt/ims_service/internal/db"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and seed roles",
	RunE: func(cmd *cobra.Command, args []string) error {
		gdb, err := db.Open(cfg, log)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close(gdb) }()

		if err := db.Migrate(gdb); err != nil {
			return err
		}
		log.Info("migration successful")
		return nil
	},
}
