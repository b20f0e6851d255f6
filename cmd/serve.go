package cmd

import (
	"github.com/SundayYogurt/ims_service/internal/api"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (migrates on start)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return api.StartServer(cfg, log)
	},
}
