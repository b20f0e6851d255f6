// Package cmd is the imsd command tree.
package cmd

import (
	"github.com/SundayYogurt/ims_service/config"
	"github.com/SundayYogurt/ims_service/pkg/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

// app state shared by subcommands, filled in by the root pre-run
var (
	cfg config.Config
	log *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:           "imsd",
	Short:         "Digital student card service: token minting and public card verification",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
		log = logger.New(cfg.LogLevel, cfg.LogFormat)

		if _, err := maxprocs.Set(maxprocs.Logger(log.Debugf)); err != nil {
			log.WithError(err).Warn("set GOMAXPROCS")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, userCmd, eventsCmd)
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		if log != nil {
			log.WithError(err).Error("imsd failed")
		} else {
			logrus.WithError(err).Error("imsd failed")
		}
	}
	return err
}
