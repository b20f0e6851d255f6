package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/SundayYogurt/ims_service/infra/queue"
	"github.com/SundayYogurt/ims_service/internal/api/rest/handlers"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the card event stream",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log every card event from the configured broker until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		listener, err := queue.NewListener(cfg, handlers.NewCardEventHandler(log))
		if err != nil {
			return err
		}
		defer func() { _ = listener.Close() }()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log.WithField("broker", cfg.EventBroker).Info("tailing card events")
		return listener.Listen(ctx)
	},
}

func init() {
	eventsCmd.AddCommand(eventsTailCmd)
}
