package cli

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the ledger HTTP API on PORT until SIGINT or SIGTERM.

The store, lock backend and event sinks are chosen from the environment
(STORE_BACKEND, LOCK_BACKEND, WEBHOOK_URL, AMQP_URL, ...).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := opts.newServerApp(ctx)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, application.Close()) }()

			return application.Serve(ctx)
		},
	}
}
