package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Run a standalone queue worker",
	Long: `Work runs the document processing loop without the HTTP API. Useful for
scaling processing independently of the API when documents are enqueued by
another instance against a shared backend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.close()

		runWorker(ctx, a)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workCmd)
}
