package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jumuia/creditlens/internal/api"
	"github.com/jumuia/creditlens/internal/api/handlers"
	"github.com/jumuia/creditlens/internal/repository"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with an embedded queue worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.close()

		h := api.Handlers{
			Documents: handlers.NewDocumentsHandler(a.store, a.queue, a.blobs, a.validator,
				a.cfg.Server.UploadDir, a.cfg.Storage.GCSBucket, a.cfg.Server.MaxUploadSize, a.log),
			Customers: handlers.NewCustomersHandler(a.store, a.engine, a.rules, a.log),
			Rules:     handlers.NewRulesHandler(a.rules, a.log),
			Ops:       handlers.NewOpsHandler(a.store, a.queue, a.errorLog, a.log),
		}
		server := api.New(a.cfg.Server.Addr, h, a.log)

		// Embedded worker: drain the queue until shutdown.
		go runWorker(ctx, a)

		serveErr := make(chan error, 1)
		go func() { serveErr <- server.Start() }()

		select {
		case err := <-serveErr:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

// runWorker drains the queue in batches, sleeping briefly when it is empty.
func runWorker(ctx context.Context, a *app) {
	a.log.Info().Msg("queue worker started")
	idle := time.NewTicker(2 * time.Second)
	defer idle.Stop()

	for {
		succeeded, failed, err := a.orch.DrainQueue(ctx)
		if err != nil && !errors.Is(err, repository.ErrQueueEmpty) && ctx.Err() == nil {
			a.log.Error().Err(err).Msg("queue drain failed")
		}
		if succeeded+failed > 0 {
			a.log.Info().Int("succeeded", succeeded).Int("failed", failed).Msg("queue drained")
			continue
		}

		select {
		case <-ctx.Done():
			a.log.Info().Msg("queue worker stopped")
			return
		case <-idle.C:
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
