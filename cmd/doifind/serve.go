package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"doifind/internal/job"
	"doifind/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the DOI resolution HTTP service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, resolver, err := loadStack()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	orch := job.NewOrchestrator(store, resolver, logger,
		job.WithWorkers(cfg.Pipeline.Workers),
		job.WithBudget(cfg.Pipeline.Budget))
	srv := server.New(cfg, logger, store, orch)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen() }()
	logger.Info("server listening", "addr", cfg.Server.Addr, "store", cfg.Store.Backend)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		return srv.Shutdown()
	}
}
