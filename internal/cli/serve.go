package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rzhai/acmtrack/internal/ai"
	"github.com/rzhai/acmtrack/internal/config"
	"github.com/rzhai/acmtrack/internal/metrics"
	"github.com/rzhai/acmtrack/internal/server"
	"github.com/rzhai/acmtrack/internal/store"
	"github.com/rzhai/acmtrack/internal/task"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the acmtrack HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()

		// A storage dir chosen through the migration API wins over the
		// built-in default, but an explicit env var wins over both.
		if os.Getenv("ACMTRACK_STORAGE_DIR") == "" {
			if sidecar, err := config.LoadSidecar(); err == nil && sidecar.StorageDir != "" {
				cfg.StorageDir = sidecar.StorageDir
			}
		}

		logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		defer func() {
			_ = cleanup()
		}()

		st, err := store.New(cfg.StorageDir, logger)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}

		collector := metrics.NewCollector()
		client := ai.NewClient(logger, collector)
		runner := task.New(st, client, logger, collector, cfg.TaskMaxConcurrency)
		srv := server.New(st, runner, client, collector, logger)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		runner.Start(ctx)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start(cfg.Host, cfg.Port)
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			runner.Stop()
			return err
		case sig := <-quit:
			logger.Info("shutting down", "signal", sig.String())
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", "error", err)
		}

		// Let in-flight generations finish; queued ones run next start.
		runner.Stop()
		logger.Info("server stopped")
		return nil
	},
}
