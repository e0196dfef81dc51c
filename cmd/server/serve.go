package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/weekplan/api"
)

var (
	servePort     int
	serveScenario string
	serveNoSched  bool
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API and the background reconciliation scheduler.

On SIGINT/SIGTERM the server stops accepting connections, waits for active
requests (server.shutdown_timeout), stops the scheduler and closes the store.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP server port (overrides server.port)")
	cmd.Flags().StringVar(&serveScenario, "scenario", "", "Load a seed scenario at startup (resets the store)")
	cmd.Flags().BoolVar(&serveNoSched, "no-scheduler", false, "Disable the reconciliation scheduler")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if servePort != 0 {
		a.cfg.Server.Port = servePort
	}

	handler := api.NewHandler(a.store, a.weeks, a.log.With().Str("component", "api").Logger())
	if serveScenario != "" {
		if _, err := handler.ApplyScenario(ctx, serveScenario); err != nil {
			return fmt.Errorf("failed to load scenario: %w", err)
		}
	}

	scheduler := api.NewReconciliationScheduler(a.reconciler, a.store, a.log.With().Str("component", "scheduler").Logger())
	scheduler.CheckInterval = a.cfg.Reconcile.Interval
	scheduler.Enabled = a.cfg.Reconcile.Enabled && !serveNoSched
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      api.NewRouter(handler, a.cfg.Origins()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().
			Int("port", a.cfg.Server.Port).
			Str("driver", a.cfg.Store.Driver).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.log.Info().Msg("server stopped")
	return nil
}
