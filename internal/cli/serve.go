package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/magneticstudio/catalogd/internal/api"
	"github.com/magneticstudio/catalogd/internal/app/reconciler"
	"github.com/magneticstudio/catalogd/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "Override the listen address from config")
	serveCmd.Flags().Duration("interval", 0, "Run reconciliation on a schedule (0 disables)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP orchestration server",
	Long: `Start the catalogd server. Reconciliation is triggered over HTTP
(POST /api/run) or on a fixed interval; run history is persisted to the
local operational store and Prometheus metrics are served on /metrics.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}

	store, err := sqlite.Open(eng.cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open operational store: %w", err)
	}
	defer store.Close()

	// Rebuild the reconciler with persistence: the serve process owns the
	// run lock and the run history.
	rec := reconciler.New(eng.source, eng.catalog, eng.images, store)

	srv := api.NewServer(rec, eng.auditor)
	srv.SetRunLog(store)
	if eng.cfg.API.Metrics {
		srv.EnableMetrics()
	}

	addr := eng.cfg.API.Addr()
	if override, _ := cmd.Flags().GetString("listen"); override != "" {
		addr = override
	}

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Handler(),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if interval, _ := cmd.Flags().GetDuration("interval"); interval > 0 {
		go scheduleRuns(ctx, rec, interval)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[serve] catalogd listening on %s", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("[serve] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// scheduleRuns triggers a full reconciliation on a fixed interval.
// An in-flight run makes the tick a no-op rather than queueing.
func scheduleRuns(ctx context.Context, rec *reconciler.Reconciler, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := rec.Run(ctx, reconciler.Options{}); err != nil {
				log.Printf("[serve] scheduled run: %v", err)
			}
		}
	}
}
