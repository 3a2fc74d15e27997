package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/truthindex/internal/metrics"
	"github.com/ppiankov/truthindex/internal/model"
	"github.com/ppiankov/truthindex/internal/pipeline"
	"github.com/ppiankov/truthindex/internal/store"
)

var (
	reaperThreshold time.Duration
	reaperInterval  time.Duration
	metricsListen   string
)

// reaperCmd represents the reaper command
var reaperCmd = &cobra.Command{
	Use:   "reaper",
	Short: "Run the stalled-run reaper",
	Long: `Reaper watches for runs stuck in the running state whose heartbeat
has gone quiet (worker died or was killed between steps) and resets them
to pending so they can be picked up again.

Also serves pipeline metrics on /metrics.

Example:
  truthindex reaper
  truthindex reaper --threshold 5m --interval 1m --listen :9215`,
	RunE: runReaper,
}

func init() {
	rootCmd.AddCommand(reaperCmd)

	reaperCmd.Flags().DurationVar(&reaperThreshold, "threshold", 2*time.Minute, "heartbeat age after which a running run counts as stalled")
	reaperCmd.Flags().DurationVar(&reaperInterval, "interval", 30*time.Second, "sweep interval")
	reaperCmd.Flags().StringVar(&metricsListen, "listen", ":9215", "metrics listen address")
	reaperCmd.Flags().StringVar(&storeBackend, "store", "sqlite", "record store backend (sqlite, memory)")
	reaperCmd.Flags().StringVar(&storePath, "store-path", "truthindex.db", "sqlite database path")
}

func runReaper(cmd *cobra.Command, args []string) error {
	st, err := store.New(model.StoreConfig{Backend: storeBackend, Path: storePath})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	logger, err := buildLogger()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(registry)

	reaper := pipeline.NewReaper(st, model.ReaperConfig{
		HeartbeatThreshold: reaperThreshold,
		SweepInterval:      reaperInterval,
	}, logger, recorder)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: metricsListen, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(os.Stderr, "Reaper running (threshold %v, interval %v, metrics %s)\n",
		reaperThreshold, reaperInterval, metricsListen)

	if err := reaper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
