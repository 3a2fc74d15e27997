package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/truthindex/internal/metrics"
	"github.com/ppiankov/truthindex/internal/model"
	"github.com/ppiankov/truthindex/internal/store"
)

// Reaper resets stalled runs. A run is stalled when it is still Running
// but its heartbeat is older than the threshold: the worker died, hung,
// or was killed between steps. Resetting to pending makes the run
// claimable again; the atomic claim keeps a slow-but-alive worker from
// being doubled up on.
type Reaper struct {
	store     store.RecordStore
	threshold time.Duration
	interval  time.Duration
	log       *zap.Logger
	metrics   *metrics.Recorder
	now       func() time.Time
}

// NewReaper wires a reaper from configuration.
func NewReaper(st store.RecordStore, cfg model.ReaperConfig, log *zap.Logger, rec *metrics.Recorder) *Reaper {
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = metrics.Nop()
	}
	threshold := cfg.HeartbeatThreshold
	if threshold <= 0 {
		threshold = 2 * time.Minute
	}
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reaper{
		store:     st,
		threshold: threshold,
		interval:  interval,
		log:       log,
		metrics:   rec,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps on the configured interval until the context is done.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.log.Error("reaper sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep resets every stalled run once and returns how many it reset.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.threshold)
	stale, err := r.store.StaleRuns(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	reset := 0
	for _, run := range stale {
		if err := r.store.ResetRun(ctx, run.ID); err != nil {
			r.log.Warn("reset stalled run",
				zap.String("run", run.ID), zap.Error(err))
			continue
		}
		reset++
		r.metrics.RunReaped()
		r.log.Info("stalled run reset to pending",
			zap.String("run", run.ID),
			zap.String("subject", run.SubjectID),
			zap.Time("last_heartbeat", run.LastHeartbeat))
	}
	return reset, nil
}
