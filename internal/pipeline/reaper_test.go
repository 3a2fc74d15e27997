package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/ppiankov/truthindex/internal/model"
	"github.com/ppiankov/truthindex/internal/store"
)

func TestReaper_SweepResetsOnlyStalledRuns(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	stalled := model.NewRun("subj-stalled")
	_ = st.CreateRun(ctx, stalled)
	_, _ = st.ClaimRun(ctx, stalled.ID)
	_ = st.Heartbeat(ctx, stalled.ID, time.Now().UTC().Add(-10*time.Minute))

	healthy := model.NewRun("subj-healthy")
	_ = st.CreateRun(ctx, healthy)
	_, _ = st.ClaimRun(ctx, healthy.ID)

	pending := model.NewRun("subj-pending")
	_ = st.CreateRun(ctx, pending)

	finished := model.NewRun("subj-finished")
	_ = st.CreateRun(ctx, finished)
	_, _ = st.ClaimRun(ctx, finished.ID)
	fin, _ := st.GetRun(ctx, finished.ID)
	fin.Status = model.RunDone
	_ = st.UpdateRun(ctx, fin)

	reaper := NewReaper(st, model.ReaperConfig{
		HeartbeatThreshold: 2 * time.Minute,
		SweepInterval:      time.Minute,
	}, nil, nil)

	reset, err := reaper.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if reset != 1 {
		t.Fatalf("expected 1 run reset, got %d", reset)
	}

	got, _ := st.GetRun(ctx, stalled.ID)
	if got.Status != model.RunPending {
		t.Errorf("stalled run should be pending, got %s", got.Status)
	}
	got, _ = st.GetRun(ctx, healthy.ID)
	if got.Status != model.RunRunning {
		t.Errorf("healthy run disturbed: %s", got.Status)
	}
	got, _ = st.GetRun(ctx, pending.ID)
	if got.Status != model.RunPending {
		t.Errorf("pending run disturbed: %s", got.Status)
	}
	got, _ = st.GetRun(ctx, finished.ID)
	if got.Status != model.RunDone {
		t.Errorf("finished run disturbed: %s", got.Status)
	}
}

func TestReaper_ResetRunIsClaimableAgain(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	run := model.NewRun("subj-1")
	_ = st.CreateRun(ctx, run)
	_, _ = st.ClaimRun(ctx, run.ID)
	_ = st.Heartbeat(ctx, run.ID, time.Now().UTC().Add(-time.Hour))

	reaper := NewReaper(st, model.ReaperConfig{HeartbeatThreshold: time.Minute}, nil, nil)
	if _, err := reaper.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	won, err := st.ClaimRun(ctx, run.ID)
	if err != nil || !won {
		t.Errorf("reset run should be claimable: won=%v err=%v", won, err)
	}
}

func TestReaper_DefaultsApplied(t *testing.T) {
	r := NewReaper(store.NewMemoryStore(), model.ReaperConfig{}, nil, nil)
	if r.threshold != 2*time.Minute {
		t.Errorf("expected default threshold 2m, got %v", r.threshold)
	}
	if r.interval != 30*time.Second {
		t.Errorf("expected default interval 30s, got %v", r.interval)
	}
}

func TestReaper_RunStopsOnContextCancel(t *testing.T) {
	reaper := NewReaper(store.NewMemoryStore(), model.ReaperConfig{
		HeartbeatThreshold: time.Minute,
		SweepInterval:      10 * time.Millisecond,
	}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reaper.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop on cancel")
	}
}
