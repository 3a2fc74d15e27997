package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/truthindex/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_StageRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.UpsertStage(ctx, "subj-1", model.StageClaims, doneRecord(60, now)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.UpsertStage(ctx, "subj-1", model.StageSignal, &model.StageRecord{
		Status: model.StageError,
		Error:  "provider down",
	}); err != nil {
		t.Fatalf("upsert error record: %v", err)
	}

	stages, err := s.Get(ctx, "subj-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(stages) != 2 {
		t.Fatalf("expected 2 stage rows, got %d", len(stages))
	}

	claims := stages[model.StageClaims]
	if claims.Status != model.StageDone || claims.TTLDays != 60 {
		t.Errorf("unexpected claims record: %+v", claims)
	}
	if claims.CompletedAt == nil || !claims.Fresh(now) {
		t.Errorf("expected fresh claims record, got %+v", claims)
	}
	if string(claims.Data) != `{"ok": true}` {
		t.Errorf("payload round trip corrupted: %s", claims.Data)
	}

	sig := stages[model.StageSignal]
	if sig.Status != model.StageError || sig.Error != "provider down" {
		t.Errorf("unexpected signal record: %+v", sig)
	}
	if sig.Data != nil {
		t.Errorf("error record should carry no payload, got %s", sig.Data)
	}
}

func TestSQLiteStore_UpsertReplacesRow(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = s.UpsertStage(ctx, "subj-1", model.StageNorm, &model.StageRecord{Status: model.StageRunning})
	_ = s.UpsertStage(ctx, "subj-1", model.StageNorm, doneRecord(45, now))

	stages, _ := s.Get(ctx, "subj-1")
	if len(stages) != 1 {
		t.Fatalf("upsert must not create extra rows, got %d", len(stages))
	}
	if stages[model.StageNorm].Status != model.StageDone {
		t.Errorf("expected done after replace, got %s", stages[model.StageNorm].Status)
	}
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run := model.NewRun("subj-1")
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != model.RunPending || got.SubjectID != "subj-1" {
		t.Errorf("unexpected run: %+v", got)
	}

	if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestSQLiteStore_ClaimRunIsExclusive(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run := model.NewRun("subj-1")
	_ = s.CreateRun(ctx, run)

	won, err := s.ClaimRun(ctx, run.ID)
	if err != nil || !won {
		t.Fatalf("first claim should win: won=%v err=%v", won, err)
	}
	won, err = s.ClaimRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("second claim errored: %v", err)
	}
	if won {
		t.Error("second claim must lose")
	}
}

func TestSQLiteStore_TerminalRunIsWriteOnce(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run := model.NewRun("subj-1")
	_ = s.CreateRun(ctx, run)
	_, _ = s.ClaimRun(ctx, run.ID)

	final, _ := s.GetRun(ctx, run.ID)
	final.Status = model.RunIncomplete
	now := time.Now().UTC()
	final.FinishedAt = &now
	if err := s.UpdateRun(ctx, final); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	again, _ := s.GetRun(ctx, run.ID)
	again.Status = model.RunDone
	if err := s.UpdateRun(ctx, again); !errors.Is(err, ErrRunFinalized) {
		t.Errorf("expected ErrRunFinalized, got %v", err)
	}

	missing := model.NewRun("other")
	if err := s.UpdateRun(ctx, missing); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound for missing run, got %v", err)
	}
}

func TestSQLiteStore_ProgressIsMonotonic(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run := model.NewRun("subj-1")
	_ = s.CreateRun(ctx, run)
	_, _ = s.ClaimRun(ctx, run.ID)

	cur, _ := s.GetRun(ctx, run.ID)
	cur.Progress = 70
	if err := s.UpdateRun(ctx, cur); err != nil {
		t.Fatalf("update: %v", err)
	}

	cur, _ = s.GetRun(ctx, run.ID)
	cur.Progress = 35
	if err := s.UpdateRun(ctx, cur); err != nil {
		t.Fatalf("update with smaller progress: %v", err)
	}

	got, _ := s.GetRun(ctx, run.ID)
	if got.Progress != 70 {
		t.Errorf("progress regressed: %d", got.Progress)
	}
}

func TestSQLiteStore_StaleRunsAndReset(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	stalled := model.NewRun("subj-stalled")
	_ = s.CreateRun(ctx, stalled)
	_, _ = s.ClaimRun(ctx, stalled.ID)
	_ = s.Heartbeat(ctx, stalled.ID, time.Now().UTC().Add(-10*time.Minute))

	healthy := model.NewRun("subj-healthy")
	_ = s.CreateRun(ctx, healthy)
	_, _ = s.ClaimRun(ctx, healthy.ID)

	stale, err := s.StaleRuns(ctx, time.Now().UTC().Add(-2*time.Minute))
	if err != nil {
		t.Fatalf("stale runs: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != stalled.ID {
		t.Fatalf("expected only the stalled run, got %d", len(stale))
	}

	if err := s.ResetRun(ctx, stalled.ID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	got, _ := s.GetRun(ctx, stalled.ID)
	if got.Status != model.RunPending {
		t.Errorf("expected pending after reset, got %s", got.Status)
	}

	// The reset run is claimable again
	won, err := s.ClaimRun(ctx, stalled.ID)
	if err != nil || !won {
		t.Errorf("reset run should be claimable: won=%v err=%v", won, err)
	}
}

func TestStoreFactory(t *testing.T) {
	mem, err := New(model.StoreConfig{Backend: "memory"})
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	if _, ok := mem.(*MemoryStore); !ok {
		t.Errorf("expected MemoryStore, got %T", mem)
	}

	sq, err := New(model.StoreConfig{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "f.db")})
	if err != nil {
		t.Fatalf("sqlite backend: %v", err)
	}
	defer sq.Close()
	if _, ok := sq.(*SQLiteStore); !ok {
		t.Errorf("expected SQLiteStore, got %T", sq)
	}

	if _, err := New(model.StoreConfig{Backend: "redis"}); err == nil {
		t.Error("expected unknown backend to error")
	}
}
