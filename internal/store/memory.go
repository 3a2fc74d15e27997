package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ppiankov/truthindex/internal/model"
)

// MemoryStore is an in-memory RecordStore for development and tests.
// Stage records ride on go-cache so per-stage TTLs expire naturally;
// runs live in a mutex-guarded map because they must never expire.
type MemoryStore struct {
	stages *gocache.Cache
	mu     sync.Mutex
	runs   map[string]*model.AuditRun
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stages: gocache.New(gocache.NoExpiration, 10*time.Minute),
		runs:   make(map[string]*model.AuditRun),
	}
}

func stageKey(subjectID string, stage model.Stage) string {
	return fmt.Sprintf("%s|%d", subjectID, int(stage))
}

// Get returns all stage records for a subject.
func (m *MemoryStore) Get(ctx context.Context, subjectID string) (model.StageMap, error) {
	stages := make(model.StageMap)
	for _, stage := range model.AllStages {
		if val, found := m.stages.Get(stageKey(subjectID, stage)); found {
			rec := val.(model.StageRecord)
			cp := rec
			stages[stage] = &cp
		}
	}
	return stages, nil
}

// UpsertStage writes one stage record. Done records expire after their
// TTL; non-done records never expire on their own.
func (m *MemoryStore) UpsertStage(ctx context.Context, subjectID string, stage model.Stage, rec *model.StageRecord) error {
	ttl := gocache.NoExpiration
	if rec.Status == model.StageDone && rec.TTLDays > 0 {
		ttl = time.Duration(rec.TTLDays) * 24 * time.Hour
	}
	m.stages.Set(stageKey(subjectID, stage), *rec, ttl)
	return nil
}

// CreateRun inserts a new run.
func (m *MemoryStore) CreateRun(ctx context.Context, run *model.AuditRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[run.ID]; exists {
		return ErrRunExists
	}
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

// GetRun fetches a run by ID.
func (m *MemoryStore) GetRun(ctx context.Context, id string) (*model.AuditRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	cp := *run
	return &cp, nil
}

// UpdateRun persists run fields with write-once terminal statuses and
// monotonic progress.
func (m *MemoryStore) UpdateRun(ctx context.Context, run *model.AuditRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.runs[run.ID]
	if !ok {
		return ErrRunNotFound
	}
	if cur.Status.Terminal() {
		return ErrRunFinalized
	}
	cp := *run
	if cp.Progress < cur.Progress {
		cp.Progress = cur.Progress
	}
	if cp.FinishedAt == nil {
		cp.FinishedAt = cur.FinishedAt
	}
	m.runs[run.ID] = &cp
	return nil
}

// ClaimRun atomically transitions pending -> running.
func (m *MemoryStore) ClaimRun(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return false, ErrRunNotFound
	}
	if run.Status != model.RunPending {
		return false, nil
	}
	run.Status = model.RunRunning
	run.LastHeartbeat = time.Now().UTC()
	return true, nil
}

// Heartbeat refreshes last_heartbeat on a running run.
func (m *MemoryStore) Heartbeat(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return ErrRunNotFound
	}
	if run.Status == model.RunRunning {
		run.LastHeartbeat = at.UTC()
	}
	return nil
}

// StaleRuns returns running runs whose heartbeat is older than cutoff.
func (m *MemoryStore) StaleRuns(ctx context.Context, cutoff time.Time) ([]*model.AuditRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stale []*model.AuditRun
	for _, run := range m.runs {
		if run.Status == model.RunRunning && run.LastHeartbeat.Before(cutoff) {
			cp := *run
			stale = append(stale, &cp)
		}
	}
	return stale, nil
}

// ResetRun returns a stalled running run to pending.
func (m *MemoryStore) ResetRun(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return ErrRunNotFound
	}
	if run.Status == model.RunRunning {
		run.Status = model.RunPending
		run.LastHeartbeat = time.Now().UTC()
	}
	return nil
}

// Close is a no-op for the memory backend.
func (m *MemoryStore) Close() error {
	return nil
}
