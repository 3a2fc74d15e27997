package store

import (
	"context"
	"errors"
	"time"

	"github.com/ppiankov/truthindex/internal/model"
)

// Sentinel errors shared by all backends.
var (
	ErrRunNotFound  = errors.New("run not found")
	ErrRunExists    = errors.New("run already exists")
	ErrRunFinalized = errors.New("run already in a terminal state")
)

// RecordStore is the persistence boundary for stage records and runs.
//
// Stage records are keyed (subjectID, stage) and upserted one row at a
// time, so writing one stage never disturbs another stage's cached
// result. ClaimRun is the atomic lease: it transitions pending -> running
// conditionally and reports whether this caller won.
type RecordStore interface {
	// Get returns all stage records for a subject, assembled into a map.
	// A subject with no records yields an empty map, not an error.
	Get(ctx context.Context, subjectID string) (model.StageMap, error)

	// UpsertStage writes a single stage record for a subject.
	UpsertStage(ctx context.Context, subjectID string, stage model.Stage, rec *model.StageRecord) error

	CreateRun(ctx context.Context, run *model.AuditRun) error
	GetRun(ctx context.Context, id string) (*model.AuditRun, error)

	// UpdateRun persists run fields. Terminal statuses are write-once:
	// updating an already-finalized run returns ErrRunFinalized.
	// Progress never decreases; a smaller value is ignored.
	UpdateRun(ctx context.Context, run *model.AuditRun) error

	// ClaimRun atomically transitions a pending run to running and
	// returns true iff this caller performed the transition.
	ClaimRun(ctx context.Context, id string) (bool, error)

	// Heartbeat refreshes last_heartbeat on a running run.
	Heartbeat(ctx context.Context, id string, at time.Time) error

	// StaleRuns returns running runs whose heartbeat is older than cutoff.
	StaleRuns(ctx context.Context, cutoff time.Time) ([]*model.AuditRun, error)

	// ResetRun returns a stalled running run to pending so it can be
	// picked up again. No-op if the run is not running.
	ResetRun(ctx context.Context, id string) error

	Close() error
}
