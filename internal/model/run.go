package model

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of an audit run.
type RunStatus string

const (
	RunPending    RunStatus = "pending"
	RunRunning    RunStatus = "running"
	RunDone       RunStatus = "done"
	RunError      RunStatus = "error"
	RunIncomplete RunStatus = "incomplete"
	RunTimeout    RunStatus = "timeout"
)

// Terminal reports whether the status is one of the write-once end states.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunDone, RunError, RunIncomplete, RunTimeout:
		return true
	}
	return false
}

// AuditRun is one execution attempt of the full pipeline for a subject.
// StageRecords outlive the run; the run only tracks overall lifecycle.
type AuditRun struct {
	ID            string     `json:"id"`
	SubjectID     string     `json:"subject_id"`
	Status        RunStatus  `json:"status"`
	Progress      int        `json:"progress"` // 0-100, monotonically non-decreasing
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	LastHeartbeat time.Time  `json:"last_heartbeat"`
	Error         string     `json:"error,omitempty"`
}

// NewRun creates a pending run for the given subject.
func NewRun(subjectID string) *AuditRun {
	now := time.Now().UTC()
	return &AuditRun{
		ID:            uuid.NewString(),
		SubjectID:     subjectID,
		Status:        RunPending,
		Progress:      0,
		StartedAt:     now,
		LastHeartbeat: now,
	}
}
