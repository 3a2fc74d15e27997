package model

import (
	"encoding/json"
	"time"
)

// Stage identifies one of the four ordered audit stages.
type Stage int

const (
	StageClaims Stage = 1 // claim extraction from the attribute bag
	StageSignal Stage = 2 // community signal aggregation
	StageNorm   Stage = 3 // discrepancy normalization + base scoring
	StageIndex  Stage = 4 // truth index calculation
)

// AllStages lists the stages in execution order.
var AllStages = []Stage{StageClaims, StageSignal, StageNorm, StageIndex}

func (s Stage) String() string {
	switch s {
	case StageClaims:
		return "claims"
	case StageSignal:
		return "signal"
	case StageNorm:
		return "normalize"
	case StageIndex:
		return "index"
	default:
		return "unknown"
	}
}

// StageStatus is the lifecycle state of a single stage record.
type StageStatus string

const (
	StagePending StageStatus = "pending"
	StageRunning StageStatus = "running"
	StageDone    StageStatus = "done"
	StageError   StageStatus = "error"
	// StageBlocked marks a stage that was never executed because an
	// upstream validation gate failed (e.g. stage 4 after an empty
	// normalization result).
	StageBlocked StageStatus = "blocked"
)

// StageRecord is the persisted result of one stage for one subject.
// Data is present iff Status == StageDone.
type StageRecord struct {
	Status      StageStatus     `json:"status"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	TTLDays     int             `json:"ttl_days"`
	Data        json.RawMessage `json:"data,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Fresh reports whether the record can be reused instead of re-running
// the stage: it must be Done and younger than its TTL.
func (r *StageRecord) Fresh(now time.Time) bool {
	if r == nil || r.Status != StageDone || r.CompletedAt == nil {
		return false
	}
	if len(r.Data) == 0 {
		return false
	}
	ttl := time.Duration(r.TTLDays) * 24 * time.Hour
	return now.Sub(*r.CompletedAt) < ttl
}

// StageMap is the per-subject view of all stage records.
type StageMap map[Stage]*StageRecord
