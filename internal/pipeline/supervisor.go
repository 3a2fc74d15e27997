// Package pipeline drives the four audit stages in order, persisting a
// stage record after each so earlier results survive later failures.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/truthindex/internal/extract"
	"github.com/ppiankov/truthindex/internal/jsonrepair"
	"github.com/ppiankov/truthindex/internal/llm"
	"github.com/ppiankov/truthindex/internal/metrics"
	"github.com/ppiankov/truthindex/internal/model"
	"github.com/ppiankov/truthindex/internal/normalize"
	"github.com/ppiankov/truthindex/internal/score"
	"github.com/ppiankov/truthindex/internal/signal"
	"github.com/ppiankov/truthindex/internal/store"
)

// ErrStageBlocked is returned when the blocking rule stops stage 4.
var ErrStageBlocked = errors.New("stage blocked by empty normalization result")

// Progress milestones, one per supervisor step.
const (
	progressClaimed    = 10
	progressClaimsDone = 25
	progressSignalDone = 35
	progressCandidates = 55
	progressNormDone   = 70
	progressAdjustment = 85
	progressIndexDone  = 92
	progressFinished   = 100
)

// Supervisor owns one subject audit at a time. All collaborators are
// injected; it holds no global state.
type Supervisor struct {
	store      store.RecordStore
	gen        llm.Generator
	extractor  *extract.ClaimExtractor
	aggregator *signal.Aggregator
	normalizer *normalize.Normalizer
	cfg        *model.Config
	log        *zap.Logger
	metrics    *metrics.Recorder
	now        func() time.Time
}

// NewSupervisor wires a supervisor. gen may be nil (offline mode: stage
// 2 degrades to empty and stage 3 sees no candidates). policy may be nil
// for the default tables.
func NewSupervisor(st store.RecordStore, gen llm.Generator, policy *normalize.Policy, cfg *model.Config, log *zap.Logger, rec *metrics.Recorder) *Supervisor {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = metrics.Nop()
	}
	return &Supervisor{
		store:      st,
		gen:        gen,
		extractor:  extract.NewClaimExtractor(),
		aggregator: signal.NewAggregator(gen, cfg.Generator.SignalTimeout),
		normalizer: normalize.NewNormalizer(policy),
		cfg:        cfg,
		log:        log,
		metrics:    rec,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RunResult is the assembled output of one audit run.
type RunResult struct {
	Run    *model.AuditRun
	Claims model.ClaimsPayload
	Signal model.SignalPayload
	Norm   model.NormPayload
	Index  *model.IndexPayload // nil when stage 4 was blocked
}

// Audit creates, claims, and executes a run for the subject. The
// returned run always carries a terminal status; the error mirrors
// Error/Timeout terminals for callers that branch on it.
func (s *Supervisor) Audit(ctx context.Context, subject *model.Subject) (*RunResult, error) {
	run := model.NewRun(subject.ID)
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return s.Execute(ctx, run, subject)
}

// Execute picks up an existing run. The atomic claim guards against two
// workers grabbing the same run: the loser returns without touching it.
func (s *Supervisor) Execute(ctx context.Context, run *model.AuditRun, subject *model.Subject) (*RunResult, error) {
	claimed, err := s.store.ClaimRun(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("claim run: %w", err)
	}
	if !claimed {
		s.log.Info("run already claimed elsewhere", zap.String("run", run.ID))
		cur, err := s.store.GetRun(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		return &RunResult{Run: cur}, nil
	}

	run.Status = model.RunRunning
	s.metrics.RunStarted()
	s.step(ctx, run, progressClaimed)

	result, err := s.execute(ctx, run, subject)
	if err != nil {
		s.fail(ctx, run, err)
		result = &RunResult{Run: run}
		return result, err
	}
	result.Run = run
	return result, nil
}

func (s *Supervisor) execute(ctx context.Context, run *model.AuditRun, subject *model.Subject) (*RunResult, error) {
	result := &RunResult{}
	stages, err := s.store.Get(ctx, subject.ID)
	if err != nil {
		return nil, fmt.Errorf("read stage records: %w", err)
	}

	// Stage 1: claim extraction. No failure path by design.
	if !s.reuse(stages[model.StageClaims], model.StageClaims, &result.Claims) {
		start := s.now()
		result.Claims = model.ClaimsPayload{ClaimProfile: s.extractor.Extract(subject)}
		if err := s.persist(ctx, subject.ID, model.StageClaims, result.Claims); err != nil {
			return nil, err
		}
		s.metrics.StageExecuted(model.StageClaims.String(), "done", s.now().Sub(start))
		s.log.Info("claims extracted",
			zap.String("subject", subject.ID),
			zap.Int("claims", len(result.Claims.ClaimProfile)))
	}
	s.step(ctx, run, progressClaimsDone)

	// Stage 2: community signal. Degrades to empty, never fatal.
	if !s.reuse(stages[model.StageSignal], model.StageSignal, &result.Signal) {
		start := s.now()
		sig, sigErr := s.aggregator.Collect(ctx, subject, result.Claims.ClaimProfile)
		if sigErr != nil {
			s.metrics.GenerationFailure()
			s.log.Warn("signal degraded to empty",
				zap.String("subject", subject.ID), zap.Error(sigErr))
		}
		result.Signal = sig
		if err := s.persist(ctx, subject.ID, model.StageSignal, result.Signal); err != nil {
			return nil, err
		}
		s.metrics.StageExecuted(model.StageSignal.String(), "done", s.now().Sub(start))
	}
	s.step(ctx, run, progressSignalDone)

	// Stage 3: discrepancy normalization + base scores. Fatal on failure.
	if !s.reuse(stages[model.StageNorm], model.StageNorm, &result.Norm) {
		start := s.now()
		norm, err := s.normalizeStage(ctx, run, subject, result.Claims.ClaimProfile, result.Signal)
		if err != nil {
			s.metrics.StageExecuted(model.StageNorm.String(), "error", s.now().Sub(start))
			s.recordStageError(ctx, subject.ID, model.StageNorm, err)
			return nil, err
		}
		result.Norm = *norm
		if err := s.persist(ctx, subject.ID, model.StageNorm, result.Norm); err != nil {
			return nil, err
		}
		s.metrics.StageExecuted(model.StageNorm.String(), "done", s.now().Sub(start))
		s.log.Info("discrepancies normalized",
			zap.String("subject", subject.ID),
			zap.Int("total", result.Norm.TotalCount),
			zap.Int("unique", result.Norm.UniqueCount))
	}
	s.step(ctx, run, progressNormDone)

	// Blocking rule: stage 4 never runs on an empty normalization
	// result. Stages 1-3 stay persisted; the run ends Incomplete.
	if result.Norm.UniqueCount == 0 {
		s.block(ctx, run, subject.ID)
		return result, nil
	}

	// Stage 4: truth index.
	if !s.reuseIndex(stages[model.StageIndex], result) {
		start := s.now()
		proposed := s.proposeAdjustment(ctx, subject, result.Norm)
		s.step(ctx, run, progressAdjustment)

		breakdown := score.ComputeTruthIndex(result.Norm.Entries, result.Norm.BaseScores, proposed)
		payload := score.BuildIndexPayload(result.Norm.Entries, result.Signal, breakdown)
		result.Index = &payload
		if err := s.persist(ctx, subject.ID, model.StageIndex, payload); err != nil {
			return nil, err
		}
		s.metrics.StageExecuted(model.StageIndex.String(), "done", s.now().Sub(start))
		s.log.Info("truth index computed",
			zap.String("subject", subject.ID),
			zap.Int("base", breakdown.Base),
			zap.Int("final", breakdown.Final))
	}
	s.step(ctx, run, progressIndexDone)

	s.finish(ctx, run, model.RunDone, "")
	return result, nil
}

// RetryStage invalidates one stage's cached record and runs a fresh
// audit. Upstream stages still inside their TTLs are reused, so
// retrying a blocked stage 4 re-executes only stage 4 (or stage 3, when
// the caller wants new candidates).
func (s *Supervisor) RetryStage(ctx context.Context, subject *model.Subject, stage model.Stage) (*RunResult, error) {
	rec := &model.StageRecord{
		Status:  model.StagePending,
		TTLDays: s.cfg.TTL.Days(stage),
	}
	if err := s.store.UpsertStage(ctx, subject.ID, stage, rec); err != nil {
		return nil, fmt.Errorf("invalidate stage %s: %w", stage, err)
	}
	return s.Audit(ctx, subject)
}

// normalizeStage calls the generator for raw candidates and runs the
// normalizer over whatever comes back.
func (s *Supervisor) normalizeStage(ctx context.Context, run *model.AuditRun, subject *model.Subject, claims []model.ClaimItem, sig model.SignalPayload) (*model.NormPayload, error) {
	raw := []byte("[]")
	if s.gen != nil {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Generator.NormalizeTimeout)
		text, err := s.gen.Generate(callCtx, llm.Request{
			Prompt: normalize.BuildPrompt(subject, claims, sig),
			System: "You audit product claims against independent evidence. Respond with JSON only.",
			Schema: normalize.Schema,
		})
		cancel()
		if err != nil {
			s.metrics.GenerationFailure()
			return nil, fmt.Errorf("candidate generation: %w", err)
		}
		raw = []byte(text)
	}
	s.step(ctx, run, progressCandidates)

	res, err := s.normalizer.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize candidates: %w", err)
	}

	payload := model.NormPayload{
		Entries:       res.Entries,
		TotalCount:    res.TotalCount,
		UniqueCount:   res.UniqueCount,
		RedFlags:      discrepancies(res.Entries, true),
		Discrepancies: discrepancies(res.Entries, false),
		BaseScores:    score.ComputeBaseScores(res.Entries),
	}
	if res.Outcome != jsonrepair.OutcomeDirect {
		payload.ParseError = string(res.Outcome)
	}
	return &payload, nil
}

// proposeAdjustment asks the generator for an optional index correction.
// The adjustment is optional by design, so every failure here degrades
// to "no proposal" instead of failing the stage.
func (s *Supervisor) proposeAdjustment(ctx context.Context, subject *model.Subject, norm model.NormPayload) *score.ProposedAdjustment {
	if s.gen == nil {
		return nil
	}

	base := score.BlendBase(norm.BaseScores)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Generator.IndexTimeout)
	defer cancel()

	text, err := s.gen.Generate(callCtx, llm.Request{
		Prompt: score.BuildAdjustmentPrompt(subject, norm.Entries, base),
		System: "You audit product claims against independent evidence. Respond with JSON only.",
		Schema: score.AdjustmentSchema,
	})
	if err != nil {
		s.metrics.GenerationFailure()
		s.log.Warn("adjustment call failed, proceeding without",
			zap.String("subject", subject.ID), zap.Error(err))
		return nil
	}

	raw, _, ok := jsonrepair.Parse([]byte(text))
	if !ok {
		s.log.Warn("adjustment response unparseable, proceeding without",
			zap.String("subject", subject.ID))
		return nil
	}
	var proposed score.ProposedAdjustment
	if err := json.Unmarshal(raw, &proposed); err != nil {
		return nil
	}
	return &proposed
}

// reuse loads a fresh cached record into out and reports success. A
// stale, failed, or structurally invalid record forces re-execution.
func (s *Supervisor) reuse(rec *model.StageRecord, stage model.Stage, out interface{}) bool {
	if !rec.Fresh(s.now()) {
		return false
	}
	if err := json.Unmarshal(rec.Data, out); err != nil {
		s.log.Warn("cached stage record invalid, re-executing",
			zap.String("stage", stage.String()), zap.Error(err))
		return false
	}
	s.metrics.StageExecuted(stage.String(), "cached", 0)
	return true
}

func (s *Supervisor) reuseIndex(rec *model.StageRecord, result *RunResult) bool {
	var payload model.IndexPayload
	if !s.reuse(rec, model.StageIndex, &payload) {
		return false
	}
	result.Index = &payload
	return true
}

// persist writes a Done record for one stage via single-row upsert, so
// other stages' cached results are never disturbed.
func (s *Supervisor) persist(ctx context.Context, subjectID string, stage model.Stage, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal stage %s payload: %w", stage, err)
	}
	now := s.now()
	rec := &model.StageRecord{
		Status:      model.StageDone,
		CompletedAt: &now,
		TTLDays:     s.cfg.TTL.Days(stage),
		Data:        data,
	}
	if err := s.store.UpsertStage(ctx, subjectID, stage, rec); err != nil {
		return fmt.Errorf("persist stage %s: %w", stage, err)
	}
	return nil
}

func (s *Supervisor) recordStageError(ctx context.Context, subjectID string, stage model.Stage, cause error) {
	rec := &model.StageRecord{
		Status:  model.StageError,
		TTLDays: s.cfg.TTL.Days(stage),
		Error:   cause.Error(),
	}
	if err := s.store.UpsertStage(ctx, subjectID, stage, rec); err != nil {
		s.log.Error("record stage error", zap.String("stage", stage.String()), zap.Error(err))
	}
}

// block marks stage 4 blocked and the run Incomplete, preserving the
// stage 1-3 records. A blocked stage is retryable, not a dead end.
func (s *Supervisor) block(ctx context.Context, run *model.AuditRun, subjectID string) {
	rec := &model.StageRecord{
		Status:  model.StageBlocked,
		TTLDays: s.cfg.TTL.Days(model.StageIndex),
		Error:   ErrStageBlocked.Error(),
	}
	if err := s.store.UpsertStage(ctx, subjectID, model.StageIndex, rec); err != nil {
		s.log.Error("mark stage blocked", zap.Error(err))
	}
	s.metrics.StageExecuted(model.StageIndex.String(), "blocked", 0)
	s.log.Warn("stage 4 blocked, run incomplete", zap.String("subject", subjectID))
	s.finish(ctx, run, model.RunIncomplete, ErrStageBlocked.Error())
}

// step advances progress (monotonic) and refreshes the heartbeat.
func (s *Supervisor) step(ctx context.Context, run *model.AuditRun, progress int) {
	if progress > run.Progress {
		run.Progress = progress
	}
	run.LastHeartbeat = s.now()
	if err := s.store.UpdateRun(ctx, run); err != nil && !errors.Is(err, store.ErrRunFinalized) {
		s.log.Warn("update run", zap.String("run", run.ID), zap.Error(err))
	}
}

// finish writes the terminal status exactly once.
func (s *Supervisor) finish(ctx context.Context, run *model.AuditRun, status model.RunStatus, msg string) {
	now := s.now()
	run.Status = status
	run.Error = msg
	run.FinishedAt = &now
	run.LastHeartbeat = now
	if status == model.RunDone {
		run.Progress = progressFinished
	}
	if err := s.store.UpdateRun(ctx, run); err != nil && !errors.Is(err, store.ErrRunFinalized) {
		s.log.Error("finalize run", zap.String("run", run.ID), zap.Error(err))
	}
	s.metrics.RunFinished(string(status))
}

// fail maps an execution error to the right terminal status. A stage
// must never be left silently running after cancellation.
func (s *Supervisor) fail(ctx context.Context, run *model.AuditRun, cause error) {
	status := model.RunError
	if errors.Is(cause, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		status = model.RunTimeout
	}
	// Terminal write happens even when ctx is cancelled
	writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.finish(writeCtx, run, status, cause.Error())
}

func discrepancies(entries []model.NormalizedEntry, severeOnly bool) []model.Discrepancy {
	out := []model.Discrepancy{}
	for _, e := range entries {
		if severeOnly && e.Severity != model.SeveritySevere {
			continue
		}
		out = append(out, model.Discrepancy{
			Claim:    e.Claim,
			Reality:  e.Reality,
			Impact:   e.Impact,
			Severity: e.Severity,
		})
	}
	return out
}
