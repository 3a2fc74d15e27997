package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ppiankov/truthindex/internal/model"
)

// SQLiteStore is the durable RecordStore backend. Stage records live in
// per-stage rows keyed (subject_id, stage) rather than a monolithic
// per-subject blob, so concurrent writers to different stages cannot
// lose each other's updates.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates or opens the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS stage_records (
		subject_id   TEXT NOT NULL,
		stage        INTEGER NOT NULL,
		status       TEXT NOT NULL,
		completed_at DATETIME,
		ttl_days     INTEGER NOT NULL DEFAULT 0,
		payload      TEXT,
		error        TEXT,
		updated_at   DATETIME NOT NULL,
		PRIMARY KEY (subject_id, stage)
	);

	CREATE TABLE IF NOT EXISTS runs (
		id             TEXT PRIMARY KEY,
		subject_id     TEXT NOT NULL,
		status         TEXT NOT NULL,
		progress       INTEGER NOT NULL DEFAULT 0,
		started_at     DATETIME NOT NULL,
		finished_at    DATETIME,
		last_heartbeat DATETIME NOT NULL,
		error          TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_subject ON runs(subject_id);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Get returns all stage records for a subject.
func (s *SQLiteStore) Get(ctx context.Context, subjectID string) (model.StageMap, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, status, completed_at, ttl_days, payload, error
		 FROM stage_records WHERE subject_id = ?`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("query stage records: %w", err)
	}
	defer rows.Close()

	stages := make(model.StageMap)
	for rows.Next() {
		var (
			stage       int
			rec         model.StageRecord
			completedAt sql.NullTime
			payload     sql.NullString
			errText     sql.NullString
		)
		if err := rows.Scan(&stage, &rec.Status, &completedAt, &rec.TTLDays, &payload, &errText); err != nil {
			return nil, fmt.Errorf("scan stage record: %w", err)
		}
		if completedAt.Valid {
			t := completedAt.Time.UTC()
			rec.CompletedAt = &t
		}
		if payload.Valid && payload.String != "" {
			rec.Data = []byte(payload.String)
		}
		rec.Error = errText.String
		stages[model.Stage(stage)] = &rec
	}
	return stages, rows.Err()
}

// UpsertStage writes one stage record, leaving all other stages alone.
func (s *SQLiteStore) UpsertStage(ctx context.Context, subjectID string, stage model.Stage, rec *model.StageRecord) error {
	var completedAt interface{}
	if rec.CompletedAt != nil {
		completedAt = rec.CompletedAt.UTC()
	}
	var payload interface{}
	if len(rec.Data) > 0 {
		payload = string(rec.Data)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_records (subject_id, stage, status, completed_at, ttl_days, payload, error, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(subject_id, stage) DO UPDATE SET
			status = excluded.status,
			completed_at = excluded.completed_at,
			ttl_days = excluded.ttl_days,
			payload = excluded.payload,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		subjectID, int(stage), string(rec.Status), completedAt, rec.TTLDays, payload, rec.Error, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert stage record: %w", err)
	}
	return nil
}

// CreateRun inserts a new run row.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.AuditRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, subject_id, status, progress, started_at, finished_at, last_heartbeat, error)
		 VALUES (?, ?, ?, ?, ?, NULL, ?, ?)`,
		run.ID, run.SubjectID, string(run.Status), run.Progress,
		run.StartedAt.UTC(), run.LastHeartbeat.UTC(), run.Error)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun fetches a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.AuditRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, subject_id, status, progress, started_at, finished_at, last_heartbeat, error
		 FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*model.AuditRun, error) {
	var (
		run        model.AuditRun
		finishedAt sql.NullTime
		errText    sql.NullString
	)
	err := row.Scan(&run.ID, &run.SubjectID, &run.Status, &run.Progress,
		&run.StartedAt, &finishedAt, &run.LastHeartbeat, &errText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if finishedAt.Valid {
		t := finishedAt.Time.UTC()
		run.FinishedAt = &t
	}
	run.Error = errText.String
	run.StartedAt = run.StartedAt.UTC()
	run.LastHeartbeat = run.LastHeartbeat.UTC()
	return &run, nil
}

// UpdateRun persists run fields. Terminal statuses are write-once and
// progress never decreases.
func (s *SQLiteStore) UpdateRun(ctx context.Context, run *model.AuditRun) error {
	var finishedAt interface{}
	if run.FinishedAt != nil {
		finishedAt = run.FinishedAt.UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET
			status = ?,
			progress = MAX(progress, ?),
			finished_at = COALESCE(?, finished_at),
			last_heartbeat = ?,
			error = ?
		 WHERE id = ? AND status NOT IN ('done','error','incomplete','timeout')`,
		string(run.Status), run.Progress, finishedAt,
		run.LastHeartbeat.UTC(), run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n == 0 {
		if _, getErr := s.GetRun(ctx, run.ID); getErr != nil {
			return getErr
		}
		return ErrRunFinalized
	}
	return nil
}

// ClaimRun is the atomic lease: only one caller can move a pending run
// to running.
func (s *SQLiteStore) ClaimRun(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = 'running', last_heartbeat = ?
		 WHERE id = ? AND status = 'pending'`,
		time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("claim run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim run: %w", err)
	}
	return n == 1, nil
}

// Heartbeat refreshes last_heartbeat on a running run.
func (s *SQLiteStore) Heartbeat(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET last_heartbeat = ? WHERE id = ? AND status = 'running'`,
		at.UTC(), id)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

// StaleRuns returns running runs whose heartbeat is older than cutoff.
func (s *SQLiteStore) StaleRuns(ctx context.Context, cutoff time.Time) ([]*model.AuditRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subject_id, status, progress, started_at, finished_at, last_heartbeat, error
		 FROM runs WHERE status = 'running' AND last_heartbeat < ?`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("query stale runs: %w", err)
	}
	defer rows.Close()

	var stale []*model.AuditRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		stale = append(stale, run)
	}
	return stale, rows.Err()
}

// ResetRun returns a stalled running run to pending.
func (s *SQLiteStore) ResetRun(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = 'pending', last_heartbeat = ? WHERE id = ? AND status = 'running'`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("reset run: %w", err)
	}
	return nil
}
