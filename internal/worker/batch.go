package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/truthindex/internal/model"
	"github.com/ppiankov/truthindex/internal/pipeline"
)

// Auditor defines the interface for auditing a single subject.
type Auditor interface {
	Audit(ctx context.Context, subject *model.Subject) (*pipeline.RunResult, error)
}

// AuditJob represents one subject audit.
type AuditJob struct {
	Subject *model.Subject
	Auditor Auditor
}

// Execute executes the audit job.
func (j *AuditJob) Execute(ctx context.Context) Result {
	result, err := j.Auditor.Audit(ctx, j.Subject)
	return &AuditResult{
		SubjectID: j.Subject.ID,
		Result:    result,
		Error:     err,
	}
}

// AuditResult represents the result of an audit job.
type AuditResult struct {
	SubjectID string
	Result    *pipeline.RunResult
	Error     error
}

// GetError returns the error from the audit result.
func (r *AuditResult) GetError() error {
	return r.Error
}

// BatchProcessor audits multiple subjects concurrently.
type BatchProcessor struct {
	auditor     Auditor
	concurrency int
}

// NewBatchProcessor creates a new batch processor.
func NewBatchProcessor(auditor Auditor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		auditor:     auditor,
		concurrency: concurrency,
	}
}

// ProcessSubjects audits multiple subjects concurrently.
func (b *BatchProcessor) ProcessSubjects(ctx context.Context, subjects []*model.Subject) []*AuditResult {
	if len(subjects) == 0 {
		return []*AuditResult{}
	}

	pool := NewPool(b.concurrency)
	for _, subject := range subjects {
		pool.Submit(&AuditJob{
			Subject: subject,
			Auditor: b.auditor,
		})
	}

	results := pool.Wait()

	auditResults := make([]*AuditResult, len(results))
	for i, result := range results {
		auditResults[i] = result.(*AuditResult)
	}
	return auditResults
}

// ProcessDir loads every subject file in a directory and audits them.
func (b *BatchProcessor) ProcessDir(ctx context.Context, dir string) ([]*AuditResult, error) {
	subjects, err := ReadSubjectsFromDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read subjects: %w", err)
	}
	return b.ProcessSubjects(ctx, subjects), nil
}

// ReadSubjectFile loads a single subject definition. A missing ID
// defaults to the file name without extension.
func ReadSubjectFile(path string) (*model.Subject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open subject file: %w", err)
	}

	var subject model.Subject
	if err := json.Unmarshal(data, &subject); err != nil {
		return nil, fmt.Errorf("parse subject file %s: %w", path, err)
	}
	if subject.ID == "" {
		base := filepath.Base(path)
		subject.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return &subject, nil
}

// ReadSubjectsFromDir loads all .json subject files in a directory,
// sorted by name for deterministic ordering, deduplicating on ID.
func ReadSubjectsFromDir(dir string) ([]*model.Subject, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	seen := make(map[string]bool)
	var subjects []*model.Subject
	for _, name := range names {
		subject, err := ReadSubjectFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if seen[subject.ID] {
			continue
		}
		seen[subject.ID] = true
		subjects = append(subjects, subject)
	}
	return subjects, nil
}
