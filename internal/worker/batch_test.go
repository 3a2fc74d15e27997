package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/truthindex/internal/model"
	"github.com/ppiankov/truthindex/internal/pipeline"
)

// mockAuditor implements Auditor
type mockAuditor struct {
	shouldErr bool
}

func (m *mockAuditor) Audit(ctx context.Context, subject *model.Subject) (*pipeline.RunResult, error) {
	time.Sleep(5 * time.Millisecond) // Simulate work
	if m.shouldErr {
		return nil, errors.New("audit error")
	}
	return &pipeline.RunResult{
		Run: &model.AuditRun{
			ID:        "run-" + subject.ID,
			SubjectID: subject.ID,
			Status:    model.RunDone,
		},
	}, nil
}

func subjects(ids ...string) []*model.Subject {
	out := make([]*model.Subject, 0, len(ids))
	for _, id := range ids {
		out = append(out, &model.Subject{ID: id})
	}
	return out
}

func TestBatchProcessor_ProcessSubjects(t *testing.T) {
	processor := NewBatchProcessor(&mockAuditor{}, 2)

	results := processor.ProcessSubjects(context.Background(), subjects("a", "b", "c"))
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	seen := make(map[string]bool)
	for _, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.SubjectID, res.Error)
		}
		if res.Result == nil || res.Result.Run.Status != model.RunDone {
			t.Errorf("expected done run for %s", res.SubjectID)
		}
		seen[res.SubjectID] = true
	}
	for _, id := range []string{"a", "b", "c"} {
		if !seen[id] {
			t.Errorf("missing result for subject %s", id)
		}
	}
}

func TestBatchProcessor_ProcessSubjects_Error(t *testing.T) {
	processor := NewBatchProcessor(&mockAuditor{shouldErr: true}, 2)

	results := processor.ProcessSubjects(context.Background(), subjects("a"))
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Error == nil {
		t.Error("expected audit error surfaced in the result")
	}
}

func TestBatchProcessor_EmptyInput(t *testing.T) {
	processor := NewBatchProcessor(&mockAuditor{}, 2)
	results := processor.ProcessSubjects(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestReadSubjectFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "powerbox.json")
	content := `{"brand": "Acme", "model": "PowerBox", "attributes": {"output": "2000W"}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	subject, err := ReadSubjectFile(path)
	if err != nil {
		t.Fatalf("read subject: %v", err)
	}
	if subject.ID != "powerbox" {
		t.Errorf("missing ID should default to file name, got %q", subject.ID)
	}
	if subject.Brand != "Acme" {
		t.Errorf("unexpected brand: %q", subject.Brand)
	}
}

func TestReadSubjectFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := ReadSubjectFile(path); err == nil {
		t.Error("expected parse error")
	}
	if _, err := ReadSubjectFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReadSubjectsFromDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"b.json":   `{"id": "beta"}`,
		"a.json":   `{"id": "alpha"}`,
		"dup.json": `{"id": "alpha"}`,
		"skip.txt": `not a subject`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("write fixture %s: %v", name, err)
		}
	}

	subjects, err := ReadSubjectsFromDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(subjects) != 2 {
		t.Fatalf("expected 2 deduplicated subjects, got %d", len(subjects))
	}
	// Sorted by file name: a.json before b.json
	if subjects[0].ID != "alpha" || subjects[1].ID != "beta" {
		t.Errorf("unexpected order: %s, %s", subjects[0].ID, subjects[1].ID)
	}
}
