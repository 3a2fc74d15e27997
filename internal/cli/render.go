package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/truthindex/internal/model"
	"github.com/ppiankov/truthindex/internal/pipeline"
)

// report is the on-disk shape of a full audit report.
type report struct {
	Subject     *model.Subject      `json:"subject"`
	Run         *model.AuditRun     `json:"run"`
	Claims      model.ClaimsPayload `json:"claims"`
	Signal      model.SignalPayload `json:"signal"`
	Norm        model.NormPayload   `json:"normalization"`
	Index       *model.IndexPayload `json:"index,omitempty"`
	GeneratedAt time.Time           `json:"generated_at"`
}

func writeReportJSON(path string, subject *model.Subject, result *pipeline.RunResult) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(report{
		Subject:     subject,
		Run:         result.Run,
		Claims:      result.Claims,
		Signal:      result.Signal,
		Norm:        result.Norm,
		Index:       result.Index,
		GeneratedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func printSummary(w io.Writer, subject *model.Subject, result *pipeline.RunResult) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  Truth Index Audit: %s\n", subject.Name())
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Run:        %s (%s)\n", result.Run.ID, result.Run.Status)
	fmt.Fprintf(w, "  Claims:     %d\n", len(result.Claims.ClaimProfile))
	fmt.Fprintf(w, "  Signal:     %d praised, %d issues\n",
		len(result.Signal.MostPraised), len(result.Signal.MostReportedIssues))
	fmt.Fprintf(w, "  Entries:    %d unique of %d reported\n",
		result.Norm.UniqueCount, result.Norm.TotalCount)

	if result.Index == nil {
		fmt.Fprintf(w, "\n  Truth Index: blocked (no verifiable discrepancy data)\n")
		fmt.Fprintf(w, "  Retry with: truthindex audit <subject> --retry-stage 3\n\n")
		return
	}

	fmt.Fprintf(w, "\n  Truth Index: %d/100 (base %d)\n",
		result.Index.TruthIndex.Final, result.Index.TruthIndex.Base)
	for _, bar := range result.Index.MetricBars {
		fmt.Fprintf(w, "    %-18s %3d%%  %s\n", bar.Label, bar.Percentage, bar.Rating)
	}
	if adj := result.Index.TruthIndex.LLMAdjustment; adj != nil {
		fmt.Fprintf(w, "  Adjustment: %+d (%s)\n", adj.Delta, adj.Reason)
	}
	fmt.Fprintf(w, "\n  %s\n", result.Index.ScoreInterpretation)
	fmt.Fprintf(w, "  Data confidence: %s\n\n", result.Index.DataConfidence)
}
