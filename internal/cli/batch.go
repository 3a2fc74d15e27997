package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/truthindex/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Audit multiple subjects from a directory in parallel",
	Long: `Batch audits every subject file (*.json) in a directory:
- Subjects are audited in parallel with a configurable worker count
- Generation calls share one rate budget across all workers
- Each subject gets an individual report in the output directory

Example:
  truthindex batch ./subjects
  truthindex batch ./subjects --concurrency 8 --output-dir ./reports`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./truthindex-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 15*time.Minute, "total timeout for batch processing")

	batchCmd.Flags().StringVar(&storeBackend, "store", "sqlite", "record store backend (sqlite, memory)")
	batchCmd.Flags().StringVar(&storePath, "store-path", "truthindex.db", "sqlite database path")
	batchCmd.Flags().StringVar(&genProvider, "provider", "", "generator provider (openai, ollama, static; empty = offline)")
	batchCmd.Flags().StringVar(&genModel, "model", "", "generator model name")
	batchCmd.Flags().StringVar(&genBaseURL, "base-url", "", "generator base URL (e.g. Ollama endpoint)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	subjects, err := worker.ReadSubjectsFromDir(dir)
	if err != nil {
		return err
	}
	if len(subjects) == 0 {
		return fmt.Errorf("no subject files found in %s", dir)
	}

	cfg := buildGeneratorConfig()
	cfg.Concurrency.BatchWorkers = concurrency

	sup, st, err := buildSupervisor(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Truthindex Batch Audit\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Subjects:     %d\n", len(subjects))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	processor := worker.NewBatchProcessor(sup, concurrency)
	results := processor.ProcessSubjects(ctx, subjects)

	subjectByID := make(map[string]int)
	for i, s := range subjects {
		subjectByID[s.ID] = i
	}

	succeeded, failed := 0, 0
	for _, res := range results {
		if res.Error != nil {
			failed++
			fmt.Fprintf(os.Stderr, "  ✗ %-30s %v\n", res.SubjectID, res.Error)
			continue
		}
		succeeded++
		subject := subjects[subjectByID[res.SubjectID]]
		path := filepath.Join(outputDir, res.SubjectID+".json")
		if err := writeReportJSON(path, subject, res.Result); err != nil {
			fmt.Fprintf(os.Stderr, "  ! %-30s report write failed: %v\n", res.SubjectID, err)
			continue
		}
		if res.Result.Index != nil {
			fmt.Fprintf(os.Stderr, "  ✓ %-30s index %d/100 (%s)\n",
				res.SubjectID, res.Result.Index.TruthIndex.Final, res.Result.Run.Status)
		} else {
			fmt.Fprintf(os.Stderr, "  ✓ %-30s blocked (%s)\n", res.SubjectID, res.Result.Run.Status)
		}
	}

	fmt.Fprintf(os.Stderr, "\n  Done: %d succeeded, %d failed\n\n", succeeded, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d audits failed", failed, len(results))
	}
	return nil
}
