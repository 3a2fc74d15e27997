package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/truthindex/internal/llm"
	"github.com/ppiankov/truthindex/internal/metrics"
	"github.com/ppiankov/truthindex/internal/model"
	"github.com/ppiankov/truthindex/internal/pipeline"
	"github.com/ppiankov/truthindex/internal/store"
	"github.com/ppiankov/truthindex/internal/worker"
)

var (
	storeBackend string
	storePath    string
	genProvider  string
	genModel     string
	genBaseURL   string
	outJSON      string
	auditTimeout time.Duration
	retryStage   int
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit <subject.json>",
	Short: "Audit a single subject and compute its Truth Index",
	Long: `Audit runs the full four-stage pipeline for one subject:
- Extract manufacturer claims from the attribute bag
- Gather independent community signal
- Normalize and deduplicate discrepancy reports
- Compute the Truth Index with its transparent breakdown

Fresh cached stage results are reused instead of re-executed.

Example:
  truthindex audit subjects/solarstation-1000.json
  truthindex audit subject.json --provider openai --model gpt-4o-mini
  truthindex audit subject.json --retry-stage 4`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().StringVar(&storeBackend, "store", "sqlite", "record store backend (sqlite, memory)")
	auditCmd.Flags().StringVar(&storePath, "store-path", "truthindex.db", "sqlite database path")
	auditCmd.Flags().StringVar(&genProvider, "provider", "", "generator provider (openai, ollama, static; empty = offline)")
	auditCmd.Flags().StringVar(&genModel, "model", "", "generator model name")
	auditCmd.Flags().StringVar(&genBaseURL, "base-url", "", "generator base URL (e.g. Ollama endpoint)")
	auditCmd.Flags().StringVar(&outJSON, "json", "", "write the full report to this path")
	auditCmd.Flags().DurationVar(&auditTimeout, "timeout", 3*time.Minute, "overall audit timeout")
	auditCmd.Flags().IntVar(&retryStage, "retry-stage", 0, "re-invoke only this stage (1-4), reusing fresh upstream records")
}

func runAudit(cmd *cobra.Command, args []string) error {
	subject, err := worker.ReadSubjectFile(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	cfg := buildGeneratorConfig()

	sup, st, err := buildSupervisor(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if verbose {
		fmt.Fprintf(os.Stderr, "Auditing: %s (%s)\n", subject.Name(), subject.ID)
	}

	var result *pipeline.RunResult
	if retryStage >= 1 && retryStage <= 4 {
		result, err = sup.RetryStage(ctx, subject, model.Stage(retryStage))
	} else {
		result, err = sup.Audit(ctx, subject)
	}
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}

	if outJSON != "" {
		if err := writeReportJSON(outJSON, subject, result); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", outJSON)
		}
	}

	printSummary(os.Stdout, subject, result)
	return nil
}

// buildGeneratorConfig assembles the generator section from flags, env
// vars, and defaults.
func buildGeneratorConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.Store.Backend = storeBackend
	cfg.Store.Path = storePath
	cfg.Generator.Provider = genProvider
	cfg.Generator.Model = genModel
	cfg.Generator.BaseURL = genBaseURL
	cfg.Output.Verbose = verbose

	switch genProvider {
	case "openai":
		cfg.Generator.APIKey = os.Getenv("OPENAI_API_KEY")
	case "ollama":
		if base := os.Getenv("OLLAMA_BASE_URL"); base != "" && cfg.Generator.BaseURL == "" {
			cfg.Generator.BaseURL = base
		}
	}
	return cfg
}

// buildSupervisor wires store, generator, limiter, and supervisor.
func buildSupervisor(cfg *model.Config) (*pipeline.Supervisor, store.RecordStore, error) {
	st, err := store.New(cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	gen, err := llm.NewGenerator(llm.ConfigFromModel(cfg.Generator))
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	if cfg.Generator.Provider == "openai" && cfg.Generator.APIKey == "" {
		_ = st.Close()
		return nil, nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	limiter := worker.NewLimiter(cfg.Generator.RatePerSecond, cfg.Generator.RateBurst)
	gen = worker.RateLimited(gen, limiter)

	logger, err := buildLogger()
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	sup := pipeline.NewSupervisor(st, gen, nil, cfg, logger, metrics.Nop())
	return sup, st, nil
}
