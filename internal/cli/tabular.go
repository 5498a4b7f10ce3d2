package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/banshee-data/learner/internal/config"
	"github.com/banshee-data/learner/internal/monitoring"
	"github.com/banshee-data/learner/internal/pipeline"
	"github.com/banshee-data/learner/internal/report"
	"github.com/banshee-data/learner/internal/runstore"
)

// NewTabularCommand creates the tabular training command.
func NewTabularCommand() *cobra.Command {
	var noLedger bool
	cmd := &cobra.Command{
		Use:   "tabular",
		Short: "Compare models on a CSV file and write an HTML report",
		Long: `Load a CSV file, compare candidate models, keep the best one and write
comparison_result.html, the CSV side files and the model container into
the output directory.

Settings are read from, in increasing precedence: the --config YAML file,
LEARNER_* environment variables and explicitly set flags.`,
		Example: `  learner tabular --input data.csv --target-col 4 --output-dir out --task classification
  learner tabular --config job.yaml --models rf,gbc --cross-validation=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgFile, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadJob(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runTabular(cmd, cfg, !noLedger)
		},
	}
	config.BindJobFlags(cmd.Flags())
	cmd.Flags().BoolVar(&noLedger, "no-ledger", false, "do not record the run in "+runstore.FileName)
	return cmd
}

func runTabular(cmd *cobra.Command, cfg *config.JobConfig, ledger bool) error {
	tr, err := pipeline.NewTrainer(cfg)
	if err != nil {
		return err
	}
	if ledger {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		runs, err := runstore.Open(filepath.Join(cfg.OutputDir, runstore.FileName))
		if err != nil {
			monitoring.Warnf("run ledger disabled: %v", err)
		} else {
			defer runs.Close()
			tr.Runs = runs
		}
	}

	if err := tr.Run(cmd.Context()); err != nil {
		return err
	}

	a := tr.Artifact()
	out := cmd.OutOrStdout()
	a.Results.Render(out, "Model comparison")
	a.TestResults.Render(out, "Holdout: "+a.ModelName)
	fmt.Fprintf(out, "report: %s\n", filepath.Join(cfg.OutputDir, report.HTMLFile))
	if id := tr.RunID(); id != "" {
		fmt.Fprintf(out, "run: %s\n", id)
	}
	return nil
}
