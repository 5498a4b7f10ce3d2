package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/learner/internal/frame"
	"github.com/banshee-data/learner/internal/runstore"
)

// NewRunsCommand lists runs recorded in an output directory's ledger.
func NewRunsCommand() *cobra.Command {
	var (
		outputDir string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded runs, or show one run's leaderboard",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputDir == "" {
				return fmt.Errorf("--output-dir is required")
			}
			store, err := runstore.Open(filepath.Join(outputDir, runstore.FileName))
			if err != nil {
				return err
			}
			defer store.Close()
			if len(args) == 1 {
				return showRun(cmd, store, args[0])
			}
			return listRuns(cmd, store, limit)
		},
	}
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "output directory holding "+runstore.FileName)
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	return cmd
}

func listRuns(cmd *cobra.Command, store *runstore.Store, limit int) error {
	runs, err := store.List(limit)
	if err != nil {
		return err
	}
	t := frame.New("Run", "Started", "Task", "Target", "Best Model", "Status", "Seconds")
	for _, r := range runs {
		secs := ""
		if !r.FinishedAt.IsZero() {
			secs = strconv.FormatFloat(r.FinishedAt.Sub(r.StartedAt).Seconds(), 'f', 2, 64)
		}
		t.Append("", r.ID, r.StartedAt.Format(time.RFC3339), r.Task, r.Target, r.BestModel, r.Status, secs)
	}
	t.Render(cmd.OutOrStdout(), "Runs")
	return nil
}

func showRun(cmd *cobra.Command, store *runstore.Store, id string) error {
	run, err := store.Get(id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %s on %s (target %s), status %s\n", run.ID, run.Task, run.InputFile, run.Target, run.Status)
	if run.Error != "" {
		fmt.Fprintf(out, "error: %s\n", run.Error)
	}

	stages := frame.New("Stage", "Seconds")
	for _, s := range run.Stages {
		stages.Append("", s.Stage, strconv.FormatFloat(s.Duration.Seconds(), 'f', 3, 64))
	}
	stages.Render(out, "Stages")

	board, err := store.Leaderboard(id)
	if err != nil {
		return err
	}
	if board.Len() > 0 {
		board.Render(out, "Leaderboard")
	}
	return nil
}
