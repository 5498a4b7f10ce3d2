// Package cli provides the learner command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/banshee-data/learner/internal/monitoring"
	"github.com/banshee-data/learner/internal/version"
)

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	var quiet bool
	rootCmd := &cobra.Command{
		Use:   "learner",
		Short: "Tabular model reports and image feature encoders",
		Long: `learner compares tabular models on a CSV file and renders the results
into a static HTML report. It also builds image feature encoders that
adapt arbitrary image geometry to a fixed-width feature vector.`,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if quiet {
				monitoring.SetLogger(nil)
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress logging")

	rootCmd.AddCommand(NewTabularCommand())
	rootCmd.AddCommand(NewRunsCommand())
	rootCmd.AddCommand(NewEncoderCommand())
	rootCmd.AddCommand(NewVersionCommand())
	return rootCmd
}

// NewVersionCommand prints build metadata.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = cmd.OutOrStdout().Write([]byte(version.String() + "\n"))
		},
	}
}
