package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/corpus/internal/api"
	"github.com/jackzampolin/corpus/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Document processing pipeline with OCR, decoration, and training",
	Long: `Corpus is a document processing pipeline that moves uploaded documents
through OCR, text decoration, and model training via a level-triggered
reconciliation sweep.

The pipeline includes:
  - Two-tier object storage with presigned access URLs
  - Remote OCR, decoration, and training stages, or local extraction
  - A periodic sweep that advances every pending document one step
  - Retraining via trained-artifact deletion and requeue`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.corpus/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "corpus home directory (default: ~/.corpus)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
