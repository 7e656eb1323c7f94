package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/corpus/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running corpus server via HTTP.

These commands require a running server (corpus serve).
Use --server to specify a custom server URL.

Examples:
  corpus api health                       # Check server health
  corpus api documents list               # List all documents
  corpus api documents upload notes.pdf   # Upload a document`,
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Document management commands",
}

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Pipeline control commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))

	// Documents as subcommand group
	documentsCmd.AddCommand((&endpoints.UploadEndpoint{}).Command(getServerURL))
	documentsCmd.AddCommand((&endpoints.ListDocumentsEndpoint{}).Command(getServerURL))
	documentsCmd.AddCommand((&endpoints.GetDocumentEndpoint{}).Command(getServerURL))
	documentsCmd.AddCommand((&endpoints.AdvanceEndpoint{}).Command(getServerURL))
	documentsCmd.AddCommand((&endpoints.ResetEndpoint{}).Command(getServerURL))
	documentsCmd.AddCommand((&endpoints.DeleteTrainedEndpoint{}).Command(getServerURL))
	documentsCmd.AddCommand((&endpoints.DestroyEndpoint{}).Command(getServerURL))

	// Pipeline as subcommand group
	pipelineCmd.AddCommand((&endpoints.DrainEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(documentsCmd)
	apiCmd.AddCommand(pipelineCmd)
	rootCmd.AddCommand(apiCmd)
}
