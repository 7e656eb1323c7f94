package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/corpus/internal/config"
	"github.com/jackzampolin/corpus/internal/home"
	"github.com/jackzampolin/corpus/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the corpus server",
	Long: `Start the corpus HTTP server.

This starts the HTTP API and, when auto-processing is enabled, the
background sweep that advances pending documents through the pipeline.

The server provides:
  - /health - Basic server health check
  - /ready  - Readiness check (includes the document store)

Examples:
  corpus serve                    # Start on default port 8080
  corpus serve --port 3000        # Start on custom port
  corpus serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		// Get home directory
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		// Load config, falling back to the home config file when --config
		// is not given and one exists there.
		file := cfgFile
		if file == "" && h.ConfigExists() {
			file = h.ConfigPath()
		}
		cm, err := config.NewManager(file)
		if err != nil {
			return err
		}
		cm.WatchConfig()

		host := serveHost
		port := servePort
		if !cmd.Flags().Changed("host") && cm.Get().Server.Host != "" {
			host = cm.Get().Server.Host
		}
		if !cmd.Flags().Changed("port") && cm.Get().Server.Port != "" {
			port = cm.Get().Server.Port
		}

		// Create server
		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			Home:          h,
			ConfigManager: cm,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
