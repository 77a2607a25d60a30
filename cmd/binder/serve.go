package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/binder/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Binder server",
	Long: `Start the Binder HTTP server.

The server keeps a section list and a preview that is regenerated whenever
the sections or the layout change (unless layout.auto_update is off).
Configuration edits are picked up without a restart.

The server provides:
  - /health               - Basic server health check
  - /status               - Flattening engine, sections and preview state
  - /api/sections         - Upload, list, reorder and remove sections
  - /api/layout           - Numbering layout
  - /api/preview          - Regenerate, download and save the document

Examples:
  binder serve                    # Start on the configured port (default 8080)
  binder serve --port 3000        # Start on custom port
  binder serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger(os.Stdout)

		h, mgr, err := loadEnv(logger)
		if err != nil {
			return err
		}
		mgr.WatchConfig()
		if f := mgr.File(); f != "" {
			logger.Info("loaded config", "file", f)
		}

		host, port := mgr.Get().Server.Host, mgr.Get().Server.Port
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			Home:          h,
			ConfigManager: mgr,
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
