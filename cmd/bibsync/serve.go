package main

import (
	"github.com/spf13/cobra"

	"github.com/bibsync/bibsync/internal/server"
)

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: listen_addr from config)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the library over a local HTTP/JSON API",
	Long: `Serve the library over a local HTTP/JSON API under /api/v1, with
/healthz and Prometheus metrics at /metrics. Stops on SIGINT or SIGTERM.

Examples:
  bibsync serve
  bibsync serve --addr 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a := mustOpenApp()
	defer a.Close()

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.ListenAddr
	}

	srv := server.New(server.DefaultConfig(addr), a.svc, a.logger)
	if err := srv.Run(cmd.Context()); err != nil {
		exitWithError(ExitError, "serving: %v", err)
	}
	return nil
}
