package zepsync

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/go-zepsync/pkg/config"
	"github.com/soundprediction/go-zepsync/pkg/maintenance"
	"github.com/soundprediction/go-zepsync/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the zepsync HTTP server",
	Long: `Start the zepsync HTTP server to provide REST access to graph maintenance.

The server provides endpoints for:
- Listing isolated nodes, dangling edges and graph statistics
- Deleting single nodes and edges
- Bulk deletion, which needs {"confirm": true} in the request body
- Health checks

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServe,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serveCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serveCmd.Flags().StringVar(&serverMode, "mode", "release", "Server mode (debug, release, test)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true, false)
	if err != nil {
		return err
	}
	defer a.Close()

	overrideServerFlags(cmd, &a.cfg.Server)
	if err := config.Validate(a.cfg); err != nil {
		return err
	}

	// Bulk routes carry their own confirmation, so the operator never prompts.
	opts := []maintenance.Option{
		maintenance.WithLogger(a.logger),
		maintenance.WithListLimit(a.cfg.Maintenance.ListLimit),
	}
	if a.journal != nil {
		opts = append(opts, maintenance.WithJournal(a.journal))
	}
	op := maintenance.NewOperator(a.store, opts...)

	srv := server.New(a.cfg.Server, op, a.store, a.logger)
	srv.Setup()

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-cmd.Context().Done():
		a.logger.Info("Shutdown requested")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		<-serverErrChan
		a.logger.Info("Server stopped gracefully")
		return nil
	}
}

func overrideServerFlags(cmd *cobra.Command, cfg *config.ServerConfig) {
	if cmd.Flags().Changed("host") {
		cfg.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Mode = serverMode
	}
}
