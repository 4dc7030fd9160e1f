// Package main provides the Sightline server binary.
// The server exposes an HTTP API for hybrid multi-modal document search.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sightlinehq/sightline/internal/config"
	"github.com/sightlinehq/sightline/internal/pkg/logger"
	"github.com/sightlinehq/sightline/internal/server"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sightline-server",
		Short: "Sightline Server - hybrid multi-modal document search",
		Long: `Sightline Server provides two-stage hybrid document search over
visual page embeddings and text chunk embeddings.

The server exposes an HTTP API on :8080 (configurable) with search,
ingestion, stats and health endpoints.

Examples:
  sightline-server                         # Start with defaults
  sightline-server --port 9090             # Custom HTTP port
  sightline-server --qdrant http://q:6333  # Custom Qdrant URL`,
		RunE:         runServer,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringP("config", "c", "", "config file path")
	rootCmd.Flags().BoolP("verbose", "v", false, "verbose logging")
	rootCmd.Flags().Int("port", 0, "HTTP server port (overrides config)")
	rootCmd.Flags().String("host", "", "server host (overrides config)")
	rootCmd.Flags().String("qdrant", "", "Qdrant URL (overrides config)")
	rootCmd.Flags().String("embed-url", "", "embedding service URL (overrides config)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sightline-server %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")
	qdrantURL, _ := cmd.Flags().GetString("qdrant")
	embedURL, _ := cmd.Flags().GetString("embed-url")

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if verbose {
		appCfg.Log.Level = "debug"
	}
	if port != 0 {
		appCfg.Port = port
	}
	if host != "" {
		appCfg.Host = host
	}
	if qdrantURL != "" {
		appCfg.Qdrant.URL = qdrantURL
	}
	if embedURL != "" {
		appCfg.Embed.URL = embedURL
	}

	log := logger.New(appCfg.Log.Level, appCfg.Log.Format)

	log.Info("Starting Sightline Server",
		"version", version,
		"host", appCfg.Host,
		"port", appCfg.Port,
	)

	srvCfg := server.DefaultConfig()
	srvCfg.Host = appCfg.Host
	srvCfg.Port = appCfg.Port
	srvCfg.Version = version

	srv, err := server.New(srvCfg, *appCfg, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-sigCh:
		log.Info("Received shutdown signal", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return srv.Stop(ctx)
}
