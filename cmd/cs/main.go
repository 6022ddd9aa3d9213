// Command cs runs a Chunk Service: a storage node owning an opaque
// blob directory and periodically reporting its inventory to the MDS.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gastrolog/internal/cs"
	"gastrolog/internal/logging"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "cs",
		Short:        "Run a chunk service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, _ := cmd.Flags().GetInt("port")
			rootDir, _ := cmd.Flags().GetString("root_directory")
			metaServer, _ := cmd.Flags().GetString("metaserver")
			chunkSize, _ := cmd.Flags().GetInt64("chunk_size")
			serverID, _ := cmd.Flags().GetString("id")
			if serverID == "" {
				serverID = fmt.Sprintf("cs-%d", port)
			}
			logLevel, _ := cmd.Flags().GetString("log_level")
			componentLevels, _ := cmd.Flags().GetStringArray("component_log_level")

			logger, err := logging.NewCLILogger(os.Stderr, logLevel, componentLevels)
			if err != nil {
				return err
			}
			return run(cmd.Context(), port, rootDir, metaServer, serverID, chunkSize, logger)
		},
	}

	rootCmd.Flags().IntP("port", "p", cs.DefaultPort, "listen port")
	rootCmd.Flags().StringP("root_directory", "d", "./cs-data", "state root directory")
	rootCmd.Flags().StringP("metaserver", "m", "localhost:20000", "metadata service host:port")
	rootCmd.Flags().Int64("chunk_size", 0, "maximum chunk size accepted by update_chunk (0 = unbounded)")
	rootCmd.Flags().String("id", "", "server id advertised in heartbeats (default: cs-<port>)")
	rootCmd.Flags().String("log_level", "info", "default log level (debug, info, warn, error)")
	rootCmd.Flags().StringArray("component_log_level", nil, "per-component log level override, e.g. cs-heartbeat=debug (repeatable)")

	if err := rootCmd.Execute(); err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("cs exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, port int, rootDir, metaServer, serverID string, chunkSize int64, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return fmt.Errorf("create root directory: %w", err)
	}

	store, err := cs.NewStore(rootDir, chunkSize)
	if err != nil {
		return fmt.Errorf("create chunk store: %w", err)
	}

	heartbeat, err := cs.NewHeartbeat(store, metaServer, serverID, cs.DefaultHeartbeatInterval, logger)
	if err != nil {
		return fmt.Errorf("create heartbeat worker: %w", err)
	}
	heartbeat.Start()
	defer heartbeat.Stop()

	server := cs.NewServer(store, heartbeat, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", port, err)
	}
	logger.Info("cs listening", "addr", listener.Addr().String(), "id", serverID, "metaserver", metaServer)

	serveErr := make(chan error, 1)
	go func() { serveErr <- httpServer.Serve(listener) }()

	select {
	case <-ctx.Done():
		logger.Info("cs shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}
