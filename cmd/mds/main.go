// Command mds runs the Metadata Service: the authoritative directory of
// files, their chunk lists, and the chunk-server membership table.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gastrolog/internal/logging"
	"gastrolog/internal/mds"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "mds",
		Short:         "Run the metadata service",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, _ := cmd.Flags().GetInt("port")
			rootDir, _ := cmd.Flags().GetString("root_directory")
			logLevel, _ := cmd.Flags().GetString("log_level")
			componentLevels, _ := cmd.Flags().GetStringArray("component_log_level")

			logger, err := logging.NewCLILogger(os.Stderr, logLevel, componentLevels)
			if err != nil {
				return err
			}
			return run(cmd.Context(), port, rootDir, logger)
		},
	}

	rootCmd.Flags().IntP("port", "p", mds.DefaultPort, "listen port")
	rootCmd.Flags().StringP("root_directory", "d", "./mds-data", "state root directory")
	rootCmd.Flags().String("log_level", "info", "default log level (debug, info, warn, error)")
	rootCmd.Flags().StringArray("component_log_level", nil, "per-component log level override, e.g. mds=debug (repeatable)")

	if err := rootCmd.Execute(); err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("mds exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, port int, rootDir string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return fmt.Errorf("create root directory: %w", err)
	}

	store, err := mds.NewStore(rootDir)
	if err != nil {
		return fmt.Errorf("create metadata store: %w", err)
	}

	seedAddrs, err := mds.LoadServersList(filepath.Join(rootDir, "servers_list.json"))
	if err != nil {
		return fmt.Errorf("load servers list: %w", err)
	}

	membership := mds.NewMembership(seedAddrs, mds.DefaultLivenessWindow)

	watchStop := make(chan struct{})
	go mds.WatchServersList(filepath.Join(rootDir, "servers_list.json"), membership, logger, watchStop)
	defer close(watchStop)

	checker, err := mds.NewLivenessChecker(membership, mds.DefaultCheckInterval, logger)
	if err != nil {
		return fmt.Errorf("create liveness checker: %w", err)
	}
	checker.Start()
	defer checker.Stop()

	server := mds.NewServer(store, membership, mds.Config{Logger: logger})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", port, err)
	}
	logger.Info("mds listening", "addr", listener.Addr().String(), "root_directory", rootDir)

	serveErr := make(chan error, 1)
	go func() { serveErr <- httpServer.Serve(listener) }()

	select {
	case <-ctx.Done():
		logger.Info("mds shutting down")
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
