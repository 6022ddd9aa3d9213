// Command as runs the Access Service: the stateless gateway clients
// talk to, fanning reads and writes out to the CS fleet using
// placement information from the MDS.
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
	"golang.org/x/time/rate"

	"gastrolog/internal/as"
	"gastrolog/internal/logging"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "as",
		Short:        "Run the access service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, _ := cmd.Flags().GetInt("port")
			metaServer, _ := cmd.Flags().GetString("metaserver")
			logLevel, _ := cmd.Flags().GetString("log_level")
			componentLevels, _ := cmd.Flags().GetStringArray("component_log_level")

			logger, err := logging.NewCLILogger(os.Stderr, logLevel, componentLevels)
			if err != nil {
				return err
			}
			return run(cmd.Context(), port, metaServer, logger)
		},
	}

	rootCmd.Flags().IntP("port", "p", as.DefaultPort, "listen port")
	rootCmd.Flags().StringP("metaserver", "m", "localhost:20000", "metadata service host:port")
	rootCmd.Flags().String("log_level", "info", "default log level (debug, info, warn, error)")
	rootCmd.Flags().StringArray("component_log_level", nil, "per-component log level override, e.g. as=debug (repeatable)")

	if err := rootCmd.Execute(); err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("as exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, port int, metaServer string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mdsClient := as.NewMDSClient(metaServer, 10*time.Second)
	csClient := as.NewCSClient(10 * time.Second)

	server := as.NewServer(mdsClient, csClient, nil, as.Config{
		WriteRateLimit: rate.Limit(50),
		WriteBurst:     100,
		Logger:         logger,
	})
	defer server.Close()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", port, err)
	}
	logger.Info("as listening", "addr", listener.Addr().String(), "metaserver", metaServer)

	serveErr := make(chan error, 1)
	go func() { serveErr <- httpServer.Serve(listener) }()

	select {
	case <-ctx.Done():
		logger.Info("as shutting down")
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
