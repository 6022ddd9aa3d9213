// Command devcluster launches a local MDS, N CSes, and an AS together
// in one process tree, with colored line-prefixed combined output and
// clean shutdown on SIGINT/SIGTERM — useful for exercising the
// read/write/membership paths against a real multi-node fleet without a
// separate orchestration tool.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gastrolog/internal/as"
	"gastrolog/internal/cs"
	"gastrolog/internal/mds"
	"gastrolog/internal/wire"
)

var colors = []string{
	"\033[36m", // cyan
	"\033[35m", // magenta
	"\033[33m", // yellow
	"\033[32m", // green
}

const reset = "\033[0m"

// lineWriter serializes colored, prefixed line output across goroutines
// hosting independent services in one process.
type lineWriter struct {
	mu sync.Mutex
}

func (lw *lineWriter) logf(name, color, format string, args ...any) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	fmt.Fprintf(os.Stderr, "%s[%s]%s %s\n", color, name, reset, fmt.Sprintf(format, args...))
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "devcluster",
		Short:        "Run a local MDS + N CSes + an AS for development",
		SilenceUsage: true,
		RunE:         runCluster,
	}

	rootCmd.Flags().Int("cs", 3, "number of chunk servers to launch")
	rootCmd.Flags().Int("mds-port", mds.DefaultPort, "MDS listen port")
	rootCmd.Flags().Int("cs-base-port", cs.DefaultPort, "first chunk server listen port (each subsequent CS increments by 1)")
	rootCmd.Flags().Int("as-port", as.DefaultPort, "AS listen port")
	rootCmd.Flags().String("root", "./devcluster-data", "root directory for all nodes' state")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCluster(cmd *cobra.Command, args []string) error {
	numCS, _ := cmd.Flags().GetInt("cs")
	mdsPort, _ := cmd.Flags().GetInt("mds-port")
	csBasePort, _ := cmd.Flags().GetInt("cs-base-port")
	asPort, _ := cmd.Flags().GetInt("as-port")
	root, _ := cmd.Flags().GetString("root")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lw := &lineWriter{}

	mdsRoot := filepath.Join(root, "mds")
	if err := os.MkdirAll(mdsRoot, 0o755); err != nil {
		return fmt.Errorf("create mds root: %w", err)
	}
	if err := writeServersList(filepath.Join(mdsRoot, "servers_list.json"), numCS, csBasePort); err != nil {
		return fmt.Errorf("write servers list: %w", err)
	}

	var servers []*http.Server
	var listeners []net.Listener
	var wg sync.WaitGroup

	register := func(name, color string, addr string, handler http.Handler) error {
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
		servers = append(servers, srv)
		listeners = append(listeners, listener)

		wg.Add(1)
		go func() {
			defer wg.Done()
			lw.logf(name, color, "listening on %s", listener.Addr())
			if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
				lw.logf(name, color, "exited with error: %v", err)
			}
		}()
		return nil
	}

	mdsLogger := devclusterLogger(lw, "mds", colors[0])
	mdsStore, err := mds.NewStore(mdsRoot)
	if err != nil {
		return fmt.Errorf("create mds store: %w", err)
	}
	seedAddrs, err := mds.LoadServersList(filepath.Join(mdsRoot, "servers_list.json"))
	if err != nil {
		return fmt.Errorf("load servers list: %w", err)
	}
	membership := mds.NewMembership(seedAddrs, mds.DefaultLivenessWindow)
	checker, err := mds.NewLivenessChecker(membership, mds.DefaultCheckInterval, mdsLogger)
	if err != nil {
		return fmt.Errorf("create liveness checker: %w", err)
	}
	checker.Start()
	defer checker.Stop()

	mdsServer := mds.NewServer(mdsStore, membership, mds.Config{Logger: mdsLogger})
	if err := register("mds", colors[0], fmt.Sprintf(":%d", mdsPort), mdsServer.Handler()); err != nil {
		return err
	}

	var heartbeats []*cs.Heartbeat
	for i := range numCS {
		name := fmt.Sprintf("cs%d", i+1)
		color := colors[(i+1)%len(colors)]
		csRoot := filepath.Join(root, name)
		if err := os.MkdirAll(csRoot, 0o755); err != nil {
			return fmt.Errorf("create %s root: %w", name, err)
		}

		csStore, err := cs.NewStore(csRoot, 0)
		if err != nil {
			return fmt.Errorf("create %s store: %w", name, err)
		}
		heartbeat, err := cs.NewHeartbeat(csStore, fmt.Sprintf("localhost:%d", mdsPort), name, cs.DefaultHeartbeatInterval, devclusterLogger(lw, name, color))
		if err != nil {
			return fmt.Errorf("create %s heartbeat: %w", name, err)
		}
		heartbeat.Start()
		heartbeats = append(heartbeats, heartbeat)

		csServer := cs.NewServer(csStore, heartbeat, devclusterLogger(lw, name, color))
		if err := register(name, color, fmt.Sprintf(":%d", csBasePort+i), csServer.Handler()); err != nil {
			return err
		}
	}

	asClientLogger := devclusterLogger(lw, "as", colors[len(colors)-1])
	asServer := as.NewServer(
		as.NewMDSClient(fmt.Sprintf("localhost:%d", mdsPort), 10*time.Second),
		as.NewCSClient(10*time.Second),
		nil,
		as.Config{Logger: asClientLogger},
	)
	defer asServer.Close()
	if err := register("as", colors[len(colors)-1], fmt.Sprintf(":%d", asPort), asServer.Handler()); err != nil {
		return err
	}

	<-ctx.Done()
	lw.logf("devcluster", reset, "shutting down")

	for _, hb := range heartbeats {
		_ = hb.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(shutdownCtx)
	}
	wg.Wait()
	return nil
}

func writeServersList(path string, numCS, basePort int) error {
	doc := struct {
		ChunkServers []wire.ChunkServerRef `json:"chunk_servers"`
	}{}
	for i := range numCS {
		doc.ChunkServers = append(doc.ChunkServers, wire.ChunkServerRef{
			ID:      fmt.Sprintf("cs%d", i+1),
			Address: fmt.Sprintf("localhost:%d", basePort+i),
		})
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// devclusterLogger adapts the colored lineWriter into a *slog.Logger via
// a minimal handler, so MDS/CS/AS components log through the same
// dependency-injected *slog.Logger constructor parameter they use in
// production, with output routed through the combined, prefixed stream.
func devclusterLogger(lw *lineWriter, name, color string) *slog.Logger {
	return slog.New(&lineHandler{lw: lw, name: name, color: color})
}

type lineHandler struct {
	lw    *lineWriter
	name  string
	color string
	attrs []slog.Attr
}

func (h *lineHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	msg := r.Message
	r.Attrs(func(a slog.Attr) bool {
		msg += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		return true
	})
	for _, a := range h.attrs {
		msg += fmt.Sprintf(" %s=%v", a.Key, a.Value)
	}
	h.lw.logf(h.name, h.color, "%s %s", r.Level, msg)
	return nil
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &lineHandler{lw: h.lw, name: h.name, color: h.color, attrs: append(h.attrs, attrs...)}
}

func (h *lineHandler) WithGroup(string) slog.Handler { return h }
