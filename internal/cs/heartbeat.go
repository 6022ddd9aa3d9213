package cs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-co-op/gocron/v2"

	"gastrolog/internal/logging"
	"gastrolog/internal/wire"
)

const DefaultHeartbeatInterval = time.Second

// Heartbeat pushes this server's full chunk inventory to the MDS on a
// fixed interval via a gocron job. Errors during the POST are logged
// and swallowed — the worker never terminates (spec.md §4.2).
type Heartbeat struct {
	scheduler gocron.Scheduler
	store     *Store
	client    *http.Client
	mdsAddr   string
	serverID  string
	logger    *slog.Logger
}

// NewHeartbeat creates (but does not start) a heartbeat worker that
// pushes every interval to mdsAddr, identifying itself as serverID.
func NewHeartbeat(store *Store, mdsAddr, serverID string, interval time.Duration, logger *slog.Logger) (*Heartbeat, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create heartbeat scheduler: %w", err)
	}

	hb := &Heartbeat{
		scheduler: scheduler,
		store:     store,
		client:    &http.Client{Timeout: 5 * time.Second},
		mdsAddr:   mdsAddr,
		serverID:  serverID,
		logger:    logging.Default(logger).With("component", "cs-heartbeat"),
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(hb.tick),
		gocron.WithName("cs-heartbeat"),
	)
	if err != nil {
		return nil, fmt.Errorf("create heartbeat job: %w", err)
	}
	return hb, nil
}

// Start begins the periodic push loop.
func (h *Heartbeat) Start() { h.scheduler.Start() }

// Stop shuts the scheduler down.
func (h *Heartbeat) Stop() error { return h.scheduler.Shutdown() }

// Push sends one heartbeat immediately, synchronously. Used both by the
// scheduled tick and by the force_push_chunks_list route.
func (h *Heartbeat) Push(ctx context.Context) error {
	chunks, err := h.store.List()
	if err != nil {
		return fmt.Errorf("list chunks for heartbeat: %w", err)
	}

	body, err := json.Marshal(wire.UpdateChunksListRequest{
		ServerID:  h.serverID,
		Timestamp: time.Now().UTC().UnixMicro(),
		Chunks:    chunks,
	})
	if err != nil {
		return fmt.Errorf("marshal heartbeat: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+h.mdsAddr+"/update_chunks_list", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build heartbeat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("send heartbeat: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("heartbeat rejected with status %d", resp.StatusCode)
	}
	return nil
}

func (h *Heartbeat) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Push(ctx); err != nil {
		h.logger.Warn("heartbeat failed", "error", err)
	}
}
