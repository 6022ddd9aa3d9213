package mds

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"

	"gastrolog/internal/logging"
	"gastrolog/internal/wire"
)

// serversListDoc is the on-disk shape of servers_list.json.
type serversListDoc struct {
	ChunkServers []wire.ChunkServerRef `json:"chunk_servers"`
}

// LoadServersList reads path and returns an id -> address map. A missing
// file is not an error: it yields an empty map, and address lookups
// fall back to using the id as the address (spec.md §3).
func LoadServersList(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read servers list: %w", err)
	}

	var doc serversListDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse servers list: %w", err)
	}

	out := make(map[string]string, len(doc.ChunkServers))
	for _, ref := range doc.ChunkServers {
		out[ref.ID] = ref.Address
	}
	return out, nil
}

// WatchServersList starts a goroutine that reloads path into membership
// whenever it changes on disk, until stop is closed. Errors are logged
// and swallowed — a bad edit to the file simply fails to take effect,
// it never crashes the watcher.
func WatchServersList(path string, membership *Membership, logger *slog.Logger, stop <-chan struct{}) error {
	logger = logging.Default(logger)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create servers list watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		// The file may not exist yet; watching its directory still lets
		// us pick it up once it's created, but that's an edge case this
		// core doesn't need to chase — log and continue without a watch.
		logger.Warn("servers list watch unavailable", "path", path, "error", err)
		_ = watcher.Close()
		return nil
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				addrs, err := LoadServersList(path)
				if err != nil {
					logger.Warn("reload servers list failed", "error", err)
					continue
				}
				membership.SetServerAddress(addrs)
				logger.Info("servers list reloaded", "path", path, "count", len(addrs))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("servers list watcher error", "error", err)
			}
		}
	}()

	return nil
}
