// Package mds implements the Metadata Service: the authoritative
// directory of files, their chunk lists, and the membership table
// tracking which chunk servers are currently alive and what they hold.
package mds

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"gastrolog/internal/httperr"
	"gastrolog/internal/logging"
	"gastrolog/internal/wire"
)

// Defaults mirror the original implementation's MetaServer defaults.
const (
	DefaultChunkSize    int64 = 4096
	DefaultReplicaCount int64 = 3
	DefaultPort               = 20000
	DefaultCheckInterval      = 5 * time.Second
	DefaultLivenessWindow     = 5 * time.Second
)

// Config configures a Server.
type Config struct {
	DefaultChunkSize    int64
	DefaultReplicaCount int64
	Logger              *slog.Logger
}

// Server is the MDS HTTP handler set.
type Server struct {
	store      *Store
	membership *Membership
	cfg        Config
	logger     *slog.Logger
}

// NewServer creates an MDS server backed by store and membership.
func NewServer(store *Store, membership *Membership, cfg Config) *Server {
	if cfg.DefaultChunkSize <= 0 {
		cfg.DefaultChunkSize = DefaultChunkSize
	}
	if cfg.DefaultReplicaCount <= 0 {
		cfg.DefaultReplicaCount = DefaultReplicaCount
	}
	return &Server{
		store:      store,
		membership: membership,
		cfg:        cfg,
		logger:     logging.Default(cfg.Logger).With("component", "mds"),
	}
}

// Handler builds the net/http handler serving every MDS route named in
// spec.md §6. Unmatched routes fall through to ServeMux's built-in 404
// (closing REDESIGN FLAG #7: the original handler factory returned null
// on no match without telling the HTTP layer).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("GET /files", s.handleListFiles)
	mux.HandleFunc("GET /create_file", s.handleCreateFile)
	mux.HandleFunc("GET /get_file_meta", s.handleGetFileMeta)
	mux.HandleFunc("POST /update_file_meta", s.handleUpdateFileMeta)
	mux.HandleFunc("POST /update_chunks_list", s.handleUpdateChunksList)
	mux.HandleFunc("GET /get_active_chunk_servers", s.handleGetActiveChunkServers)
	mux.HandleFunc("POST /get_chunk_chunk_servers", s.handleGetChunkChunkServers)
	return mux
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	httperr.WriteJSON(w, wire.PingResponse{Envelope: wire.Success()})
}

func (s *Server) handleListFiles(w http.ResponseWriter, _ *http.Request) {
	files, err := s.store.List()
	if err != nil {
		httperr.Write(w, s.logger, httperr.Wrap(http.StatusInternalServerError, "list files failed", err))
		return
	}
	httperr.WriteJSON(w, wire.ListFilesResponse{Envelope: wire.Success(), Files: files})
}

func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		httperr.Write(w, s.logger, httperr.BadRequest("filename is required"))
		return
	}

	chunkSize := s.cfg.DefaultChunkSize
	if raw := r.URL.Query().Get("chunk_size"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			httperr.Write(w, s.logger, httperr.BadRequest("invalid chunk_size"))
			return
		}
		chunkSize = parsed
	}

	rec, err := s.store.Create(filename, chunkSize, s.cfg.DefaultReplicaCount)
	if err != nil {
		if errors.Is(err, ErrExists) {
			httperr.Write(w, s.logger, httperr.Conflict("file already exists"))
			return
		}
		httperr.Write(w, s.logger, httperr.Wrap(http.StatusInternalServerError, "create file failed", err))
		return
	}

	httperr.WriteJSON(w, wire.CreateFileResponse{Envelope: wire.Success(), FileMeta: toWireMeta(rec, nil)})
}

func (s *Server) handleGetFileMeta(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		httperr.Write(w, s.logger, httperr.BadRequest("filename is required"))
		return
	}

	rec, err := s.store.Get(filename)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httperr.Write(w, s.logger, httperr.NotFound("file not found"))
			return
		}
		httperr.Write(w, s.logger, httperr.Wrap(http.StatusInternalServerError, "get file meta failed", err))
		return
	}

	locations := s.membership.LocationsFor(rec.Chunks)
	httperr.WriteJSON(w, wire.GetFileMetaResponse{Envelope: wire.Success(), FileMeta: toWireMeta(rec, locations)})
}

func (s *Server) handleUpdateFileMeta(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httperr.Write(w, s.logger, httperr.BadRequest("failed to read request body"))
		return
	}

	var req wire.UpdateFileMetaRequest
	if err := httperr.DecodeJSON(body, &req); err != nil {
		httperr.Write(w, s.logger, err)
		return
	}
	if req.Filename == "" {
		httperr.Write(w, s.logger, httperr.BadRequest("filename is required"))
		return
	}

	rec, err := s.store.Update(req)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httperr.Write(w, s.logger, httperr.NotFound("file not found"))
			return
		}
		httperr.Write(w, s.logger, httperr.Wrap(http.StatusInternalServerError, "update file meta failed", err))
		return
	}

	httperr.WriteJSON(w, wire.GetFileMetaResponse{Envelope: wire.Success(), FileMeta: toWireMeta(rec, nil)})
}

func (s *Server) handleUpdateChunksList(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httperr.Write(w, s.logger, httperr.BadRequest("failed to read request body"))
		return
	}

	var req wire.UpdateChunksListRequest
	if err := httperr.DecodeJSON(body, &req); err != nil {
		// The heartbeat handler never fails on content per spec.md §4.1,
		// but a malformed body is still a client bug worth a 400 rather
		// than silently accepting garbage.
		httperr.Write(w, s.logger, err)
		return
	}

	s.membership.Heartbeat(req.ServerID, time.UnixMicro(req.Timestamp).UTC(), req.Chunks)
	httperr.WriteJSON(w, wire.PingResponse{Envelope: wire.Success()})
}

func (s *Server) handleGetActiveChunkServers(w http.ResponseWriter, _ *http.Request) {
	live := s.membership.LiveServers()
	refs := make([]wire.ChunkServerRef, 0, len(live))
	for _, sv := range live {
		refs = append(refs, wire.ChunkServerRef{ID: sv.ID, Address: sv.Address})
	}
	httperr.WriteJSON(w, wire.ActiveChunkServersResponse{Envelope: wire.Success(), ChunkServers: refs})
}

func (s *Server) handleGetChunkChunkServers(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httperr.Write(w, s.logger, httperr.BadRequest("failed to read request body"))
		return
	}

	var req wire.ChunkChunkServersRequest
	if err := httperr.DecodeJSON(body, &req); err != nil {
		httperr.Write(w, s.logger, err)
		return
	}

	servers := s.membership.ServersFor(req.ChunkID)
	httperr.WriteJSON(w, wire.ChunkChunkServersResponse{Envelope: wire.Success(), Servers: servers})
}

func toWireMeta(rec record, locations map[string][]ServerRef) wire.FileMeta {
	meta := wire.FileMeta{
		Filename:     rec.Filename,
		Length:       rec.Length,
		ChunkSize:    rec.ChunkSize,
		ReplicaCount: rec.ReplicaCount,
		Chunks:       rec.Chunks,
	}
	if locations == nil {
		return meta
	}
	meta.ChunkServers = make(map[string][]wire.ChunkServerRef, len(locations))
	for cid, refs := range locations {
		wireRefs := make([]wire.ChunkServerRef, 0, len(refs))
		for _, ref := range refs {
			wireRefs = append(wireRefs, wire.ChunkServerRef{ID: ref.ID, Address: ref.Address})
		}
		meta.ChunkServers[cid] = wireRefs
	}
	return meta
}
